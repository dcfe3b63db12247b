package metrics

import (
	"log/slog"

	"github.com/veesix-networks/aasbus/pkg/events"
)

func init() {
	Register("bus", func(logger *slog.Logger) (MetricHandler, error) {
		return NewStructHandler("bus", func(s events.Stats) []events.Stats {
			return []events.Stats{s}
		}, logger)
	})
	Register("bus.kinds", func(logger *slog.Logger) (MetricHandler, error) {
		return NewStructHandler("bus.kinds", func(s events.Stats) []events.KindStats {
			return s.Kinds
		}, logger)
	})
}
