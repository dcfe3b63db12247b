package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/veesix-networks/aasbus/pkg/events"
)

// StructHandler exports the prometheus-tagged fields of T. extract picks the
// values of T out of a stats snapshot; one sample set is emitted per value.
type StructHandler[T any] struct {
	name        string
	logger      *slog.Logger
	metrics     []FieldMetric
	labelFields []string
	descs       map[string]*prometheus.Desc
	extract     func(events.Stats) []T
}

func NewStructHandler[T any](name string, extract func(events.Stats) []T, logger *slog.Logger) (*StructHandler[T], error) {
	var zero T
	metrics, labelFields, err := GenerateMetrics(reflect.TypeOf(zero))
	if err != nil {
		return nil, fmt.Errorf("metric handler %s: %w", name, err)
	}

	labelNames := LabelNames(labelFields)
	descs := make(map[string]*prometheus.Desc, len(metrics))
	for _, m := range metrics {
		descs[m.FieldName] = prometheus.NewDesc(m.MetricName, m.Help, labelNames, nil)
	}

	return &StructHandler[T]{
		name:        name,
		logger:      logger,
		metrics:     metrics,
		labelFields: labelFields,
		descs:       descs,
		extract:     extract,
	}, nil
}

func (h *StructHandler[T]) Name() string { return h.name }

func (h *StructHandler[T]) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range h.descs {
		ch <- desc
	}
}

func (h *StructHandler[T]) Collect(ctx context.Context, src StatsSource, ch chan<- prometheus.Metric) error {
	for _, item := range h.extract(src.Stats()) {
		v := reflect.ValueOf(item)
		labelValues := GetLabelValues(v, h.labelFields)

		for _, m := range h.metrics {
			value, err := GetFieldValue(v, m.FieldName)
			if err != nil {
				h.logger.Debug("Skipping metric field", "handler", h.name, "field", m.FieldName, "error", err)
				continue
			}
			metric, err := prometheus.NewConstMetric(h.descs[m.FieldName], m.Type, value, labelValues...)
			if err != nil {
				return err
			}
			ch <- metric
		}
	}
	return nil
}
