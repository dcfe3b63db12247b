package prometheus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veesix-networks/aasbus/pkg/component"
	"github.com/veesix-networks/aasbus/pkg/config"
	"github.com/veesix-networks/aasbus/pkg/logger"
	"github.com/veesix-networks/aasbus/plugins/exporter/prometheus/metrics"
)

const Namespace = "exporter.prometheus"

func init() {
	component.Register(Namespace, New)
}

type Component struct {
	*component.Base
	logger   *slog.Logger
	source   metrics.StatsSource
	handlers []metrics.MetricHandler
	addr     string

	mu       sync.RWMutex
	server   *http.Server
	listener net.Listener
}

func New(deps component.Dependencies) (component.Component, error) {
	if deps.Config == nil || !deps.Config.Exporter.Enabled {
		return nil, nil
	}
	if deps.EventBus == nil {
		return nil, fmt.Errorf("%s: no event bus", Namespace)
	}

	addr := deps.Config.Exporter.ListenAddress
	if addr == "" {
		addr = config.DefaultExporterAddress
	}

	return NewWithRegistry(deps.EventBus, addr, metrics.DefaultRegistry()), nil
}

// NewWithRegistry builds an exporter serving the handlers of reg.
func NewWithRegistry(src metrics.StatsSource, addr string, reg *metrics.MetricHandlerRegistry) *Component {
	log := logger.Get(logger.Exporter)
	return &Component{
		Base:     component.NewBase(Namespace),
		logger:   log,
		source:   src,
		handlers: reg.CreateHandlers(log),
		addr:     addr,
	}
}

// Addr returns the bound listen address once started, the configured one
// before that.
func (c *Component) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.listener != nil {
		return c.listener.Addr().String()
	}
	return c.addr
}

// Handler serves the exposition format for the configured handlers.
func (c *Component) Handler() http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(&busCollector{
		source:   c.source,
		logger:   c.logger,
		handlers: c.handlers,
	})
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func (c *Component) Start(ctx context.Context) error {
	c.StartContext(ctx)

	ln, err := net.Listen("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("prometheus listen %s: %w", c.addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	c.mu.Lock()
	c.listener = ln
	c.server = server
	c.mu.Unlock()

	c.logger.Info("Prometheus HTTP server listening", "addr", ln.Addr().String(), "handlers", len(c.handlers))

	c.Go(func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("Prometheus HTTP server error", "error", err)
		}
	})
	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	c.logger.Info("Stopping Prometheus exporter")

	c.mu.Lock()
	server := c.server
	c.server = nil
	c.listener = nil
	c.mu.Unlock()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}

	c.StopContext()
	return nil
}

type busCollector struct {
	source   metrics.StatsSource
	logger   *slog.Logger
	handlers []metrics.MetricHandler
}

func (bc *busCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, handler := range bc.handlers {
		handler.Describe(ch)
	}
}

func (bc *busCollector) Collect(ch chan<- prometheus.Metric) {
	ctx := context.Background()
	for _, handler := range bc.handlers {
		if err := handler.Collect(ctx, bc.source, ch); err != nil {
			bc.logger.Error("Failed to collect metrics", "handler", handler.Name(), "error", err)
		}
	}
}
