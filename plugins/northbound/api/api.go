package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/veesix-networks/aasbus/pkg/component"
	"github.com/veesix-networks/aasbus/pkg/config"
	"github.com/veesix-networks/aasbus/pkg/config/system"
	"github.com/veesix-networks/aasbus/pkg/events"
	"github.com/veesix-networks/aasbus/pkg/logger"
	"github.com/veesix-networks/aasbus/pkg/version"
)

const Namespace = "northbound.api"

func init() {
	component.Register(Namespace, NewComponent)
}

type Component struct {
	*component.Base
	logger  *slog.Logger
	bus     events.Bus
	journal component.ElementLookup
	limiter *rate.Limiter
	addr    string
	streams atomic.Int64

	mu       sync.RWMutex
	server   *http.Server
	listener net.Listener
}

func NewComponent(deps component.Dependencies) (component.Component, error) {
	if deps.Config == nil || !deps.Config.API.Enabled {
		return nil, nil
	}
	if deps.EventBus == nil {
		return nil, fmt.Errorf("%s: no event bus", Namespace)
	}
	return New(deps.EventBus, deps.Journal, deps.Config.API), nil
}

// New builds the API server. journal may be nil, in which case element
// lookups answer 404.
func New(bus events.Bus, journal component.ElementLookup, cfg system.APIConfig) *Component {
	addr := cfg.ListenAddress
	if addr == "" {
		addr = config.DefaultAPIAddress
	}

	c := &Component{
		Base:    component.NewBase(Namespace),
		logger:  logger.Get(logger.Gateway),
		bus:     bus,
		journal: journal,
		addr:    addr,
	}
	if cfg.PublishRate > 0 {
		burst := cfg.PublishBurst
		if burst <= 0 {
			burst = int(cfg.PublishRate)
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.PublishRate), burst)
	}
	return c
}

// Handler returns the routes served by the component.
func (c *Component) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/events", c.handlePublish)
	mux.HandleFunc("GET /api/events/stream", c.handleStream)
	mux.HandleFunc("GET /api/stats", c.handleStats)
	mux.HandleFunc("GET /api/kinds", c.handleKinds)
	mux.HandleFunc("GET /api/elements", c.handleElement)
	mux.HandleFunc("GET /api/elements/value", c.handleValue)
	mux.HandleFunc("GET /api/status", c.handleStatus)
	mux.HandleFunc("GET /api/openapi.json", c.handleOpenAPI)

	return mux
}

func (c *Component) Start(ctx context.Context) error {
	c.StartContext(ctx)

	ln, err := net.Listen("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("api listen %s: %w", c.addr, err)
	}

	server := &http.Server{
		Handler:           c.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	c.mu.Lock()
	c.server = server
	c.listener = ln
	c.mu.Unlock()

	c.logger.Info("API server listening", "addr", ln.Addr().String())

	c.Go(func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("API server error", "error", err)
		}
	})
	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	c.logger.Info("Stopping API server")

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

	// Hijacked stream connections are not tracked by Shutdown; they watch
	// the component context instead.
	c.StopContext()
	return nil
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

func (c *Component) GetStatus() *Status {
	c.mu.RLock()
	running := c.server != nil
	c.mu.RUnlock()

	state := "stopped"
	if running {
		state = "running"
	}

	return &Status{
		State:         state,
		ListenAddress: c.Addr(),
		Running:       running,
		Streams:       int(c.streams.Load()),
		Version:       version.Get(),
	}
}
