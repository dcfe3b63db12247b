package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/veesix-networks/aasbus/pkg/broker"
	"github.com/veesix-networks/aasbus/pkg/broker/memory"
	"github.com/veesix-networks/aasbus/pkg/broker/natsclient"
	"github.com/veesix-networks/aasbus/pkg/config"
	"github.com/veesix-networks/aasbus/pkg/config/system"
	"github.com/veesix-networks/aasbus/pkg/events"
	"github.com/veesix-networks/aasbus/pkg/events/external"
	"github.com/veesix-networks/aasbus/pkg/events/forward"
	"github.com/veesix-networks/aasbus/pkg/events/local"
	"github.com/veesix-networks/aasbus/pkg/logger"
)

const memoryScheme = "memory://"

func newTransport(cfg system.BrokerConfig) broker.Transport {
	if strings.HasPrefix(cfg.URL, memoryScheme) {
		return memory.New()
	}
	return natsclient.New(natsclient.Config{
		URL:           cfg.URL,
		Name:          cfg.Name,
		Username:      cfg.Username,
		Password:      cfg.Password,
		Token:         cfg.Token,
		ReconnectWait: cfg.ReconnectWait,
		MaxReconnects: cfg.Reconnects(),
		Timeout:       cfg.Timeout,
		CAFile:        cfg.TLS.CAFile,
		CertFile:      cfg.TLS.CertFile,
		KeyFile:       cfg.TLS.KeyFile,
	})
}

func localOptions(cfg system.MessageBusConfig) []local.Option {
	opts := []local.Option{local.WithQueueCapacity(cfg.QueueCapacity)}
	if policy, ok := local.ParseOverflowPolicy(cfg.OverflowPolicy); ok {
		opts = append(opts, local.WithOverflowPolicy(policy))
	}
	return opts
}

// newBus builds the bus variant selected by messagebus.type.
func newBus(cfg *config.Config) (events.Bus, error) {
	mb := cfg.MessageBus

	var bus events.Bus
	switch mb.Type {
	case system.MessageBusInternal, "":
		bus = local.New(localOptions(mb)...)
	case system.MessageBusInternalForward:
		bus = forward.New(newTransport(cfg.Broker), forward.Config{
			TopicPrefix: mb.Forward.TopicPrefix,
			Kinds:       mb.Forward.Kinds,
			Timeout:     cfg.Broker.Timeout,
		}, localOptions(mb)...)
	case system.MessageBusExternal:
		bus = external.New(newTransport(cfg.Broker), external.Config{
			TopicPrefix: mb.Forward.TopicPrefix,
			Timeout:     cfg.Broker.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown message bus type %q", mb.Type)
	}

	if len(mb.DebugKinds) > 0 {
		setter, ok := bus.(interface{ SetDebugKinds([]events.Kind) error })
		if !ok {
			return nil, fmt.Errorf("message bus type %q does not support debug kinds", mb.Type)
		}
		kinds, err := events.ParseKinds(mb.DebugKinds)
		if err != nil {
			return nil, err
		}
		if err := setter.SetDebugKinds(kinds); err != nil {
			return nil, err
		}
	}
	return bus, nil
}

// busComponent runs the bus under the orchestrator so it starts before and
// stops after every component that uses it.
type busComponent struct {
	bus    events.Bus
	logger *slog.Logger
}

func newBusComponent(bus events.Bus) *busComponent {
	return &busComponent{bus: bus, logger: logger.Get(logger.Bus)}
}

func (c *busComponent) Name() string {
	return logger.Bus
}

func (c *busComponent) Start(ctx context.Context) error {
	if err := c.bus.Start(); err != nil {
		return fmt.Errorf("start message bus: %w", err)
	}
	return nil
}

func (c *busComponent) Stop(ctx context.Context) error {
	stats := c.bus.Stats()
	if err := c.bus.Stop(); err != nil {
		return fmt.Errorf("stop message bus: %w", err)
	}
	c.logger.Info("Message bus stopped",
		"published", stats.Published,
		"delivered", stats.Delivered,
		"handler_failures", stats.HandlerFailures)
	return nil
}
