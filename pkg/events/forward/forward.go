// Package forward provides an in-process bus that additionally publishes a
// configured subset of message kinds to an external broker.
package forward

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/veesix-networks/aasbus/pkg/broker"
	"github.com/veesix-networks/aasbus/pkg/events"
	"github.com/veesix-networks/aasbus/pkg/events/codec"
	"github.com/veesix-networks/aasbus/pkg/events/local"
	"github.com/veesix-networks/aasbus/pkg/logger"
)

const DefaultTopicPrefix = "events."

type Config struct {
	// TopicPrefix is prepended to the kind name to build the subject.
	TopicPrefix string
	// Kinds lists kind names to forward, subtypes included. Unknown names
	// are logged and skipped.
	Kinds []string
	// Filter optionally restricts forwarding to matching elements.
	Filter events.Filter
	// Timeout bounds each broker publish and the initial connect.
	Timeout time.Duration
}

type Bus struct {
	*local.Bus

	transport broker.Transport
	prefix    string
	kinds     []events.Kind
	timeout   time.Duration
	logger    *slog.Logger

	// serializes Start and Stop so the transport is dialed and closed once
	lifecycle sync.Mutex

	forwarded       atomic.Uint64
	forwardFailures atomic.Uint64
}

func New(transport broker.Transport, cfg Config, opts ...local.Option) *Bus {
	b := &Bus{
		Bus:       local.New(opts...),
		transport: transport,
		prefix:    cfg.TopicPrefix,
		timeout:   cfg.Timeout,
		logger:    logger.Get(logger.Forward),
	}
	if b.prefix == "" {
		b.prefix = DefaultTopicPrefix
	}
	if b.timeout <= 0 {
		b.timeout = 5 * time.Second
	}

	for _, name := range cfg.Kinds {
		k, err := events.ParseKind(name)
		if err != nil {
			b.logger.Warn("Skipping unknown forward kind", "kind", name)
			continue
		}
		b.kinds = append(b.kinds, k)
	}

	if len(b.kinds) == 0 {
		b.logger.Warn("No kinds configured for forwarding")
		return b
	}

	if _, err := b.Bus.Subscribe(events.SubscriptionInfo{
		Kinds:   b.kinds,
		Filter:  cfg.Filter,
		Handler: b.forward,
	}); err != nil {
		b.logger.Error("Failed to register forwarder", "error", err)
	}
	return b
}

// Start connects the transport and starts dispatch. A failed connect is
// logged; the bus still starts and forwarding fails until the transport
// recovers.
func (b *Bus) Start() error {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	if b.IsRunning() {
		return events.ErrBusAlreadyRunning
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if err := b.transport.Connect(ctx); err != nil {
		b.logger.Warn("Broker connect failed, forwarding unavailable", "error", err, "transient", broker.IsTransient(err))
	}

	if err := b.Bus.Start(); err != nil {
		if cerr := b.transport.Close(); cerr != nil {
			b.logger.Warn("Broker close failed", "error", cerr)
		}
		return err
	}

	b.logger.Info("Forwarding enabled", "prefix", b.prefix, "kinds", kindNames(b.kinds))
	return nil
}

// Stop stops dispatch first, then closes the transport.
func (b *Bus) Stop() error {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	wasRunning := b.IsRunning()
	if err := b.Bus.Stop(); err != nil {
		return err
	}
	if !wasRunning {
		return nil
	}
	if err := b.transport.Close(); err != nil {
		b.logger.Warn("Broker close failed", "error", err)
	}
	return nil
}

// Subject returns the broker subject for kind.
func (b *Bus) Subject(kind events.Kind) string {
	return b.prefix + kind.String()
}

func (b *Bus) forward(msg *events.Message) error {
	subject := b.Subject(msg.Kind)

	data, err := codec.Encode(msg)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		err = b.transport.Publish(ctx, subject, data)
		cancel()
	}
	if err != nil {
		b.forwardFailures.Add(1)
		ferr := &events.ForwardError{Subject: subject, Err: err}
		logger.WithMessage(b.logger, logger.MessageAttrs{
			MessageID: msg.ID,
			Kind:      msg.Kind.String(),
			Element:   msg.Element.String(),
		}).Warn("Forwarding failed", "error", ferr, "transient", broker.IsTransient(err))
		return nil
	}

	b.forwarded.Add(1)
	return nil
}

func (b *Bus) Stats() events.Stats {
	s := b.Bus.Stats()
	s.Forwarded = b.forwarded.Load()
	s.ForwardFailures = b.forwardFailures.Load()
	return s
}

// ForwardKinds returns the kinds being forwarded.
func (b *Bus) ForwardKinds() []events.Kind {
	return append([]events.Kind(nil), b.kinds...)
}

func kindNames(kinds []events.Kind) []string {
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k.String())
	}
	return out
}

var _ events.Bus = (*Bus)(nil)
