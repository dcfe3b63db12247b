// Package external implements events.Bus directly on a broker. Publish sends
// every message to the broker; subscriptions are broker subscriptions on the
// concrete kinds they cover, decoded and filtered locally.
package external

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/veesix-networks/aasbus/pkg/broker"
	"github.com/veesix-networks/aasbus/pkg/events"
	"github.com/veesix-networks/aasbus/pkg/events/codec"
	"github.com/veesix-networks/aasbus/pkg/logger"
)

const DefaultTopicPrefix = "events."

type Config struct {
	TopicPrefix string
	Timeout     time.Duration
}

type subscription struct {
	id       events.SubscriptionID
	info     events.SubscriptionInfo
	subjects []string
	bound    []broker.Subscription
}

type Bus struct {
	transport broker.Transport
	prefix    string
	timeout   time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	subs    map[events.SubscriptionID]*subscription

	// broker callbacks may arrive on several goroutines; handlers are still
	// called one at a time.
	deliverMu sync.Mutex

	published       atomic.Uint64
	rejected        atomic.Uint64
	received        atomic.Uint64
	delivered       atomic.Uint64
	handlerFailures atomic.Uint64
	decodeFailures  atomic.Uint64
}

func New(transport broker.Transport, cfg Config) *Bus {
	b := &Bus{
		transport: transport,
		prefix:    cfg.TopicPrefix,
		timeout:   cfg.Timeout,
		logger:    logger.Get(logger.External),
		subs:      make(map[events.SubscriptionID]*subscription),
	}
	if b.prefix == "" {
		b.prefix = DefaultTopicPrefix
	}
	if b.timeout <= 0 {
		b.timeout = 5 * time.Second
	}
	return b
}

func (b *Bus) Subject(kind events.Kind) string {
	return b.prefix + kind.String()
}

// Subjects lists the broker subjects a subscription to kinds listens on.
// Abstract kinds expand to every concrete descendant.
func (b *Bus) Subjects(kinds []events.Kind) []string {
	seen := make(map[events.Kind]bool)
	var out []string
	for _, k := range kinds {
		for _, c := range k.Concrete() {
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, b.Subject(c))
		}
	}
	return out
}

// Start connects the broker and binds every registered subscription.
func (b *Bus) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return events.ErrBusAlreadyRunning
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if err := b.transport.Connect(ctx); err != nil {
		_ = b.transport.Close()
		return fmt.Errorf("connect broker: %w", err)
	}

	for _, sub := range b.subs {
		if err := b.bind(sub); err != nil {
			b.unbindAll()
			_ = b.transport.Close()
			return err
		}
	}

	b.running = true
	b.logger.Info("External message bus started", "prefix", b.prefix, "subscriptions", len(b.subs))
	return nil
}

// Stop removes the broker subscriptions and closes the transport.
// Registered subscriptions are kept and rebound on the next Start.
func (b *Bus) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return nil
	}

	b.unbindAll()
	b.running = false
	if err := b.transport.Close(); err != nil {
		b.logger.Warn("Broker close failed", "error", err)
	}
	b.logger.Info("External message bus stopped")
	return nil
}

func (b *Bus) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *Bus) Publish(ctx context.Context, msg *events.Message) error {
	if err := events.CheckPublishable(msg); err != nil {
		b.rejected.Add(1)
		return err
	}
	if !b.IsRunning() {
		b.rejected.Add(1)
		return &events.PublishError{Kind: msg.Kind, Err: events.ErrBusClosed}
	}

	msg = msg.Stamped()
	data, err := codec.Encode(msg)
	if err != nil {
		b.rejected.Add(1)
		return &events.PublishError{Kind: msg.Kind, Err: err}
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if err := b.transport.Publish(ctx, b.Subject(msg.Kind), data); err != nil {
		b.rejected.Add(1)
		return &events.PublishError{Kind: msg.Kind, Err: err}
	}

	b.published.Add(1)
	return nil
}

func (b *Bus) Subscribe(info events.SubscriptionInfo) (events.SubscriptionID, error) {
	if err := info.Validate(); err != nil {
		return "", fmt.Errorf("subscribe: %w", err)
	}
	info.Kinds = append([]events.Kind(nil), info.Kinds...)

	sub := &subscription{
		id:       events.NewSubscriptionID(),
		info:     info,
		subjects: b.Subjects(info.Kinds),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		if err := b.bind(sub); err != nil {
			return "", fmt.Errorf("subscribe: %w", err)
		}
	}
	b.subs[sub.id] = sub

	b.logger.Debug("Subscribed", "subscription_id", sub.id, "subjects", sub.subjects)
	return sub.id, nil
}

// Unsubscribe drops every broker subscription of id. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id events.SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	b.unbind(sub)
	b.logger.Debug("Unsubscribed", "subscription_id", id)
}

// bind is called with mu held.
func (b *Bus) bind(sub *subscription) error {
	for _, subject := range sub.subjects {
		bs, err := b.transport.Subscribe(subject, func(_ string, data []byte) {
			b.deliver(sub, data)
		})
		if err != nil {
			b.unbind(sub)
			return fmt.Errorf("bind %s: %w", subject, err)
		}
		sub.bound = append(sub.bound, bs)
	}
	return nil
}

func (b *Bus) unbind(sub *subscription) {
	for _, bs := range sub.bound {
		if err := bs.Unsubscribe(); err != nil {
			b.logger.Warn("Broker unsubscribe failed", "subject", bs.Subject(), "error", err)
		}
	}
	sub.bound = nil
}

func (b *Bus) unbindAll() {
	for _, sub := range b.subs {
		b.unbind(sub)
	}
}

func (b *Bus) deliver(sub *subscription, data []byte) {
	b.received.Add(1)

	msg, err := codec.Decode(data)
	if err != nil {
		b.decodeFailures.Add(1)
		b.logger.Warn("Dropping undecodable message", "subscription_id", sub.id, "error", err)
		return
	}
	if !sub.info.Matches(msg) {
		return
	}

	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()

	if err := invoke(sub, msg); err != nil {
		b.handlerFailures.Add(1)
		logger.WithMessage(b.logger, logger.MessageAttrs{
			MessageID:      msg.ID,
			Kind:           msg.Kind.String(),
			Element:        msg.Element.String(),
			SubscriptionID: string(sub.id),
		}).Error("Subscriber failed", "error", err)
		return
	}
	b.delivered.Add(1)
}

func invoke(sub *subscription, msg *events.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &events.PanicError{
				SubscriptionID: sub.id,
				Kind:           msg.Kind,
				Value:          r,
				Stack:          string(debug.Stack()),
			}
		}
	}()

	if herr := sub.info.Handler(msg); herr != nil {
		return &events.HandlerError{SubscriptionID: sub.id, Kind: msg.Kind, Err: herr}
	}
	return nil
}

func (b *Bus) Stats() events.Stats {
	b.mu.Lock()
	running := b.running
	n := len(b.subs)
	counts := make(map[events.Kind]int)
	for _, s := range b.subs {
		for _, k := range s.info.Kinds {
			counts[k]++
		}
	}
	b.mu.Unlock()

	stats := events.Stats{
		Running:         running,
		Subscriptions:   n,
		Published:       b.published.Load(),
		Rejected:        b.rejected.Load(),
		Dispatched:      b.received.Load(),
		Delivered:       b.delivered.Load(),
		HandlerFailures: b.handlerFailures.Load(),
		Discarded:       b.decodeFailures.Load(),
	}
	for k, c := range counts {
		stats.Kinds = append(stats.Kinds, events.KindStats{Kind: k.String(), Subscriptions: c})
	}
	sort.Slice(stats.Kinds, func(i, j int) bool { return stats.Kinds[i].Kind < stats.Kinds[j].Kind })
	return stats
}

var _ events.Bus = (*Bus)(nil)
