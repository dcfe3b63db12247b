// Package local implements the in-process message bus: one FIFO queue and a
// single dispatch goroutine that calls every matching handler synchronously.
//
// Snapshot semantics: the subscription set used for a message is captured
// when the dispatch goroutine dequeues it. A subscription added after Publish
// returned but before the dequeue is therefore included; one removed after the
// dequeue may still see that message.
//
// Stop discards whatever is still queued once the handler in progress returns.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/veesix-networks/aasbus/pkg/events"
	"github.com/veesix-networks/aasbus/pkg/logger"
)

type Option func(*Bus)

// WithQueueCapacity bounds the queue. Zero keeps it unbounded, which is the
// default and never blocks publishers.
func WithQueueCapacity(n int) Option {
	return func(b *Bus) {
		b.capacity = n
	}
}

func WithOverflowPolicy(p OverflowPolicy) Option {
	return func(b *Bus) {
		b.policy = p
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = l
	}
}

type Bus struct {
	queue    *queue
	registry *registry
	logger   *slog.Logger
	capacity int
	policy   OverflowPolicy

	// lifecycle is held for the whole of Start and Stop, so Stop must not be
	// called from a handler.
	lifecycle sync.Mutex
	running   atomic.Bool
	done      chan struct{}

	// id of the dispatch goroutine, 0 when not running
	dispatcher atomic.Uint64

	published       atomic.Uint64
	rejected        atomic.Uint64
	dispatched      atomic.Uint64
	delivered       atomic.Uint64
	handlerFailures atomic.Uint64
	discarded       atomic.Uint64

	debugMu    sync.RWMutex
	debugKinds []events.Kind
	debugSub   events.SubscriptionID
}

func New(opts ...Option) *Bus {
	b := &Bus{
		registry: newRegistry(),
		logger:   logger.Get(logger.Bus),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.queue = newQueue(b.capacity, b.policy)
	b.queue.consumer = b.onDispatcher
	return b
}

// Start launches the dispatch goroutine and returns at once. Starting a
// running bus fails with ErrBusAlreadyRunning.
func (b *Bus) Start() error {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	if b.running.Load() {
		return events.ErrBusAlreadyRunning
	}

	b.queue.resume()
	b.done = make(chan struct{})
	b.running.Store(true)

	done := b.done
	go func() {
		defer close(done)
		b.dispatcher.Store(goroutineID())
		defer b.dispatcher.Store(0)
		b.run()
	}()

	b.logger.Info("Message bus started", "queue_capacity", b.capacity, "overflow_policy", b.policy.String())
	return nil
}

// Stop halts dispatch, waits for the dispatch goroutine and discards queued
// messages. Stopping a stopped bus is a no-op.
func (b *Bus) Stop() error {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	if !b.running.Load() {
		return nil
	}

	b.queue.halt()
	<-b.done
	b.running.Store(false)

	dropped := b.queue.drain()
	b.discarded.Add(uint64(dropped))

	b.logger.Info("Message bus stopped", "discarded", dropped)
	return nil
}

// onDispatcher reports whether the caller runs on the dispatch goroutine,
// i.e. publishes from inside a handler.
func (b *Bus) onDispatcher() bool {
	id := b.dispatcher.Load()
	return id != 0 && id == goroutineID()
}

func (b *Bus) IsRunning() bool {
	return b.running.Load()
}

// Publish enqueues msg for dispatch. A message without ID or timestamp is
// copied and the copy is stamped, so the caller's value is never modified.
//
// On a full bounded queue with OverflowBlock, Publish waits for space until
// ctx is done or the bus is stopped (ErrBusClosed). Handlers publishing from
// the dispatch goroutine never wait; their messages are queued over capacity.
func (b *Bus) Publish(ctx context.Context, msg *events.Message) error {
	if err := events.CheckPublishable(msg); err != nil {
		b.rejected.Add(1)
		return err
	}

	msg = msg.Stamped()

	if ctx == nil {
		ctx = context.Background()
	}
	if err := b.queue.push(ctx, msg); err != nil {
		b.rejected.Add(1)
		return &events.PublishError{Kind: msg.Kind, Err: err}
	}

	b.published.Add(1)
	return nil
}

func (b *Bus) Subscribe(info events.SubscriptionInfo) (events.SubscriptionID, error) {
	id, err := b.registry.add(info)
	if err != nil {
		return "", fmt.Errorf("subscribe: %w", err)
	}

	b.logger.Debug("Subscribed", "subscription_id", id, "kinds", info.Kinds, "subscriptions", b.registry.len())
	return id, nil
}

// Unsubscribe removes id. Unknown ids are ignored. A message already being
// dispatched may still reach the handler.
func (b *Bus) Unsubscribe(id events.SubscriptionID) {
	if b.registry.remove(id) {
		b.logger.Debug("Unsubscribed", "subscription_id", id, "subscriptions", b.registry.len())
	}
}

func (b *Bus) run() {
	for {
		msg, ok := b.queue.pop()
		if !ok {
			return
		}
		b.dispatch(msg)
	}
}

func (b *Bus) dispatch(msg *events.Message) {
	b.dispatched.Add(1)

	for _, sub := range b.registry.snapshot() {
		if !sub.info.Matches(msg) {
			continue
		}
		if err := b.invoke(sub, msg); err != nil {
			b.handlerFailures.Add(1)
			logger.WithMessage(b.logger, logger.MessageAttrs{
				MessageID:      msg.ID,
				Kind:           msg.Kind.String(),
				Element:        msg.Element.String(),
				SubscriptionID: string(sub.id),
			}).Error("Subscriber failed", "error", err)
			continue
		}
		b.delivered.Add(1)
	}
}

func (b *Bus) invoke(sub *subscription, msg *events.Message) (err error) {
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
	stats := events.Stats{
		Running:         b.running.Load(),
		Subscriptions:   b.registry.len(),
		Kinds:           b.registry.kindStats(),
		QueueLength:     b.queue.len(),
		QueueCapacity:   b.capacity,
		Published:       b.published.Load(),
		Rejected:        b.rejected.Load(),
		Dispatched:      b.dispatched.Load(),
		Delivered:       b.delivered.Load(),
		HandlerFailures: b.handlerFailures.Load(),
		Discarded:       b.discarded.Load(),
	}

	for _, k := range b.DebugKinds() {
		stats.DebugKinds = append(stats.DebugKinds, k.String())
	}
	return stats
}

// SetDebugKinds logs every message of the given kinds (or their subtypes) at
// info level. An empty list turns debug logging off.
func (b *Bus) SetDebugKinds(kinds []events.Kind) error {
	b.debugMu.Lock()
	old := b.debugSub
	b.debugSub = ""
	b.debugKinds = nil
	b.debugMu.Unlock()

	if old != "" {
		b.Unsubscribe(old)
	}

	if len(kinds) == 0 {
		b.logger.Info("Event debug logging disabled")
		return nil
	}

	id, err := b.Subscribe(events.NewSubscription(kinds[0], func(msg *events.Message) error {
		b.logger.Info("Event",
			"message_id", msg.ID,
			"kind", msg.Kind.String(),
			"source", msg.Source,
			"element", msg.Element.String())
		return nil
	}, events.WithKinds(kinds[1:]...)))
	if err != nil {
		return err
	}

	b.debugMu.Lock()
	b.debugSub = id
	b.debugKinds = append([]events.Kind(nil), kinds...)
	b.debugMu.Unlock()

	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, k.String())
	}
	sort.Strings(names)
	b.logger.Info("Event debug logging enabled", "kinds", names)
	return nil
}

func (b *Bus) DebugKinds() []events.Kind {
	b.debugMu.RLock()
	defer b.debugMu.RUnlock()

	if len(b.debugKinds) == 0 {
		return nil
	}
	return append([]events.Kind(nil), b.debugKinds...)
}

var _ events.Bus = (*Bus)(nil)
