// Package memory is an in-process broker.Transport. It is used when no
// external broker is configured and by tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/veesix-networks/aasbus/pkg/broker"
)

// Transport delivers every publish synchronously to the matching
// subscriptions. Subjects are dot separated; "*" matches one token and a
// trailing ">" matches the rest.
type Transport struct {
	mu        sync.RWMutex
	connected bool
	closed    bool
	nextID    uint64
	subs      map[uint64]*subscription

	published atomic.Uint64
	failWith  error
}

func New() *Transport {
	return &Transport{subs: make(map[uint64]*subscription)}
}

func (t *Transport) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.connected = true
	t.closed = false
	return nil
}

func (t *Transport) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.RLock()
	if !t.connected {
		t.mu.RUnlock()
		return fmt.Errorf("publish %s: %w", subject, broker.ErrNotConnected)
	}
	if t.failWith != nil {
		err := t.failWith
		t.mu.RUnlock()
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	var targets []*subscription
	for _, s := range t.subs {
		if Match(s.subject, subject) {
			targets = append(targets, s)
		}
	}
	t.mu.RUnlock()

	t.published.Add(1)
	for _, s := range targets {
		payload := append([]byte(nil), data...)
		s.handler(subject, payload)
	}
	return nil
}

func (t *Transport) Subscribe(subject string, handler broker.MessageHandler) (broker.Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return nil, fmt.Errorf("subscribe %s: %w", subject, broker.ErrNotConnected)
	}

	t.nextID++
	s := &subscription{t: t, id: t.nextID, subject: subject, handler: handler}
	t.subs[s.id] = s
	return s, nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.connected = false
	t.closed = true
	t.subs = make(map[uint64]*subscription)
	return nil
}

// FailPublish makes every following Publish return err. nil restores normal
// operation.
func (t *Transport) FailPublish(err error) {
	t.mu.Lock()
	t.failWith = err
	t.mu.Unlock()
}

func (t *Transport) Published() uint64 {
	return t.published.Load()
}

func (t *Transport) Subscriptions() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.subs))
	for _, s := range t.subs {
		out = append(out, s.subject)
	}
	return out
}

func (t *Transport) Closed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

type subscription struct {
	t       *Transport
	id      uint64
	subject string
	handler broker.MessageHandler
}

func (s *subscription) Subject() string {
	return s.subject
}

func (s *subscription) Unsubscribe() error {
	s.t.mu.Lock()
	delete(s.t.subs, s.id)
	s.t.mu.Unlock()
	return nil
}

// Match reports whether subject matches pattern using NATS wildcard rules.
func Match(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")

	for i, p := range pt {
		if p == ">" {
			return i == len(pt)-1 && len(st) > i
		}
		if i >= len(st) {
			return false
		}
		if p != "*" && p != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}

var _ broker.Transport = (*Transport)(nil)
