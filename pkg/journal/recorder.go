package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/veesix-networks/aasbus/pkg/component"
	"github.com/veesix-networks/aasbus/pkg/events"
	"github.com/veesix-networks/aasbus/pkg/logger"
)

type ErrorRecord struct {
	MessageID string            `json:"id"`
	Element   *events.Reference `json:"element,omitempty"`
	Level     events.ErrorLevel `json:"level"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
}

// Recorder keeps the store in line with change and error events seen on the
// bus. Writes happen on the dispatch goroutine, in publish order.
type Recorder struct {
	*component.Base
	logger *slog.Logger
	bus    events.Bus
	store  Store

	mu    sync.Mutex
	subID events.SubscriptionID
}

func NewRecorder(bus events.Bus, store Store) *Recorder {
	return &Recorder{
		Base:   component.NewBase(logger.Journal),
		logger: logger.Get(logger.Journal),
		bus:    bus,
		store:  store,
	}
}

func (r *Recorder) Start(ctx context.Context) error {
	r.StartContext(ctx)

	id, err := r.bus.Subscribe(events.NewSubscription(events.KindChange, r.record,
		events.WithKinds(events.KindError)))
	if err != nil {
		return fmt.Errorf("journal subscribe: %w", err)
	}

	r.mu.Lock()
	r.subID = id
	r.mu.Unlock()

	r.logger.Info("Journal recorder started")
	return nil
}

func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	id := r.subID
	r.subID = ""
	r.mu.Unlock()

	if id != "" {
		r.bus.Unsubscribe(id)
	}
	r.StopContext()
	r.logger.Info("Journal recorder stopped")
	return nil
}

func (r *Recorder) record(msg *events.Message) error {
	ctx := r.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	switch msg.Kind {
	case events.KindValueChange:
		return r.put(ctx, NamespaceElementValues, msg.Element, msg.NewValue)
	case events.KindElementCreate, events.KindElementUpdate:
		return r.put(ctx, NamespaceElements, msg.Element, msg.Value)
	case events.KindElementDelete:
		return r.deleteTree(ctx, msg.Element)
	case events.KindError:
		return r.recordError(ctx, msg)
	}
	return nil
}

func (r *Recorder) put(ctx context.Context, namespace string, ref *events.Reference, value []byte) error {
	if ref.IsZero() {
		return nil
	}
	if err := r.store.Put(ctx, namespace, ref.String(), value); err != nil {
		return fmt.Errorf("journal put %s: %w", namespace, err)
	}
	return nil
}

// deleteTree removes ref and every element nested below it.
func (r *Recorder) deleteTree(ctx context.Context, ref *events.Reference) error {
	if ref.IsZero() {
		return nil
	}
	root := ref.String()

	for _, ns := range []string{NamespaceElements, NamespaceElementValues} {
		var keys []string
		err := r.store.Load(ctx, ns, func(key string, _ []byte) error {
			if key == root || strings.HasPrefix(key, root+", ") {
				keys = append(keys, key)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("journal scan %s: %w", ns, err)
		}
		for _, key := range keys {
			if err := r.store.Delete(ctx, ns, key); err != nil {
				return fmt.Errorf("journal delete %s: %w", ns, err)
			}
		}
	}
	return nil
}

func (r *Recorder) recordError(ctx context.Context, msg *events.Message) error {
	data, err := json.Marshal(ErrorRecord{
		MessageID: msg.ID,
		Element:   msg.Element,
		Level:     msg.ErrorLevel,
		Message:   msg.ErrorMessage,
		Timestamp: msg.Timestamp,
	})
	if err != nil {
		return err
	}
	if err := r.store.Put(ctx, NamespaceErrors, msg.ID, data); err != nil {
		return fmt.Errorf("journal put %s: %w", NamespaceErrors, err)
	}
	return nil
}

// Value returns the last value recorded for ref.
func (r *Recorder) Value(ctx context.Context, ref *events.Reference) (json.RawMessage, error) {
	return r.store.Get(ctx, NamespaceElementValues, ref.String())
}

// Element returns the last serialized element recorded for ref.
func (r *Recorder) Element(ctx context.Context, ref *events.Reference) (json.RawMessage, error) {
	return r.store.Get(ctx, NamespaceElements, ref.String())
}

func (r *Recorder) Errors(ctx context.Context) ([]ErrorRecord, error) {
	var out []ErrorRecord
	err := r.store.Load(ctx, NamespaceErrors, func(_ string, value []byte) error {
		var rec ErrorRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
