package events

import (
	"github.com/google/uuid"
)

// Handler receives a matching message on the dispatch goroutine. A returned
// error is logged and counted; it never stops delivery to other subscribers.
type Handler func(msg *Message) error

// SubscriptionID is an opaque token used only to unsubscribe.
type SubscriptionID string

func NewSubscriptionID() SubscriptionID {
	return SubscriptionID(uuid.New().String())
}

// SubscriptionInfo binds subscribed kinds, an optional element filter and a
// handler. It is not modified after Subscribe.
type SubscriptionInfo struct {
	Kinds   []Kind
	Filter  Filter
	Handler Handler
}

type SubscriptionOption func(*SubscriptionInfo)

func WithFilter(f Filter) SubscriptionOption {
	return func(s *SubscriptionInfo) {
		s.Filter = f
	}
}

func WithReference(ref *Reference) SubscriptionOption {
	return WithFilter(MatchReference(ref))
}

func WithKeyType(kt KeyType) SubscriptionOption {
	return WithFilter(MatchKeyType(kt))
}

func WithKinds(kinds ...Kind) SubscriptionOption {
	return func(s *SubscriptionInfo) {
		s.Kinds = append(s.Kinds, kinds...)
	}
}

func NewSubscription(kind Kind, handler Handler, opts ...SubscriptionOption) SubscriptionInfo {
	info := SubscriptionInfo{
		Kinds:   []Kind{kind},
		Handler: handler,
	}
	for _, opt := range opts {
		opt(&info)
	}
	return info
}

// Validate checks the fields Subscribe relies on.
func (s SubscriptionInfo) Validate() error {
	if s.Handler == nil {
		return ErrNilHandler
	}
	if len(s.Kinds) == 0 {
		return ErrNoKinds
	}
	for _, k := range s.Kinds {
		if !k.Valid() {
			return ErrUnknownKind
		}
	}
	return nil
}

// Matches applies the kind and element rules to msg.
func (s SubscriptionInfo) Matches(msg *Message) bool {
	for _, k := range s.Kinds {
		if msg.Kind.IsA(k) {
			return s.Filter.Match(msg.Element)
		}
	}
	return false
}
