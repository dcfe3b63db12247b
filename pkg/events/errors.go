package events

import (
	"errors"
	"fmt"
)

var (
	ErrNilMessage        = errors.New("message must not be nil")
	ErrQueueFull         = errors.New("message queue is full")
	ErrBusClosed         = errors.New("message bus is closed")
	ErrBusAlreadyRunning = errors.New("message bus is already running")
	ErrNilHandler        = errors.New("subscription handler must not be nil")
	ErrNoKinds           = errors.New("subscription must name at least one kind")
	ErrUnknownKind       = errors.New("unknown event kind")
	ErrAbstractKind      = errors.New("abstract event kind cannot be published")
)

// PublishError is returned by Publish when a message could not be enqueued
// or handed to the broker.
type PublishError struct {
	Kind Kind
	Err  error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s: %v", e.Kind, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// HandlerError records a handler that returned an error. It is logged by the
// dispatcher and never reaches the publisher.
type HandlerError struct {
	SubscriptionID SubscriptionID
	Kind           Kind
	Err            error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler for subscription %s failed on %s: %v", e.SubscriptionID, e.Kind, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError records a handler that panicked.
type PanicError struct {
	SubscriptionID SubscriptionID
	Kind           Kind
	Value          any
	Stack          string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler for subscription %s panicked on %s: %v", e.SubscriptionID, e.Kind, e.Value)
}

// ForwardError records a message that could not be sent to the external
// broker.
type ForwardError struct {
	Subject string
	Err     error
}

func (e *ForwardError) Error() string {
	return fmt.Sprintf("forward to %s: %v", e.Subject, e.Err)
}

func (e *ForwardError) Unwrap() error {
	return e.Err
}
