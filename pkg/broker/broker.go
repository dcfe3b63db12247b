// Package broker abstracts the external message broker used by the forwarding
// and external bus variants.
package broker

import (
	"context"
	"errors"
	"net"
)

var (
	ErrNotConnected = errors.New("broker not connected")
	ErrClosed       = errors.New("broker closed")
)

// MessageHandler receives raw payloads published on a subscribed subject.
type MessageHandler func(subject string, data []byte)

type Subscription interface {
	Subject() string
	Unsubscribe() error
}

// Transport is a publish/subscribe connection to a broker. Implementations
// must be safe for concurrent use.
type Transport interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, subject string, data []byte) error
	Subscribe(subject string, handler MessageHandler) (Subscription, error)
	Close() error
}

// TransientError marks a failure that may succeed when retried.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err is worth retrying: explicitly marked
// transient errors, timeouts, cancelled contexts and a missing connection.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, ErrNotConnected) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}
