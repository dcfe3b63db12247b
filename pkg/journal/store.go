// Package journal persists the latest known state of model elements as
// observed on the message bus.
package journal

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("journal: key not found")

type Store interface {
	Put(ctx context.Context, namespace, key string, value []byte) error
	// Get returns ErrNotFound when the key does not exist.
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Delete(ctx context.Context, namespace, key string) error
	Load(ctx context.Context, namespace string, fn LoadFunc) error
	Count(ctx context.Context, namespace string) (int, error)
	Clear(ctx context.Context, namespace string) error
	Close() error
}

type LoadFunc func(key string, value []byte) error

const (
	NamespaceElementValues = "element_values"
	NamespaceElements      = "elements"
	NamespaceErrors        = "errors"
)

func Namespaces() []string {
	return []string{NamespaceElementValues, NamespaceElements, NamespaceErrors}
}
