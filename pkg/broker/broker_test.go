package broker

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"closed", ErrClosed, false},
		{"not connected", ErrNotConnected, true},
		{"wrapped not connected", fmt.Errorf("publish: %w", ErrNotConnected), true},
		{"marked", Transient("connect", errors.New("refused")), true},
		{"deadline", context.DeadlineExceeded, true},
		{"cancelled", fmt.Errorf("wait: %w", context.Canceled), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestTransientNil(t *testing.T) {
	if err := Transient("op", nil); err != nil {
		t.Errorf("Transient(nil) = %v, want nil", err)
	}
}

func TestTransientMessage(t *testing.T) {
	err := Transient("connect", errors.New("refused"))
	if got, want := err.Error(), "connect: refused"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
