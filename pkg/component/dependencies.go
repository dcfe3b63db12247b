package component

import (
	"context"
	"encoding/json"

	"github.com/veesix-networks/aasbus/pkg/config"
	"github.com/veesix-networks/aasbus/pkg/events"
)

// ElementLookup answers queries about the last recorded state of an element.
type ElementLookup interface {
	Value(ctx context.Context, ref *events.Reference) (json.RawMessage, error)
	Element(ctx context.Context, ref *events.Reference) (json.RawMessage, error)
}

type Dependencies struct {
	EventBus events.Bus
	// Journal is nil when the journal is disabled.
	Journal ElementLookup
	Config  *config.Config
}
