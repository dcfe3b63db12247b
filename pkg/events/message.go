package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ErrorLevel string

const (
	ErrorLevelInfo    ErrorLevel = "INFO"
	ErrorLevelWarning ErrorLevel = "WARNING"
	ErrorLevelError   ErrorLevel = "ERROR"
	ErrorLevelFatal   ErrorLevel = "FATAL"
)

// ElementValue is the value of a model element as produced by the value
// mapper. It is kept opaque so the bus never depends on the AAS value model.
type ElementValue = json.RawMessage

// Message is a single event. Once handed to Publish it must not be modified:
// every subscriber receives the same pointer.
type Message struct {
	ID        string
	Kind      Kind
	Timestamp time.Time
	Source    string
	Element   *Reference

	// ElementRead, ElementCreate, ElementUpdate, ElementDelete
	Value ElementValue

	// ValueChange, ValueRead (NewValue only)
	OldValue ElementValue
	NewValue ElementValue

	// Error
	ErrorLevel   ErrorLevel
	ErrorMessage string

	// OperationInvoke, OperationFinish
	InvocationID string
	Input        map[string]ElementValue
	InOutput     map[string]ElementValue
	Output       map[string]ElementValue
	Success      bool
}

func NewElementCreate(ref *Reference, value ElementValue) *Message {
	return &Message{Kind: KindElementCreate, Element: ref, Value: value}
}

func NewElementUpdate(ref *Reference, value ElementValue) *Message {
	return &Message{Kind: KindElementUpdate, Element: ref, Value: value}
}

func NewElementDelete(ref *Reference, value ElementValue) *Message {
	return &Message{Kind: KindElementDelete, Element: ref, Value: value}
}

func NewElementRead(ref *Reference, value ElementValue) *Message {
	return &Message{Kind: KindElementRead, Element: ref, Value: value}
}

func NewValueRead(ref *Reference, value ElementValue) *Message {
	return &Message{Kind: KindValueRead, Element: ref, NewValue: value}
}

func NewValueChange(ref *Reference, oldValue, newValue ElementValue) *Message {
	return &Message{Kind: KindValueChange, Element: ref, OldValue: oldValue, NewValue: newValue}
}

func NewError(ref *Reference, level ErrorLevel, msg string) *Message {
	return &Message{Kind: KindError, Element: ref, ErrorLevel: level, ErrorMessage: msg}
}

func NewOperationInvoke(ref *Reference, invocationID string, input, inoutput map[string]ElementValue) *Message {
	return &Message{
		Kind:         KindOperationInvoke,
		Element:      ref,
		InvocationID: invocationID,
		Input:        input,
		InOutput:     inoutput,
	}
}

func NewOperationFinish(ref *Reference, invocationID string, output, inoutput map[string]ElementValue, success bool) *Message {
	return &Message{
		Kind:         KindOperationFinish,
		Element:      ref,
		InvocationID: invocationID,
		Output:       output,
		InOutput:     inoutput,
		Success:      success,
	}
}

// CheckPublishable rejects messages no bus accepts: nil, unknown kind or an
// abstract kind.
func CheckPublishable(msg *Message) error {
	switch {
	case msg == nil:
		return &PublishError{Err: ErrNilMessage}
	case !msg.Kind.Valid():
		return &PublishError{Kind: msg.Kind, Err: ErrUnknownKind}
	case msg.Kind.Abstract():
		return &PublishError{Kind: msg.Kind, Err: ErrAbstractKind}
	}
	return nil
}

// Stamped returns m when it already has an ID and a timestamp. Otherwise it
// returns a copy with the missing fields filled in, leaving m untouched.
func (m *Message) Stamped() *Message {
	if m.ID != "" && !m.Timestamp.IsZero() {
		return m
	}
	cp := *m
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.Timestamp.IsZero() {
		cp.Timestamp = time.Now()
	}
	return &cp
}
