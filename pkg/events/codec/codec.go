// Package codec serializes messages into the JSON envelope used on external
// brokers and the HTTP gateway.
package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/veesix-networks/aasbus/pkg/events"
)

type Envelope struct {
	ID        string            `json:"id,omitempty"`
	Kind      events.Kind       `json:"kind"`
	Timestamp time.Time         `json:"timestamp,omitempty"`
	Source    string            `json:"source,omitempty"`
	Element   *events.Reference `json:"element,omitempty"`
	Payload   Payload           `json:"payload,omitempty"`
}

type Payload struct {
	Value        json.RawMessage            `json:"value,omitempty"`
	OldValue     json.RawMessage            `json:"oldValue,omitempty"`
	NewValue     json.RawMessage            `json:"newValue,omitempty"`
	ErrorLevel   events.ErrorLevel          `json:"errorLevel,omitempty"`
	ErrorMessage string                     `json:"errorMessage,omitempty"`
	InvocationID string                     `json:"invocationId,omitempty"`
	Input        map[string]json.RawMessage `json:"input,omitempty"`
	InOutput     map[string]json.RawMessage `json:"inoutput,omitempty"`
	Output       map[string]json.RawMessage `json:"output,omitempty"`
	Success      bool                       `json:"success,omitempty"`
}

func FromMessage(msg *events.Message) Envelope {
	return Envelope{
		ID:        msg.ID,
		Kind:      msg.Kind,
		Timestamp: msg.Timestamp,
		Source:    msg.Source,
		Element:   msg.Element,
		Payload: Payload{
			Value:        msg.Value,
			OldValue:     msg.OldValue,
			NewValue:     msg.NewValue,
			ErrorLevel:   msg.ErrorLevel,
			ErrorMessage: msg.ErrorMessage,
			InvocationID: msg.InvocationID,
			Input:        msg.Input,
			InOutput:     msg.InOutput,
			Output:       msg.Output,
			Success:      msg.Success,
		},
	}
}

func (e Envelope) Message() *events.Message {
	return &events.Message{
		ID:           e.ID,
		Kind:         e.Kind,
		Timestamp:    e.Timestamp,
		Source:       e.Source,
		Element:      e.Element,
		Value:        e.Payload.Value,
		OldValue:     e.Payload.OldValue,
		NewValue:     e.Payload.NewValue,
		ErrorLevel:   e.Payload.ErrorLevel,
		ErrorMessage: e.Payload.ErrorMessage,
		InvocationID: e.Payload.InvocationID,
		Input:        e.Payload.Input,
		InOutput:     e.Payload.InOutput,
		Output:       e.Payload.Output,
		Success:      e.Payload.Success,
	}
}

func Encode(msg *events.Message) ([]byte, error) {
	if msg == nil {
		return nil, events.ErrNilMessage
	}
	data, err := json.Marshal(FromMessage(msg))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Kind, err)
	}
	return data, nil
}

// Decode parses an envelope. The kind is mandatory and must be known.
func Decode(data []byte) (*events.Message, error) {
	var raw struct {
		Kind *events.Kind `json:"kind"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if raw.Kind == nil {
		return nil, fmt.Errorf("decode envelope: missing kind")
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return env.Message(), nil
}
