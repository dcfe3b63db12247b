package codec

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veesix-networks/aasbus/pkg/events"
)

func TestEncodeDecodeOperationFinish(t *testing.T) {
	ref := events.NewReference(
		events.Key{Type: events.KeySubmodel, Value: "urn:sm:control"},
		events.Key{Type: events.KeyOperation, Value: "calibrate"},
	)
	msg := events.NewOperationFinish(ref, "inv-42",
		map[string]events.ElementValue{"offset": events.ElementValue(`0.25`)},
		map[string]events.ElementValue{"state": events.ElementValue(`"done"`)},
		true)
	msg.ID = "msg-1"
	msg.Source = "opcua"
	msg.Timestamp = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	data, err := Encode(msg)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	assert.Equal(t, "OperationFinishEventMessage", generic["kind"])

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"missing kind", `{"id":"x"}`},
		{"unknown kind", `{"kind":"NoSuchEventMessage"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestEncodeNil(t *testing.T) {
	_, err := Encode(nil)
	require.ErrorIs(t, err, events.ErrNilMessage)
}

func TestDecodeValueChange(t *testing.T) {
	data := []byte(`{
		"kind": "ValueChangeEventMessage",
		"element": {"keys": [{"type": "Property", "value": "temperature"}]},
		"payload": {"oldValue": 21.5, "newValue": 22}
	}`)

	msg, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, events.KindValueChange, msg.Kind)
	assert.Equal(t, "(Property)temperature", msg.Element.String())
	assert.JSONEq(t, `21.5`, string(msg.OldValue))
	assert.JSONEq(t, `22`, string(msg.NewValue))
}
