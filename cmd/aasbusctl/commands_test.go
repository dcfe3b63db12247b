package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veesix-networks/aasbus/pkg/config/system"
	"github.com/veesix-networks/aasbus/pkg/events"
	"github.com/veesix-networks/aasbus/pkg/events/local"
	"github.com/veesix-networks/aasbus/plugins/northbound/api"
)

func TestBuildMessage(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		kind    events.Kind
		check   func(t *testing.T, msg *events.Message)
		wantErr bool
	}{
		{
			name: "value change",
			args: []string{"ValueChangeEventMessage", "(Submodel)urn:sm:1,(Property)speed", "42"},
			kind: events.KindValueChange,
			check: func(t *testing.T, msg *events.Message) {
				assert.JSONEq(t, `42`, string(msg.NewValue))
				assert.Equal(t, "(Submodel)urn:sm:1, (Property)speed", msg.Element.String())
			},
		},
		{
			name: "error text",
			args: []string{"ErrorEventMessage", "-", "sensor", "offline"},
			kind: events.KindError,
			check: func(t *testing.T, msg *events.Message) {
				assert.Equal(t, "sensor offline", msg.ErrorMessage)
				assert.Nil(t, msg.Element)
			},
		},
		{
			name: "element create",
			args: []string{"ElementCreateEventMessage", "(Property)speed", `{"idShort":"speed"}`},
			kind: events.KindElementCreate,
			check: func(t *testing.T, msg *events.Message) {
				assert.JSONEq(t, `{"idShort":"speed"}`, string(msg.Value))
			},
		},
		{name: "too few args", args: []string{"ErrorEventMessage"}, wantErr: true},
		{name: "unknown kind", args: []string{"Nope", "-"}, wantErr: true},
		{name: "bad ref", args: []string{"ValueChangeEventMessage", "speed"}, wantErr: true},
		{name: "bad json", args: []string{"ValueChangeEventMessage", "(Property)speed", "{"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := buildMessage(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, msg.Kind)
			tt.check(t, msg)
		})
	}
}

func TestFormat(t *testing.T) {
	data := map[string]interface{}{"published": 3}

	out, err := Format(data, FormatJSON)
	require.NoError(t, err)
	assert.JSONEq(t, `{"published":3}`, out)

	out, err = Format(data, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "published: 3\n", out)

	_, err = ParseOutputFormat("xml")
	assert.Error(t, err)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

func newTestCLI(t *testing.T) (*CLI, *syncBuffer, *local.Bus) {
	t.Helper()

	bus := local.New()
	require.NoError(t, bus.Start())
	t.Cleanup(func() { bus.Stop() })

	srv := httptest.NewServer(api.New(bus, nil, system.APIConfig{}).Handler())
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	out := &syncBuffer{}
	c := NewCLI(client, srv.URL)
	c.out = out
	return c, out, bus
}

func TestCommandsAgainstAPI(t *testing.T) {
	c, out, bus := newTestCLI(t)

	got := make(chan *events.Message, 1)
	_, err := bus.Subscribe(events.NewSubscription(events.KindError, func(msg *events.Message) error {
		got <- msg
		return nil
	}))
	require.NoError(t, err)

	require.NoError(t, c.processCommand("publish ErrorEventMessage - disk full"))
	select {
	case msg := <-got:
		assert.Equal(t, "disk full", msg.ErrorMessage)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	out.Reset()
	require.NoError(t, c.processCommand("stats"))
	var stats events.Stats
	require.NoError(t, json.Unmarshal([]byte(out.String()), &stats))
	assert.Equal(t, uint64(1), stats.Published)

	err = c.processCommand("value (Property)speed")
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)

	assert.Error(t, c.processCommand("publish Nope -"))
	assert.Error(t, c.processCommand("bogus"))

	require.NoError(t, c.processCommand("format yaml"))
	out.Reset()
	require.NoError(t, c.processCommand("kinds"))
	assert.True(t, strings.HasPrefix(out.String(), "- "))

	require.NoError(t, c.processCommand("exit"))
	assert.False(t, c.isRunning())
}

func TestWatchInterrupt(t *testing.T) {
	c, out, bus := newTestCLI(t)

	done := make(chan error, 1)
	go func() { done <- c.processCommand("watch ErrorEventMessage") }()

	require.Eventually(t, func() bool {
		return bus.Stats().Subscriptions == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), events.NewError(nil, events.ErrorLevelError, "watched")))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "watched")
	}, time.Second, 10*time.Millisecond)

	require.True(t, c.Interrupt())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.False(t, c.Interrupt())
}
