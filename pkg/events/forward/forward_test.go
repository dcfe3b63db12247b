package forward

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veesix-networks/aasbus/pkg/broker/memory"
	"github.com/veesix-networks/aasbus/pkg/events"
	"github.com/veesix-networks/aasbus/pkg/events/codec"
)

var sensor = events.NewReference(
	events.Key{Type: events.KeySubmodel, Value: "urn:sm:1"},
	events.Key{Type: events.KeyProperty, Value: "temperature"},
)

type egress struct {
	subject string
	msg     *events.Message
}

func captureBroker(t *testing.T, tr *memory.Transport) <-chan egress {
	t.Helper()
	require.NoError(t, tr.Connect(context.Background()))

	ch := make(chan egress, 16)
	_, err := tr.Subscribe("events.>", func(subject string, data []byte) {
		msg, err := codec.Decode(data)
		if err != nil {
			t.Errorf("decode forwarded message: %v", err)
			return
		}
		ch <- egress{subject: subject, msg: msg}
	})
	require.NoError(t, err)
	return ch
}

func waitEgress(t *testing.T, ch <-chan egress) egress {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for forwarded message")
		return egress{}
	}
}

func TestForwardsConfiguredKinds(t *testing.T) {
	tr := memory.New()
	out := captureBroker(t, tr)

	b := New(tr, Config{Kinds: []string{"ChangeEventMessage", "NoSuchKind"}})
	assert.Equal(t, []events.Kind{events.KindChange}, b.ForwardKinds())

	local := make(chan *events.Message, 4)
	_, err := b.Subscribe(events.NewSubscription(events.KindEvent, func(msg *events.Message) error {
		local <- msg
		return nil
	}))
	require.NoError(t, err)

	require.NoError(t, b.Start())
	defer b.Stop()

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, events.NewError(sensor, events.ErrorLevelWarning, "drift")))
	require.NoError(t, b.Publish(ctx, events.NewValueChange(sensor, events.ElementValue(`20`), events.ElementValue(`21`))))

	got := waitEgress(t, out)
	assert.Equal(t, "events.ValueChangeEventMessage", got.subject)
	assert.Equal(t, events.KindValueChange, got.msg.Kind)
	assert.True(t, sensor.Equal(got.msg.Element))
	assert.JSONEq(t, `21`, string(got.msg.NewValue))

	for i := 0; i < 2; i++ {
		select {
		case <-local:
		case <-time.After(time.Second):
			t.Fatal("in-process subscriber missed a message")
		}
	}

	select {
	case e := <-out:
		t.Fatalf("unexpected forward to %s", e.subject)
	default:
	}

	require.Eventually(t, func() bool {
		return b.Stats().Forwarded == 1
	}, time.Second, 10*time.Millisecond)
	assert.Zero(t, b.Stats().ForwardFailures)
}

func TestTopicPrefix(t *testing.T) {
	b := New(memory.New(), Config{TopicPrefix: "aas/events/", Kinds: []string{"ErrorEventMessage"}})
	assert.Equal(t, "aas/events/ErrorEventMessage", b.Subject(events.KindError))

	b = New(memory.New(), Config{})
	assert.Equal(t, "events.ElementCreateEventMessage", b.Subject(events.KindElementCreate))
	assert.Empty(t, b.ForwardKinds())
}

func TestForwardFailureDoesNotAffectDelivery(t *testing.T) {
	tr := memory.New()
	tr.FailPublish(errors.New("broker unavailable"))

	b := New(tr, Config{Kinds: []string{"EventMessage"}})

	local := make(chan *events.Message, 1)
	_, err := b.Subscribe(events.NewSubscription(events.KindValueChange, func(msg *events.Message) error {
		local <- msg
		return nil
	}))
	require.NoError(t, err)

	require.NoError(t, b.Start())
	defer b.Stop()

	require.NoError(t, b.Publish(context.Background(), events.NewValueChange(sensor, nil, events.ElementValue(`1`))))

	select {
	case <-local:
	case <-time.After(time.Second):
		t.Fatal("in-process subscriber missed the message")
	}

	require.Eventually(t, func() bool {
		return b.Stats().ForwardFailures == 1
	}, time.Second, 10*time.Millisecond)

	stats := b.Stats()
	assert.Zero(t, stats.Forwarded)
	assert.Zero(t, stats.HandlerFailures)
}

func TestForwardFilter(t *testing.T) {
	tr := memory.New()
	out := captureBroker(t, tr)

	other := events.NewReference(events.Key{Type: events.KeySubmodel, Value: "urn:sm:2"})
	b := New(tr, Config{
		Kinds:  []string{"ErrorEventMessage"},
		Filter: events.MatchPrefix(events.NewReference(events.Key{Type: events.KeySubmodel, Value: "urn:sm:1"})),
	})
	require.NoError(t, b.Start())
	defer b.Stop()

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, events.NewError(other, events.ErrorLevelError, "ignored")))
	require.NoError(t, b.Publish(ctx, events.NewError(sensor, events.ErrorLevelError, "kept")))

	got := waitEgress(t, out)
	assert.Equal(t, "kept", got.msg.ErrorMessage)
}

func TestStopClosesTransport(t *testing.T) {
	tr := memory.New()
	b := New(tr, Config{Kinds: []string{"ChangeEventMessage"}})

	require.NoError(t, b.Start())
	assert.ErrorIs(t, b.Start(), events.ErrBusAlreadyRunning)
	require.NoError(t, b.Stop())
	assert.True(t, tr.Closed())
	assert.NoError(t, b.Stop())
}

// dialCounter counts Connect calls on a memory transport.
type dialCounter struct {
	*memory.Transport
	dials atomic.Int32
}

func (d *dialCounter) Connect(ctx context.Context) error {
	d.dials.Add(1)
	return d.Transport.Connect(ctx)
}

func TestConcurrentStartDialsOnce(t *testing.T) {
	tr := &dialCounter{Transport: memory.New()}
	b := New(tr, Config{Kinds: []string{"ChangeEventMessage"}})
	defer b.Stop()

	const starters = 8
	var wg sync.WaitGroup
	errs := make(chan error, starters)
	for i := 0; i < starters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- b.Start()
		}()
	}
	wg.Wait()
	close(errs)

	started := 0
	for err := range errs {
		if err == nil {
			started++
			continue
		}
		assert.ErrorIs(t, err, events.ErrBusAlreadyRunning)
	}
	assert.Equal(t, 1, started)
	assert.Equal(t, int32(1), tr.dials.Load())
	assert.True(t, b.IsRunning())
}
