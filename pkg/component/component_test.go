package component

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeComponent struct {
	*Base
	log      *[]string
	startErr error
	stopErr  error
}

func newFake(name string, log *[]string) *fakeComponent {
	return &fakeComponent{Base: NewBase(name), log: log}
}

func (f *fakeComponent) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.StartContext(ctx)
	*f.log = append(*f.log, "start "+f.Name())
	return nil
}

func (f *fakeComponent) Stop(ctx context.Context) error {
	f.StopContext()
	*f.log = append(*f.log, "stop "+f.Name())
	return f.stopErr
}

func TestOrchestratorOrder(t *testing.T) {
	var log []string
	o := NewOrchestrator()
	o.Register(newFake("bus", &log))
	o.Register(newFake("journal", &log))
	o.Register(newFake("api", &log))

	require.NoError(t, o.Start(context.Background()))
	require.NoError(t, o.Stop(context.Background()))

	assert.Equal(t, []string{
		"start bus", "start journal", "start api",
		"stop api", "stop journal", "stop bus",
	}, log)
	assert.Equal(t, []string{"bus", "journal", "api"}, o.Names())
}

func TestOrchestratorStartFailureRollsBack(t *testing.T) {
	var log []string
	failing := newFake("api", &log)
	failing.startErr = errors.New("address in use")

	o := NewOrchestrator()
	o.Register(newFake("bus", &log))
	o.Register(newFake("journal", &log))
	o.Register(failing)

	err := o.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start api")
	assert.Equal(t, []string{"start bus", "start journal", "stop journal", "stop bus"}, log)

	log = nil
	require.NoError(t, o.Stop(context.Background()))
	assert.Empty(t, log)
}

func TestOrchestratorStopReportsAllErrors(t *testing.T) {
	var log []string
	a := newFake("a", &log)
	a.stopErr = errors.New("a broke")
	b := newFake("b", &log)
	b.stopErr = errors.New("b broke")

	o := NewOrchestrator()
	o.Register(a)
	o.Register(b)
	require.NoError(t, o.Start(context.Background()))

	err := o.Stop(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, a.stopErr)
	assert.ErrorIs(t, err, b.stopErr)
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, log)
}

func TestBaseGoWaitsOnStop(t *testing.T) {
	b := NewBase("worker")
	assert.Nil(t, b.Done())

	b.StartContext(context.Background())
	finished := make(chan struct{})
	b.Go(func() {
		<-b.Done()
		time.Sleep(10 * time.Millisecond)
		close(finished)
	})

	b.StopContext()
	select {
	case <-finished:
	default:
		t.Fatal("StopContext returned before goroutine finished")
	}
}

func TestRegistryLoadAll(t *testing.T) {
	var log []string
	Register("test.enabled", func(Dependencies) (Component, error) {
		return newFake("test.enabled", &log), nil
	})
	Register("test.disabled", func(Dependencies) (Component, error) {
		return nil, nil
	})

	_, ok := Get("test.enabled")
	assert.True(t, ok)
	assert.Contains(t, List(), "test.disabled")

	comps, err := LoadAll(Dependencies{})
	require.NoError(t, err)

	var names []string
	for _, c := range comps {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "test.enabled")
	assert.NotContains(t, names, "test.disabled")

	assert.Panics(t, func() {
		Register("test.enabled", func(Dependencies) (Component, error) { return nil, nil })
	})
}
