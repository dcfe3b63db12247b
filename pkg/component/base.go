package component

import (
	"context"
	"sync"
)

// Base carries the name, lifecycle context and goroutine tracking shared by
// components. Embed it and call StartContext first thing in Start.
type Base struct {
	name   string
	Ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBase(name string) *Base {
	return &Base{name: name}
}

func (b *Base) Name() string {
	return b.name
}

func (b *Base) StartContext(parentCtx context.Context) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	b.Ctx, b.cancel = context.WithCancel(parentCtx)
}

// StopContext cancels Ctx and waits for every goroutine started with Go.
func (b *Base) StopContext() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
}

// Done is closed once the component context is cancelled. It is nil before
// StartContext.
func (b *Base) Done() <-chan struct{} {
	if b.Ctx == nil {
		return nil
	}
	return b.Ctx.Done()
}

func (b *Base) Go(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
}
