// Package diag routes persistence-write failures out of request and call
// paths. Failures reported here are developer diagnostics, not user-facing
// errors; publishing never blocks or panics the caller.
package diag

import (
	"sync"

	"go.uber.org/zap"
)

// WriteFailure describes a store write that was issued fire-and-forget and
// did not complete.
type WriteFailure struct {
	Operation string
	Path      string
	Payload   interface{}
	Err       error
}

// Reporter fans write failures out to subscribers.
type Reporter interface {
	Report(failure WriteFailure)
}

type Emitter struct {
	mu   sync.RWMutex
	subs []func(WriteFailure)
}

func NewEmitter() *Emitter {
	return &Emitter{}
}

func (e *Emitter) Subscribe(fn func(WriteFailure)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = append(e.subs, fn)
}

func (e *Emitter) Report(failure WriteFailure) {
	e.mu.RLock()
	subs := make([]func(WriteFailure), len(e.subs))
	copy(subs, e.subs)
	e.mu.RUnlock()
	for _, fn := range subs {
		fn(failure)
	}
}

// NewLogReporter returns an emitter pre-subscribed to a zap logger, the
// default sink wired in main.
func NewLogReporter(log *zap.Logger) *Emitter {
	e := NewEmitter()
	e.Subscribe(func(f WriteFailure) {
		log.Warn("write failure",
			zap.String("operation", f.Operation),
			zap.String("path", f.Path),
			zap.Any("payload", f.Payload),
			zap.Error(f.Err))
	})
	return e
}
