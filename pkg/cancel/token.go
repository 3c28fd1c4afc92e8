// Package cancel provides the cooperative stop signal shared between a running
// batch operation and the surface that may ask it to stop.
package cancel

import "sync/atomic"

// Token is a write-once-per-run stop flag. The zero value is a running token.
type Token struct {
	stopped atomic.Bool
}

// New returns a token in the running state.
func New() *Token {
	return &Token{}
}

// Request asks the current run to stop. Calling it more than once is harmless.
func (t *Token) Request() {
	t.stopped.Store(true)
}

// Stopped reports whether a stop was requested. A nil token never stops.
func (t *Token) Stopped() bool {
	if t == nil {
		return false
	}
	return t.stopped.Load()
}

// Reset puts the token back into the running state. Only the owner of a run
// should call it, at the start of that run.
func (t *Token) Reset() {
	t.stopped.Store(false)
}
