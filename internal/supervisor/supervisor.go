// Package supervisor hands out generation tokens so that only the most recent
// ingestion request may publish results.
//
// Every Begin or Abort advances a single monotonic counter. A token is current
// only while no later Begin or Abort has happened, so superseded work observes
// staleness with one atomic load and never needs to be interrupted.
package supervisor

import "sync/atomic"

// Token identifies one ingestion attempt. The zero Token is never current.
type Token uint64

// Supervisor owns the generation counter. The zero value is ready to use and
// safe for concurrent use.
type Supervisor struct {
	counter atomic.Uint64
}

// New returns an idle supervisor.
func New() *Supervisor {
	return &Supervisor{}
}

// Begin starts a new generation and returns its token. Every earlier token
// becomes stale.
func (s *Supervisor) Begin() Token {
	return Token(s.counter.Add(1))
}

// Abort invalidates every outstanding token without starting new work.
func (s *Supervisor) Abort() {
	s.counter.Add(1)
}

// IsCurrent reports whether t is still the latest generation.
func (s *Supervisor) IsCurrent(t Token) bool {
	return t != 0 && s.counter.Load() == uint64(t)
}

// Latest returns the current counter value.
func (s *Supervisor) Latest() uint64 {
	return s.counter.Load()
}

// Watch binds t to s so workers can poll staleness without holding the
// supervisor itself.
func (s *Supervisor) Watch(t Token) Generation {
	return Generation{sup: s, token: t}
}

// Generation is a read-only view of one token.
type Generation struct {
	sup   *Supervisor
	token Token
}

// Token returns the watched token.
func (g Generation) Token() Token {
	return g.token
}

// Current reports whether the watched token is still the latest generation.
func (g Generation) Current() bool {
	return g.sup != nil && g.sup.IsCurrent(g.token)
}
