// Package task stamps in-flight requests with a per-slot sequence number so
// that the completion of a request that has since been superseded can be
// discarded instead of overwriting newer state.
package task

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned by an operation whose result was discarded because
// a newer request for the same slot was issued. It is not a failure.
var ErrSuperseded = errors.New("superseded by a newer request")

// Slot is one logical request slot (a page selection, an open detail view...).
// Only the latest ticket issued by a slot may commit its result.
type Slot struct {
	name string

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// Ticket identifies one request issued by a Slot.
type Ticket struct {
	slot *Slot
	seq  uint64
}

// NewSlot creates a named slot. The name is used for logging and metrics.
func NewSlot(name string) *Slot {
	return &Slot{name: name}
}

// Name returns the slot name.
func (s *Slot) Name() string {
	return s.name
}

// Begin issues a new ticket and returns a context derived from ctx that is
// canceled as soon as the ticket is superseded or finished. The context of the
// previously issued ticket is canceled.
func (s *Slot) Begin(ctx context.Context) (context.Context, Ticket) {
	tctx, ticket, _ := s.BeginIf(ctx, func() bool { return true })

	return tctx, ticket
}

// BeginIf is Begin gated on cond, which is evaluated under the slot lock. When
// cond reports false no ticket is issued, the current ticket keeps running and
// ok is false. cond must not call back into this slot.
func (s *Slot) BeginIf(ctx context.Context, cond func() bool) (context.Context, Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !cond() {
		return ctx, Ticket{}, false
	}

	tctx, cancel := context.WithCancel(ctx)
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	s.cancel = cancel

	return tctx, Ticket{slot: s, seq: s.seq}, true
}

// Invalidate supersedes every ticket issued so far without issuing a new one.
func (s *Slot) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.seq++
}

// Current reports whether the ticket is still the latest one of its slot.
func (t Ticket) Current() bool {
	t.slot.mu.Lock()
	defer t.slot.mu.Unlock()

	return t.slot.seq == t.seq
}

// Commit runs apply if and only if the ticket is still current. The check and
// apply happen under the slot lock, so a concurrent Begin cannot interleave.
// It reports whether apply was run.
func (t Ticket) Commit(apply func()) bool {
	t.slot.mu.Lock()
	defer t.slot.mu.Unlock()

	if t.slot.seq != t.seq {
		return false
	}
	apply()

	return true
}

// Finish releases the ticket context if the ticket is still current.
func (t Ticket) Finish() {
	t.slot.mu.Lock()
	defer t.slot.mu.Unlock()

	if t.slot.seq == t.seq && t.slot.cancel != nil {
		t.slot.cancel()
		t.slot.cancel = nil
	}
}
