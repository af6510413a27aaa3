// Package alloc implements Component C: collision-based allocation of the
// two resources every device must agree on without central coordination -
// its ordinal suffix and its data-plane UDP port (spec.md §4.C). Both resources
// share one probation state machine; NewOrdinal/NewPort just seed it with
// different candidate ranges.
package alloc

import (
	"math/rand"
	"time"
)

// Resource tracks one collision-allocated value: a tentative candidate, how
// many times it has collided, and whether probation has elapsed and the
// value is now locked in.
type Resource struct {
	value      uint64
	collisions int
	lastCollide time.Time
	staged     time.Time
	locked     bool
	min, span  uint64
}

// ProbationWindow is how long a candidate must go unchallenged before it
// locks, per spec.md §4.C's "probation timer on the order of hundreds of
// milliseconds".
const ProbationWindow = 250 * time.Millisecond

// NewResource seeds a Resource with a random candidate in [min, min+span).
func NewResource(min, span uint64) *Resource {
	r := &Resource{min: min, span: span}
	r.reroll(time.Now())
	return r
}

func (r *Resource) reroll(now time.Time) {
	if r.span == 0 {
		r.value = r.min
	} else {
		r.value = r.min + uint64(rand.Int63n(int64(r.span)))
	}
	r.staged = now
	r.locked = false
}

// Value returns the current candidate (or locked) value.
func (r *Resource) Value() uint64 { return r.value }

// Locked reports whether probation has elapsed without a collision.
func (r *Resource) Locked() bool { return r.locked }

// Collide is called when another peer claims the same value: per spec.md
// §4.C the loser increments past the collision count and restarts
// probation, rather than re-rolling blindly, so concurrent collisions
// converge instead of oscillating.
func (r *Resource) Collide(now time.Time) {
	r.collisions++
	r.lastCollide = now
	r.value = r.min + (r.value-r.min+uint64(r.collisions)+1)%maxu(r.span, 1)
	r.staged = now
	r.locked = false
}

// Tick checks whether probation has elapsed since the last (re)staging or
// collision, locking the value if so. Call it periodically (e.g. from the
// device's poll loop).
func (r *Resource) Tick(now time.Time) bool {
	if r.locked {
		return true
	}
	if now.Sub(r.staged) >= ProbationWindow {
		r.locked = true
	}
	return r.locked
}

func maxu(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// OrdinalMin/OrdinalSpan and PortMin/PortSpan bound the candidate pools spec.md §4.C's two
// allocated resources draw from.
const (
	OrdinalMin  = 1
	OrdinalSpan = 1000

	PortMin  = 9000
	PortSpan = 1000
)

// NewOrdinalResource and NewPortResource seed the two resources a device
// allocates at startup.
func NewOrdinalResource() *Resource { return NewResource(OrdinalMin, OrdinalSpan) }
func NewPortResource() *Resource    { return NewResource(PortMin, PortSpan) }

// NewFixedResource returns a Resource whose value is already locked, used
// when the value is dictated externally - an OS-assigned socket port, say -
// rather than negotiated through collision probation.
func NewFixedResource(value uint64) *Resource {
	return &Resource{value: value, locked: true}
}
