package alloc

import (
	"testing"
	"time"
)

// TestAllocationRaceConverges is spec.md §8's scenario 4: two devices
// racing over the same ordinal pool converge to distinct values (here,
// ordinals 1 and 2) after a bounded number of collisions.
func TestAllocationRaceConverges(t *testing.T) {
	now := time.Now()
	a := NewResource(1, 2)
	b := NewResource(1, 2)
	a.value, b.value = 1, 1 // force the race

	for i := 0; i < 10 && a.value == b.value; i++ {
		b.Collide(now)
		now = now.Add(time.Millisecond)
	}
	if a.value == b.value {
		t.Fatalf("ordinals failed to diverge: a=%d b=%d", a.value, b.value)
	}
}

func TestResourceLocksAfterProbation(t *testing.T) {
	r := NewResource(9000, 100)
	now := time.Now()
	if r.Tick(now) {
		t.Fatalf("resource locked before probation elapsed")
	}
	if !r.Tick(now.Add(ProbationWindow)) {
		t.Fatalf("resource did not lock after probation elapsed")
	}
}

func TestCollideResetsProbation(t *testing.T) {
	r := NewResource(9000, 100)
	now := time.Now()
	r.Tick(now.Add(ProbationWindow))
	if !r.Locked() {
		t.Fatalf("expected locked")
	}
	r.Collide(now.Add(ProbationWindow))
	if r.Locked() {
		t.Fatalf("collision should unlock and restart probation")
	}
}
