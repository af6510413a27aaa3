package runtime

import (
	"testing"
	"time"

	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

func TestInstancePoolAcquireNewSlot(t *testing.T) {
	p := NewInstancePool(2, types.StealNone, nil)
	now := time.Now()
	inst, ok := p.Acquire(1, now)
	if !ok || inst.ID != 1 {
		t.Fatalf("expected to acquire slot for id 1")
	}
	if p.Len() != 1 {
		t.Fatalf("expected 1 occupied slot, got %d", p.Len())
	}
}

func TestInstancePoolStealNoneDropsWhenFull(t *testing.T) {
	p := NewInstancePool(1, types.StealNone, nil)
	now := time.Now()
	p.Acquire(1, now)
	_, ok := p.Acquire(2, now.Add(time.Second))
	if ok {
		t.Fatalf("expected StealNone to refuse a new id when full")
	}
	if p.Len() != 1 {
		t.Fatalf("expected original slot to remain, got len=%d", p.Len())
	}
}

func TestInstancePoolStealOldestEvictsLeastRecentlyUpdated(t *testing.T) {
	var evicted *types.Instance
	p := NewInstancePool(2, types.StealOldest, func(i *types.Instance) { evicted = i })
	now := time.Now()
	p.Acquire(1, now)
	p.Acquire(2, now.Add(time.Second))
	p.Update(1, []float64{1}, now) // 1 stays oldest
	p.Update(2, []float64{2}, now.Add(2*time.Second))

	_, ok := p.Acquire(3, now.Add(3*time.Second))
	if !ok {
		t.Fatalf("expected steal-oldest to succeed")
	}
	if evicted == nil || evicted.ID != 1 {
		t.Fatalf("expected instance 1 (oldest) to be evicted, got %+v", evicted)
	}
	if _, stillThere := p.Get(1); stillThere {
		t.Fatalf("evicted instance should no longer be in the pool")
	}
}

func TestInstancePoolStealNewestEvictsMostRecentlyUpdated(t *testing.T) {
	var evicted *types.Instance
	p := NewInstancePool(2, types.StealNewest, func(i *types.Instance) { evicted = i })
	now := time.Now()
	p.Acquire(1, now)
	p.Acquire(2, now.Add(time.Second))
	p.Update(1, []float64{1}, now)
	p.Update(2, []float64{2}, now.Add(2*time.Second))

	_, ok := p.Acquire(3, now.Add(3*time.Second))
	if !ok {
		t.Fatalf("expected steal-newest to succeed")
	}
	if evicted == nil || evicted.ID != 2 {
		t.Fatalf("expected instance 2 (newest) to be evicted, got %+v", evicted)
	}
}

func TestInstancePoolReleaseFreesSlot(t *testing.T) {
	p := NewInstancePool(1, types.StealNone, nil)
	now := time.Now()
	p.Acquire(1, now)
	p.Release(1)
	if p.Len() != 0 {
		t.Fatalf("expected slot to be freed, len=%d", p.Len())
	}
	_, ok := p.Acquire(2, now)
	if !ok {
		t.Fatalf("expected released slot to admit a new id")
	}
}

func TestInstancePoolAcquireExistingReturnsSameInstance(t *testing.T) {
	p := NewInstancePool(2, types.StealNone, nil)
	now := time.Now()
	first, _ := p.Acquire(1, now)
	second, _ := p.Acquire(1, now.Add(time.Second))
	if first != second {
		t.Fatalf("expected re-acquiring the same id to return the same instance")
	}
}
