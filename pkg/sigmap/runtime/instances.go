// Package runtime implements Component I: per-map pipelines that turn a
// source signal update into a destination signal update, instance
// allocation/stealing, convergent-map fan-in, and the queue-window bundle
// builder from spec.md §4.I/§5.
package runtime

import (
	"time"

	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

// InstancePool owns the instance slots of one signal, applying the
// configured steal mode when an incoming instance id arrives with no free
// slot (spec.md §4.I).
type InstancePool struct {
	capacity int
	steal    types.StealMode
	slots    map[uint64]*types.Instance
	onEvict  func(*types.Instance)
}

// NewInstancePool builds a pool of capacity slots using the given steal
// mode, invoking onEvict (if non-nil) whenever stealing displaces an
// instance.
func NewInstancePool(capacity int, steal types.StealMode, onEvict func(*types.Instance)) *InstancePool {
	return &InstancePool{
		capacity: capacity,
		steal:    steal,
		slots:    make(map[uint64]*types.Instance),
		onEvict:  onEvict,
	}
}

// Acquire returns the instance for id, creating or stealing a slot for it
// if necessary. ok is false only when steal mode is none and the pool is
// full.
func (p *InstancePool) Acquire(id uint64, now time.Time) (inst *types.Instance, ok bool) {
	if existing, had := p.slots[id]; had {
		return existing, true
	}
	if len(p.slots) < p.capacity {
		inst = &types.Instance{ID: id, Status: types.InstanceReserved, Timestamp: now}
		p.slots[id] = inst
		return inst, true
	}

	victim, found := p.pickVictim()
	if !found {
		return nil, false
	}
	if p.onEvict != nil {
		p.onEvict(victim)
	}
	delete(p.slots, victim.ID)
	inst = &types.Instance{ID: id, Status: types.InstanceReserved, Timestamp: now}
	p.slots[id] = inst
	return inst, true
}

func (p *InstancePool) pickVictim() (*types.Instance, bool) {
	switch p.steal {
	case types.StealOldest:
		var victim *types.Instance
		for _, inst := range p.slots {
			if victim == nil || inst.Timestamp.Before(victim.Timestamp) {
				victim = inst
			}
		}
		return victim, victim != nil
	case types.StealNewest:
		var victim *types.Instance
		for _, inst := range p.slots {
			if victim == nil || inst.Timestamp.After(victim.Timestamp) {
				victim = inst
			}
		}
		return victim, victim != nil
	default: // StealNone
		return nil, false
	}
}

// Update records a new value/timestamp for instance id, marking it active.
func (p *InstancePool) Update(id uint64, value []float64, t time.Time) {
	inst, ok := p.slots[id]
	if !ok {
		return
	}
	inst.Value = value
	inst.Timestamp = t
	inst.Status = types.InstanceActive
}

// Release drops instance id from the pool - called on an ephemeral
// instance's source-release, or explicitly by the destination.
func (p *InstancePool) Release(id uint64) {
	delete(p.slots, id)
}

// Get returns the instance for id, if present.
func (p *InstancePool) Get(id uint64) (*types.Instance, bool) {
	inst, ok := p.slots[id]
	return inst, ok
}

// Len reports how many instance slots are currently occupied.
func (p *InstancePool) Len() int { return len(p.slots) }

// SetStealMode changes the policy applied on the next Acquire that finds the
// pool full - used when a newly established map carries its own steal_mode
// config for a destination signal it targets (spec.md §6's map property
// "steal_mode" is per-map, but the instance pool it governs lives on the
// signal).
func (p *InstancePool) SetStealMode(mode types.StealMode) { p.steal = mode }
