package sigmap

import (
	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

// Map is the public handle for one source[]→destination transformation
// (spec.md §6's map.new/push/set_prop/add_scope/remove_scope/is_ready).
type Map struct {
	dev  *Device
	spec *types.MapSpec
}

// ID returns the map's globally unique 64-bit identifier.
func (m *Map) ID() types.ID { return m.spec.ID }

// IsReady reports whether the map's endpoints have resolved and (if an
// expression was given) it compiled successfully.
func (m *Map) IsReady() bool {
	return m.spec.Status == types.MapReady || m.spec.Status == types.MapActive
}

// Status returns the map's current lifecycle state (spec.md §4.E).
func (m *Map) Status() types.MapStatus { return m.spec.Status }

// SetExpression replaces the map's DSL text and attempts to recompile it
// against the already-resolved endpoints, re-announcing the whole map on the
// admin bus as a "/map" message (spec.md §6's map.set_prop("expression",
// ...)); no "/map/modify" message is sent.
func (m *Map) SetExpression(expr string) error {
	m.spec.Expression = expr
	m.spec.Status = types.MapStaged
	m.spec.Program = nil
	if err := m.dev.mm.TryReady(m.spec); err != nil {
		m.dev.graph.store.UpsertMap(m.spec)
		return err
	}
	m.dev.graph.store.UpsertMap(m.spec)
	return m.dev.core.AnnounceMap(m.spec)
}

// SetMuted mutes or unmutes the map without tearing it down.
func (m *Map) SetMuted(muted bool) {
	m.spec.Muted = muted
	m.dev.graph.store.UpsertMap(m.spec)
}

// SetSteal changes the instance-stealing policy applied at the destination
// signal when this map delivers an unfamiliar instance id.
func (m *Map) SetSteal(mode types.StealMode) {
	m.spec.Steal = mode
	m.dev.graph.store.UpsertMap(m.spec)
	if dest, ok := m.dev.signalByRef(m.spec.Dest); ok {
		dest.pool.SetStealMode(mode)
	}
}

// AddScope and RemoveScope mutate which devices may originate instance
// lifecycle events for this map (spec.md §6's map.add_scope/remove_scope).
func (m *Map) AddScope(d types.DeviceName) {
	if m.spec.Scope == nil {
		m.spec.Scope = make(map[types.DeviceName]bool)
	}
	m.spec.Scope[d] = true
	m.dev.graph.store.UpsertMap(m.spec)
}

func (m *Map) RemoveScope(d types.DeviceName) {
	delete(m.spec.Scope, d)
	m.dev.graph.store.UpsertMap(m.spec)
}

// Push re-broadcasts the map's current spec on the admin bus, used after a
// batch of property changes made without going through a setter that
// already announces (spec.md §6's map.push(map)).
func (m *Map) Push() error {
	return m.dev.core.AnnounceMap(m.spec)
}

// Unmap tears the map down locally and notifies peers.
func (m *Map) Unmap() error {
	m.dev.mu.Lock()
	delete(m.dev.maps, m.spec.ID)
	delete(m.dev.pipelines, m.spec.ID)
	delete(m.dev.pipelineLinks, m.spec.ID)
	m.dev.mu.Unlock()
	m.dev.graph.store.RemoveMap(m.spec.ID)
	return m.dev.core.AnnounceUnmap(m.spec.ID)
}
