// Package graph implements Component D: the process-local cache of every
// device, signal, and map this process has heard about on the admin bus,
// plus the listener/event model components subscribe to (spec.md §4.D).
// It deliberately holds no persisted state - entries leave through the
// explicit Remove* methods or the expiry sweep that mirrors the bus's own
// liveness model.
package graph

import (
	"sync"
	"time"

	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

// EventKind is what happened to an entity.
type EventKind int

const (
	EventAdded EventKind = iota
	EventModified
	EventRemoved
	EventExpired
)

// EntityKind distinguishes which table an Event concerns.
type EntityKind int

const (
	EntityDevice EntityKind = iota
	EntitySignal
	EntityMap
)

// Event is delivered to every registered Listener.
type Event struct {
	Entity EntityKind
	Kind   EventKind
	Device *types.Device
	Signal *types.Signal
	Map    *types.MapSpec
}

// Listener receives graph change notifications. It is called synchronously,
// on the goroutine that made the change, after the Store's lock has been
// released.
type Listener func(Event)

// ExpiryTimeout is how long a device may go unheard from before the graph
// expires it and everything it owns (spec.md §4.D).
const ExpiryTimeout = 30 * time.Second

// Store is the in-memory arena. All methods are safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	devices   map[types.DeviceName]*types.Device
	signals   map[types.ID]*types.Signal
	maps      map[types.ID]*types.MapSpec
	listeners []Listener
}

// NewStore returns an empty graph.
func NewStore() *Store {
	return &Store{
		devices: make(map[types.DeviceName]*types.Device),
		signals: make(map[types.ID]*types.Signal),
		maps:    make(map[types.ID]*types.MapSpec),
	}
}

// Subscribe registers l to receive every future Event.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Store) emit(ev Event) {
	s.mu.Lock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()
	for _, l := range listeners {
		l(ev)
	}
}

// UpsertDevice records or updates a device, emitting Added or Modified.
func (s *Store) UpsertDevice(d *types.Device) {
	s.mu.Lock()
	existing, had := s.devices[d.Name]
	s.devices[d.Name] = d
	s.mu.Unlock()

	kind := EventAdded
	if had && existing.Version == d.Version {
		kind = EventModified
	}
	s.emit(Event{Entity: EntityDevice, Kind: kind, Device: d})
}

// RemoveDevice drops a device and every signal/map it owns, per spec.md
// §4.D's "removing a device cascades to its signals and any map touching
// them".
func (s *Store) RemoveDevice(name types.DeviceName) {
	s.removeDevice(name, EventRemoved)
}

func (s *Store) removeDevice(name types.DeviceName, kind EventKind) {
	s.mu.Lock()
	d, ok := s.devices[name]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.devices, name)
	var removedSignals []*types.Signal
	for id, sig := range s.signals {
		if sig.Device == name {
			removedSignals = append(removedSignals, sig)
			delete(s.signals, id)
		}
	}
	var removedMaps []*types.MapSpec
	for id, m := range s.maps {
		if m.Dest.Device == name {
			removedMaps = append(removedMaps, m)
			delete(s.maps, id)
			continue
		}
		for _, src := range m.Sources {
			if src.Device == name {
				removedMaps = append(removedMaps, m)
				delete(s.maps, id)
				break
			}
		}
	}
	s.mu.Unlock()

	for _, m := range removedMaps {
		s.emit(Event{Entity: EntityMap, Kind: kind, Map: m})
	}
	for _, sig := range removedSignals {
		s.emit(Event{Entity: EntitySignal, Kind: kind, Signal: sig})
	}
	s.emit(Event{Entity: EntityDevice, Kind: kind, Device: d})
}

// UpsertSignal records or updates a signal.
func (s *Store) UpsertSignal(sig *types.Signal) {
	s.mu.Lock()
	_, had := s.signals[sig.ID]
	s.signals[sig.ID] = sig
	s.mu.Unlock()

	kind := EventAdded
	if had {
		kind = EventModified
	}
	s.emit(Event{Entity: EntitySignal, Kind: kind, Signal: sig})
}

// RemoveSignal drops a signal directly (spec.md's /signal/removed path,
// distinct from a device-cascade removal).
func (s *Store) RemoveSignal(id types.ID) {
	s.mu.Lock()
	sig, ok := s.signals[id]
	if ok {
		delete(s.signals, id)
	}
	s.mu.Unlock()
	if ok {
		s.emit(Event{Entity: EntitySignal, Kind: EventRemoved, Signal: sig})
	}
}

// UpsertMap records or updates a map.
func (s *Store) UpsertMap(m *types.MapSpec) {
	s.mu.Lock()
	_, had := s.maps[m.ID]
	s.maps[m.ID] = m
	s.mu.Unlock()

	kind := EventAdded
	if had {
		kind = EventModified
	}
	s.emit(Event{Entity: EntityMap, Kind: kind, Map: m})
}

// RemoveMap drops a map (the /unmapped acknowledgment path).
func (s *Store) RemoveMap(id types.ID) {
	s.mu.Lock()
	m, ok := s.maps[id]
	if ok {
		delete(s.maps, id)
	}
	s.mu.Unlock()
	if ok {
		s.emit(Event{Entity: EntityMap, Kind: EventRemoved, Map: m})
	}
}

// Device, Signal, and Map look up a single entity by key.
func (s *Store) Device(name types.DeviceName) (*types.Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[name]
	return d, ok
}

func (s *Store) Signal(id types.ID) (*types.Signal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig, ok := s.signals[id]
	return sig, ok
}

func (s *Store) Map(id types.ID) (*types.MapSpec, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.maps[id]
	return m, ok
}

// Devices, Signals, and Maps return a snapshot of the current table,
// filtered by pred (nil means "all").
func (s *Store) Devices(pred func(*types.Device) bool) []*types.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Device
	for _, d := range s.devices {
		if pred == nil || pred(d) {
			out = append(out, d)
		}
	}
	return out
}

func (s *Store) Signals(pred func(*types.Signal) bool) []*types.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Signal
	for _, sig := range s.signals {
		if pred == nil || pred(sig) {
			out = append(out, sig)
		}
	}
	return out
}

func (s *Store) Maps(pred func(*types.MapSpec) bool) []*types.MapSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.MapSpec
	for _, m := range s.maps {
		if pred == nil || pred(m) {
			out = append(out, m)
		}
	}
	return out
}

// ExpireStale removes every device whose LastHeard is older than
// ExpiryTimeout relative to now, cascading per RemoveDevice.
func (s *Store) ExpireStale(now time.Time) {
	s.mu.Lock()
	var stale []types.DeviceName
	for name, d := range s.devices {
		if now.Sub(d.LastHeard) > ExpiryTimeout {
			stale = append(stale, name)
		}
	}
	s.mu.Unlock()
	for _, name := range stale {
		s.removeDevice(name, EventExpired)
	}
}
