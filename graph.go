package sigmap

import (
	"time"

	"github.com/jabolina/go-sigmap/pkg/sigmap/core"
	"github.com/jabolina/go-sigmap/pkg/sigmap/graph"
	"github.com/jabolina/go-sigmap/pkg/sigmap/transport"
	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

// Graph is a process-local observer of the admin bus's discovered state,
// usable standalone or shared across several local Devices (spec.md §6's
// graph.new/poll/add_callback/get_list). Sharing one Graph across devices is
// only valid when every Device/Graph sharing it is polled from the same
// goroutine (spec.md §5's single-threaded-per-graph rule). Each Device,
// whether given a shared Graph or not, opens its own admin-bus socket; the
// bus binds with SO_REUSEADDR, so several sockets in one process can join
// the same group:port (see DESIGN.md). A Device built with a nil Graph gets a
// passive one with no bus of its own: the Device's own core.Device already
// owns the one admin-bus socket it needs, and the passive Graph is just a
// read-only view over the same store.
type Graph struct {
	store *graph.Store
	bus   *transport.Bus
	disp  *core.Dispatcher
}

// NewGraph opens its own admin-bus listener and starts tracking every
// device/signal/map it hears announced, without claiming a device identity
// of its own (a pure observer never replies to "/who").
func NewGraph(cfg GraphConfig) (*Graph, error) {
	bus, err := transport.NewBus(cfg.Group, cfg.BusPort, cfg.ttl(), nil)
	if err != nil {
		return nil, err
	}
	store := graph.NewStore()
	disp := core.NewDispatcher(func() types.DeviceName { return types.DeviceName{} }, store, bus, nil)
	return &Graph{store: store, bus: bus, disp: disp}, nil
}

// newOwnedGraph builds a Graph with no admin-bus socket of its own, backing
// a Device that was not given an explicit shared Graph - the Device's own
// core.Device supplies the one admin-bus socket and dispatcher that mutate
// this store.
func newOwnedGraph() *Graph {
	return &Graph{store: graph.NewStore()}
}

// Poll drains up to blockMs worth of admin traffic and expires stale
// devices, returning the number of admin events handled. A Graph with no
// bus of its own (see newOwnedGraph) only sweeps expiry - its owning
// Device's own Poll already drains the shared store's traffic.
func (g *Graph) Poll(blockMs int) int {
	var handled int
	if g.bus != nil {
		handled = transport.Poll(g.bus, blockMs, g.disp.Handle)
	}
	g.store.ExpireStale(time.Now())
	return handled
}

// AddCallback registers l to receive every future graph change event
// (spec.md §6's graph.add_callback(kinds, cb); kind filtering is the
// caller's concern inside l, since graph.Event already names Entity/Kind).
func (g *Graph) AddCallback(l graph.Listener) {
	g.store.Subscribe(l)
}

// Devices, Signals, and Maps return the current snapshot of each table,
// spec.md §6's graph.get_list(kind).
func (g *Graph) Devices() []*types.Device { return g.store.Devices(nil) }
func (g *Graph) Signals() []*types.Signal { return g.store.Signals(nil) }
func (g *Graph) Maps() []*types.MapSpec   { return g.store.Maps(nil) }

// Free releases the graph's admin-bus socket, if it owns one.
func (g *Graph) Free() {
	if g.bus != nil {
		g.bus.Close()
	}
}

// FilterByProperty narrows list to the items whose extracted property
// compares against value under op (spec.md §6's list.filter(prop, op,
// value)). get should report ok=false when the property is absent, which
// only graph.OpExists/graph.OpNotExists treat specially.
func FilterByProperty[T any](list []T, get func(T) (value float64, ok bool), op graph.Op, value float64) []T {
	var out []T
	for _, item := range list {
		v, ok := get(item)
		switch op {
		case graph.OpExists:
			if ok {
				out = append(out, item)
			}
		case graph.OpNotExists:
			if !ok {
				out = append(out, item)
			}
		default:
			if ok && graph.Compare(op, v, value) {
				out = append(out, item)
			}
		}
	}
	return out
}
