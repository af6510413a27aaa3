package core

import (
	"time"

	"github.com/jabolina/go-sigmap/pkg/sigmap/definition"
	"github.com/jabolina/go-sigmap/pkg/sigmap/graph"
	"github.com/jabolina/go-sigmap/pkg/sigmap/osc"
	"github.com/jabolina/go-sigmap/pkg/sigmap/transport"
	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

// Dispatcher routes decoded admin-bus packets into the graph, following the
// teacher's process/processInitialMessage split in peer.go: one exported
// entry point that switches on message address, delegating each case to its
// own handler.
type Dispatcher struct {
	self  func() types.DeviceName
	store *graph.Store
	mm    *MapMachine
	bus   *transport.Bus
	log   definition.Logger

	// OnOrdinalCollision, when set, is invoked whenever a remote /device
	// announcement claims the same name.ordinal as self while probation is
	// still open (spec.md §4.C).
	OnOrdinalCollision func()

	// OnPortCollision, when set, is invoked whenever a remote /device
	// announcement under a different name claims the same data-plane port
	// this device is currently staging (spec.md §4.C's second allocated
	// resource). SelfPort supplies the current candidate to compare against.
	OnPortCollision func()
	SelfPort        func() int

	// SelfHost supplies the local device's own host, used alongside SelfPort
	// to recognize this device's own candidate announcement echoed back by
	// multicast loopback (spec.md §4.C's probation broadcast) so it is never
	// mistaken for a foreign device claiming the same name.ordinal.
	SelfHost func() string
}

// NewDispatcher builds a Dispatcher for the local device, mutating store and
// replying on bus. self is called fresh on every lookup rather than captured
// once, since the device's name.ordinal can reroll under collision after
// construction (spec.md §4.C) - a snapshotted name would go stale the moment
// that happens.
func NewDispatcher(self func() types.DeviceName, store *graph.Store, bus *transport.Bus, log definition.Logger) *Dispatcher {
	return &Dispatcher{self: self, store: store, mm: NewMapMachine(store), bus: bus, log: log}
}

// Handle dispatches one admin-bus packet, unwrapping bundles first.
func (d *Dispatcher) Handle(in transport.Incoming) {
	if in.IsBundle {
		for _, m := range in.Bundle.Messages {
			d.handleMessage(m)
		}
		return
	}
	d.handleMessage(in.Message)
}

func (d *Dispatcher) handleMessage(m osc.Message) {
	switch m.Address {
	case AddrWho:
		d.onWho()
	case AddrDevice:
		d.onDevice(m)
	case AddrSignal:
		d.onSignal(m)
	case AddrSignalRemoved:
		d.onSignalRemoved(m)
	case AddrMap:
		d.onMap(m)
	case AddrMapped:
		d.onMapped(m)
	case AddrMapModify:
		d.onMapModify(m)
	case AddrUnmap:
		d.onUnmap(m)
	case AddrUnmapped:
		d.onUnmapped(m)
	case AddrSubscribe:
		// Subscription bookkeeping lives in the public graph client
		// (spec.md §6 graph.add_callback); the admin bus only needs to
		// keep its bus clock warm, nothing to mutate here.
	case AddrSync:
		d.onSync(m)
	default:
		if d.log != nil {
			d.log.Debugf("ignoring unknown admin address %q", m.Address)
		}
	}
}

func (d *Dispatcher) onWho() {
	if self, ok := d.store.Device(d.self()); ok {
		d.reply(BuildDevice(self))
	}
}

func (d *Dispatcher) onDevice(m osc.Message) {
	dev, ok := ParseDevice(m)
	if !ok {
		d.warnMalformed(m)
		return
	}
	self := d.self()
	if dev.Name == self {
		// An announcement claiming our own name.ordinal is only safe to
		// ignore when it is recognizably our own candidate/announcement
		// heard back via multicast loopback (same host and port); anything
		// else claiming this exact name.ordinal is a genuine collision,
		// whether or not we have a store record for ourselves yet (during
		// probation we don't, which is precisely when this check matters
		// most).
		mine := d.SelfHost != nil && d.SelfPort != nil && dev.Host == d.SelfHost() && dev.Port == d.SelfPort()
		if !mine && d.OnOrdinalCollision != nil {
			d.OnOrdinalCollision()
		}
		return
	}
	if d.SelfPort != nil && d.OnPortCollision != nil {
		if sp := d.SelfPort(); sp != 0 && dev.Port == sp {
			d.OnPortCollision()
		}
	}

	dev.LastHeard = time.Now()
	if existing, had := d.store.Device(dev.Name); had {
		dev.Version = existing.Version
	}
	d.store.UpsertDevice(dev)
}

func (d *Dispatcher) onSignal(m osc.Message) {
	sig, ok := ParseSignal(m)
	if !ok {
		d.warnMalformed(m)
		return
	}
	d.store.UpsertSignal(sig)
}

func (d *Dispatcher) onSignalRemoved(m osc.Message) {
	if len(m.Args) != 2 {
		d.warnMalformed(m)
		return
	}
	dev, ok := parseDeviceName(m.Args[0].Str)
	if !ok {
		d.warnMalformed(m)
		return
	}
	name := m.Args[1].Str
	for _, sig := range d.store.Signals(func(s *types.Signal) bool {
		return s.Device == dev && s.Name == name
	}) {
		d.store.RemoveSignal(sig.ID)
	}
}

func (d *Dispatcher) onMap(m osc.Message) {
	sources, dest, expr, ok := ParseMap(m)
	if !ok {
		d.warnMalformed(m)
		return
	}
	spec := &types.MapSpec{
		Sources:    sources,
		Dest:       dest,
		Expression: expr,
		Status:     types.MapStaged,
	}
	if err := d.mm.TryReady(spec); err != nil {
		if d.log != nil {
			d.log.Warnf("map not yet ready: %v", err)
		}
	}
	d.store.UpsertMap(spec)
	if spec.Status == types.MapReady {
		d.reply(BuildMapped(spec))
	}
}

func (d *Dispatcher) onMapped(m osc.Message) {
	sources, dest, expr, ok := ParseMap(m)
	if !ok || len(m.Args) == 0 {
		d.warnMalformed(m)
		return
	}
	idArg := m.Args[len(m.Args)-1]
	if idArg.Type != osc.TypeInt64 {
		d.warnMalformed(m)
		return
	}
	remoteID := types.ID(idArg.Int64)

	if existing, had := d.store.Map(remoteID); had && existing.Status != types.MapStaged {
		return
	}
	spec := &types.MapSpec{
		ID:         remoteID,
		Sources:    sources,
		Dest:       dest,
		Expression: expr,
		Status:     types.MapReady,
	}
	d.store.UpsertMap(spec)
}

func (d *Dispatcher) onMapModify(m osc.Message) {
	_, dest, expr, ok := ParseMap(m)
	if !ok {
		d.warnMalformed(m)
		return
	}
	for _, spec := range d.store.Maps(func(ms *types.MapSpec) bool { return ms.Dest == dest }) {
		spec.Expression = expr
		spec.Status = types.MapStaged
		if err := d.mm.TryReady(spec); err != nil && d.log != nil {
			d.log.Warnf("map modify not yet ready: %v", err)
		}
		d.store.UpsertMap(spec)
	}
}

func (d *Dispatcher) onUnmap(m osc.Message) {
	id, ok := ParseUnmap(m)
	if !ok {
		d.warnMalformed(m)
		return
	}
	d.store.RemoveMap(id)
	d.reply(BuildUnmapped(id))
}

func (d *Dispatcher) onUnmapped(m osc.Message) {
	id, ok := ParseUnmap(m)
	if !ok {
		d.warnMalformed(m)
		return
	}
	d.store.RemoveMap(id)
}

func (d *Dispatcher) onSync(m osc.Message) {
	name, version, ok := ParseSync(m)
	if !ok {
		d.warnMalformed(m)
		return
	}
	dev, had := d.store.Device(name)
	if !had {
		return
	}
	dev.LastHeard = time.Now()
	dev.Version = version
	d.store.UpsertDevice(dev)
}

func (d *Dispatcher) reply(m osc.Message) {
	if d.bus == nil {
		return
	}
	if err := d.bus.Send(m); err != nil && d.log != nil {
		d.log.Errorf("failed replying %s: %v", m.Address, err)
	}
}

func (d *Dispatcher) warnMalformed(m osc.Message) {
	if d.log != nil {
		d.log.Warnf("malformed admin message on %s", m.Address)
	}
}
