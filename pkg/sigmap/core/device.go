package core

import (
	"sync"
	"time"

	"github.com/jabolina/go-sigmap/pkg/sigmap/alloc"
	"github.com/jabolina/go-sigmap/pkg/sigmap/definition"
	"github.com/jabolina/go-sigmap/pkg/sigmap/graph"
	"github.com/jabolina/go-sigmap/pkg/sigmap/transport"
	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

// AnnouncePeriod is how often a ready device re-announces itself on the
// admin bus with "/device" and "/sync", the bus-level analogue of the
// teacher's peer.poll loop continuously reprocessing live state.
const AnnouncePeriod = 2 * time.Second

// Device is Component E's per-process engine: it owns the admin bus, the
// ordinal/port allocation, and the graph mutations driven by admin traffic.
// Scheduling follows spec.md §6: every admin handler and user callback runs
// on the goroutine calling Poll, never on a background goroutine, mirroring
// the teacher's single "poll" entry point in peer.go/protocol.go.
type Device struct {
	mu sync.Mutex

	name    string
	host    string
	ordinal *alloc.Resource
	port    *alloc.Resource

	store *graph.Store
	bus   *transport.Bus
	disp  *Dispatcher
	log   definition.Logger

	version      uint64
	status       types.DeviceStatus
	started      time.Time
	lastAnnounce time.Time
}

// NewDevice allocates a device named name on store, joining the admin bus
// at group:port and starting the ordinal/port collision resolution
// described in spec.md §4.C.
func NewDevice(name, host, group string, busPort, ttl int, store *graph.Store, log definition.Logger) (*Device, error) {
	bus, err := transport.NewBus(group, busPort, ttl, log)
	if err != nil {
		return nil, err
	}
	d := &Device{
		name:    name,
		host:    host,
		ordinal: alloc.NewOrdinalResource(),
		port:    alloc.NewPortResource(),
		store:   store,
		bus:     bus,
		log:     log,
		status:  types.DeviceCreated,
		started: time.Now(),
	}
	d.disp = NewDispatcher(d.Name, store, bus, log)
	d.disp.OnOrdinalCollision = func() { d.CollideOrdinal(time.Now()) }
	d.disp.OnPortCollision = func() { d.CollidePort(time.Now()) }
	d.disp.SelfPort = func() int { return int(d.port.Value()) }
	d.disp.SelfHost = func() string { return d.host }
	if err := d.bus.Send(BuildWho()); err != nil && log != nil {
		log.Warnf("failed sending initial /who probe: %v", err)
	}
	d.status = types.DeviceAnnouncing
	return d, nil
}

// Name returns the device's current (possibly still-tentative) name.ordinal.
func (d *Device) Name() types.DeviceName {
	d.mu.Lock()
	defer d.mu.Unlock()
	return types.DeviceName{Name: d.name, Ordinal: int(d.ordinal.Value())}
}

// Status reports the device's current lifecycle state.
func (d *Device) Status() types.DeviceStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Port returns the device's current (possibly still-tentative) data-plane
// port, allocated the same way as the ordinal (spec.md §4.C).
func (d *Device) Port() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int(d.port.Value())
}

// LockPort overrides the negotiated port candidate with an already-bound
// value, skipping collision probation entirely. Used when the caller opened
// the real data-plane socket itself and needs the admin bus to advertise
// that exact port rather than a separately negotiated placeholder.
func (d *Device) LockPort(port int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.port = alloc.NewFixedResource(uint64(port))
}

// Poll drains up to blockMs worth of admin traffic, handles liveness
// expiry, and re-announces if the probation window has elapsed, returning
// the number of admin events handled (spec.md §6's device.poll(block_ms)).
func (d *Device) Poll(blockMs int) int {
	now := time.Now()

	d.mu.Lock()
	wasReady := d.status == types.DeviceReady
	d.ordinal.Tick(now)
	d.port.Tick(now)
	if !wasReady && d.ordinal.Locked() && d.port.Locked() {
		d.status = types.DeviceReady
		d.store.UpsertDevice(&types.Device{
			Name:      types.DeviceName{Name: d.name, Ordinal: int(d.ordinal.Value())},
			Host:      d.host,
			Port:      int(d.port.Value()),
			Status:    types.DeviceReady,
			Version:   d.version,
			LastHeard: now,
		})
	}
	var candidate *types.Device
	if d.status != types.DeviceReady && (!d.ordinal.Locked() || !d.port.Locked()) {
		candidate = &types.Device{
			Name: types.DeviceName{Name: d.name, Ordinal: int(d.ordinal.Value())},
			Host: d.host,
			Port: int(d.port.Value()),
		}
	}
	dueToAnnounce := d.status == types.DeviceReady && now.Sub(d.lastAnnounce) >= AnnouncePeriod
	if dueToAnnounce {
		d.lastAnnounce = now
	}
	d.mu.Unlock()

	// While probation is open, keep (re-)announcing the tentative
	// name.ordinal/port candidate so any peer already holding it can reply
	// with a collision (spec.md §4.C) - without this a same-named device
	// only ever learns about a conflict via the post-ready "/device" path,
	// which never fires for two devices that both lock in the same window.
	if candidate != nil {
		if err := d.bus.Send(BuildDevice(candidate)); err != nil && d.log != nil {
			d.log.Warnf("failed announcing probation candidate: %v", err)
		}
	}

	if dueToAnnounce {
		if err := d.Announce(); err != nil && d.log != nil {
			d.log.Warnf("periodic announce failed: %v", err)
		}
	}

	handled := transport.Poll(d.bus, blockMs, d.disp.Handle)
	d.store.ExpireStale(now)
	return handled
}

// Announce sends the device's current presence + liveness heartbeat,
// called periodically by the caller's poll loop once the device is ready.
func (d *Device) Announce() error {
	d.mu.Lock()
	self, ok := d.store.Device(types.DeviceName{Name: d.name, Ordinal: int(d.ordinal.Value())})
	d.mu.Unlock()
	if !ok {
		return nil
	}
	if err := d.bus.Send(BuildDevice(self)); err != nil {
		return err
	}
	return d.bus.Send(BuildSync(self.Name, self.Version))
}

// AnnounceSignal broadcasts a newly-created or changed local signal's
// schema on the admin bus (spec.md §4.E's "/signal").
func (d *Device) AnnounceSignal(sig *types.Signal) error {
	return d.bus.Send(BuildSignal(sig))
}

// AnnounceSignalRemoved broadcasts that a local signal has been freed.
func (d *Device) AnnounceSignalRemoved(name string) error {
	return d.bus.Send(BuildSignalRemoved(d.Name(), name))
}

// AnnounceMap broadcasts a staged map request on the admin bus so the
// destination (or source, if process_location=dst) device can resolve and
// reply "/mapped" (spec.md §4.E).
func (d *Device) AnnounceMap(m *types.MapSpec) error {
	return d.bus.Send(BuildMap(m))
}

// AnnounceUnmap broadcasts an explicit map teardown.
func (d *Device) AnnounceUnmap(id types.ID) error {
	return d.bus.Send(BuildUnmap(id))
}

// CollideOrdinal and CollidePort are called when another peer announces a
// conflicting candidate during probation (spec.md §4.C).
func (d *Device) CollideOrdinal(now time.Time) { d.ordinal.Collide(now) }
func (d *Device) CollidePort(now time.Time)    { d.port.Collide(now) }

// Free tears the device down, leaving the admin bus and releasing its
// graph entry.
func (d *Device) Free() {
	d.mu.Lock()
	d.status = types.DeviceFreed
	name := types.DeviceName{Name: d.name, Ordinal: int(d.ordinal.Value())}
	d.mu.Unlock()
	d.store.RemoveDevice(name)
	d.bus.Close()
}
