package sigmap

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jabolina/go-sigmap/pkg/sigmap/core"
	"github.com/jabolina/go-sigmap/pkg/sigmap/definition"
	"github.com/jabolina/go-sigmap/pkg/sigmap/helper"
	"github.com/jabolina/go-sigmap/pkg/sigmap/osc"
	"github.com/jabolina/go-sigmap/pkg/sigmap/runtime"
	"github.com/jabolina/go-sigmap/pkg/sigmap/transport"
	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

// Device is the top-level handle a caller drives: it owns one core.Device
// (admin bus identity and ordinal/port negotiation), a data-plane Receiver
// bound to that device's real port, and every local Signal/Map created
// through it (spec.md §6's device.new/free/poll and the signal.new/map.new
// verbs hung off it).
type Device struct {
	mu sync.Mutex

	cfg  DeviceConfig
	core *core.Device
	recv *transport.Receiver
	log  definition.Logger
	mm   *core.MapMachine

	graph    *Graph
	ownGraph bool

	signals map[string]*Signal
	maps    map[types.ID]*Map

	pipelines     map[types.ID]*runtime.Pipeline
	pipelineLinks map[types.ID]*transport.Link
	links         map[string]*transport.Link

	metrics *runtime.Metrics
	batch   *queueBatch
}

// queueBatch holds the set of per-destination QueueWindows opened by
// QueueStart, so a single QueueSend can fan a tick out across several maps
// sharing one link (spec.md §5/§9's begin/set_value/end bundling).
type queueBatch struct {
	t       time.Time
	windows map[string]*transport.QueueWindow
}

// NewDevice creates the device named by cfg, joining the admin bus and
// binding a real data-plane socket whose port is then locked into the admin
// bus's advertised candidate (spec.md §4.C/§6). g may be nil, in which case
// the device opens and owns its own Graph; passing a shared Graph lets
// several devices in one process observe one cache, provided they are all
// polled from the same goroutine.
func NewDevice(cfg DeviceConfig, g *Graph) (*Device, error) {
	log := definition.NewDefaultLogger(cfg.Name)

	ownGraph := g == nil
	if ownGraph {
		g = newOwnedGraph()
	}

	recv, err := transport.NewReceiver(cfg.Port, log)
	if err != nil {
		if ownGraph {
			g.Free()
		}
		return nil, err
	}

	cd, err := core.NewDevice(cfg.Name, cfg.Host, cfg.Group, cfg.BusPort, cfg.ttl(), g.store, log)
	if err != nil {
		recv.Close()
		if ownGraph {
			g.Free()
		}
		return nil, err
	}
	cd.LockPort(recv.Port())

	d := &Device{
		cfg:           cfg,
		core:          cd,
		recv:          recv,
		log:           log,
		mm:            core.NewMapMachine(g.store),
		graph:         g,
		ownGraph:      ownGraph,
		signals:       make(map[string]*Signal),
		maps:          make(map[types.ID]*Map),
		pipelines:     make(map[types.ID]*runtime.Pipeline),
		pipelineLinks: make(map[types.ID]*transport.Link),
		links:         make(map[string]*transport.Link),
	}
	return d, nil
}

// Name returns the device's name.ordinal, which may still be provisional
// until the device becomes ready.
func (d *Device) Name() types.DeviceName { return d.core.Name() }

// Status reports the device's admin-bus lifecycle state.
func (d *Device) Status() types.DeviceStatus { return d.core.Status() }

// Graph returns the Graph backing this device's view of the bus, shared or
// private depending on how it was constructed.
func (d *Device) Graph() *Graph { return d.graph }

// UseMetrics makes this device record its per-map diagnostics counters
// into m (spec.md §7). Optional - a Device with no metrics registered simply skips
// recording them.
func (d *Device) UseMetrics(m *runtime.Metrics) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.metrics = m
}

// Poll drains admin and data-plane traffic for up to blockMs, resolving any
// newly-readied maps into live pipelines (spec.md §6's device.poll).
func (d *Device) Poll(blockMs int) int {
	half := blockMs / 2
	if half < 1 {
		half = 1
	}
	handled := d.core.Poll(half)
	handled += transport.Poll(d.recv, half, d.handleData)

	d.mu.Lock()
	pending := make([]*Map, 0, len(d.maps))
	for _, m := range d.maps {
		if m.spec.Status == types.MapStaged {
			pending = append(pending, m)
		}
	}
	d.mu.Unlock()
	for _, m := range pending {
		if err := d.mm.TryReady(m.spec); err == nil && m.spec.Status == types.MapReady {
			d.graph.store.UpsertMap(m.spec)
			d.pipelineFor(m.spec)
		}
	}
	return handled
}

// Free tears the device down: closes the data-plane receiver, every open
// link, and the admin bus, freeing the Graph too if this Device created it.
func (d *Device) Free() {
	d.mu.Lock()
	for _, l := range d.links {
		l.Close()
	}
	d.mu.Unlock()
	d.recv.Close()
	d.core.Free()
	if d.ownGraph {
		d.graph.Free()
	}
}

// NewSignal creates and announces a local signal (spec.md §6's
// signal.new(name, direction, type, length, cfg?)).
func (d *Device) NewSignal(name string, dir types.Direction, vt types.ValueType, length int, cfg SignalConfig) (*Signal, error) {
	if length < 1 {
		length = 1
	}
	if name == "" || strings.Contains(name, "//") || strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return nil, types.NewError(types.KindSchemaMismatch, "sigmap.Device.NewSignal: malformed signal path", nil)
	}
	model := &types.Signal{
		ID:        types.ID(helper.GenerateID64()),
		Device:    d.core.Name(),
		Name:      name,
		Direction: dir,
		ValueType: vt,
		Length:    length,
		Unit:      cfg.Unit,
		Min:       cfg.Min,
		Max:       cfg.Max,
		HasMin:    cfg.Min != nil,
		HasMax:    cfg.Max != nil,
		NumInst:   cfg.Instances,
		Ephemeral: cfg.Ephemeral,
		Tags:      cfg.Tags,
		Instances: make(map[uint64]*types.Instance),
	}
	if model.NumInst < 1 {
		model.NumInst = 1
	}

	sig := newSignal(d, model)

	d.mu.Lock()
	d.signals[name] = sig
	d.mu.Unlock()

	d.graph.store.UpsertSignal(model)
	return sig, d.core.AnnounceSignal(model)
}

// FreeSignal releases a local signal and announces its removal.
func (d *Device) FreeSignal(name string) error {
	d.mu.Lock()
	sig, ok := d.signals[name]
	if ok {
		delete(d.signals, name)
	}
	d.mu.Unlock()
	if !ok {
		return nil
	}
	d.graph.store.RemoveSignal(sig.model.ID)
	return d.core.AnnounceSignalRemoved(name)
}

func (d *Device) signalByRef(ref types.SignalRef) (*Signal, bool) {
	if ref.Device != d.core.Name() {
		return nil, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	sig, ok := d.signals[ref.Path]
	return sig, ok
}

// NewMap stages a map from sources to dest and attempts the staged→ready
// transition immediately, for the common case where every endpoint is
// already resolved in the local graph (spec.md §6's map.new(sources, dst,
// cfg?); §4.E's cross-process race resolution is handled by the admin
// dispatcher once /map/mapped round-trips).
func (d *Device) NewMap(sources []types.SignalRef, dest types.SignalRef, cfg MapConfig) (*Map, error) {
	spec := &types.MapSpec{
		ID:         types.ID(helper.GenerateID64()),
		Sources:    sources,
		Dest:       dest,
		Expression: cfg.Expression,
		Process:    cfg.Process,
		Protocol:   cfg.Protocol,
		Muted:      cfg.Muted,
		Steal:      cfg.Steal,
		UseInst:    cfg.UseInstances,
		Status:     types.MapStaged,
	}
	if len(cfg.Scope) > 0 {
		spec.Scope = make(map[types.DeviceName]bool, len(cfg.Scope))
		for _, s := range cfg.Scope {
			spec.Scope[s] = true
		}
	}

	m := &Map{dev: d, spec: spec}
	d.mu.Lock()
	d.maps[spec.ID] = m
	d.mu.Unlock()

	readyErr := d.mm.TryReady(spec)
	d.graph.store.UpsertMap(spec)
	if readyErr == nil && spec.Status == types.MapReady {
		d.pipelineFor(spec)
	}
	if err := d.core.AnnounceMap(spec); err != nil {
		return m, err
	}
	return m, nil
}

// pipelineFor lazily builds the Pipeline + Link serving spec once it is
// ready, called both right after a local map resolves and whenever Poll
// notices a previously-staged map has become ready.
func (d *Device) pipelineFor(spec *types.MapSpec) *runtime.Pipeline {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pipelines[spec.ID]; ok {
		return p
	}
	destDev, ok := d.graph.store.Device(spec.Dest.Device)
	if !ok {
		return nil
	}
	link, ok := d.links[destDev.Name.String()]
	if !ok {
		link = transport.NewLink(spec.Protocol, hostPort(destDev.Host, destDev.Port))
		d.links[destDev.Name.String()] = link
	}
	p := runtime.NewPipeline(spec, link, d.metrics)
	d.pipelines[spec.ID] = p
	d.pipelineLinks[spec.ID] = link
	return p
}

// fanOut hands sig's new value to every locally-resolved map sourced from
// it, evaluating each map's pipeline and emitting its result (spec.md §4.I
// steps 1-4). It is the counterpart of handleData for locally-originated
// updates.
func (d *Device) fanOut(sig *Signal, value []float64, t time.Time) error {
	ref := sig.Ref()
	d.mu.Lock()
	var affected []*Map
	for _, m := range d.maps {
		if m.spec.Status != types.MapReady && m.spec.Status != types.MapActive {
			continue
		}
		if m.spec.Muted {
			continue
		}
		for _, src := range m.spec.Sources {
			if src == ref {
				affected = append(affected, m)
				break
			}
		}
	}
	d.mu.Unlock()

	for _, m := range affected {
		idx := sourceIndex(m.spec, ref)
		if idx < 0 {
			continue
		}
		p := d.pipelineFor(m.spec)
		if p == nil {
			continue
		}
		if err := p.UpdateSource(idx, value, t, d.windowFor(m.spec)); err != nil {
			return err
		}
		d.mm.Activate(m.spec)
	}
	return nil
}

func sourceIndex(spec *types.MapSpec, ref types.SignalRef) int {
	for i, src := range spec.Sources {
		if src == ref {
			return i
		}
	}
	return -1
}

// windowFor returns the open QueueWindow for m's destination link, if a
// batch is currently open via QueueStart.
func (d *Device) windowFor(spec *types.MapSpec) *transport.QueueWindow {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.batch == nil {
		return nil
	}
	link, ok := d.pipelineLinks[spec.ID]
	if !ok {
		return nil
	}
	w, ok := d.batch.windows[spec.Dest.Device.String()]
	if !ok {
		w = transport.Begin(link, d.batch.t)
		d.batch.windows[spec.Dest.Device.String()] = w
	}
	return w
}

// QueueStart opens a bundling window for t: every map update produced by a
// SetValue call until the matching QueueSend is staged instead of sent
// immediately (spec.md §5/§9).
func (d *Device) QueueStart(t time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batch = &queueBatch{t: t, windows: make(map[string]*transport.QueueWindow)}
}

// QueueSend flushes every window opened since QueueStart: one coalesced
// bundle per destination device, or a bare message where only one was
// staged for that device.
func (d *Device) QueueSend() error {
	d.mu.Lock()
	b := d.batch
	d.batch = nil
	d.mu.Unlock()
	if b == nil {
		return nil
	}
	var firstErr error
	for _, w := range b.windows {
		if err := w.End(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// handleData routes one incoming data-plane packet to the local signal it
// targets, decoding its value vector and timestamp (spec.md §4.I's
// destination-side apply). Per-instance addressing is not carried on the
// wire (see DESIGN.md); every inbound update lands on instance 0.
func (d *Device) handleData(in transport.Incoming) {
	if in.IsBundle {
		for _, m := range in.Bundle.Messages {
			d.applyData(m)
		}
		return
	}
	d.applyData(in.Message)
}

func (d *Device) applyData(m osc.Message) {
	ref, ok := parseSignalAddress(m.Address)
	if !ok {
		return
	}
	sig, ok := d.signalByRef(ref)
	if !ok {
		return
	}
	value, ts, ok := runtime.ParseSet(m)
	if !ok {
		return
	}
	sig.receive(value, ts.Time())
}

// parseSignalAddress decodes a data-plane OSC address "/name.ordinal/path"
// back into the SignalRef it names.
func parseSignalAddress(addr string) (types.SignalRef, bool) {
	trimmed := strings.TrimPrefix(addr, "/")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 {
		return types.SignalRef{}, false
	}
	i := strings.LastIndexByte(parts[0], '.')
	if i < 0 {
		return types.SignalRef{}, false
	}
	ord, err := strconv.Atoi(parts[0][i+1:])
	if err != nil {
		return types.SignalRef{}, false
	}
	return types.SignalRef{
		Device: types.DeviceName{Name: parts[0][:i], Ordinal: ord},
		Path:   parts[1],
	}, true
}

func hostPort(host string, port int) string {
	return host + ":" + strconv.Itoa(port)
}
