package sigmap

import (
	"time"

	"github.com/jabolina/go-sigmap/pkg/sigmap/runtime"
	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

// SignalConfig collects signal.new's optional properties (spec.md §6:
// "unit?, min?, max?, instances?").
type SignalConfig struct {
	Unit      string
	Min, Max  []float64
	Instances int
	Ephemeral bool
	Tags      []string
}

// Signal is the public handle for one typed, possibly vector-valued,
// possibly multi-instance data point a Device originates or consumes
// (spec.md §6's signal.new/set_value/release_instance).
type Signal struct {
	dev   *Device
	model *types.Signal
	pool  *runtime.InstancePool
}

func newSignal(dev *Device, model *types.Signal) *Signal {
	capacity := model.NumInst
	if capacity < 1 {
		capacity = 1
	}
	return &Signal{
		dev:   dev,
		model: model,
		pool:  runtime.NewInstancePool(capacity, types.StealNone, nil),
	}
}

// Ref returns the stable device+path reference other devices use to name
// this signal as a map source or destination.
func (s *Signal) Ref() types.SignalRef {
	return types.SignalRef{Device: s.model.Device, Path: s.model.Name}
}

func (s *Signal) Name() string              { return s.model.Name }
func (s *Signal) Direction() types.Direction { return s.model.Direction }
func (s *Signal) ValueType() types.ValueType { return s.model.ValueType }
func (s *Signal) Length() int                { return s.model.Length }
func (s *Signal) NumInstances() int          { return s.model.NumInst }

// SetValue pushes a new sample for instance, fanning it out to every
// locally-evaluated map sourced from this signal (spec.md §4.I steps 1-4).
// instance is ignored for signals created with a single instance. A zero
// time.Time defaults to time.Now.
func (s *Signal) SetValue(instance uint64, value []float64, t time.Time) error {
	if t.IsZero() {
		t = time.Now()
	}
	if s.model.NumInst <= 1 {
		instance = 0
	}
	if _, ok := s.pool.Acquire(instance, t); !ok {
		return types.NewError(types.KindSchemaMismatch, "sigmap.Signal.SetValue: instance pool full", nil)
	}
	s.pool.Update(instance, value, t)
	return s.dev.fanOut(s, value, t)
}

// Value returns the last value recorded for instance, if any.
func (s *Signal) Value(instance uint64) ([]float64, bool) {
	inst, ok := s.pool.Get(instance)
	if !ok {
		return nil, false
	}
	return inst.Value, true
}

// ReleaseInstance frees instance's slot - called on an ephemeral instance's
// source-release, or explicitly by the destination (spec.md §4.I).
func (s *Signal) ReleaseInstance(instance uint64) {
	s.pool.Release(instance)
}

// receive stores an inbound data-plane sample (this device is a map's
// destination) into the signal's first instance slot. Per-instance
// addressing on the wire is out of scope (see DESIGN.md).
func (s *Signal) receive(value []float64, t time.Time) {
	s.pool.Acquire(0, t)
	s.pool.Update(0, value, t)
}
