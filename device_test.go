package sigmap

import (
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/jabolina/go-sigmap/pkg/sigmap/sigtest"
	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

func newTestDevice(t *testing.T, name string, group string, busPort int) *Device {
	t.Helper()
	cfg := DefaultDeviceConfig(name)
	cfg.Group = group
	cfg.BusPort = busPort
	dev, err := NewDevice(cfg, nil)
	if err != nil {
		t.Fatalf("NewDevice(%s): %v", name, err)
	}
	t.Cleanup(dev.Free)
	return dev
}

func pollUntilReady(t *testing.T, devs ...*Device) {
	t.Helper()
	sigtest.WaitUntil(t, 5*time.Second, 25*time.Millisecond, func() bool {
		ready := true
		for _, d := range devs {
			d.Poll(10)
			if d.Status() != types.DeviceReady {
				ready = false
			}
		}
		return ready
	})
}

func pollUntil(t *testing.T, devs []*Device, cond func() bool) {
	t.Helper()
	sigtest.WaitUntil(t, 5*time.Second, 25*time.Millisecond, func() bool {
		for _, d := range devs {
			d.Poll(10)
		}
		return cond()
	})
}

// TestEndToEndMapDeliversEvaluatedValue exercises spec.md §4.I's full source
// → map → destination path over real loopback UDP sockets: two independent
// Devices discover each other on a shared admin bus, a map with a simple
// linear expression is created, and a source update arrives at the
// destination already transformed.
func TestEndToEndMapDeliversEvaluatedValue(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	group := sigtest.LoopbackGroup
	busPort := sigtest.RandomBusPort()

	src := newTestDevice(t, "tsrc", group, busPort)
	dst := newTestDevice(t, "tdst", group, busPort)
	pollUntilReady(t, src, dst)

	outSig, err := src.NewSignal("x", types.DirOutput, types.TypeFloat32, 1, SignalConfig{})
	if err != nil {
		t.Fatalf("src.NewSignal: %v", err)
	}
	inSig, err := dst.NewSignal("y", types.DirInput, types.TypeFloat32, 1, SignalConfig{})
	if err != nil {
		t.Fatalf("dst.NewSignal: %v", err)
	}

	pollUntil(t, []*Device{src, dst}, func() bool {
		return len(src.Graph().Signals()) >= 2 && len(dst.Graph().Signals()) >= 2
	})

	m, err := src.NewMap([]types.SignalRef{outSig.Ref()}, inSig.Ref(), MapConfig{
		Expression: "y=x*2",
		Protocol:   types.ProtoUDP,
		Process:    types.ProcessSrc,
		Steal:      types.StealNone,
	})
	if err != nil {
		t.Fatalf("src.NewMap: %v", err)
	}

	pollUntil(t, []*Device{src, dst}, func() bool {
		return m.IsReady()
	})
	if !m.IsReady() {
		t.Fatalf("map never became ready: status=%v", m.Status())
	}

	if err := outSig.SetValue(0, []float64{21}, time.Now()); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	pollUntil(t, []*Device{src, dst}, func() bool {
		v, ok := inSig.Value(0)
		return ok && len(v) == 1 && v[0] == 42
	})

	v, ok := inSig.Value(0)
	if !ok || len(v) != 1 || v[0] != 42 {
		t.Fatalf("expected destination value [42], got %v ok=%v", v, ok)
	}
}

// TestMapMuteSuppressesDelivery verifies that a muted map evaluates nothing
// on new source data (spec.md §6's map.set_prop("muted", true)).
func TestMapMuteSuppressesDelivery(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	group := sigtest.LoopbackGroup
	busPort := sigtest.RandomBusPort()

	src := newTestDevice(t, "msrc", group, busPort)
	dst := newTestDevice(t, "mdst", group, busPort)
	pollUntilReady(t, src, dst)

	outSig, _ := src.NewSignal("x", types.DirOutput, types.TypeFloat32, 1, SignalConfig{})
	inSig, _ := dst.NewSignal("y", types.DirInput, types.TypeFloat32, 1, SignalConfig{})

	pollUntil(t, []*Device{src, dst}, func() bool {
		return len(src.Graph().Signals()) >= 2 && len(dst.Graph().Signals()) >= 2
	})

	m, err := src.NewMap([]types.SignalRef{outSig.Ref()}, inSig.Ref(), MapConfig{
		Expression: "y=x+1",
		Protocol:   types.ProtoUDP,
	})
	if err != nil {
		t.Fatalf("src.NewMap: %v", err)
	}
	pollUntil(t, []*Device{src, dst}, func() bool { return m.IsReady() })

	m.SetMuted(true)
	if err := outSig.SetValue(0, []float64{5}, time.Now()); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	// give the dest device a few idle polls; no delivery should ever arrive
	for i := 0; i < 10; i++ {
		src.Poll(10)
		dst.Poll(10)
	}
	if _, ok := inSig.Value(0); ok {
		t.Fatalf("expected no delivery while map is muted")
	}
}
