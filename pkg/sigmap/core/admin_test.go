package core

import (
	"testing"

	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

func TestDeviceRoundTrip(t *testing.T) {
	d := &types.Device{
		Name: types.DeviceName{Name: "synth", Ordinal: 1},
		Host: "192.168.1.5",
		Port: 9001,
	}
	msg := BuildDevice(d)
	if msg.Address != AddrDevice {
		t.Fatalf("unexpected address %q", msg.Address)
	}
	got, ok := ParseDevice(msg)
	if !ok {
		t.Fatalf("ParseDevice failed")
	}
	if got.Name != d.Name || got.Host != d.Host || got.Port != d.Port {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
}

func TestSyncRoundTrip(t *testing.T) {
	name := types.DeviceName{Name: "synth", Ordinal: 2}
	msg := BuildSync(name, 42)
	gotName, gotVersion, ok := ParseSync(msg)
	if !ok || gotName != name || gotVersion != 42 {
		t.Fatalf("sync roundtrip failed: %v %v %v", gotName, gotVersion, ok)
	}
}

func TestSignalRoundTrip(t *testing.T) {
	sig := &types.Signal{
		Device:    types.DeviceName{Name: "synth", Ordinal: 1},
		Name:      "freq",
		Direction: types.DirOutput,
		ValueType: types.TypeFloat32,
		Length:    1,
		Unit:      "Hz",
		NumInst:   1,
	}
	msg := BuildSignal(sig)
	got, ok := ParseSignal(msg)
	if !ok {
		t.Fatalf("ParseSignal failed")
	}
	if got.Device != sig.Device || got.Name != sig.Name || got.Direction != sig.Direction ||
		got.ValueType != sig.ValueType || got.Length != sig.Length || got.Unit != sig.Unit {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
}

func TestMapRoundTrip(t *testing.T) {
	m := &types.MapSpec{
		Sources: []types.SignalRef{
			{Device: types.DeviceName{Name: "a", Ordinal: 1}, Path: "x"},
		},
		Dest:       types.SignalRef{Device: types.DeviceName{Name: "b", Ordinal: 1}, Path: "y"},
		Expression: "y=x*2",
	}
	msg := BuildMap(m)
	sources, dest, expr, ok := ParseMap(msg)
	if !ok {
		t.Fatalf("ParseMap failed")
	}
	if len(sources) != 1 || sources[0] != m.Sources[0] || dest != m.Dest || expr != m.Expression {
		t.Fatalf("roundtrip mismatch: sources=%v dest=%v expr=%q", sources, dest, expr)
	}
}

func TestUnmapRoundTrip(t *testing.T) {
	msg := BuildUnmap(types.ID(99))
	id, ok := ParseUnmap(msg)
	if !ok || id != 99 {
		t.Fatalf("unmap roundtrip failed: %v %v", id, ok)
	}
}

func TestCompatibleVersion(t *testing.T) {
	if !CompatibleVersion("1.2.3") {
		t.Fatalf("expected 1.x to be compatible with local version")
	}
	if CompatibleVersion("2.0.0") {
		t.Fatalf("expected 2.x to be incompatible")
	}
	if CompatibleVersion("not-a-version") {
		t.Fatalf("expected malformed version string to be rejected")
	}
}
