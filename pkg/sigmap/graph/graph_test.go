package graph

import (
	"testing"
	"time"

	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

func dname(n string, ord int) types.DeviceName {
	return types.DeviceName{Name: n, Ordinal: ord}
}

func TestUpsertDeviceEmitsAddedThenModified(t *testing.T) {
	s := NewStore()
	var kinds []EventKind
	s.Subscribe(func(ev Event) {
		if ev.Entity == EntityDevice {
			kinds = append(kinds, ev.Kind)
		}
	})

	d := &types.Device{Name: dname("foo", 1), Version: 1}
	s.UpsertDevice(d)
	d2 := &types.Device{Name: dname("foo", 1), Version: 1}
	s.UpsertDevice(d2)

	if len(kinds) != 2 || kinds[0] != EventAdded || kinds[1] != EventModified {
		t.Fatalf("unexpected event sequence: %v", kinds)
	}
}

func TestRemoveDeviceCascades(t *testing.T) {
	s := NewStore()
	dn := dname("foo", 1)
	s.UpsertDevice(&types.Device{Name: dn, Version: 1})
	sig := &types.Signal{ID: 1, Device: dn, Name: "x"}
	s.UpsertSignal(sig)
	m := &types.MapSpec{ID: 1, Dest: types.SignalRef{Device: dn, Path: "x"}}
	s.UpsertMap(m)

	var events []Event
	s.Subscribe(func(ev Event) { events = append(events, ev) })

	s.RemoveDevice(dn)

	if _, ok := s.Device(dn); ok {
		t.Fatalf("device still present after removal")
	}
	if _, ok := s.Signal(1); ok {
		t.Fatalf("signal still present after cascade")
	}
	if _, ok := s.Map(1); ok {
		t.Fatalf("map still present after cascade")
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 cascade events, got %d", len(events))
	}
	for _, ev := range events {
		if ev.Kind != EventRemoved {
			t.Fatalf("expected EventRemoved, got %v", ev.Kind)
		}
	}
}

func TestExpireStaleEmitsExpiredNotRemoved(t *testing.T) {
	s := NewStore()
	dn := dname("foo", 1)
	now := time.Now()
	s.UpsertDevice(&types.Device{Name: dn, Version: 1, LastHeard: now.Add(-ExpiryTimeout - time.Second)})

	var kind EventKind
	var got bool
	s.Subscribe(func(ev Event) {
		if ev.Entity == EntityDevice {
			kind = ev.Kind
			got = true
		}
	})

	s.ExpireStale(now)

	if !got {
		t.Fatalf("expected device expiry event")
	}
	if kind != EventExpired {
		t.Fatalf("expected EventExpired, got %v", kind)
	}
	if _, ok := s.Device(dn); ok {
		t.Fatalf("stale device not removed")
	}
}

func TestExpireStaleSkipsLiveDevices(t *testing.T) {
	s := NewStore()
	dn := dname("foo", 1)
	now := time.Now()
	s.UpsertDevice(&types.Device{Name: dn, Version: 1, LastHeard: now})

	s.ExpireStale(now.Add(ExpiryTimeout - time.Second))

	if _, ok := s.Device(dn); !ok {
		t.Fatalf("live device incorrectly expired")
	}
}

func TestSignalsFilterByPredicate(t *testing.T) {
	s := NewStore()
	dn := dname("foo", 1)
	s.UpsertSignal(&types.Signal{ID: 1, Device: dn, Name: "x", Direction: types.DirOutput})
	s.UpsertSignal(&types.Signal{ID: 2, Device: dn, Name: "y", Direction: types.DirInput})

	outs := s.Signals(func(sig *types.Signal) bool { return sig.Direction == types.DirOutput })
	if len(outs) != 1 || outs[0].Name != "x" {
		t.Fatalf("expected 1 output signal named x, got %v", outs)
	}
}

func TestCompareOps(t *testing.T) {
	cases := []struct {
		op   Op
		a, b float64
		want bool
	}{
		{OpEqual, 1, 1, true},
		{OpEqual, 1, 2, false},
		{OpNotEqual, 1, 2, true},
		{OpGreater, 2, 1, true},
		{OpGreaterEqual, 1, 1, true},
		{OpLess, 1, 2, true},
		{OpLessEqual, 2, 2, true},
	}
	for _, c := range cases {
		if got := Compare(c.op, c.a, c.b); got != c.want {
			t.Errorf("Compare(%v, %v, %v) = %v, want %v", c.op, c.a, c.b, got, c.want)
		}
	}
}

func TestQuantifyAllAnyNone(t *testing.T) {
	if !Quantify(QuantAll, []bool{true, true}) {
		t.Fatalf("QuantAll should hold when all true")
	}
	if Quantify(QuantAll, []bool{true, false}) {
		t.Fatalf("QuantAll should fail when one false")
	}
	if !Quantify(QuantAny, []bool{false, true}) {
		t.Fatalf("QuantAny should hold when any true")
	}
	if !Quantify(QuantNone, []bool{false, false}) {
		t.Fatalf("QuantNone should hold when none true")
	}
	if Quantify(QuantNone, []bool{false, true}) {
		t.Fatalf("QuantNone should fail when any true")
	}
}

// TestQuerySignalsByMinProperty exercises the Op/Quantifier filter plumbing
// against a real graph query: signals whose Min[0] exceeds a threshold.
func TestQuerySignalsByMinProperty(t *testing.T) {
	s := NewStore()
	dn := dname("foo", 1)
	s.UpsertSignal(&types.Signal{ID: 1, Device: dn, Name: "a", HasMin: true, Min: []float64{5}})
	s.UpsertSignal(&types.Signal{ID: 2, Device: dn, Name: "b", HasMin: true, Min: []float64{0}})

	matches := s.Signals(func(sig *types.Signal) bool {
		if !sig.HasMin || len(sig.Min) == 0 {
			return false
		}
		return Compare(OpGreater, sig.Min[0], 1)
	})
	if len(matches) != 1 || matches[0].Name != "a" {
		t.Fatalf("expected only signal a to match, got %v", matches)
	}
}
