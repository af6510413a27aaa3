package core

import (
	"testing"

	"github.com/jabolina/go-sigmap/pkg/sigmap/graph"
	"github.com/jabolina/go-sigmap/pkg/sigmap/osc"
	"github.com/jabolina/go-sigmap/pkg/sigmap/transport"
	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

func TestDispatcherOnDeviceUpsertsGraph(t *testing.T) {
	store := graph.NewStore()
	self := types.DeviceName{Name: "local", Ordinal: 1}
	d := NewDispatcher(func() types.DeviceName { return self }, store, nil, nil)

	remote := &types.Device{Name: types.DeviceName{Name: "remote", Ordinal: 1}, Host: "10.0.0.1", Port: 9100}
	d.Handle(transport.Incoming{Message: BuildDevice(remote)})

	got, ok := store.Device(remote.Name)
	if !ok || got.Host != remote.Host || got.Port != remote.Port {
		t.Fatalf("expected remote device in graph, got %+v ok=%v", got, ok)
	}
}

func TestDispatcherOrdinalCollisionCallback(t *testing.T) {
	store := graph.NewStore()
	self := types.DeviceName{Name: "local", Ordinal: 1}
	store.UpsertDevice(&types.Device{Name: self, Host: "10.0.0.5", Port: 9000})

	d := NewDispatcher(func() types.DeviceName { return self }, store, nil, nil)
	fired := false
	d.OnOrdinalCollision = func() { fired = true }

	conflicting := &types.Device{Name: self, Host: "10.0.0.9", Port: 9500}
	d.Handle(transport.Incoming{Message: BuildDevice(conflicting)})

	if !fired {
		t.Fatalf("expected ordinal collision callback to fire")
	}
	// the graph entry must not be overwritten by the conflicting announcement
	got, _ := store.Device(self)
	if got.Host != "10.0.0.5" {
		t.Fatalf("local device entry was overwritten by colliding peer: %+v", got)
	}
}

func TestDispatcherMapBecomesReadyAndGraphReflectsIt(t *testing.T) {
	store := graph.NewStore()
	store.UpsertSignal(&types.Signal{ID: 1, Device: types.DeviceName{Name: "a", Ordinal: 1}, Name: "x", ValueType: types.TypeFloat32, Length: 1})
	store.UpsertSignal(&types.Signal{ID: 2, Device: types.DeviceName{Name: "b", Ordinal: 1}, Name: "y", ValueType: types.TypeFloat32, Length: 1})

	d := NewDispatcher(func() types.DeviceName { return types.DeviceName{Name: "a", Ordinal: 1} }, store, nil, nil)
	spec := &types.MapSpec{
		Sources:    []types.SignalRef{mkRef("a", 1, "x")},
		Dest:       mkRef("b", 1, "y"),
		Expression: "y=x+1",
	}
	d.Handle(transport.Incoming{Message: BuildMap(spec)})

	maps := store.Maps(nil)
	if len(maps) != 1 {
		t.Fatalf("expected 1 map in graph, got %d", len(maps))
	}
	if maps[0].Status != types.MapReady {
		t.Fatalf("expected map to become ready, got %v", maps[0].Status)
	}
}

func TestDispatcherUnmapRemovesFromGraph(t *testing.T) {
	store := graph.NewStore()
	store.UpsertMap(&types.MapSpec{ID: 7, Status: types.MapActive})

	d := NewDispatcher(func() types.DeviceName { return types.DeviceName{Name: "a", Ordinal: 1} }, store, nil, nil)
	d.Handle(transport.Incoming{Message: BuildUnmap(7)})

	if _, ok := store.Map(7); ok {
		t.Fatalf("expected map 7 to be removed")
	}
}

func TestDispatcherIgnoresUnknownAddress(t *testing.T) {
	store := graph.NewStore()
	d := NewDispatcher(func() types.DeviceName { return types.DeviceName{Name: "a", Ordinal: 1} }, store, nil, nil)
	d.Handle(transport.Incoming{Message: osc.Message{Address: "/nonsense"}})
	// no panic, nothing mutated - this is a smoke test for the default branch
}
