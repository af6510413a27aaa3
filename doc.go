// Package sigmap is the public entry point for the signal mapping runtime:
// devices publish and consume typed signals, and maps express how one
// device's output drives another's input through an optional expression.
//
// A minimal session looks like:
//
//	dev, _ := sigmap.NewDevice(sigmap.DefaultDeviceConfig("synth"), nil)
//	defer dev.Free()
//	out, _ := dev.NewSignal("frequency", types.DirOutput, types.TypeFloat32, 1, sigmap.SignalConfig{})
//	for {
//		dev.Poll(10)
//		out.SetValue(0, []float64{440}, time.Time{})
//	}
//
// NewGraph returns a Graph that observes the same admin-bus state without
// claiming a device identity, used for monitoring or tooling that only needs to list and
// filter what is on the bus.
package sigmap
