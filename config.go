package sigmap

import (
	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

// DeviceConfig is the configuration recognized on device construction
// (spec.md §6: "{port: preferred UDP port, interface: network interface
// name}"), generalized with the admin bus rendezvous so a test or a second
// device on the same host can run its own isolated group.
type DeviceConfig struct {
	Name      string
	Host      string
	Port      int // preferred data-plane port; 0 lets the OS choose
	Interface string

	Group   string // admin multicast group, defaults to transport.DefaultGroup
	BusPort int    // admin multicast port, defaults to transport.DefaultPort
	TTL     int    // multicast hop limit, defaults to 1 (local subnet only)
}

// DefaultDeviceConfig returns the configuration a device.new(name) call uses
// when the caller supplies nothing else.
func DefaultDeviceConfig(name string) DeviceConfig {
	return DeviceConfig{
		Name: name,
		Host: "127.0.0.1",
		TTL:  1,
	}
}

func (c DeviceConfig) ttl() int {
	if c.TTL <= 0 {
		return 1
	}
	return c.TTL
}

// GraphConfig is the configuration recognized on graph construction
// (spec.md §6: "On graph: {interface, subscription_mask}").
type GraphConfig struct {
	Interface        string
	SubscriptionMask string

	Group   string
	BusPort int
	TTL     int
}

// DefaultGraphConfig returns the configuration a graph.new(mask) call uses
// when the caller does not override the admin bus rendezvous.
func DefaultGraphConfig() GraphConfig {
	return GraphConfig{TTL: 1}
}

func (c GraphConfig) ttl() int {
	if c.TTL <= 0 {
		return 1
	}
	return c.TTL
}

// MapConfig is the configuration recognized on map construction (spec.md
// §6: "{expression, protocol, process_location, scope, muted, steal_mode,
// use_instances}").
type MapConfig struct {
	Expression   string
	Protocol     types.Protocol
	Process      types.ProcessLocation
	Scope        []types.DeviceName
	Muted        bool
	Steal        types.StealMode
	UseInstances bool
}

// DefaultMapConfig returns the configuration a map.new(sources, dst) call
// uses when the caller does not set individual properties (spec.md §4.E:
// source-side evaluation, UDP transport, no instance stealing).
func DefaultMapConfig() MapConfig {
	return MapConfig{
		Protocol: types.ProtoUDP,
		Process:  types.ProcessSrc,
		Steal:    types.StealNone,
	}
}
