// Package types holds the wire- and graph-level data model shared by every
// component of the signal mapping runtime: devices, signals, instances, maps,
// and the compiled expression program attached to a map. Nothing in this
// package depends on transport, the graph cache, or the expression engine -
// it is pure data, following the teacher's pkg/mcast/types split.
package types

import (
	"fmt"
	"time"
)

// Direction is whether a signal is driven locally (output) or receives
// updates from maps (input).
type Direction int

const (
	DirUndefined Direction = iota
	DirInput
	DirOutput
)

func (d Direction) String() string {
	switch d {
	case DirInput:
		return "input"
	case DirOutput:
		return "output"
	default:
		return "undefined"
	}
}

// ValueType is the element type carried by a signal or expression value.
// The ordering int32 < float32 < float64 is load-bearing: the expression
// compiler's type-promotion rule picks the operand with the largest ValueType.
type ValueType int

const (
	TypeUndefined ValueType = iota
	TypeInt32
	TypeFloat32
	TypeFloat64
)

func (t ValueType) String() string {
	switch t {
	case TypeInt32:
		return "int32"
	case TypeFloat32:
		return "float32"
	case TypeFloat64:
		return "float64"
	default:
		return "undefined"
	}
}

// Wider reports whether t is strictly wider than other under the
// double > float > int promotion order from spec.md §4.G.1.
func (t ValueType) Wider(other ValueType) bool {
	return t > other
}

// Protocol is the wire transport a map's data plane uses.
type Protocol int

const (
	ProtoUndefined Protocol = iota
	ProtoUDP
	ProtoTCP
)

func (p Protocol) String() string {
	switch p {
	case ProtoUDP:
		return "udp"
	case ProtoTCP:
		return "tcp"
	default:
		return "undefined"
	}
}

// ProcessLocation names where a map's expression is evaluated.
type ProcessLocation int

const (
	ProcessUndefined ProcessLocation = iota
	ProcessSrc
	ProcessDst
)

// StealMode names the policy applied when an incoming instance id arrives
// with no free local instance slot.
type StealMode int

const (
	StealNone StealMode = iota
	StealOldest
	StealNewest
)

// MapStatus is the map lifecycle state from spec.md §4.E, rendered as an
// ordered int rather than libmapper's combinable C bitmask (see DESIGN.md).
type MapStatus int

const (
	MapStaged MapStatus = iota
	MapReady
	MapActive
	MapExpired
)

func (s MapStatus) String() string {
	switch s {
	case MapStaged:
		return "staged"
	case MapReady:
		return "ready"
	case MapActive:
		return "active"
	case MapExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// DeviceStatus is the device lifecycle from spec.md §3.
type DeviceStatus int

const (
	DeviceCreated DeviceStatus = iota
	DeviceAnnouncing
	DeviceReady
	DeviceFreed
)

// InstanceStatus is the lifecycle of a single signal instance slot.
type InstanceStatus int

const (
	InstanceReserved InstanceStatus = iota
	InstanceActive
	InstanceExpired
)

// ID is a 64-bit identifier. Maps and devices use it; libmapper calls the
// same concept mpr_id.
type ID uint64

// DeviceName is the stable "name.ordinal" pair that makes a device unique
// on the bus.
type DeviceName struct {
	Name    string
	Ordinal int
}

func (d DeviceName) String() string {
	return fmt.Sprintf("%s.%d", d.Name, d.Ordinal)
}

// Device is the process-local record of a participant on the admin bus.
type Device struct {
	ID       ID
	Name     DeviceName
	Host     string
	Port     int
	Status   DeviceStatus
	Version  uint64
	LastHeard time.Time
}

// Owner identifies whether an instance slot is claimed by the local device
// or by a remote peer.
type Owner struct {
	Local  bool
	Device DeviceName
}

// Instance is one voice of a signal.
type Instance struct {
	ID         uint64
	Status     InstanceStatus
	Value      []float64
	ValueType  ValueType
	Timestamp  time.Time
	Owner      Owner
}

// Signal is a typed, possibly vector-valued, possibly multi-instance data
// point owned by exactly one device (spec.md §3).
type Signal struct {
	ID         ID
	Device     DeviceName
	Name       string
	Direction  Direction
	ValueType  ValueType
	Length     int
	Unit       string
	Min, Max   []float64
	HasMin     bool
	HasMax     bool
	NumInst    int
	Ephemeral  bool
	Tags       []string
	Instances  map[uint64]*Instance
	Version    uint64
}

// FullPath is the OSC address used on the data plane for this signal.
func (s *Signal) FullPath() string {
	return fmt.Sprintf("/%s/%s", s.Device, s.Name)
}

// MapSpec is the directed transformation from N>=1 sources to one
// destination signal (spec.md §3).
type MapSpec struct {
	ID         ID
	Sources    []SignalRef
	Dest       SignalRef
	Expression string
	Process    ProcessLocation
	Protocol   Protocol
	Scope      map[DeviceName]bool
	Status     MapStatus
	Muted      bool
	Steal      StealMode
	UseInst    bool
	Program    *Program
	Version    uint64
}

// SignalRef names a signal by its owning device and path, used until the
// map can be resolved against the graph.
type SignalRef struct {
	Device DeviceName
	Path   string
}

func (r SignalRef) String() string {
	return fmt.Sprintf("/%s/%s", r.Device, r.Path)
}

// InScope reports whether the given device is permitted to originate
// instance lifecycle events for this map.
func (m *MapSpec) InScope(d DeviceName) bool {
	if len(m.Scope) == 0 {
		return true
	}
	return m.Scope[d]
}
