package core

import (
	"strconv"
	"strings"

	"github.com/jabolina/go-sigmap/pkg/sigmap/osc"
	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

// The canonical admin-bus address set (spec.md §4.E). Every device on the
// bus must agree on these strings bit-for-bit.
const (
	AddrWho           = "/who"
	AddrDevice        = "/device"
	AddrSignal        = "/signal"
	AddrSignalRemoved = "/signal/removed"
	AddrMap           = "/map"
	AddrMapped        = "/mapped"
	AddrMapModify     = "/map/modify"
	AddrUnmap         = "/unmap"
	AddrUnmapped      = "/unmapped"
	AddrSubscribe     = "/subscribe"
	AddrSync          = "/sync"
)

func parseDeviceName(s string) (types.DeviceName, bool) {
	i := strings.LastIndexByte(s, '.')
	if i < 0 {
		return types.DeviceName{}, false
	}
	ord, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return types.DeviceName{}, false
	}
	return types.DeviceName{Name: s[:i], Ordinal: ord}, true
}

// BuildWho constructs the "/who" probe request.
func BuildWho() osc.Message {
	return osc.Message{Address: AddrWho}
}

// BuildDevice constructs "/device <name.ordinal> <host> <port>".
func BuildDevice(d *types.Device) osc.Message {
	return osc.Message{
		Address: AddrDevice,
		Args: []osc.Arg{
			osc.StringArg(d.Name.String()),
			osc.StringArg(d.Host),
			osc.Int32Arg(int32(d.Port)),
		},
	}
}

// ParseDevice decodes a "/device" announcement.
func ParseDevice(m osc.Message) (*types.Device, bool) {
	if len(m.Args) != 3 || m.Args[0].Type != osc.TypeString || m.Args[1].Type != osc.TypeString || m.Args[2].Type != osc.TypeInt32 {
		return nil, false
	}
	name, ok := parseDeviceName(m.Args[0].Str)
	if !ok {
		return nil, false
	}
	return &types.Device{
		Name:   name,
		Host:   m.Args[1].Str,
		Port:   int(m.Args[2].Int32),
		Status: types.DeviceReady,
	}, true
}

// BuildSync constructs "/sync <name.ordinal> <version>", the liveness
// heartbeat every device emits periodically.
func BuildSync(name types.DeviceName, version uint64) osc.Message {
	return osc.Message{
		Address: AddrSync,
		Args: []osc.Arg{
			osc.StringArg(name.String()),
			osc.Int64Arg(int64(version)),
		},
	}
}

// ParseSync decodes a "/sync" heartbeat into the device name and version it
// announces.
func ParseSync(m osc.Message) (types.DeviceName, uint64, bool) {
	if len(m.Args) != 2 || m.Args[0].Type != osc.TypeString || m.Args[1].Type != osc.TypeInt64 {
		return types.DeviceName{}, 0, false
	}
	name, ok := parseDeviceName(m.Args[0].Str)
	if !ok {
		return types.DeviceName{}, 0, false
	}
	return name, uint64(m.Args[1].Int64), true
}

// BuildSignal constructs a "/signal" schema announcement.
func BuildSignal(s *types.Signal) osc.Message {
	args := []osc.Arg{
		osc.StringArg(s.Device.String()),
		osc.StringArg(s.Name),
		osc.Int32Arg(int32(s.Direction)),
		osc.Int32Arg(int32(s.ValueType)),
		osc.Int32Arg(int32(s.Length)),
		osc.StringArg(s.Unit),
		osc.Int32Arg(int32(s.NumInst)),
	}
	return osc.Message{Address: AddrSignal, Args: args}
}

// ParseSignal decodes a "/signal" announcement.
func ParseSignal(m osc.Message) (*types.Signal, bool) {
	if len(m.Args) < 7 {
		return nil, false
	}
	if m.Args[0].Type != osc.TypeString || m.Args[1].Type != osc.TypeString {
		return nil, false
	}
	dev, ok := parseDeviceName(m.Args[0].Str)
	if !ok {
		return nil, false
	}
	return &types.Signal{
		Device:    dev,
		Name:      m.Args[1].Str,
		Direction: types.Direction(m.Args[2].Int32),
		ValueType: types.ValueType(m.Args[3].Int32),
		Length:    int(m.Args[4].Int32),
		Unit:      m.Args[5].Str,
		NumInst:   int(m.Args[6].Int32),
		Instances: make(map[uint64]*types.Instance),
	}, true
}

// BuildSignalRemoved constructs "/signal/removed <device.ordinal> <name>".
func BuildSignalRemoved(dev types.DeviceName, name string) osc.Message {
	return osc.Message{
		Address: AddrSignalRemoved,
		Args:    []osc.Arg{osc.StringArg(dev.String()), osc.StringArg(name)},
	}
}

// BuildMap constructs "/map <src…> -> <dst> [props]" - the sources, a
// literal arrow, then the destination path.
func BuildMap(m *types.MapSpec) osc.Message {
	var args []osc.Arg
	for _, src := range m.Sources {
		args = append(args, osc.StringArg(src.String()))
	}
	args = append(args, osc.StringArg("->"))
	args = append(args, osc.StringArg(m.Dest.String()))
	if m.Expression != "" {
		args = append(args, osc.StringArg("@expr"), osc.StringArg(m.Expression))
	}
	return osc.Message{Address: AddrMap, Args: args}
}

// ParseMap decodes "/map <src…> -> <dst> [@expr <text>]" into source refs,
// destination ref, and the expression text if present.
func ParseMap(m osc.Message) (sources []types.SignalRef, dest types.SignalRef, expr string, ok bool) {
	arrow := -1
	for i, a := range m.Args {
		if a.Type == osc.TypeString && a.Str == "->" {
			arrow = i
			break
		}
	}
	if arrow < 0 || arrow+1 >= len(m.Args) {
		return nil, types.SignalRef{}, "", false
	}
	for i := 0; i < arrow; i++ {
		ref, ok := parseSignalRef(m.Args[i].Str)
		if !ok {
			return nil, types.SignalRef{}, "", false
		}
		sources = append(sources, ref)
	}
	dest, ok = parseSignalRef(m.Args[arrow+1].Str)
	if !ok {
		return nil, types.SignalRef{}, "", false
	}
	for i := arrow + 2; i+1 < len(m.Args); i += 2 {
		if m.Args[i].Str == "@expr" {
			expr = m.Args[i+1].Str
		}
	}
	return sources, dest, expr, true
}

func parseSignalRef(s string) (types.SignalRef, bool) {
	s = strings.TrimPrefix(s, "/")
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return types.SignalRef{}, false
	}
	dev, ok := parseDeviceName(parts[0])
	if !ok {
		return types.SignalRef{}, false
	}
	return types.SignalRef{Device: dev, Path: parts[1]}, true
}

// BuildMapped constructs the "/mapped" establishment notification, the same
// shape as "/map" plus the winning map's id.
func BuildMapped(m *types.MapSpec) osc.Message {
	msg := BuildMap(m)
	msg.Address = AddrMapped
	msg.Args = append(msg.Args, osc.Int64Arg(int64(m.ID)))
	return msg
}

// BuildUnmap constructs "/unmap <id>".
func BuildUnmap(id types.ID) osc.Message {
	return osc.Message{Address: AddrUnmap, Args: []osc.Arg{osc.Int64Arg(int64(id))}}
}

// ParseUnmap decodes "/unmap <id>".
func ParseUnmap(m osc.Message) (types.ID, bool) {
	if len(m.Args) != 1 || m.Args[0].Type != osc.TypeInt64 {
		return 0, false
	}
	return types.ID(m.Args[0].Int64), true
}

// BuildUnmapped constructs "/unmapped <id>", the teardown acknowledgment.
func BuildUnmapped(id types.ID) osc.Message {
	return osc.Message{Address: AddrUnmapped, Args: []osc.Arg{osc.Int64Arg(int64(id))}}
}

// BuildSubscribe constructs "/subscribe <mask> <duration-seconds>".
func BuildSubscribe(mask string, durationSeconds int32) osc.Message {
	return osc.Message{
		Address: AddrSubscribe,
		Args:    []osc.Arg{osc.StringArg(mask), osc.Int32Arg(durationSeconds)},
	}
}
