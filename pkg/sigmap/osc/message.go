// Package osc implements Component A: an OSC-compatible wire codec. Messages
// carry an address string, a comma-prefixed type-tag string, and positionally
// packed arguments; bundles wrap several messages under one NTP timestamp.
// The codec is the bit-exact wire format spec.md §4.A and §6 require every
// conformant implementation to share.
package osc

import "time"

// ArgType is the OSC type tag for one positional argument.
type ArgType byte

const (
	TypeInt32   ArgType = 'i'
	TypeFloat32 ArgType = 'f'
	TypeFloat64 ArgType = 'd'
	TypeInt64   ArgType = 'h'
	TypeString  ArgType = 's'
	TypeBlob    ArgType = 'b'
	TypeTime    ArgType = 't'
)

// Arg is one decoded/encodable positional argument. Exactly one of the
// typed fields is meaningful, selected by Type - the same flat-struct
// convention used by types.Token, chosen for the same reason: a stack of
// heterogeneous wire arguments dispatched by a one-byte tag maps directly
// onto a switch, not an interface hierarchy.
type Arg struct {
	Type    ArgType
	Int32   int32
	Float32 float32
	Float64 float64
	Int64   int64
	Str     string
	Blob    []byte
	Time    NTPTime
}

func Int32Arg(v int32) Arg     { return Arg{Type: TypeInt32, Int32: v} }
func Float32Arg(v float32) Arg { return Arg{Type: TypeFloat32, Float32: v} }
func Float64Arg(v float64) Arg { return Arg{Type: TypeFloat64, Float64: v} }
func Int64Arg(v int64) Arg     { return Arg{Type: TypeInt64, Int64: v} }
func StringArg(v string) Arg   { return Arg{Type: TypeString, Str: v} }
func BlobArg(v []byte) Arg     { return Arg{Type: TypeBlob, Blob: v} }
func TimeArg(v NTPTime) Arg    { return Arg{Type: TypeTime, Time: v} }

// Message is one OSC message: an address pattern plus its arguments.
type Message struct {
	Address string
	Args    []Arg
}

// TypeTag renders the message's comma-prefixed type tag string, e.g. ",ifs".
func (m Message) TypeTag() string {
	tag := make([]byte, 0, len(m.Args)+1)
	tag = append(tag, ',')
	for _, a := range m.Args {
		tag = append(tag, byte(a.Type))
	}
	return string(tag)
}

// Bundle wraps one or more messages (or nested bundles) under a single NTP
// timestamp, per spec.md §4.A and the queue-window semantics of §5.
type Bundle struct {
	Timestamp NTPTime
	Messages  []Message
	Bundles   []Bundle
}

const ntpEpochOffset = 2208988800 // seconds between 1900-01-01 and 1970-01-01

// NTPTime is a 64-bit NTP-compatible timestamp: 32-bit seconds since 1900,
// 32-bit fractional seconds.
type NTPTime uint64

// Immediate is the reserved NTP value meaning "execute immediately", used
// when no explicit timestamp is supplied.
const Immediate NTPTime = 1

// NewNTPTime converts a wall-clock time.Time to its NTP representation.
func NewNTPTime(t time.Time) NTPTime {
	secs := uint64(t.Unix()+ntpEpochOffset) << 32
	frac := uint64(float64(t.Nanosecond()) * (1 << 32) / 1e9)
	return NTPTime(secs | frac)
}

// Time converts an NTPTime back to a wall-clock time.Time.
func (n NTPTime) Time() time.Time {
	secs := int64(n>>32) - ntpEpochOffset
	frac := uint64(n & 0xffffffff)
	nanos := int64(float64(frac) * 1e9 / (1 << 32))
	return time.Unix(secs, nanos).UTC()
}

// Sub returns n-other as a duration, used by expression evaluation's t_x/t_y
// accessors (spec.md §4.H).
func (n NTPTime) Sub(other NTPTime) time.Duration {
	return n.Time().Sub(other.Time())
}
