package osc

import (
	"encoding/binary"
	"math"

	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

// align4 returns n rounded up to the next multiple of 4, OSC's mandated
// alignment for strings and blobs (spec.md §4.A).
func align4(n int) int {
	return (n + 3) &^ 3
}

func errMalformed(op string) error {
	return types.NewError(types.KindMalformedPacket, op, nil)
}

// EncodeString writes s as a NUL-terminated, 4-byte-aligned OSC string.
func EncodeString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	buf = append(buf, 0)
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	return buf
}

// DecodeString reads a 4-byte-aligned NUL-terminated string starting at
// offset, returning the string and the offset of the next field.
func DecodeString(data []byte, offset int) (string, int, error) {
	if offset < 0 || offset >= len(data) {
		return "", 0, errMalformed("decode-string: out of range")
	}
	end := offset
	for end < len(data) && data[end] != 0 {
		end++
	}
	if end >= len(data) {
		return "", 0, errMalformed("decode-string: unterminated")
	}
	s := string(data[offset:end])
	next := align4(end + 1)
	if next > len(data) {
		return "", 0, errMalformed("decode-string: short buffer")
	}
	return s, next, nil
}

// EncodeBlob writes b as a 4-byte-aligned, length-prefixed OSC blob.
func EncodeBlob(buf []byte, b []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, b...)
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	return buf
}

// DecodeBlob reads a length-prefixed, 4-byte-aligned blob at offset.
func DecodeBlob(data []byte, offset int) ([]byte, int, error) {
	if offset+4 > len(data) {
		return nil, 0, errMalformed("decode-blob: missing length")
	}
	n := int(binary.BigEndian.Uint32(data[offset : offset+4]))
	if n < 0 {
		return nil, 0, errMalformed("decode-blob: negative length")
	}
	start := offset + 4
	end := start + n
	if end > len(data) {
		return nil, 0, errMalformed("decode-blob: truncated")
	}
	next := align4(end)
	if next > len(data) {
		return nil, 0, errMalformed("decode-blob: short buffer")
	}
	b := make([]byte, n)
	copy(b, data[start:end])
	return b, next, nil
}

// EncodeMessage renders m into its OSC wire form: address, type tag, then
// the positionally packed arguments.
func EncodeMessage(m Message) ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf = EncodeString(buf, m.Address)
	buf = EncodeString(buf, m.TypeTag())
	for _, a := range m.Args {
		var err error
		buf, err = encodeArg(buf, a)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func encodeArg(buf []byte, a Arg) ([]byte, error) {
	switch a.Type {
	case TypeInt32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(a.Int32))
		return append(buf, b[:]...), nil
	case TypeFloat32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], math.Float32bits(a.Float32))
		return append(buf, b[:]...), nil
	case TypeFloat64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(a.Float64))
		return append(buf, b[:]...), nil
	case TypeInt64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(a.Int64))
		return append(buf, b[:]...), nil
	case TypeTime:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(a.Time))
		return append(buf, b[:]...), nil
	case TypeString:
		return EncodeString(buf, a.Str), nil
	case TypeBlob:
		return EncodeBlob(buf, a.Blob), nil
	default:
		return nil, types.NewError(types.KindMalformedPacket, "encode-arg", nil)
	}
}

// DecodeMessage parses data as a single OSC message, failing with
// KindMalformedPacket on any length, alignment, or type-tag inconsistency.
func DecodeMessage(data []byte) (Message, error) {
	address, off, err := DecodeString(data, 0)
	if err != nil {
		return Message{}, err
	}
	tag, off, err := DecodeString(data, off)
	if err != nil {
		return Message{}, err
	}
	if len(tag) == 0 || tag[0] != ',' {
		return Message{}, errMalformed("decode-message: missing type tag")
	}
	m := Message{Address: address}
	for _, c := range tag[1:] {
		arg, next, err := decodeArg(data, off, ArgType(c))
		if err != nil {
			return Message{}, err
		}
		m.Args = append(m.Args, arg)
		off = next
	}
	return m, nil
}

func decodeArg(data []byte, offset int, t ArgType) (Arg, int, error) {
	switch t {
	case TypeInt32:
		if offset+4 > len(data) {
			return Arg{}, 0, errMalformed("decode-arg: int32 truncated")
		}
		v := int32(binary.BigEndian.Uint32(data[offset : offset+4]))
		return Int32Arg(v), offset + 4, nil
	case TypeFloat32:
		if offset+4 > len(data) {
			return Arg{}, 0, errMalformed("decode-arg: float32 truncated")
		}
		v := math.Float32frombits(binary.BigEndian.Uint32(data[offset : offset+4]))
		return Float32Arg(v), offset + 4, nil
	case TypeFloat64:
		if offset+8 > len(data) {
			return Arg{}, 0, errMalformed("decode-arg: float64 truncated")
		}
		v := math.Float64frombits(binary.BigEndian.Uint64(data[offset : offset+8]))
		return Float64Arg(v), offset + 8, nil
	case TypeInt64:
		if offset+8 > len(data) {
			return Arg{}, 0, errMalformed("decode-arg: int64 truncated")
		}
		v := int64(binary.BigEndian.Uint64(data[offset : offset+8]))
		return Int64Arg(v), offset + 8, nil
	case TypeTime:
		if offset+8 > len(data) {
			return Arg{}, 0, errMalformed("decode-arg: time truncated")
		}
		v := NTPTime(binary.BigEndian.Uint64(data[offset : offset+8]))
		return TimeArg(v), offset + 8, nil
	case TypeString:
		s, next, err := DecodeString(data, offset)
		if err != nil {
			return Arg{}, 0, err
		}
		return StringArg(s), next, nil
	case TypeBlob:
		b, next, err := DecodeBlob(data, offset)
		if err != nil {
			return Arg{}, 0, err
		}
		return BlobArg(b), next, nil
	default:
		return Arg{}, 0, errMalformed("decode-arg: unknown type tag")
	}
}

const bundleTag = "#bundle\x00"

// EncodeBundle renders a Bundle (and any nested bundles) into its OSC wire
// form: the literal "#bundle" tag, the timestamp, then each element
// length-prefixed.
func EncodeBundle(b Bundle) ([]byte, error) {
	buf := make([]byte, 0, 128)
	buf = append(buf, bundleTag...)
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(b.Timestamp))
	buf = append(buf, tsBuf[:]...)

	for _, m := range b.Messages {
		enc, err := EncodeMessage(m)
		if err != nil {
			return nil, err
		}
		buf = appendSized(buf, enc)
	}
	for _, nested := range b.Bundles {
		enc, err := EncodeBundle(nested)
		if err != nil {
			return nil, err
		}
		buf = appendSized(buf, enc)
	}
	return buf, nil
}

func appendSized(buf, payload []byte) []byte {
	var sizeBuf [4]byte
	binary.BigEndian.PutUint32(sizeBuf[:], uint32(len(payload)))
	buf = append(buf, sizeBuf[:]...)
	return append(buf, payload...)
}

// DecodeBundle parses data as an OSC bundle.
func DecodeBundle(data []byte) (Bundle, error) {
	if len(data) < len(bundleTag)+8 || string(data[:len(bundleTag)]) != bundleTag {
		return Bundle{}, errMalformed("decode-bundle: missing #bundle tag")
	}
	off := len(bundleTag)
	ts := NTPTime(binary.BigEndian.Uint64(data[off : off+8]))
	off += 8

	b := Bundle{Timestamp: ts}
	for off < len(data) {
		if off+4 > len(data) {
			return Bundle{}, errMalformed("decode-bundle: truncated element size")
		}
		size := int(binary.BigEndian.Uint32(data[off : off+4]))
		off += 4
		if size < 0 || off+size > len(data) {
			return Bundle{}, errMalformed("decode-bundle: truncated element")
		}
		element := data[off : off+size]
		off += size

		if len(element) >= len(bundleTag) && string(element[:len(bundleTag)]) == bundleTag {
			nested, err := DecodeBundle(element)
			if err != nil {
				return Bundle{}, err
			}
			b.Bundles = append(b.Bundles, nested)
		} else {
			msg, err := DecodeMessage(element)
			if err != nil {
				return Bundle{}, err
			}
			b.Messages = append(b.Messages, msg)
		}
	}
	return b, nil
}

// IsBundle reports whether data looks like an encoded Bundle rather than a
// bare Message, used by the transport layer to dispatch incoming packets.
func IsBundle(data []byte) bool {
	return len(data) >= len(bundleTag) && string(data[:len(bundleTag)]) == bundleTag
}
