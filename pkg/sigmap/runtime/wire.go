package runtime

import (
	"time"

	"github.com/jabolina/go-sigmap/pkg/sigmap/osc"
	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

// BuildSet renders a data-plane update for dest: the signal's full OSC
// address followed by its vector of float32 values, tagged with t.
func BuildSet(dest types.SignalRef, value []float64, t time.Time) osc.Message {
	args := make([]osc.Arg, 0, len(value)+1)
	for _, v := range value {
		args = append(args, osc.Float32Arg(float32(v)))
	}
	args = append(args, osc.TimeArg(osc.NewNTPTime(t)))
	return osc.Message{Address: dest.String(), Args: args}
}

// ParseSet decodes a data-plane update back into its value vector and
// timestamp.
func ParseSet(m osc.Message) (value []float64, ts osc.NTPTime, ok bool) {
	if len(m.Args) == 0 {
		return nil, 0, false
	}
	last := m.Args[len(m.Args)-1]
	if last.Type != osc.TypeTime {
		return nil, 0, false
	}
	for _, a := range m.Args[:len(m.Args)-1] {
		switch a.Type {
		case osc.TypeFloat32:
			value = append(value, float64(a.Float32))
		case osc.TypeFloat64:
			value = append(value, a.Float64)
		case osc.TypeInt32:
			value = append(value, float64(a.Int32))
		default:
			return nil, 0, false
		}
	}
	return value, last.Time, true
}
