package runtime

import (
	"testing"
	"time"

	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

func TestBuildSetParseSetRoundTrip(t *testing.T) {
	dest := types.SignalRef{Device: types.DeviceName{Name: "b", Ordinal: 1}, Path: "y"}
	now := time.Unix(1700000000, 0)
	msg := BuildSet(dest, []float64{1.5, -2.25}, now)

	if msg.Address != dest.String() {
		t.Fatalf("unexpected address %q", msg.Address)
	}

	value, ts, ok := ParseSet(msg)
	if !ok {
		t.Fatalf("ParseSet failed")
	}
	if len(value) != 2 || value[0] != 1.5 || value[1] != -2.25 {
		t.Fatalf("unexpected value %v", value)
	}
	if ts.Time().Unix() != now.Unix() {
		t.Fatalf("timestamp mismatch: got %v want %v", ts.Time(), now)
	}
}
