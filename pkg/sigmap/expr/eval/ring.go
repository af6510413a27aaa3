package eval

import "time"

// ring is a fixed-depth history buffer of vector samples, indexed with
// non-positive offsets: At(0) is the most recent push, At(-1) the one
// before it, and so on back to -(depth-1).
type ring struct {
	vecs  [][]float64
	times []time.Time
	head  int
	n     int
}

func newRing(depth int) *ring {
	if depth < 1 {
		depth = 1
	}
	return &ring{vecs: make([][]float64, depth), times: make([]time.Time, depth)}
}

func (r *ring) push(v []float64, t time.Time) {
	r.head = (r.head + 1) % len(r.vecs)
	r.vecs[r.head] = v
	r.times[r.head] = t
	if r.n < len(r.vecs) {
		r.n++
	}
}

// at returns the sample at offset k (k <= 0). ok is false if fewer than
// -k+1 samples have ever been pushed.
func (r *ring) at(k int) (val []float64, t time.Time, ok bool) {
	if k > 0 {
		return nil, time.Time{}, false
	}
	if -k >= r.n {
		return nil, time.Time{}, false
	}
	idx := (r.head + k + len(r.vecs)) % len(r.vecs)
	return r.vecs[idx], r.times[idx], true
}

func (r *ring) latest() ([]float64, time.Time, bool) {
	return r.at(0)
}
