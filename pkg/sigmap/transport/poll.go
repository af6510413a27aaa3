package transport

import "time"

// Source is anything Poll can drain - both Bus and Receiver satisfy it.
type Source interface {
	Listen() <-chan Incoming
}

// Poll drains up to blockMs worth of traffic from src, calling handle for
// each Incoming packet, and returns the number of packets handled. It never
// blocks past the budget even if src stays quiet the whole time, per
// spec.md §6's "poll blocks up to the caller-supplied millisecond budget".
func Poll(src Source, blockMs int, handle func(Incoming)) int {
	deadline := time.Now().Add(time.Duration(blockMs) * time.Millisecond)
	handled := 0
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return handled
		}
		select {
		case in := <-src.Listen():
			handle(in)
			handled++
		case <-time.After(remaining):
			return handled
		}
	}
}
