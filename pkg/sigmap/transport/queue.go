package transport

import (
	"time"

	"github.com/jabolina/go-sigmap/pkg/sigmap/osc"
)

// QueueWindow coalesces several messages destined for the same Link into
// one Bundle, implementing the begin/set_value/end handle from spec.md §5
// and §9: opening a window stages messages instead of sending them
// immediately, and End flushes everything staged at once.
type QueueWindow struct {
	link *Link
	ts   osc.NTPTime
	msgs []osc.Message
	open bool
}

// Begin opens a queue window for t, returning the handle used to stage
// messages until End.
func Begin(link *Link, t time.Time) *QueueWindow {
	return &QueueWindow{link: link, ts: osc.NewNTPTime(t), open: true}
}

// SetValue stages m inside the open window rather than sending it directly.
func (q *QueueWindow) SetValue(m osc.Message) {
	if !q.open {
		return
	}
	q.msgs = append(q.msgs, m)
}

// End flushes the staged messages: two or more go out as one Bundle under
// the window's timestamp, a single one is sent bare. Calling End on an
// already-closed window is a no-op.
func (q *QueueWindow) End() error {
	if !q.open {
		return nil
	}
	q.open = false
	if len(q.msgs) == 0 {
		return nil
	}
	if len(q.msgs) == 1 {
		return q.link.Send(q.msgs[0])
	}
	return q.link.SendBundle(osc.Bundle{Timestamp: q.ts, Messages: q.msgs})
}
