package transport

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/jabolina/go-sigmap/pkg/sigmap/definition"
	"github.com/jabolina/go-sigmap/pkg/sigmap/osc"
	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

// Receiver is the data-plane counterpart of Bus: a plain unicast UDP socket
// bound to the device's own allocated port, feeding decoded packets to the
// same Incoming shape so one dispatcher can serve admin and data traffic
// alike (spec.md §6: "Default UDP on the allocated device port"). TCP data
// messages arrive over the per-sender connections accepted by a Link's
// peer, not here - this device only needs to originate those (see Link).
type Receiver struct {
	log definition.Logger

	conn *net.UDPConn

	producer chan Incoming

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewReceiver opens a unicast UDP listener on port and starts polling it.
func NewReceiver(port int, log definition.Logger) (*Receiver, error) {
	laddr, err := net.ResolveUDPAddr("udp4", "0.0.0.0:"+strconv.Itoa(port))
	if err != nil {
		return nil, types.NewError(types.KindUnreachable, "transport.NewReceiver: resolve", err)
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, types.NewError(types.KindUnreachable, "transport.NewReceiver: listen", err)
	}
	r := &Receiver{
		log:      log,
		conn:     conn,
		producer: make(chan Incoming, 256),
		done:     make(chan struct{}),
	}
	go r.poll()
	return r, nil
}

// Listen returns the channel data-plane packets are delivered on.
func (r *Receiver) Listen() <-chan Incoming {
	return r.producer
}

// Port returns the actual local port the receiver is bound to, useful when
// NewReceiver was called with port 0 and the OS chose one.
func (r *Receiver) Port() int {
	return r.conn.LocalAddr().(*net.UDPAddr).Port
}

func (r *Receiver) poll() {
	buf := make([]byte, 65536)
	for {
		select {
		case <-r.done:
			return
		default:
		}
		r.conn.SetReadDeadline(time.Now().Add(250 * time.Millisecond))
		n, from, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-r.done:
				return
			default:
				continue
			}
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		r.dispatch(data, from)
	}
}

func (r *Receiver) dispatch(data []byte, from *net.UDPAddr) {
	in := Incoming{From: from}
	if osc.IsBundle(data) {
		bundle, err := osc.DecodeBundle(data)
		if err != nil {
			if r.log != nil {
				r.log.Warnf("dropped malformed data bundle from %v: %v", from, err)
			}
			return
		}
		in.IsBundle = true
		in.Bundle = bundle
	} else {
		msg, err := osc.DecodeMessage(data)
		if err != nil {
			if r.log != nil {
				r.log.Warnf("dropped malformed data message from %v: %v", from, err)
			}
			return
		}
		in.Message = msg
	}

	timeout := time.NewTimer(250 * time.Millisecond)
	defer timeout.Stop()
	select {
	case r.producer <- in:
	case <-timeout.C:
		if r.log != nil {
			r.log.Warnf("dropped data packet from %v: consumer too slow", from)
		}
	}
}

// Close stops the receiver's poll goroutine and releases its socket.
func (r *Receiver) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()
	r.conn.Close()
}
