// Package transport implements Component B: the admin multicast bus every
// device joins for discovery/negotiation, plus the per-map unicast Link used
// for data-plane traffic once a map is active. Both speak the OSC wire
// format from pkg/sigmap/osc (spec.md §4.A/§4.B).
package transport

import (
	"context"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/jabolina/go-sigmap/pkg/sigmap/definition"
	"github.com/jabolina/go-sigmap/pkg/sigmap/osc"
	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

// DefaultGroup and DefaultPort are libmapper's well-known admin multicast
// rendezvous, used when a GraphConfig does not override them.
const (
	DefaultGroup = "224.0.1.3"
	DefaultPort  = 7570
)

// Incoming is one admin-bus packet delivered to a Bus's listener channel,
// either a bare Message or a Bundle (spec.md §4.A).
type Incoming struct {
	Message  osc.Message
	Bundle   osc.Bundle
	IsBundle bool
	From     *net.UDPAddr
}

// Bus is the admin multicast transport every device joins at startup to
// announce itself and negotiate maps (spec.md §4.B). It mirrors the
// teacher's ReliableTransport shape - a background poll goroutine feeding a
// buffered producer channel - generalized from relt's reliable group
// broadcast to a plain best-effort UDP multicast group, since relt's
// source is unavailable (see DESIGN.md).
type Bus struct {
	log definition.Logger

	conn *net.UDPConn
	pc   *ipv4.PacketConn
	addr *net.UDPAddr

	producer chan Incoming

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// setReuseAddr marks the admin bus's listening socket SO_REUSEADDR before
// bind, the standard multicast idiom letting several local sockets (one per
// Device in this process, plus any pure-observer Graph) each join the same
// group:port rather than racing for a single exclusive bind.
func setReuseAddr(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// NewBus joins the multicast group at group:port and starts polling for
// incoming admin traffic. ttl controls the multicast hop limit.
func NewBus(group string, port int, ttl int, log definition.Logger) (*Bus, error) {
	if group == "" {
		group = DefaultGroup
	}
	if port == 0 {
		port = DefaultPort
	}

	lc := net.ListenConfig{Control: setReuseAddr}
	pconn, err := lc.ListenPacket(context.Background(), "udp4", "0.0.0.0:"+strconv.Itoa(port))
	if err != nil {
		return nil, types.NewError(types.KindUnreachable, "transport.NewBus: listen", err)
	}
	conn := pconn.(*net.UDPConn)

	pc := ipv4.NewPacketConn(conn)
	_ = pc.SetMulticastTTL(ttl)
	_ = pc.SetMulticastLoopback(true)

	mip := net.ParseIP(group)
	joined := false
	if ifaces, ierr := net.Interfaces(); ierr == nil {
		for _, ifi := range ifaces {
			if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagMulticast == 0 {
				continue
			}
			ifi := ifi
			if err := pc.JoinGroup(&ifi, &net.UDPAddr{IP: mip}); err == nil {
				joined = true
				break
			}
		}
	}
	if !joined {
		conn.Close()
		return nil, types.NewError(types.KindUnreachable, "transport.NewBus: join-group", nil)
	}

	addr, err := net.ResolveUDPAddr("udp4", group+":"+strconv.Itoa(port))
	if err != nil {
		conn.Close()
		return nil, types.NewError(types.KindUnreachable, "transport.NewBus: resolve-group", err)
	}

	b := &Bus{
		log:      log,
		conn:     conn,
		pc:       pc,
		addr:     addr,
		producer: make(chan Incoming, 256),
		done:     make(chan struct{}),
	}
	go b.poll()
	return b, nil
}

// Send multicasts an already-encoded OSC message to the admin group.
func (b *Bus) Send(m osc.Message) error {
	data, err := osc.EncodeMessage(m)
	if err != nil {
		return err
	}
	return b.write(data)
}

// SendBundle multicasts a Bundle, used to coalesce several admin messages
// under one timestamp (spec.md §5's queue-window applied to the admin bus).
func (b *Bus) SendBundle(bundle osc.Bundle) error {
	data, err := osc.EncodeBundle(bundle)
	if err != nil {
		return err
	}
	return b.write(data)
}

func (b *Bus) write(data []byte) error {
	if _, err := b.conn.WriteToUDP(data, b.addr); err != nil {
		return types.NewError(types.KindUnreachable, "transport.Bus.write", err)
	}
	return nil
}

// Listen returns the channel admin-bus packets are delivered on.
func (b *Bus) Listen() <-chan Incoming {
	return b.producer
}

func (b *Bus) poll() {
	buf := make([]byte, 65536)
	for {
		select {
		case <-b.done:
			return
		default:
		}
		b.conn.SetReadDeadline(time.Now().Add(250 * time.Millisecond))
		n, from, err := b.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-b.done:
				return
			default:
				continue
			}
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		b.dispatch(data, from)
	}
}

func (b *Bus) dispatch(data []byte, from *net.UDPAddr) {
	in := Incoming{From: from}
	if osc.IsBundle(data) {
		bundle, err := osc.DecodeBundle(data)
		if err != nil {
			if b.log != nil {
				b.log.Warnf("dropped malformed admin bundle from %v: %v", from, err)
			}
			return
		}
		in.IsBundle = true
		in.Bundle = bundle
	} else {
		msg, err := osc.DecodeMessage(data)
		if err != nil {
			if b.log != nil {
				b.log.Warnf("dropped malformed admin message from %v: %v", from, err)
			}
			return
		}
		in.Message = msg
	}

	timeout := time.NewTimer(250 * time.Millisecond)
	defer timeout.Stop()
	select {
	case b.producer <- in:
	case <-timeout.C:
		if b.log != nil {
			b.log.Warnf("dropped admin packet from %v: consumer too slow", from)
		}
	}
}

// Close stops the bus's poll goroutine and releases its socket.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()
	b.pc.Close()
}

