package transport

import (
	"net"
	"sync"
	"time"

	"github.com/jabolina/go-sigmap/pkg/sigmap/osc"
	"github.com/jabolina/go-sigmap/pkg/sigmap/types"
)

// Link is a per-destination data-plane connection: either a connectionless
// UDP socket or a lazily-dialed TCP connection reused across sends, chosen
// by the map's configured types.Protocol (spec.md §4.B/§3).
type Link struct {
	proto types.Protocol
	addr  string

	mu      sync.Mutex
	udpConn *net.UDPConn
	tcpConn net.Conn
}

// NewLink prepares a Link to addr (host:port) without opening a TCP
// connection eagerly - the first Send dials it, then the connection is
// reused for subsequent sends until Close.
func NewLink(proto types.Protocol, addr string) *Link {
	return &Link{proto: proto, addr: addr}
}

// Send writes an already-built OSC message to the link's destination.
func (l *Link) Send(m osc.Message) error {
	data, err := osc.EncodeMessage(m)
	if err != nil {
		return err
	}
	return l.write(data)
}

// SendBundle writes a coalesced Bundle, used by the queue window to batch
// several per-tick updates under one timestamp (spec.md §5).
func (l *Link) SendBundle(b osc.Bundle) error {
	data, err := osc.EncodeBundle(b)
	if err != nil {
		return err
	}
	return l.write(data)
}

func (l *Link) write(data []byte) error {
	switch l.proto {
	case types.ProtoTCP:
		return l.writeTCP(data)
	default:
		return l.writeUDP(data)
	}
}

func (l *Link) writeUDP(data []byte) error {
	l.mu.Lock()
	conn := l.udpConn
	l.mu.Unlock()
	if conn == nil {
		raddr, err := net.ResolveUDPAddr("udp4", l.addr)
		if err != nil {
			return types.NewError(types.KindUnreachable, "transport.Link.writeUDP: resolve", err)
		}
		c, err := net.DialUDP("udp4", nil, raddr)
		if err != nil {
			return types.NewError(types.KindUnreachable, "transport.Link.writeUDP: dial", err)
		}
		l.mu.Lock()
		l.udpConn = c
		conn = c
		l.mu.Unlock()
	}
	if _, err := conn.Write(data); err != nil {
		return types.NewError(types.KindUnreachable, "transport.Link.writeUDP: write", err)
	}
	return nil
}

func (l *Link) writeTCP(data []byte) error {
	l.mu.Lock()
	conn := l.tcpConn
	l.mu.Unlock()
	if conn == nil {
		c, err := net.DialTimeout("tcp4", l.addr, 2*time.Second)
		if err != nil {
			return types.NewError(types.KindUnreachable, "transport.Link.writeTCP: dial", err)
		}
		l.mu.Lock()
		l.tcpConn = c
		conn = c
		l.mu.Unlock()
	}
	if _, err := conn.Write(data); err != nil {
		l.mu.Lock()
		l.tcpConn = nil
		l.mu.Unlock()
		return types.NewError(types.KindUnreachable, "transport.Link.writeTCP: write", err)
	}
	return nil
}

// Close releases whichever underlying connection the Link opened.
func (l *Link) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.udpConn != nil {
		l.udpConn.Close()
		l.udpConn = nil
	}
	if l.tcpConn != nil {
		l.tcpConn.Close()
		l.tcpConn = nil
	}
}
