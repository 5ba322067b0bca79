// Package endpointtest provides an in-memory PacketConn backed by a
// shared network hub, for driving Endpoint.Run in tests without binding
// real UDP sockets. A single Conn can exchange datagrams with any other
// Conn registered on the same Network, mirroring how one UDP socket
// serves every peer that addresses it; a Host talking to both a Joiner
// and several spectators needs exactly that.
package endpointtest

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// addr is a trivial net.Addr identifying one participant on a Network.
type addr string

func (a addr) Network() string { return "endpointtest" }
func (a addr) String() string  { return string(a) }

type datagram struct {
	payload []byte
	from    net.Addr
}

// Network is a shared in-memory datagram fabric. Conns register
// themselves under a name and can address each other by that name.
type Network struct {
	mu    sync.Mutex
	conns map[string]*Conn
}

// NewNetwork returns an empty fabric.
func NewNetwork() *Network {
	return &Network{conns: make(map[string]*Conn)}
}

// NewConn registers and returns a new Conn named name on the network.
func (n *Network) NewConn(name string) *Conn {
	c := &Conn{local: addr(name), net: n, inbox: make(chan datagram, 256), done: make(chan struct{})}
	n.mu.Lock()
	n.conns[name] = c
	n.mu.Unlock()
	return c
}

func (n *Network) lookup(name string) *Conn {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.conns[name]
}

// NewPair is a convenience constructor for the common two-party case: a
// fresh Network with exactly two registered Conns.
func NewPair(a, b string) (*Conn, *Conn) {
	n := NewNetwork()
	return n.NewConn(a), n.NewConn(b)
}

// Conn is one participant's datagram socket on a Network. It implements
// endpoint.PacketConn structurally (ReadFrom/WriteTo/SetReadDeadline/
// Close/LocalAddr) without importing the endpoint package, avoiding an
// import cycle between production code and its test helper.
type Conn struct {
	mu       sync.Mutex
	local    net.Addr
	net      *Network
	inbox    chan datagram
	done     chan struct{}
	deadline time.Time
	closed   bool

	// DropWrite, when non-nil, is consulted before every WriteTo; a true
	// return silently discards the datagram, simulating packet loss.
	DropWrite func(payload []byte) bool
}

// errClosedConn wraps net.ErrClosed so callers matching on the standard
// sentinel treat a closed test conn exactly like a closed real socket.
var errClosedConn = fmt.Errorf("endpointtest: %w", net.ErrClosed)

func (c *Conn) ReadFrom(p []byte) (int, net.Addr, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, nil, errClosedConn
	}
	deadline := c.deadline
	c.mu.Unlock()

	var timeout <-chan time.Time
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d <= 0 {
			return 0, nil, timeoutError{}
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case dg := <-c.inbox:
		n := copy(p, dg.payload)
		return n, dg.from, nil
	case <-c.done:
		return 0, nil, errClosedConn
	case <-timeout:
		return 0, nil, timeoutError{}
	}
}

func (c *Conn) WriteTo(p []byte, to net.Addr) (int, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, errClosedConn
	}
	drop := c.DropWrite
	network := c.net
	local := c.local
	c.mu.Unlock()

	if drop != nil && drop(p) {
		return len(p), nil
	}

	peer := network.lookup(to.String())
	if peer == nil {
		return 0, errors.New("endpointtest: unknown destination " + to.String())
	}

	cp := make([]byte, len(p))
	copy(cp, p)
	select {
	case peer.inbox <- datagram{payload: cp, from: local}:
	case <-peer.done:
		// Destination closed; the datagram vanishes like on a real network.
	default:
		// Peer inbox saturated; drop like a real unreliable datagram socket.
	}
	return len(p), nil
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline = t
	return nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	return nil
}

func (c *Conn) LocalAddr() net.Addr { return c.local }

type timeoutError struct{}

func (timeoutError) Error() string   { return "endpointtest: i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
