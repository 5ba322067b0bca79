// Package endpoint implements the host-side and peer-side runtime that
// binds a datagram socket and drives the cooperative main loop:
// poll-receive, dispatch through the reliability and battle layers, then
// tick the retransmission timer. One Endpoint plays exactly one role
// (Host, Joiner, or Spectator) for its whole lifetime.
package endpoint

import (
	"errors"
	"net"
	"time"

	"pokeproto/internal/config"
	"pokeproto/internal/logging"
)

// PacketConn is the subset of net.PacketConn the runtime depends on. Tests
// substitute an in-memory implementation (see endpointtest) so the main
// loop can be driven without binding a real socket.
type PacketConn interface {
	ReadFrom(p []byte) (n int, addr net.Addr, err error)
	WriteTo(p []byte, addr net.Addr) (n int, err error)
	SetReadDeadline(t time.Time) error
	Close() error
	LocalAddr() net.Addr
}

// ListenUDP binds a UDP socket on port. The conventional defaults are
// 8888 for the Host, 8889 for the Joiner, and 8890 for a Spectator,
// though nothing in the protocol mandates them.
func ListenUDP(port int) (PacketConn, error) {
	addr := &net.UDPAddr{IP: net.IPv4zero, Port: port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// isTimeout reports whether err is the expected result of a ReadFrom call
// that hit its poll deadline with nothing to read, not a real failure.
func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

// sendWithRetry writes one datagram, retrying up to cfg.SendRetries times
// with linear backoff (cfg.SendBackoff times the attempt number) on
// non-fatal errors. A timeout or closed-connection error is treated as
// fatal and returned immediately.
func sendWithRetry(conn PacketConn, payload []byte, addr net.Addr, cfg *config.Config, log *logging.Logger) error {
	var lastErr error
	for attempt := 1; attempt <= cfg.SendRetries; attempt++ {
		_, err := conn.WriteTo(payload, addr)
		if err == nil {
			return nil
		}
		lastErr = err
		if isTimeout(err) || errors.Is(err, net.ErrClosed) {
			return err
		}
		log.Debug("endpoint: retrying outbound send", logging.String("addr", addr.String()), logging.Int("attempt", attempt), logging.Error(err))
		time.Sleep(cfg.SendBackoff * time.Duration(attempt))
	}
	return lastErr
}
