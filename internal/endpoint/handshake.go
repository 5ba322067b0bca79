package endpoint

import (
	"context"
	"net"

	"pokeproto/internal/logging"
	"pokeproto/internal/wire"
)

// handleHandshakeRequest implements the Host's accept-first-Joiner rule:
// the first HANDSHAKE_REQUEST binds peer_address, draws a fresh 32-bit
// seed, seeds the shared calculator, and replies HANDSHAKE_RESPONSE. Once
// bound, every subsequent log line e.log emits carries a fresh session ID
// for this connection's lifetime. Only the Host role accepts this message;
// later requests from a second source are rejected by the capacity-gated
// admission gate.
func (e *Endpoint) handleHandshakeRequest(addr net.Addr, _ wire.HandshakeRequest) {
	if e.role != RoleHost {
		return
	}
	if e.peerAddr != nil && addr.String() == e.peerAddr.String() {
		e.sendUntracked(addr, &wire.HandshakeResponse{Seed: e.seed})
		return
	}
	if e.joinerGate != nil {
		if err := e.joinerGate.Admit(addr.String()); err != nil {
			e.log.Debug("endpoint: rejecting handshake, capacity reached", logging.String("addr", addr.String()), logging.Error(err))
			return
		}
	}
	seed, err := drawSeed()
	if err != nil {
		e.log.Error("endpoint: failed to draw handshake seed", logging.Error(err))
		return
	}
	e.seed = seed
	e.calc.SetSeed(seed)
	e.peerAddr = addr
	e.connected.Store(true)
	_, e.log, _ = logging.WithSession(context.Background(), e.log, "")
	e.sendUntracked(addr, &wire.HandshakeResponse{Seed: seed})
	e.events.publish(Event{Kind: EventConnected, Connected: true})
}

// handleHandshakeResponse completes the Joiner's or Spectator's connect
// sequence: seed the shared calculator with the Host's chosen value, mark
// connected, and tag e.log with a fresh session ID for the connection. A
// Spectator receives this message as the reply to its own SPECTATOR_REQUEST.
func (e *Endpoint) handleHandshakeResponse(addr net.Addr, m wire.HandshakeResponse) {
	if e.role != RoleJoiner && e.role != RoleSpectator {
		return
	}
	if e.connected.Load() {
		return
	}
	e.seed = m.Seed
	e.calc.SetSeed(m.Seed)
	e.peerAddr = addr
	e.connected.Store(true)
	_, e.log, _ = logging.WithSession(context.Background(), e.log, "")
	e.events.publish(Event{Kind: EventConnected, Connected: true})
}

// handleSpectatorRequest implements the Host's accept-any-spectator
// rule, gated by the configured spectator capacity: append addr to the
// roster and reply with the current seed, whatever it is (zero if no
// Joiner has completed the handshake yet). A request beyond capacity is silently
// dropped, matching the failure semantics of an unanswerable request.
func (e *Endpoint) handleSpectatorRequest(addr net.Addr, _ wire.SpectatorRequest) {
	if e.role == RoleSpectator {
		// A spectator never answers another spectator's request.
		return
	}
	if e.role != RoleHost {
		return
	}
	if e.spectatorGate != nil {
		if err := e.spectatorGate.Admit(addr.String()); err != nil {
			e.log.Debug("endpoint: rejecting spectator, capacity reached", logging.String("addr", addr.String()), logging.Error(err))
			return
		}
	}
	if e.rosterRef != nil {
		e.rosterRef.Add(addr)
	}
	e.sendUntracked(addr, &wire.HandshakeResponse{Seed: e.seed})
}
