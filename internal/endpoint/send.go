package endpoint

import (
	"net"

	"pokeproto/internal/logging"
	"pokeproto/internal/wire"
)

// sendTracked serializes msg, stamps it with the next sequence number via
// the reliability layer, and writes it to addr. The layer tracks it as
// pending until an ACK for that sequence arrives or it is retransmitted
// into oblivion by Tick.
func (e *Endpoint) sendTracked(addr net.Addr, msg wire.Sequenced) error {
	seq := e.rel.RegisterSend(msg)
	frame := wire.Serialize(msg)
	if err := sendWithRetry(e.conn, frame, addr, e.cfg, e.log); err != nil {
		e.log.Warn("endpoint: send failed", logging.String("addr", addr.String()), logging.Int("seq", int(seq)), logging.Error(err))
		return err
	}
	return nil
}

// sendUntracked stamps msg with a fresh sequence number (so the receiver's
// duplicate window and generic ACK-on-receipt rule both still apply) but
// does not register it for retransmission. Handshake responses and
// spectator mirrors use this: best-effort delivery is acceptable since
// neither is load-bearing for turn-handshake correctness.
func (e *Endpoint) sendUntracked(addr net.Addr, msg wire.Sequenced) {
	msg.SetSeq(e.rel.NextSequence())
	frame := wire.Serialize(msg)
	if err := sendWithRetry(e.conn, frame, addr, e.cfg, e.log); err != nil {
		e.log.Debug("endpoint: best-effort send failed", logging.String("addr", addr.String()), logging.Error(err))
	}
}

// sendWithSeq stamps msg with an explicit sequence number rather than
// allocating one, and sends it best-effort. CALCULATION_CONFIRM hijacks
// its sequence_number field to carry the acknowledged report's seq
// instead of a freshly allocated counter value, so it cannot go through
// sendTracked/sendUntracked without corrupting that contract.
func (e *Endpoint) sendWithSeq(addr net.Addr, msg wire.Sequenced, seq uint32) {
	msg.SetSeq(seq)
	frame := wire.Serialize(msg)
	if err := sendWithRetry(e.conn, frame, addr, e.cfg, e.log); err != nil {
		e.log.Debug("endpoint: ack-hijacked send failed", logging.String("addr", addr.String()), logging.Error(err))
	}
}

// sendRawSeq resends an already-sequenced message under its original
// sequence number. Retransmits must never reallocate a sequence number;
// a fresh one would defeat the receiver's duplicate detection.
func (e *Endpoint) sendRawSeq(addr net.Addr, msg wire.Message) {
	frame := wire.Serialize(msg)
	if err := sendWithRetry(e.conn, frame, addr, e.cfg, e.log); err != nil {
		e.log.Debug("endpoint: retransmit failed", logging.String("addr", addr.String()), logging.Error(err))
	}
}

// sendAck acknowledges a received sequence number, unconditionally and
// without tracking. ACK itself is never retried.
func (e *Endpoint) sendAck(addr net.Addr, seq uint32) {
	frame := wire.Serialize(wire.Ack{AckNumber: seq})
	if err := sendWithRetry(e.conn, frame, addr, e.cfg, e.log); err != nil {
		e.log.Debug("endpoint: ack send failed", logging.String("addr", addr.String()), logging.Error(err))
	}
}

// mirrorToSpectators fans a fresh copy of msg out to every tracked
// spectator. The copy is load-bearing: the original pointer may still
// sit in the reliability layer's pending table, and stamping
// per-spectator sequence numbers into it would change the frame its
// retransmissions carry; retransmits must reuse the original number.
func (e *Endpoint) mirrorToSpectators(msg wire.Sequenced) {
	if e.rosterRef == nil {
		return
	}
	mirror := copyMessage(msg)
	if mirror == nil {
		return
	}
	e.rosterRef.Broadcast(func(addr net.Addr) error {
		e.sendUntracked(addr, mirror)
		return nil
	})
}

// copyMessage clones the variants a Host mirrors into a new backing
// struct, so restamping the mirror cannot touch the original.
func copyMessage(msg wire.Sequenced) wire.Sequenced {
	switch m := msg.(type) {
	case *wire.BattleSetup:
		c := *m
		return &c
	case *wire.AttackAnnounce:
		c := *m
		return &c
	case *wire.DefenseAnnounce:
		c := *m
		return &c
	case *wire.CalculationReport:
		c := *m
		return &c
	case *wire.ResolutionRequest:
		c := *m
		return &c
	case *wire.GameOver:
		c := *m
		return &c
	case *wire.RematchRequest:
		c := *m
		return &c
	case *wire.ChatMessage:
		c := *m
		return &c
	default:
		return nil
	}
}
