package endpoint

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"pokeproto/internal/admission"
	"pokeproto/internal/battle"
	"pokeproto/internal/catalog"
	"pokeproto/internal/combat"
	"pokeproto/internal/config"
	"pokeproto/internal/logging"
	"pokeproto/internal/reliability"
	"pokeproto/internal/roster"
	"pokeproto/internal/wire"
)

// Role distinguishes the three endpoint personalities. An Endpoint
// plays exactly one role for its whole lifetime.
type Role int

const (
	RoleHost Role = iota
	RoleJoiner
	RoleSpectator
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleJoiner:
		return "joiner"
	case RoleSpectator:
		return "spectator"
	default:
		return "unknown"
	}
}

// ErrNotConnected is returned by public API calls that require an
// established peer connection.
var ErrNotConnected = errors.New("endpoint: not connected")

// ErrHandshakeTimeout reports that a Joiner or Spectator gave up waiting
// for HANDSHAKE_RESPONSE within its configured bound.
var ErrHandshakeTimeout = errors.New("endpoint: handshake timed out")

// commandKind enumerates the public API calls threaded onto the single
// main-loop goroutine via the commands channel, so StartBattle/UseMove/
// SendChat/Disconnect remain safe to call from any goroutine while all
// mutation still happens inside Run.
type commandKind int

const (
	cmdStartBattle commandKind = iota
	cmdUseMove
	cmdSendChat
	cmdSendSticker
	cmdRequestRematch
	cmdDisconnect
)

type command struct {
	kind         commandKind
	creatureName string
	atkUses      int
	defUses      int
	moveName     string
	chatSender   string
	chatText     string
	stickerBytes []byte
	wantsRematch bool
	result       chan error
}

// Endpoint binds one datagram socket and drives the cooperative main
// loop: poll-receive, dispatch through the reliability and battle
// layers, then tick the retransmission timer. The Host role
// additionally owns a spectator roster and fans out battle-relevant
// traffic to it.
type Endpoint struct {
	role Role
	cfg  *config.Config
	log  *logging.Logger

	conn PacketConn

	rel       *reliability.Layer
	machine   *battle.Machine
	creatures *catalog.CreatureStore
	moves     *catalog.MoveStore
	calc      *combat.Calculator

	rosterRef     *roster.Roster  // Host only
	joinerGate    *admission.Gate // Host only: capacity-gated Joiner acceptance
	spectatorGate *admission.Gate // Host only: capacity-gated spectator acceptance

	events *eventBus

	commands chan command

	peerAddr  net.Addr
	connected atomic.Bool
	seed      uint32

	// lastStatusMessage carries the human-readable status line from the
	// most recent doCalculation call through to the CALCULATION_REPORT
	// that announces it; Calculation itself carries no status text.
	lastStatusMessage string

	myRematchWanted       bool
	opponentRematchWanted bool
}

// Option configures optional Endpoint behaviour at construction time,
// mirroring the functional-options idiom of reliability.New.
type Option func(*Endpoint)

// WithSpectatorCapacity bounds how many spectators a Host will accept,
// expressed as a dedicated admission.Gate kept separate from the
// Joiner gate. Zero means unbounded.
func WithSpectatorCapacity(max int) Option {
	return func(e *Endpoint) {
		if e.spectatorGate != nil {
			e.spectatorGate.SetCapacity(max)
		}
	}
}

func newEndpoint(role Role, conn PacketConn, cfg *config.Config, creatures *catalog.CreatureStore, moves *catalog.MoveStore, log *logging.Logger) *Endpoint {
	if log == nil {
		log = logging.NewTestLogger()
	}
	e := &Endpoint{
		role: role,
		cfg:  cfg,
		log:  log,
		conn: conn,
		rel: reliability.New(
			reliability.WithTimeout(cfg.Reliability.Timeout),
			reliability.WithMaxRetries(cfg.Reliability.MaxRetries),
			reliability.WithDuplicateWindow(cfg.Reliability.DuplicateWindow),
		),
		machine:   battle.New(role == RoleHost),
		creatures: creatures,
		moves:     moves,
		calc:      combat.NewCalculator(creatures),
		events:    newEventBus(),
		commands:  make(chan command, 16),
	}
	if role == RoleHost {
		e.rosterRef = roster.New()
		e.joinerGate = admission.NewGate(1)
		e.spectatorGate = admission.NewGate(0)
	}
	return e
}

// NewHost constructs a Host-role Endpoint bound to conn. The Host is
// always the turn-initiator (my_turn = true at battle start) and is the
// only role with a SpectatorRoster.
func NewHost(conn PacketConn, cfg *config.Config, creatures *catalog.CreatureStore, moves *catalog.MoveStore, log *logging.Logger, opts ...Option) *Endpoint {
	e := newEndpoint(RoleHost, conn, cfg, creatures, moves, log)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewJoiner constructs a Joiner-role Endpoint bound to conn. peerAddr is
// the Host's address; Connect sends HANDSHAKE_REQUEST to it.
func NewJoiner(conn PacketConn, peerAddr net.Addr, cfg *config.Config, creatures *catalog.CreatureStore, moves *catalog.MoveStore, log *logging.Logger) *Endpoint {
	e := newEndpoint(RoleJoiner, conn, cfg, creatures, moves, log)
	e.peerAddr = peerAddr
	return e
}

// NewSpectator constructs a Spectator-role Endpoint bound to conn.
// peerAddr is the Host's address; Connect sends SPECTATOR_REQUEST to it.
func NewSpectator(conn PacketConn, peerAddr net.Addr, cfg *config.Config, creatures *catalog.CreatureStore, moves *catalog.MoveStore, log *logging.Logger) *Endpoint {
	e := newEndpoint(RoleSpectator, conn, cfg, creatures, moves, log)
	e.peerAddr = peerAddr
	return e
}

// Role reports which of the three personalities this Endpoint plays.
func (e *Endpoint) Role() Role { return e.role }

// Snapshot returns a point-in-time view of the underlying battle state.
func (e *Endpoint) Snapshot() battle.Snapshot { return e.machine.Snapshot() }

// Connected reports whether the handshake with the peer has completed.
// Safe to call from any goroutine.
func (e *Endpoint) Connected() bool { return e.connected.Load() }

// Connect sends this endpoint's connection request (HANDSHAKE_REQUEST
// for Joiner, SPECTATOR_REQUEST for Spectator) and blocks the caller
// until Run observes the matching response or the context/handshake
// timeout fires. It is a no-op for the Host role, which only accepts.
func (e *Endpoint) Connect(ctx context.Context) error {
	switch e.role {
	case RoleHost:
		return nil
	case RoleJoiner:
		e.sendUntracked(e.peerAddr, &wire.HandshakeRequest{})
	case RoleSpectator:
		e.sendUntracked(e.peerAddr, &wire.SpectatorRequest{})
	}

	deadline := time.Now().Add(e.cfg.HandshakeTimeout)
	for {
		if e.connected.Load() {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrHandshakeTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// StartBattle enqueues a request to initialize battle state with the
// named creature and boost allotments. It is safe to call from any
// goroutine; the actual state mutation happens inside Run.
func (e *Endpoint) StartBattle(ctx context.Context, creatureName string, atkUses, defUses int) error {
	return e.submit(ctx, command{kind: cmdStartBattle, creatureName: creatureName, atkUses: atkUses, defUses: defUses})
}

// UseMove enqueues a move selection for the current turn, valid only
// when it is this peer's turn to act.
func (e *Endpoint) UseMove(ctx context.Context, moveName string) error {
	return e.submit(ctx, command{kind: cmdUseMove, moveName: moveName})
}

// SendChat enqueues a TEXT chat message for transmission.
func (e *Endpoint) SendChat(ctx context.Context, sender, text string) error {
	return e.submit(ctx, command{kind: cmdSendChat, chatSender: sender, chatText: text})
}

// SendSticker enqueues a STICKER chat message carrying raw (uncompressed)
// sticker bytes for transmission.
func (e *Endpoint) SendSticker(ctx context.Context, sender string, raw []byte) error {
	return e.submit(ctx, command{kind: cmdSendSticker, chatSender: sender, stickerBytes: raw})
}

// RequestRematch enqueues this peer's REMATCH_REQUEST, valid only while
// the battle is in GAME_OVER.
func (e *Endpoint) RequestRematch(ctx context.Context, wants bool) error {
	return e.submit(ctx, command{kind: cmdRequestRematch, wantsRematch: wants})
}

// Disconnect enqueues a local disconnect: the session transitions to
// Disconnected, the socket closes, and reliability state clears.
func (e *Endpoint) Disconnect(ctx context.Context) error {
	return e.submit(ctx, command{kind: cmdDisconnect})
}

func (e *Endpoint) submit(ctx context.Context, cmd command) error {
	cmd.result = make(chan error, 1)
	select {
	case e.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the cooperative main loop until ctx is canceled or the
// socket closes: poll-receive with a short deadline, dispatch any
// datagram received, drain queued public-API commands, then tick the
// reliability layer's retransmission timer. This is the only goroutine
// that touches machine or rosterRef; rel's own mutex additionally
// permits Connect to send the bootstrap handshake datagram before Run
// starts.
func (e *Endpoint) Run(ctx context.Context) error {
	defer e.conn.Close()

	e.startSnapshotWriter(ctx)

	buf := make([]byte, e.cfg.MaxFrameBytes)
	for {
		select {
		case <-ctx.Done():
			e.machine.MarkDisconnected()
			return ctx.Err()
		default:
		}

		if err := e.conn.SetReadDeadline(time.Now().Add(e.cfg.PollTimeout)); err != nil {
			return fmt.Errorf("endpoint: set read deadline: %w", err)
		}
		n, addr, err := e.conn.ReadFrom(buf)
		switch {
		case err == nil:
			e.handleDatagram(addr, buf[:n])
		case isTimeout(err):
			// Expected: nothing arrived within the poll window.
		case errors.Is(err, net.ErrClosed):
			e.machine.MarkDisconnected()
			return nil
		default:
			e.log.Warn("endpoint: read error", logging.Error(err))
		}

		e.drainCommands()

		due, exhausted := e.rel.Tick()
		for _, r := range due {
			if e.peerAddr != nil {
				e.sendRawSeq(e.peerAddr, r.Message)
			}
		}
		for _, seqNum := range exhausted {
			e.events.publish(Event{Kind: EventRetryExhausted, Seq: seqNum})
		}
	}
}

func (e *Endpoint) drainCommands() {
	for {
		select {
		case cmd := <-e.commands:
			cmd.result <- e.handleCommand(cmd)
		default:
			return
		}
	}
}

func (e *Endpoint) handleDatagram(addr net.Addr, raw []byte) {
	msg, err := wire.Parse(raw)
	if err != nil {
		e.log.Debug("endpoint: dropping malformed datagram", logging.String("addr", addr.String()), logging.Error(err))
		return
	}

	if ack, ok := msg.(wire.Ack); ok {
		e.rel.OnAck(ack.AckNumber)
		return
	}

	seq, ok := msg.(wire.Numbered)
	if !ok {
		e.log.Debug("endpoint: dropping message with no sequence number", logging.String("addr", addr.String()))
		return
	}
	// CALCULATION_CONFIRM reuses the confirmed report's sequence number
	// instead of allocating its own, so it skips the ACK-and-dedupe path
	// entirely: the number it carries is routinely one this side has
	// already seen (a dedupe drop would strand the attacker), and ACKing
	// it could clear an unrelated pending send that happens to hold the
	// same number. It is sent best-effort, so nothing awaits its ACK;
	// network-duplicated confirms are absorbed by the handler, which is
	// a no-op outside PROCESSING_TURN.
	if _, isConfirm := msg.(wire.CalculationConfirm); isConfirm {
		e.dispatch(addr, msg)
		return
	}

	number := seq.Seq()
	e.sendAck(addr, number)
	source := addr.String()
	if e.rel.IsDuplicate(source, number) {
		return
	}
	e.rel.MarkReceived(source, number)

	e.dispatch(addr, msg)
}

// dispatch is the exhaustive type switch driving every inbound message
// variant to its handler. Messages arriving in a state that does not
// accept them are silently dropped; they have already been ACKed above,
// so the sender stops retransmitting regardless.
func (e *Endpoint) dispatch(addr net.Addr, msg wire.Message) {
	switch m := msg.(type) {
	case wire.HandshakeRequest:
		e.handleHandshakeRequest(addr, m)
	case wire.HandshakeResponse:
		e.handleHandshakeResponse(addr, m)
	case wire.SpectatorRequest:
		e.handleSpectatorRequest(addr, m)
	case wire.BattleSetup:
		e.handleBattleSetup(addr, m)
	case wire.AttackAnnounce:
		e.handleAttackAnnounce(addr, m)
	case wire.DefenseAnnounce:
		e.handleDefenseAnnounce(addr, m)
	case wire.CalculationReport:
		e.handleCalculationReport(addr, m)
	case wire.CalculationConfirm:
		e.handleCalculationConfirm(addr, m)
	case wire.ResolutionRequest:
		e.handleResolutionRequest(addr, m)
	case wire.GameOver:
		e.handleGameOver(addr, m)
	case wire.RematchRequest:
		e.handleRematchRequest(addr, m)
	case wire.ChatMessage:
		e.handleChatMessage(addr, m)
	case wire.BoostActivation:
		// Reserved opcode with no wired consumer (open question #3).
	default:
		e.log.Debug("endpoint: no handler for message", logging.String("type", string(msg.MessageType())))
	}
}

// mirrorIfHost forwards a battle-relevant message to every spectator
// when this endpoint is the Host, covering both inbound and outbound
// battle traffic. A no-op for other roles.
func (e *Endpoint) mirrorIfHost(msg wire.Sequenced) {
	if e.role != RoleHost {
		return
	}
	e.mirrorToSpectators(msg)
}

func drawSeed() (uint32, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	seed := binary.BigEndian.Uint32(buf[:])
	if seed == 0 {
		seed = 1
	}
	return seed, nil
}
