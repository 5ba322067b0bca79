// Package battle implements the turn-based state machine both peers run
// in lockstep: SETUP, WAITING_FOR_MOVE, PROCESSING_TURN, GAME_OVER, and
// DISCONNECTED, plus the four-phase calculation handshake within each
// turn (announce, report, confirm, resolve).
package battle

import (
	"sync"

	"pokeproto/internal/catalog"
	"pokeproto/internal/logging"
)

// State enumerates the battle state machine's states.
type State string

const (
	StateSetup          State = "SETUP"
	StateWaitingForMove State = "WAITING_FOR_MOVE"
	StateProcessingTurn State = "PROCESSING_TURN"
	StateGameOver       State = "GAME_OVER"
	StateDisconnected   State = "DISCONNECTED"
)

// Combatant tracks one side's in-battle Pokémon: its static catalog data
// plus the HP and boost-use counters that change turn to turn.
type Combatant struct {
	Creature           catalog.Creature
	CurrentHP          int
	MaxHP              int
	SpecialAttackUses  int
	SpecialDefenseUses int
}

// NewCombatant seeds a Combatant at full health with the given boost
// allotments.
func NewCombatant(creature catalog.Creature, specialAttackUses, specialDefenseUses int) Combatant {
	return Combatant{
		Creature:           creature,
		CurrentHP:          creature.Stats.HP,
		MaxHP:              creature.Stats.HP,
		SpecialAttackUses:  specialAttackUses,
		SpecialDefenseUses: specialDefenseUses,
	}
}

// TakeDamage reduces CurrentHP by damage, clamped at zero, and returns
// the resulting HP.
func (c *Combatant) TakeDamage(damage int) int {
	c.CurrentHP -= damage
	if c.CurrentHP < 0 {
		c.CurrentHP = 0
	}
	return c.CurrentHP
}

// IsFainted reports whether the combatant has zero or less HP.
func (c Combatant) IsFainted() bool { return c.CurrentHP <= 0 }

// CanUseSpecialAttackBoost reports whether an activation remains.
func (c Combatant) CanUseSpecialAttackBoost() bool { return c.SpecialAttackUses > 0 }

// CanUseSpecialDefenseBoost reports whether an activation remains.
func (c Combatant) CanUseSpecialDefenseBoost() bool { return c.SpecialDefenseUses > 0 }

// UseSpecialAttackBoost consumes one activation, reporting whether one
// was available to consume.
func (c *Combatant) UseSpecialAttackBoost() bool {
	if !c.CanUseSpecialAttackBoost() {
		return false
	}
	c.SpecialAttackUses--
	return true
}

// UseSpecialDefenseBoost consumes one activation, reporting whether one
// was available to consume.
func (c *Combatant) UseSpecialDefenseBoost() bool {
	if !c.CanUseSpecialDefenseBoost() {
		return false
	}
	c.SpecialDefenseUses--
	return true
}

// Calculation is the subset of a damage resolution both peers must agree
// on before either applies it to battle state.
type Calculation struct {
	Attacker            string
	MoveUsed            string
	DamageDealt         int
	DefenderHPRemaining int
}

// Matches reports whether two calculations agree on the fields that
// define cross-peer consensus.
func (c Calculation) Matches(other Calculation) bool {
	return c.DamageDealt == other.DamageDealt && c.DefenderHPRemaining == other.DefenderHPRemaining
}

// Machine is the mutex-guarded battle state machine shared by a single
// peer's view of an ongoing battle. A Machine is safe for concurrent use.
type Machine struct {
	mu sync.Mutex

	isHost bool
	state  State

	mine     *Combatant
	opponent *Combatant

	myTurn bool

	lastMove     string
	lastAttacker string

	myCalculation        *Calculation
	opponentCalculation  *Calculation
	calculationConfirmed bool
}

// New constructs a Machine in the SETUP state. The host always takes the
// first turn once the battle reaches WAITING_FOR_MOVE.
func New(isHost bool) *Machine {
	return &Machine{
		isHost: isHost,
		state:  StateSetup,
		myTurn: isHost,
	}
}

// Reset returns the machine to a fresh SETUP state for a rematch,
// discarding both combatants and all per-turn calculation state. The
// host retakes the first turn, exactly as at initial construction.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateSetup
	m.mine = nil
	m.opponent = nil
	m.myTurn = m.isHost
	m.lastMove = ""
	m.lastAttacker = ""
	m.myCalculation = nil
	m.opponentCalculation = nil
	m.calculationConfirmed = false
}

// SetMine assigns the local combatant for battle.
func (m *Machine) SetMine(creature catalog.Creature, specialAttackUses, specialDefenseUses int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := NewCombatant(creature, specialAttackUses, specialDefenseUses)
	m.mine = &c
}

// SetOpponent assigns the opposing combatant for battle.
func (m *Machine) SetOpponent(creature catalog.Creature, specialAttackUses, specialDefenseUses int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := NewCombatant(creature, specialAttackUses, specialDefenseUses)
	m.opponent = &c
}

// AdvanceToWaiting transitions SETUP -> WAITING_FOR_MOVE.
func (m *Machine) AdvanceToWaiting() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateSetup {
		m.state = StateWaitingForMove
	}
}

// AdvanceToProcessing transitions WAITING_FOR_MOVE -> PROCESSING_TURN,
// clearing any calculation state left over from the previous turn.
func (m *Machine) AdvanceToProcessing(moveName, attackerName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateWaitingForMove {
		return
	}
	m.state = StateProcessingTurn
	m.lastMove = moveName
	m.lastAttacker = attackerName
	m.myCalculation = nil
	m.opponentCalculation = nil
	m.calculationConfirmed = false
}

// AdvanceToComplete transitions PROCESSING_TURN -> WAITING_FOR_MOVE and
// flips turn order.
func (m *Machine) AdvanceToComplete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateProcessingTurn {
		return
	}
	m.state = StateWaitingForMove
	m.myTurn = !m.myTurn
	m.lastMove = ""
	m.lastAttacker = ""
}

// AdvanceToGameOver forces a transition to GAME_OVER.
func (m *Machine) AdvanceToGameOver() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateGameOver
}

// MarkDisconnected forces a transition to DISCONNECTED.
func (m *Machine) MarkDisconnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateDisconnected
}

// RecordMyCalculation stores the locally-computed calculation for the
// current turn.
func (m *Machine) RecordMyCalculation(c Calculation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.myCalculation = &c
}

// RecordOpponentCalculation stores the opponent-reported calculation for
// the current turn.
func (m *Machine) RecordOpponentCalculation(c Calculation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opponentCalculation = &c
}

// CalculationsMatch reports whether both peers' calculations have been
// recorded and agree.
func (m *Machine) CalculationsMatch() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.myCalculation == nil || m.opponentCalculation == nil {
		return false
	}
	return m.myCalculation.Matches(*m.opponentCalculation)
}

// MarkCalculationConfirmed records that both peers have agreed on the
// current turn's calculation.
func (m *Machine) MarkCalculationConfirmed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calculationConfirmed = true
}

// IsMyTurn reports whether it is the local peer's turn to act.
func (m *Machine) IsMyTurn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.myTurn && m.state == StateWaitingForMove
}

// IsGameOver reports whether the battle has concluded.
func (m *Machine) IsGameOver() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateGameOver
}

// State returns the machine's current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// GetWinner returns the winning combatant's creature name, or "" if the
// battle is not yet over or neither combatant has fainted.
func (m *Machine) GetWinner() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateGameOver || m.mine == nil || m.opponent == nil {
		return ""
	}
	switch {
	case m.mine.IsFainted():
		return m.opponent.Creature.Name
	case m.opponent.IsFainted():
		return m.mine.Creature.Name
	default:
		return ""
	}
}

// ApplyCalculation applies a confirmed calculation's damage to whichever
// combatant was not the attacker.
func (m *Machine) ApplyCalculation(c Calculation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mine == nil || m.opponent == nil {
		return
	}
	if c.Attacker == m.mine.Creature.Name {
		m.opponent.TakeDamage(c.DamageDealt)
	} else {
		m.mine.TakeDamage(c.DamageDealt)
	}
}

// Resolve forcibly sets both calculations to c, the authoritative
// values carried by a RESOLUTION_REQUEST, and sets the defending
// combatant's HP directly rather than subtracting damage a second
// time. This is the last-writer-wins tiebreak for a calculation
// mismatch.
func (m *Machine) Resolve(c Calculation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.myCalculation = &c
	m.opponentCalculation = &c
	if m.mine == nil || m.opponent == nil {
		return
	}
	if c.Attacker == m.mine.Creature.Name {
		m.opponent.CurrentHP = c.DefenderHPRemaining
	} else {
		m.mine.CurrentHP = c.DefenderHPRemaining
	}
}

// Mine returns a copy of the local combatant, or false if it has not yet
// been assigned via SetMine.
func (m *Machine) Mine() (Combatant, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mine == nil {
		return Combatant{}, false
	}
	return *m.mine, true
}

// Opponent returns a copy of the opposing combatant, or false if it has
// not yet been assigned via SetOpponent.
func (m *Machine) Opponent() (Combatant, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.opponent == nil {
		return Combatant{}, false
	}
	return *m.opponent, true
}

// LastMove and LastAttacker report the move and attacker name recorded
// when the current turn entered PROCESSING_TURN.
func (m *Machine) LastMove() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastMove
}

func (m *Machine) LastAttacker() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastAttacker
}

// IsActiveThisTurn reports whether the local combatant is the attacker
// for the turn currently in progress, as opposed to the defender. The
// distinction drives which peer advances on sending versus on receiving
// CALCULATION_CONFIRM.
func (m *Machine) IsActiveThisTurn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mine != nil && m.mine.Creature.Name == m.lastAttacker
}

// MyCalculation and OpponentCalculation return the calculation recorded
// for the current turn, if any.
func (m *Machine) MyCalculation() (Calculation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.myCalculation == nil {
		return Calculation{}, false
	}
	return *m.myCalculation, true
}

func (m *Machine) OpponentCalculation() (Calculation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.opponentCalculation == nil {
		return Calculation{}, false
	}
	return *m.opponentCalculation, true
}

// IsHost reports whether this machine belongs to the Host role.
func (m *Machine) IsHost() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isHost
}

// Snapshot is a stable, lock-free view of battle state for observers
// such as the diagnostics snapshot writer and spectator feed.
type Snapshot struct {
	State        State  `json:"state"`
	MyTurn       bool   `json:"my_turn"`
	MineName     string `json:"mine_name,omitempty"`
	MineHP       int    `json:"mine_hp"`
	OpponentName string `json:"opponent_name,omitempty"`
	OpponentHP   int    `json:"opponent_hp"`
	LastMove     string `json:"last_move,omitempty"`
	LastAttacker string `json:"last_attacker,omitempty"`
}

// LoggingFields renders a Snapshot as structured logging fields.
func (s Snapshot) LoggingFields() []logging.Field {
	return []logging.Field{
		logging.String("state", string(s.State)),
		logging.Bool("my_turn", s.MyTurn),
		logging.Int("mine_hp", s.MineHP),
		logging.Int("opponent_hp", s.OpponentHP),
	}
}

// Snapshot captures a point-in-time view of the battle for observers.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{
		State:        m.state,
		MyTurn:       m.myTurn,
		LastMove:     m.lastMove,
		LastAttacker: m.lastAttacker,
	}
	if m.mine != nil {
		s.MineName = m.mine.Creature.Name
		s.MineHP = m.mine.CurrentHP
	}
	if m.opponent != nil {
		s.OpponentName = m.opponent.Creature.Name
		s.OpponentHP = m.opponent.CurrentHP
	}
	return s
}
