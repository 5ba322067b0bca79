package endpoint

import (
	"fmt"
	"net"

	"pokeproto/internal/battle"
	"pokeproto/internal/combat"
	"pokeproto/internal/logging"
	"pokeproto/internal/wire"
)

func toCombatCombatant(c battle.Combatant) combat.Combatant {
	return combat.Combatant{
		Name:  c.Creature.Name,
		Stats: c.Creature.Stats,
		Type1: c.Creature.Type1,
		Type2: c.Creature.Type2,
	}
}

// handleCommand applies one public-API request on the main-loop
// goroutine and returns the error to deliver back to the caller.
func (e *Endpoint) handleCommand(cmd command) error {
	switch cmd.kind {
	case cmdStartBattle:
		return e.startBattle(cmd.creatureName, cmd.atkUses, cmd.defUses)
	case cmdUseMove:
		return e.useMove(cmd.moveName)
	case cmdSendChat:
		return e.sendChat(cmd.chatSender, cmd.chatText)
	case cmdSendSticker:
		return e.sendSticker(cmd.chatSender, cmd.stickerBytes)
	case cmdRequestRematch:
		return e.requestRematch(cmd.wantsRematch)
	case cmdDisconnect:
		return e.disconnect()
	default:
		return fmt.Errorf("endpoint: unknown command")
	}
}

func (e *Endpoint) startBattle(creatureName string, atkUses, defUses int) error {
	if !e.connected.Load() || e.peerAddr == nil {
		return ErrNotConnected
	}
	if e.role == RoleSpectator {
		return fmt.Errorf("endpoint: spectators cannot start a battle")
	}
	creature, ok := e.creatures.Get(creatureName)
	if !ok {
		return fmt.Errorf("endpoint: unknown creature %q", creatureName)
	}
	e.machine.SetMine(*creature, atkUses, defUses)

	setup := &wire.BattleSetup{
		CommunicationMode: "P2P",
		PokemonName:       creature.Name,
		StatBoosts:        wire.StatBoosts{SpecialAttackUses: atkUses, SpecialDefenseUses: defUses},
		Pokemon:           "{}",
	}
	if err := e.sendTracked(e.peerAddr, setup); err != nil {
		return err
	}
	e.mirrorIfHost(setup)
	e.maybeAdvanceToWaiting()
	return nil
}

// handleBattleSetup records the opponent's chosen creature. A
// BATTLE_SETUP received outside Setup is a stale resend and is ignored,
// preventing it from corrupting a battle already underway.
func (e *Endpoint) handleBattleSetup(addr net.Addr, m wire.BattleSetup) {
	if e.machine.State() != battle.StateSetup {
		return
	}
	creature, ok := e.creatures.Get(m.PokemonName)
	if !ok {
		e.log.Debug("endpoint: battle setup names unknown creature", logging.String("pokemon_name", m.PokemonName))
		return
	}
	e.machine.SetOpponent(*creature, m.StatBoosts.SpecialAttackUses, m.StatBoosts.SpecialDefenseUses)
	e.mirrorIfHost(&m)
	e.maybeAdvanceToWaiting()
}

func (e *Endpoint) maybeAdvanceToWaiting() {
	if _, ok := e.machine.Mine(); !ok {
		return
	}
	if _, ok := e.machine.Opponent(); !ok {
		return
	}
	e.machine.AdvanceToWaiting()
}

func (e *Endpoint) useMove(moveName string) error {
	if !e.machine.IsMyTurn() {
		return fmt.Errorf("endpoint: not your turn")
	}
	if _, ok := e.moves.Get(moveName); !ok {
		return fmt.Errorf("endpoint: unknown move %q", moveName)
	}
	mine, ok := e.machine.Mine()
	if !ok {
		return fmt.Errorf("endpoint: no combatant assigned")
	}

	e.machine.AdvanceToProcessing(moveName, mine.Creature.Name)

	announce := &wire.AttackAnnounce{MoveName: moveName}
	if err := e.sendTracked(e.peerAddr, announce); err != nil {
		return err
	}
	e.mirrorIfHost(announce)
	e.doCalculation(mine.Creature.Name, moveName)
	return nil
}

// handleAttackAnnounce implements the defender's half of the announce
// phase: reply DEFENSE_ANNOUNCE, then independently compute and report
// the same turn's damage. A duplicate announce for the turn already in
// progress is ignored.
func (e *Endpoint) handleAttackAnnounce(addr net.Addr, m wire.AttackAnnounce) {
	// A lost CALCULATION_CONFIRM would strand the attacker in
	// PROCESSING_TURN: the peer only announces a new move after
	// completing the previous turn, so a fresh announce doubles as
	// proof that the turn was confirmed on the other side.
	if e.machine.State() == battle.StateProcessingTurn && e.machine.IsActiveThisTurn() && e.machine.CalculationsMatch() {
		e.machine.MarkCalculationConfirmed()
		e.completeTurn()
	}
	if e.machine.State() != battle.StateWaitingForMove {
		return
	}
	opponent, ok := e.machine.Opponent()
	if !ok {
		return
	}
	e.machine.AdvanceToProcessing(m.MoveName, opponent.Creature.Name)
	e.doCalculation(opponent.Creature.Name, m.MoveName)
	e.mirrorIfHost(&m)

	defense := &wire.DefenseAnnounce{}
	if err := e.sendTracked(addr, defense); err != nil {
		e.log.Warn("endpoint: failed to send defense announce", logging.Error(err))
	}
	e.mirrorIfHost(defense)

	e.sendMyCalculationReport(addr)
}

// handleDefenseAnnounce implements the attacker's half: send its
// already-computed CALCULATION_REPORT now that the defender has
// acknowledged the turn.
func (e *Endpoint) handleDefenseAnnounce(addr net.Addr, m wire.DefenseAnnounce) {
	if e.machine.State() != battle.StateProcessingTurn {
		return
	}
	e.mirrorIfHost(&m)
	e.sendMyCalculationReport(addr)
}

func (e *Endpoint) sendMyCalculationReport(addr net.Addr) {
	calc, ok := e.machine.MyCalculation()
	if !ok {
		return
	}
	report := &wire.CalculationReport{
		Attacker:            calc.Attacker,
		MoveUsed:            calc.MoveUsed,
		RemainingHealth:     calc.DefenderHPRemaining,
		DamageDealt:         calc.DamageDealt,
		DefenderHPRemaining: calc.DefenderHPRemaining,
		StatusMessage:       e.lastStatusMessage,
	}
	if err := e.sendTracked(addr, report); err != nil {
		e.log.Warn("endpoint: failed to send calculation report", logging.Error(err))
		return
	}
	e.mirrorIfHost(report)
}

// doCalculation runs the shared deterministic damage algorithm for the
// turn's attacker/move, records and speculatively applies the result
// locally, and checks for a terminal state. Both peers run this
// independently with identical arguments; agreement is checked when the
// peer's report arrives.
func (e *Endpoint) doCalculation(attackerName, moveName string) {
	mine, _ := e.machine.Mine()
	opponent, _ := e.machine.Opponent()
	mv, ok := e.moves.Get(moveName)
	if !ok {
		return
	}

	var attacker, defender battle.Combatant
	if mine.Creature.Name == attackerName {
		attacker, defender = mine, opponent
	} else {
		attacker, defender = opponent, mine
	}

	outcome := e.calc.CalculateTurnOutcome(
		toCombatCombatant(attacker), toCombatCombatant(defender),
		attacker.CurrentHP, defender.CurrentHP, *mv, 0,
	)

	calc := battle.Calculation{
		Attacker:            outcome.Attacker,
		MoveUsed:            outcome.MoveUsed,
		DamageDealt:         outcome.DamageDealt,
		DefenderHPRemaining: outcome.DefenderHPRemaining,
	}
	e.machine.RecordMyCalculation(calc)
	e.lastStatusMessage = outcome.StatusMessage
	e.machine.ApplyCalculation(calc)
	e.checkGameOver()
	e.events.publish(Event{Kind: EventBattleUpdate, Text: outcome.StatusMessage})
}

// handleCalculationReport records the opponent's independently computed
// result and, once both calculations are present, either confirms
// agreement or raises a resolution request. The report may arrive
// before or after the local calculation completes; both orders work
// because comparison only happens once both sides are buffered.
func (e *Endpoint) handleCalculationReport(addr net.Addr, m wire.CalculationReport) {
	if e.machine.State() != battle.StateProcessingTurn {
		return
	}
	opponentCalc := battle.Calculation{
		Attacker:            m.Attacker,
		MoveUsed:            m.MoveUsed,
		DamageDealt:         m.DamageDealt,
		DefenderHPRemaining: m.DefenderHPRemaining,
	}
	e.machine.RecordOpponentCalculation(opponentCalc)
	e.mirrorIfHost(&m)
	e.tryResolveCalculation(addr, m.SequenceNumber)
}

func (e *Endpoint) tryResolveCalculation(addr net.Addr, reportSeq uint32) {
	mine, ok := e.machine.MyCalculation()
	if !ok {
		return
	}
	if e.machine.CalculationsMatch() {
		e.sendWithSeq(addr, &wire.CalculationConfirm{}, reportSeq)
		e.machine.MarkCalculationConfirmed()
		if !e.machine.IsActiveThisTurn() {
			e.completeTurn()
		}
		return
	}

	resolution := &wire.ResolutionRequest{
		Attacker:            mine.Attacker,
		MoveUsed:            mine.MoveUsed,
		DamageDealt:         mine.DamageDealt,
		DefenderHPRemaining: mine.DefenderHPRemaining,
	}
	if err := e.sendTracked(addr, resolution); err != nil {
		e.log.Warn("endpoint: failed to send resolution request", logging.Error(err))
	}
	// The resolution carries the final authoritative values already, so
	// the sender converges immediately; there is no further confirm
	// round trip for the resolution path.
	e.machine.MarkCalculationConfirmed()
	e.completeTurn()
}

// handleCalculationConfirm advances the active peer to WaitingForMove.
// The transition rule is asymmetric: the attacker advances on receiving
// CALCULATION_CONFIRM, the defender already advanced when it sent its
// own.
func (e *Endpoint) handleCalculationConfirm(addr net.Addr, m wire.CalculationConfirm) {
	if e.machine.State() != battle.StateProcessingTurn {
		return
	}
	if !e.machine.IsActiveThisTurn() {
		return
	}
	e.machine.MarkCalculationConfirmed()
	e.completeTurn()
}

// handleResolutionRequest unconditionally overwrites local state with
// the sender's values: a last-writer-wins tiebreak that provides
// convergence, not cryptographic agreement.
func (e *Endpoint) handleResolutionRequest(addr net.Addr, m wire.ResolutionRequest) {
	if e.machine.State() != battle.StateProcessingTurn {
		return
	}
	calc := battle.Calculation{
		Attacker:            m.Attacker,
		MoveUsed:            m.MoveUsed,
		DamageDealt:         m.DamageDealt,
		DefenderHPRemaining: m.DefenderHPRemaining,
	}
	e.machine.Resolve(calc)
	e.mirrorIfHost(&m)
	e.checkGameOver()
	e.completeTurn()
}

func (e *Endpoint) completeTurn() {
	e.machine.AdvanceToComplete()
	e.lastStatusMessage = ""
}

// checkGameOver runs after every applied calculation: the instant
// either combatant's HP hits zero the battle transitions to GAME_OVER
// and announces it. Both peers detect this independently and each sends
// its own GAME_OVER; receiving the peer's copy while already in
// GAME_OVER leaves the state unchanged.
func (e *Endpoint) checkGameOver() {
	if e.machine.IsGameOver() {
		return
	}
	mine, ok1 := e.machine.Mine()
	opponent, ok2 := e.machine.Opponent()
	if !ok1 || !ok2 {
		return
	}
	if !mine.IsFainted() && !opponent.IsFainted() {
		return
	}
	e.machine.AdvanceToGameOver()
	winner := e.machine.GetWinner()
	loser := mine.Creature.Name
	if winner == loser {
		loser = opponent.Creature.Name
	}
	gameOver := &wire.GameOver{Winner: winner, Loser: loser}
	if e.peerAddr != nil {
		if err := e.sendTracked(e.peerAddr, gameOver); err != nil {
			e.log.Warn("endpoint: failed to send game over", logging.Error(err))
		}
	}
	e.mirrorIfHost(gameOver)
	e.events.publish(Event{Kind: EventBattleUpdate, Text: fmt.Sprintf("%s defeated %s", winner, loser)})
}

func (e *Endpoint) handleGameOver(addr net.Addr, m wire.GameOver) {
	e.machine.AdvanceToGameOver()
	e.mirrorIfHost(&m)
	e.events.publish(Event{Kind: EventBattleUpdate, Text: fmt.Sprintf("%s defeated %s", m.Winner, m.Loser)})
}

func (e *Endpoint) requestRematch(wants bool) error {
	if e.machine.State() != battle.StateGameOver {
		return fmt.Errorf("endpoint: rematch only valid after game over")
	}
	e.myRematchWanted = wants
	req := &wire.RematchRequest{WantsRematch: wants}
	if err := e.sendTracked(e.peerAddr, req); err != nil {
		return err
	}
	e.mirrorIfHost(req)
	e.checkRematch()
	return nil
}

func (e *Endpoint) handleRematchRequest(addr net.Addr, m wire.RematchRequest) {
	if e.machine.State() != battle.StateGameOver {
		return
	}
	e.opponentRematchWanted = m.WantsRematch
	e.mirrorIfHost(&m)
	e.checkRematch()
}

// checkRematch restarts the session once both peers have requested one;
// until then it changes nothing.
func (e *Endpoint) checkRematch() {
	if !e.myRematchWanted || !e.opponentRematchWanted {
		return
	}
	e.rel.Reset()
	e.machine.Reset()
	e.myRematchWanted = false
	e.opponentRematchWanted = false
	e.lastStatusMessage = ""
	e.events.publish(Event{Kind: EventBattleUpdate, Text: "rematch starting"})
}

func (e *Endpoint) disconnect() error {
	e.machine.MarkDisconnected()
	e.rel.Reset()
	e.events.publish(Event{Kind: EventDisconnected})
	return e.conn.Close()
}
