// Package combat computes the deterministic per-turn damage roll shared
// by both peers in a battle. Given an equal seed and an equal sequence of
// Calculate invocations, two independently running Calculators must
// return identical results on any platform.
package combat

import (
	"fmt"
	"math"

	"pokeproto/internal/catalog"
	"pokeproto/internal/logging"
	"pokeproto/internal/rng"
)

// stabMultiplier is the Same-Type Attack Bonus applied when a move's type
// matches one of the attacker's types.
const stabMultiplier = 1.5

// boostMultiplier is applied to a special stat when its boost is active.
const boostMultiplier = 1.5

// defaultLevel is used whenever a caller does not override it.
const defaultLevel = 50

// Effectiveness looks up the type-matchup multiplier for an attacking
// type against a named defender; satisfied by *catalog.CreatureStore.
type Effectiveness interface {
	Effectiveness(defenderName, attackingType string) float64
}

// Outcome is the result of one Calculate invocation.
type Outcome struct {
	//1.- DamageDealt is always at least 1, per the minimum-damage floor.
	DamageDealt int
	//2.- DefenderHPRemaining is clamped to zero, never negative.
	DefenderHPRemaining int
	StatusMessage       string
	Attacker            string
	MoveUsed            string
}

// Matches reports whether two outcomes agree on the fields that define
// cross-peer calculation agreement (damage dealt and resulting HP).
func (o Outcome) Matches(other Outcome) bool {
	return o.DamageDealt == other.DamageDealt && o.DefenderHPRemaining == other.DefenderHPRemaining
}

// LoggingFields returns structured logging fields describing the outcome.
func (o Outcome) LoggingFields() []logging.Field {
	return []logging.Field{
		logging.String("attacker", o.Attacker),
		logging.String("move_used", o.MoveUsed),
		logging.Int("damage_dealt", o.DamageDealt),
		logging.Int("defender_hp_remaining", o.DefenderHPRemaining),
	}
}

// Combatant is the subset of battle-creature state the calculator needs.
type Combatant struct {
	Name  string
	Stats catalog.Stats
	Type1 string
	Type2 string
}

// Calculator holds the seeded PRNG shared by both peers' damage rolls.
type Calculator struct {
	prng          *rng.MT19937
	effectiveness Effectiveness
}

// NewCalculator constructs a calculator bound to a type-effectiveness
// source, seeded with zero until SetSeed is called with the negotiated
// handshake seed.
func NewCalculator(effectiveness Effectiveness) *Calculator {
	return &Calculator{prng: rng.New(0), effectiveness: effectiveness}
}

// SetSeed reinitializes the PRNG, synchronizing both peers' calculators.
func (c *Calculator) SetSeed(seed uint32) {
	c.prng = rng.New(seed)
}

// Calculate runs the per-call damage algorithm and returns the damage
// amount and a human-readable status message. All intermediate math is
// carried in float64; truncation toward zero happens in exactly two
// places, the boosted-stat adjustment and the final damage cast, and
// nowhere else, or the two peers' integers drift apart.
func (c *Calculator) Calculate(attacker, defender Combatant, move catalog.Move, level int, attackerBoost, defenderBoost bool) (int, string) {
	if level <= 0 {
		level = defaultLevel
	}

	var attackerStat, defenderStat float64
	if move.Category == catalog.CategoryPhysical {
		attackerStat = float64(attacker.Stats.Attack)
		defenderStat = float64(defender.Stats.Defense)
	} else {
		attackerStat = float64(attacker.Stats.SpAttack)
		defenderStat = float64(defender.Stats.SpDefense)
		if attackerBoost {
			attackerStat = math.Trunc(attackerStat * boostMultiplier)
		}
		if defenderBoost {
			defenderStat = math.Trunc(defenderStat * boostMultiplier)
		}
	}

	typeEff := c.effectiveness.Effectiveness(defender.Name, move.Type)

	stab := 1.0
	if move.Type == attacker.Type1 || (attacker.Type2 != "" && move.Type == attacker.Type2) {
		stab = stabMultiplier
	}

	//1.- Draw exactly one uniform sample per calculation, in this position,
	//    so both peers' PRNG streams stay lockstep across the whole battle.
	random := c.prng.UniformFloat64(0.85, 1.0)

	base := (2*float64(level)/5+2)*float64(move.Power)*attackerStat/defenderStat/50 + 2
	damage := int(math.Trunc(base * typeEff * stab * random))
	if damage < 1 {
		damage = 1
	}

	status := statusMessage(attacker.Name, defender.Name, move.Name, typeEff, damage)
	return damage, status
}

func statusMessage(attackerName, defenderName, moveName string, effectiveness float64, damage int) string {
	msg := fmt.Sprintf("%s used %s!", attackerName, moveName)
	switch {
	case effectiveness >= 2.0:
		msg += " It's super effective!"
	case effectiveness <= 0.5:
		msg += " It's not very effective..."
	}
	msg += fmt.Sprintf(" %s took %d damage!", defenderName, damage)
	return msg
}

// CalculateTurnOutcome computes the complete turn result, including the
// defender's remaining HP after the hit.
func (c *Calculator) CalculateTurnOutcome(attacker, defender Combatant, attackerHP, defenderHP int, move catalog.Move, level int) Outcome {
	damage, status := c.Calculate(attacker, defender, move, level, false, false)
	remaining := defenderHP - damage
	if remaining < 0 {
		remaining = 0
	}
	return Outcome{
		DamageDealt:         damage,
		DefenderHPRemaining: remaining,
		StatusMessage:       status,
		Attacker:            attacker.Name,
		MoveUsed:            move.Name,
	}
}
