package combat

import (
	"strings"
	"testing"

	"pokeproto/internal/catalog"
)

type fakeEffectiveness struct{ value float64 }

func (f fakeEffectiveness) Effectiveness(string, string) float64 { return f.value }

func TestCalculateIsDeterministicForEqualSeed(t *testing.T) {
	attacker := Combatant{Name: "Pikachu", Stats: catalog.Stats{SpAttack: 50}, Type1: "electric"}
	defender := Combatant{Name: "Charmander", Stats: catalog.Stats{SpDefense: 50}, Type1: "fire"}
	move := catalog.Move{Name: "Thunderbolt", Power: 90, Category: catalog.CategorySpecial, Type: "electric"}

	a := NewCalculator(fakeEffectiveness{value: 1.0})
	b := NewCalculator(fakeEffectiveness{value: 1.0})
	a.SetSeed(42)
	b.SetSeed(42)

	damageA, msgA := a.Calculate(attacker, defender, move, 50, false, false)
	damageB, msgB := b.Calculate(attacker, defender, move, 50, false, false)

	if damageA != damageB || msgA != msgB {
		t.Fatalf("expected identical outputs for equal seed, got (%d,%q) vs (%d,%q)", damageA, msgA, damageB, msgB)
	}
}

func TestCalculateAppliesSTAB(t *testing.T) {
	attacker := Combatant{Name: "Pikachu", Stats: catalog.Stats{SpAttack: 50}, Type1: "electric"}
	defender := Combatant{Name: "Charmander", Stats: catalog.Stats{SpDefense: 50}, Type1: "fire"}
	move := catalog.Move{Name: "Thunderbolt", Power: 90, Category: catalog.CategorySpecial, Type: "electric"}
	other := Combatant{Name: "Bulbasaur", Stats: catalog.Stats{SpDefense: 50}, Type1: "grass"}
	offType := catalog.Move{Name: "Shadow Ball", Power: 90, Category: catalog.CategorySpecial, Type: "ghost"}

	calc := NewCalculator(fakeEffectiveness{value: 1.0})
	calc.SetSeed(1)
	stabDamage, _ := calc.Calculate(attacker, defender, move, 50, false, false)

	calc2 := NewCalculator(fakeEffectiveness{value: 1.0})
	calc2.SetSeed(1)
	noStabDamage, _ := calc2.Calculate(attacker, other, offType, 50, false, false)

	if stabDamage <= noStabDamage {
		t.Fatalf("expected STAB-boosted damage %d to exceed non-STAB damage %d", stabDamage, noStabDamage)
	}
}

func TestCalculateMinimumDamageFloor(t *testing.T) {
	attacker := Combatant{Name: "Magikarp", Stats: catalog.Stats{Attack: 1}, Type1: "water"}
	defender := Combatant{Name: "Onix", Stats: catalog.Stats{Defense: 999}, Type1: "rock"}
	move := catalog.Move{Name: "Tackle", Power: 1, Category: catalog.CategoryPhysical, Type: "normal"}

	calc := NewCalculator(fakeEffectiveness{value: 0.25})
	calc.SetSeed(7)
	damage, _ := calc.Calculate(attacker, defender, move, 1, false, false)
	if damage < 1 {
		t.Fatalf("expected damage to be floored at 1, got %d", damage)
	}
}

func TestCalculateStatusMessageReflectsEffectiveness(t *testing.T) {
	attacker := Combatant{Name: "Pikachu", Stats: catalog.Stats{SpAttack: 50}, Type1: "electric"}
	defender := Combatant{Name: "Gyarados", Stats: catalog.Stats{SpDefense: 60}, Type1: "water", Type2: "flying"}
	move := catalog.Move{Name: "Thunderbolt", Power: 90, Category: catalog.CategorySpecial, Type: "electric"}

	calc := NewCalculator(fakeEffectiveness{value: 4.0})
	calc.SetSeed(3)
	_, msg := calc.Calculate(attacker, defender, move, 50, false, false)
	if want := "It's super effective!"; !strings.Contains(msg, want) {
		t.Fatalf("expected message to contain %q, got %q", want, msg)
	}
}

func TestCalculateTurnOutcomeClampsHPAtZero(t *testing.T) {
	attacker := Combatant{Name: "Mewtwo", Stats: catalog.Stats{SpAttack: 154}, Type1: "psychic"}
	defender := Combatant{Name: "Magikarp", Stats: catalog.Stats{SpDefense: 20}, Type1: "water"}
	move := catalog.Move{Name: "Psychic", Power: 90, Category: catalog.CategorySpecial, Type: "psychic"}

	calc := NewCalculator(fakeEffectiveness{value: 2.0})
	calc.SetSeed(5)
	outcome := calc.CalculateTurnOutcome(attacker, defender, 100, 20, move, 50)
	if outcome.DefenderHPRemaining != 0 {
		t.Fatalf("expected defender HP to floor at zero, got %d", outcome.DefenderHPRemaining)
	}
}
