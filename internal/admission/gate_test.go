package admission

import "testing"

func TestAdmitUpToCapacity(t *testing.T) {
	g := NewGate(2)
	if err := g.Admit("198.51.100.1:8889"); err != nil {
		t.Fatalf("admit peer 1: %v", err)
	}
	if err := g.Admit("198.51.100.2:8890"); err != nil {
		t.Fatalf("admit peer 2: %v", err)
	}
	if err := g.Admit("198.51.100.3:8890"); err != ErrGateFull {
		t.Fatalf("expected ErrGateFull for the third address, got %v", err)
	}
	if g.Held() != 2 {
		t.Fatalf("expected 2 held slots, got %d", g.Held())
	}
}

func TestAdmitRefreshesAnAlreadyHeldAddressWithoutCountingTwice(t *testing.T) {
	g := NewGate(1)
	if err := g.Admit("198.51.100.1:8889"); err != nil {
		t.Fatalf("first admit: %v", err)
	}
	if err := g.Admit("198.51.100.1:8889"); err != nil {
		t.Fatalf("expected a resend from the same address to keep its slot, got %v", err)
	}
	if err := g.Admit("198.51.100.2:8889"); err != ErrGateFull {
		t.Fatalf("expected ErrGateFull for a second address, got %v", err)
	}
}

func TestReleaseFreesTheSlot(t *testing.T) {
	g := NewGate(1)
	if err := g.Admit("198.51.100.1:8889"); err != nil {
		t.Fatalf("admit: %v", err)
	}
	g.Release("198.51.100.1:8889")
	if err := g.Admit("198.51.100.2:8889"); err != nil {
		t.Fatalf("expected the freed slot to be admissible again, got %v", err)
	}
}

func TestZeroCapacityIsUnbounded(t *testing.T) {
	g := NewGate(0)
	for _, addr := range []string{"a:1", "b:2", "c:3", "d:4"} {
		if err := g.Admit(addr); err != nil {
			t.Fatalf("admit %s: %v", addr, err)
		}
	}
	if g.Held() != 4 {
		t.Fatalf("expected 4 held slots, got %d", g.Held())
	}
}

func TestSetCapacityGatesFutureAdmitsOnly(t *testing.T) {
	g := NewGate(0)
	if err := g.Admit("a:1"); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if err := g.Admit("b:2"); err != nil {
		t.Fatalf("admit: %v", err)
	}
	g.SetCapacity(1)
	if g.Held() != 2 {
		t.Fatalf("expected existing slots to survive a shrink, got %d", g.Held())
	}
	if err := g.Admit("c:3"); err != ErrGateFull {
		t.Fatalf("expected ErrGateFull for a new address past the bound, got %v", err)
	}
	if err := g.Admit("a:1"); err != nil {
		t.Fatalf("expected a held address to keep refreshing, got %v", err)
	}
}
