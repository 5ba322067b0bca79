package reliability

import (
	"testing"
	"time"

	"pokeproto/internal/wire"
)

func TestNextSequenceStartsAtOne(t *testing.T) {
	l := New()
	if got := l.NextSequence(); got != 1 {
		t.Fatalf("expected first sequence number 1, got %d", got)
	}
	if got := l.NextSequence(); got != 2 {
		t.Fatalf("expected second sequence number 2, got %d", got)
	}
}

func TestRegisterSendTracksPendingUntilAck(t *testing.T) {
	l := New()
	msg := &wire.AttackAnnounce{MoveName: "Tackle"}
	seq := l.RegisterSend(msg)

	if msg.SequenceNumber != seq {
		t.Fatalf("expected message to be stamped with seq %d, got %d", seq, msg.SequenceNumber)
	}
	if !l.HasPending() {
		t.Fatal("expected a pending send after RegisterSend")
	}

	l.OnAck(seq)
	if l.HasPending() {
		t.Fatal("expected no pending sends after OnAck")
	}
}

func TestTickRetransmitsWithOriginalSequenceNumber(t *testing.T) {
	current := time.Unix(0, 0)
	clock := func() time.Time { return current }
	l := New(WithClock(clock), WithTimeout(time.Second), WithMaxRetries(3))

	msg := &wire.AttackAnnounce{MoveName: "Tackle"}
	seq := l.RegisterSend(msg)

	current = current.Add(2 * time.Second)
	due, exhausted := l.Tick()
	if len(exhausted) != 0 {
		t.Fatalf("expected no exhausted sends yet, got %v", exhausted)
	}
	if len(due) != 1 {
		t.Fatalf("expected exactly one retransmission, got %d", len(due))
	}
	if due[0].Seq != seq {
		t.Fatalf("expected retransmission to reuse original sequence %d, got %d", seq, due[0].Seq)
	}
}

func TestTickExhaustsAfterMaxRetries(t *testing.T) {
	current := time.Unix(0, 0)
	clock := func() time.Time { return current }
	l := New(WithClock(clock), WithTimeout(time.Second), WithMaxRetries(2))

	msg := &wire.AttackAnnounce{MoveName: "Tackle"}
	seq := l.RegisterSend(msg)

	for i := 0; i < 2; i++ {
		current = current.Add(2 * time.Second)
		due, exhausted := l.Tick()
		if len(due) != 1 || len(exhausted) != 0 {
			t.Fatalf("attempt %d: expected one retransmission and no exhaustion, got due=%v exhausted=%v", i, due, exhausted)
		}
	}

	current = current.Add(2 * time.Second)
	due, exhausted := l.Tick()
	if len(due) != 0 {
		t.Fatalf("expected no further retransmission once retries are exhausted, got %v", due)
	}
	if len(exhausted) != 1 || exhausted[0] != seq {
		t.Fatalf("expected seq %d to be reported exhausted, got %v", seq, exhausted)
	}
	if l.HasPending() {
		t.Fatal("expected exhausted send to be dropped from pending tracking")
	}
}

func TestIsDuplicateAndMarkReceived(t *testing.T) {
	l := New()
	if l.IsDuplicate("peer", 5) {
		t.Fatal("expected 5 to not be a duplicate before being marked received")
	}
	l.MarkReceived("peer", 5)
	if !l.IsDuplicate("peer", 5) {
		t.Fatal("expected 5 to be a duplicate after being marked received")
	}
}

func TestDuplicateDetectionIsScopedPerSource(t *testing.T) {
	l := New()
	l.MarkReceived("joiner", 1)
	// Every peer runs its own counter from 1, so a spectator's first
	// message must not collide with the joiner's.
	if l.IsDuplicate("spectator", 1) {
		t.Fatal("expected sequence 1 from a different source to not be a duplicate")
	}
}

func TestReceivedWindowEvictsOldestBeyondCapacity(t *testing.T) {
	l := New()
	for seq := uint32(1); seq <= receivedWindowSize+1; seq++ {
		l.MarkReceived("peer", seq)
	}
	if l.IsDuplicate("peer", 1) {
		t.Fatal("expected sequence 1 to have been evicted from the window")
	}
	if !l.IsDuplicate("peer", receivedWindowSize+1) {
		t.Fatal("expected the most recent sequence to still be tracked")
	}
}

func TestWithDuplicateWindowOverridesCapacity(t *testing.T) {
	l := New(WithDuplicateWindow(2))
	l.MarkReceived("peer", 1)
	l.MarkReceived("peer", 2)
	l.MarkReceived("peer", 3)
	if l.IsDuplicate("peer", 1) {
		t.Fatal("expected sequence 1 to have been evicted from the shrunken window")
	}
	if !l.IsDuplicate("peer", 2) || !l.IsDuplicate("peer", 3) {
		t.Fatal("expected the two most recent sequences to still be tracked")
	}
}

func TestResetClearsAllState(t *testing.T) {
	l := New()
	msg := &wire.AttackAnnounce{MoveName: "Tackle"}
	l.RegisterSend(msg)
	l.MarkReceived("peer", 1)

	l.Reset()

	if l.HasPending() {
		t.Fatal("expected no pending sends after Reset")
	}
	if l.IsDuplicate("peer", 1) {
		t.Fatal("expected received-sequence window to be cleared after Reset")
	}
	if got := l.NextSequence(); got != 1 {
		t.Fatalf("expected sequence counter to restart at 1 after Reset, got %d", got)
	}
}
