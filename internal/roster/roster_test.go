package roster

import (
	"errors"
	"net"
	"testing"
)

func udpAddr(t *testing.T, s string) *net.UDPAddr {
	t.Helper()
	addr, err := net.ResolveUDPAddr("udp", s)
	if err != nil {
		t.Fatalf("ResolveUDPAddr(%q): %v", s, err)
	}
	return addr
}

func TestAddReportsNewlyAdded(t *testing.T) {
	r := New()
	a := udpAddr(t, "127.0.0.1:9000")
	if !r.Add(a) {
		t.Fatal("expected first Add to report newly added")
	}
	if r.Add(a) {
		t.Fatal("expected second Add of the same address to report not newly added")
	}
	if r.Len() != 1 {
		t.Fatalf("expected roster length 1, got %d", r.Len())
	}
}

func TestRemoveDropsSpectator(t *testing.T) {
	r := New()
	a := udpAddr(t, "127.0.0.1:9000")
	r.Add(a)
	r.Remove(a)
	if r.Len() != 0 {
		t.Fatalf("expected roster length 0 after Remove, got %d", r.Len())
	}
}

func TestSnapshotIsSortedAndStable(t *testing.T) {
	r := New()
	r.Add(udpAddr(t, "127.0.0.1:9002"))
	r.Add(udpAddr(t, "127.0.0.1:9001"))
	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 spectators, got %d", len(snap))
	}
	if snap[0].String() != "127.0.0.1:9001" {
		t.Fatalf("expected sorted snapshot to start with port 9001, got %v", snap)
	}
}

func TestBroadcastEvictsFailedSends(t *testing.T) {
	r := New()
	good := udpAddr(t, "127.0.0.1:9001")
	bad := udpAddr(t, "127.0.0.1:9002")
	r.Add(good)
	r.Add(bad)

	failed := r.Broadcast(func(addr net.Addr) error {
		if addr.String() == bad.String() {
			return errors.New("simulated send failure")
		}
		return nil
	})

	if len(failed) != 1 || failed[0].String() != bad.String() {
		t.Fatalf("expected only %v to be reported as failed, got %v", bad, failed)
	}
	if r.Len() != 1 {
		t.Fatalf("expected roster length 1 after evicting the failed send, got %d", r.Len())
	}
}
