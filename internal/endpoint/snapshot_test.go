package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/snappy"

	"pokeproto/internal/battle"
	"pokeproto/internal/endpoint/endpointtest"
	"pokeproto/internal/logging"
)

func TestSnapshotWriterAppendsSnappyCompressedSnapshots(t *testing.T) {
	creatures, moves := testStores(t)
	cfg := testConfig()
	cfg.SnapshotPath = filepath.Join(t.TempDir(), "snapshot.jsonl.sz")
	cfg.SnapshotInterval = 5 * time.Millisecond
	log := logging.NewTestLogger()

	net := endpointtest.NewNetwork()
	hostConn := net.NewConn("host")
	joinerConn := net.NewConn("joiner")

	host := NewHost(hostConn, cfg, creatures, moves, log)
	joiner := NewJoiner(joinerConn, hostConn.LocalAddr(), cfg, creatures, moves, log)

	ctx, cancel := context.WithCancel(context.Background())
	go host.Run(ctx)
	go joiner.Run(ctx)

	if err := joiner.Connect(ctx); err != nil {
		cancel()
		t.Fatalf("joiner connect: %v", err)
	}
	waitUntil(t, func() bool { return host.Connected() })

	if err := host.StartBattle(context.Background(), "Charizard", 0, 0); err != nil {
		cancel()
		t.Fatalf("StartBattle: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var raw []byte
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(cfg.SnapshotPath)
		if err == nil && len(data) > 0 {
			raw = data
			// The writer ticks from the moment Run starts, so the earliest
			// lines predate StartBattle; wait for one written after it.
			decoded, derr := io.ReadAll(snappy.NewReader(bytes.NewReader(data)))
			if derr == nil && bytes.Contains(decoded, []byte(`"mine_name":"Charizard"`)) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if len(raw) == 0 {
		t.Fatalf("expected the snapshot writer to have produced a non-empty file at %s", cfg.SnapshotPath)
	}

	decoded, err := io.ReadAll(snappy.NewReader(bytes.NewReader(raw)))
	if err != nil {
		t.Fatalf("snappy stream decode: %v", err)
	}

	lines := bytes.Split(bytes.TrimSpace(decoded), []byte("\n"))
	line := lines[len(lines)-1]
	var snap battle.Snapshot
	if err := json.Unmarshal(line, &snap); err != nil {
		t.Fatalf("unmarshal snapshot line: %v", err)
	}
	if snap.MineName != "Charizard" {
		t.Fatalf("expected snapshot to reflect the started battle, got %+v", snap)
	}
}
