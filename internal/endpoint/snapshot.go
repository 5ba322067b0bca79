package endpoint

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/golang/snappy"

	"pokeproto/internal/logging"
)

// startSnapshotWriter launches the optional diagnostic observer: a
// timer-driven goroutine that serializes a live snapshot of battle
// state. It takes a strictly read-only view; Snapshot() goes through
// battle.Machine's own lock and returns a value type, so the goroutine
// never touches Run's machine/rel/rosterRef state and cannot race
// with it.
//
// A no-op when cfg.SnapshotPath is empty (the default).
func (e *Endpoint) startSnapshotWriter(ctx context.Context) {
	if e.cfg.SnapshotPath == "" {
		return
	}
	file, err := os.OpenFile(e.cfg.SnapshotPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		e.log.Warn("endpoint: snapshot writer disabled", logging.Error(err))
		return
	}
	// Capture the logger now: the main loop rebinds e.log with a session
	// ID once a handshake completes, and this goroutine must not read
	// that field concurrently.
	go e.runSnapshotWriter(ctx, file, e.log)
}

// runSnapshotWriter appends one snappy-framed JSON line per tick to the
// snapshot file. Unlike the wire codec, this file is a local diagnostic
// artifact no peer ever parses, so compression carries no interop
// concern here.
func (e *Endpoint) runSnapshotWriter(ctx context.Context, file *os.File, log *logging.Logger) {
	defer file.Close()
	stream := snappy.NewBufferedWriter(file)
	defer stream.Close()

	ticker := time.NewTicker(e.cfg.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := e.Snapshot()
			line, err := json.Marshal(snap)
			if err != nil {
				log.Warn("endpoint: snapshot marshal failed", logging.Error(err))
				continue
			}
			line = append(line, '\n')
			if _, err := stream.Write(line); err != nil {
				log.Warn("endpoint: snapshot write failed", logging.Error(err))
				return
			}
			if err := stream.Flush(); err != nil {
				log.Warn("endpoint: snapshot flush failed", logging.Error(err))
				return
			}
		}
	}
}
