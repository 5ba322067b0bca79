package config

import (
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"POKEPROTO_HOST_PORT",
		"POKEPROTO_JOINER_PORT",
		"POKEPROTO_SPECTATOR_PORT",
		"POKEPROTO_MAX_FRAME_BYTES",
		"POKEPROTO_POLL_TIMEOUT",
		"POKEPROTO_RETRY_TIMEOUT",
		"POKEPROTO_MAX_RETRIES",
		"POKEPROTO_DUPLICATE_WINDOW",
		"POKEPROTO_MAX_STICKER_BYTES",
		"POKEPROTO_LOG_LEVEL",
		"POKEPROTO_LOG_PATH",
		"POKEPROTO_LOG_MAX_SIZE_MB",
		"POKEPROTO_LOG_MAX_BACKUPS",
		"POKEPROTO_LOG_MAX_AGE_DAYS",
		"POKEPROTO_LOG_COMPRESS",
		"POKEPROTO_SNAPSHOT_PATH",
		"POKEPROTO_SNAPSHOT_INTERVAL",
		"POKEPROTO_HANDSHAKE_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.HostPort != DefaultHostPort {
		t.Fatalf("expected default host port %d, got %d", DefaultHostPort, cfg.HostPort)
	}
	if cfg.JoinerPort != DefaultJoinerPort {
		t.Fatalf("expected default joiner port %d, got %d", DefaultJoinerPort, cfg.JoinerPort)
	}
	if cfg.SpectatorPort != DefaultSpectatorPort {
		t.Fatalf("expected default spectator port %d, got %d", DefaultSpectatorPort, cfg.SpectatorPort)
	}
	if cfg.Reliability.Timeout != DefaultReliabilityTimeout {
		t.Fatalf("expected default retry timeout %v, got %v", DefaultReliabilityTimeout, cfg.Reliability.Timeout)
	}
	if cfg.Reliability.MaxRetries != DefaultMaxRetries {
		t.Fatalf("expected default max retries %d, got %d", DefaultMaxRetries, cfg.Reliability.MaxRetries)
	}
	if cfg.Reliability.DuplicateWindow != DefaultDuplicateWindow {
		t.Fatalf("expected default duplicate window %d, got %d", DefaultDuplicateWindow, cfg.Reliability.DuplicateWindow)
	}
	if cfg.MaxStickerBytes != DefaultMaxStickerBytes {
		t.Fatalf("expected default max sticker bytes %d, got %d", DefaultMaxStickerBytes, cfg.MaxStickerBytes)
	}
	if cfg.Logging.Level != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.Logging.Level)
	}
	if cfg.Logging.Path != DefaultLogPath {
		t.Fatalf("expected default log path %q, got %q", DefaultLogPath, cfg.Logging.Path)
	}
	if cfg.SnapshotPath != "" {
		t.Fatalf("expected empty snapshot path by default")
	}
	if cfg.SnapshotInterval != DefaultSnapshotInterval {
		t.Fatalf("expected default snapshot interval %v, got %v", DefaultSnapshotInterval, cfg.SnapshotInterval)
	}
	if cfg.HandshakeTimeout != DefaultHandshakeTimeout {
		t.Fatalf("expected default handshake timeout %v, got %v", DefaultHandshakeTimeout, cfg.HandshakeTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("POKEPROTO_HOST_PORT", "9001")
	t.Setenv("POKEPROTO_JOINER_PORT", "9002")
	t.Setenv("POKEPROTO_SPECTATOR_PORT", "9003")
	t.Setenv("POKEPROTO_MAX_FRAME_BYTES", "2048")
	t.Setenv("POKEPROTO_POLL_TIMEOUT", "50ms")
	t.Setenv("POKEPROTO_RETRY_TIMEOUT", "250ms")
	t.Setenv("POKEPROTO_MAX_RETRIES", "5")
	t.Setenv("POKEPROTO_DUPLICATE_WINDOW", "2000")
	t.Setenv("POKEPROTO_MAX_STICKER_BYTES", "1048576")
	t.Setenv("POKEPROTO_LOG_LEVEL", "debug")
	t.Setenv("POKEPROTO_LOG_PATH", "/var/log/pokeproto.log")
	t.Setenv("POKEPROTO_SNAPSHOT_PATH", "/var/run/pokeproto/snapshot.json")
	t.Setenv("POKEPROTO_SNAPSHOT_INTERVAL", "15s")
	t.Setenv("POKEPROTO_HANDSHAKE_TIMEOUT", "2s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.HostPort != 9001 || cfg.JoinerPort != 9002 || cfg.SpectatorPort != 9003 {
		t.Fatalf("unexpected ports: host=%d joiner=%d spectator=%d", cfg.HostPort, cfg.JoinerPort, cfg.SpectatorPort)
	}
	if cfg.MaxFrameBytes != 2048 {
		t.Fatalf("expected max frame bytes 2048, got %d", cfg.MaxFrameBytes)
	}
	if cfg.PollTimeout != 50*time.Millisecond {
		t.Fatalf("expected poll timeout 50ms, got %v", cfg.PollTimeout)
	}
	if cfg.Reliability.Timeout != 250*time.Millisecond {
		t.Fatalf("expected retry timeout 250ms, got %v", cfg.Reliability.Timeout)
	}
	if cfg.Reliability.MaxRetries != 5 {
		t.Fatalf("expected max retries 5, got %d", cfg.Reliability.MaxRetries)
	}
	if cfg.Reliability.DuplicateWindow != 2000 {
		t.Fatalf("expected duplicate window 2000, got %d", cfg.Reliability.DuplicateWindow)
	}
	if cfg.MaxStickerBytes != 1048576 {
		t.Fatalf("expected max sticker bytes 1048576, got %d", cfg.MaxStickerBytes)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected overridden log level debug, got %q", cfg.Logging.Level)
	}
	if cfg.SnapshotPath != "/var/run/pokeproto/snapshot.json" {
		t.Fatalf("unexpected snapshot path %q", cfg.SnapshotPath)
	}
	if cfg.SnapshotInterval != 15*time.Second {
		t.Fatalf("expected snapshot interval 15s, got %v", cfg.SnapshotInterval)
	}
	if cfg.HandshakeTimeout != 2*time.Second {
		t.Fatalf("expected handshake timeout 2s, got %v", cfg.HandshakeTimeout)
	}
}

func TestLoadReturnsValidationErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("POKEPROTO_HOST_PORT", "not-a-port")
	t.Setenv("POKEPROTO_MAX_FRAME_BYTES", "-1")
	t.Setenv("POKEPROTO_POLL_TIMEOUT", "abc")
	t.Setenv("POKEPROTO_MAX_RETRIES", "-1")
	t.Setenv("POKEPROTO_DUPLICATE_WINDOW", "0")
	t.Setenv("POKEPROTO_MAX_STICKER_BYTES", "-5")
	t.Setenv("POKEPROTO_LOG_MAX_SIZE_MB", "0")
	t.Setenv("POKEPROTO_LOG_COMPRESS", "notabool")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error from invalid configuration, got nil")
	}

	for _, want := range []string{
		"POKEPROTO_HOST_PORT",
		"POKEPROTO_MAX_FRAME_BYTES",
		"POKEPROTO_POLL_TIMEOUT",
		"POKEPROTO_MAX_RETRIES",
		"POKEPROTO_DUPLICATE_WINDOW",
		"POKEPROTO_MAX_STICKER_BYTES",
		"POKEPROTO_LOG_MAX_SIZE_MB",
		"POKEPROTO_LOG_COMPRESS",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %s, got %q", want, err.Error())
		}
	}
}
