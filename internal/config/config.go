package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultHostPort is the default datagram port for the Host role.
	DefaultHostPort = 8888
	// DefaultJoinerPort is the default datagram port for the Joiner role.
	DefaultJoinerPort = 8889
	// DefaultSpectatorPort is the default datagram port for the Spectator role.
	DefaultSpectatorPort = 8890

	// DefaultMaxFrameBytes bounds a single wire datagram.
	DefaultMaxFrameBytes = 4096
	// DefaultPollTimeout is how long the main loop blocks waiting on a datagram.
	DefaultPollTimeout = 100 * time.Millisecond

	// DefaultReliabilityTimeout is the retransmission timeout for an unacked message.
	DefaultReliabilityTimeout = 500 * time.Millisecond
	// DefaultMaxRetries bounds retransmission attempts before a pending send is evicted.
	DefaultMaxRetries = 3
	// DefaultDuplicateWindow bounds the received-sequence FIFO used for dedupe.
	DefaultDuplicateWindow = 1000

	// DefaultSendRetries bounds immediate retries on a non-fatal outbound send error.
	DefaultSendRetries = 3
	// DefaultSendBackoff is the base linear backoff between outbound send retries.
	DefaultSendBackoff = 20 * time.Millisecond

	// DefaultMaxStickerBytes bounds the decoded size of a STICKER chat payload.
	DefaultMaxStickerBytes int64 = 10 << 20

	// DefaultLogLevel controls verbosity for endpoint logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "pokeproto.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true

	// DefaultSnapshotInterval controls how frequently the optional diagnostic snapshot is written.
	DefaultSnapshotInterval = 5 * time.Second

	// DefaultHandshakeTimeout bounds how long a Joiner or Spectator waits
	// for HANDSHAKE_RESPONSE before surfacing a ConnectError.
	DefaultHandshakeTimeout = 5 * time.Second
)

// Config captures all runtime tunables for a PokéProtocol endpoint.
type Config struct {
	HostPort         int
	JoinerPort       int
	SpectatorPort    int
	MaxFrameBytes    int
	PollTimeout      time.Duration
	Reliability      ReliabilityConfig
	SendRetries      int
	SendBackoff      time.Duration
	MaxStickerBytes  int64
	Logging          LoggingConfig
	SnapshotPath     string
	SnapshotInterval time.Duration
	HandshakeTimeout time.Duration
}

// ReliabilityConfig captures the tunables governing retransmission behaviour.
type ReliabilityConfig struct {
	Timeout         time.Duration
	MaxRetries      int
	DuplicateWindow int
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load reads endpoint configuration from environment variables, applying sane defaults
// and returning descriptive errors for invalid overrides.
func Load() (*Config, error) {
	cfg := &Config{
		HostPort:      DefaultHostPort,
		JoinerPort:    DefaultJoinerPort,
		SpectatorPort: DefaultSpectatorPort,
		MaxFrameBytes: DefaultMaxFrameBytes,
		PollTimeout:   DefaultPollTimeout,
		Reliability: ReliabilityConfig{
			Timeout:         DefaultReliabilityTimeout,
			MaxRetries:      DefaultMaxRetries,
			DuplicateWindow: DefaultDuplicateWindow,
		},
		SendRetries:     DefaultSendRetries,
		SendBackoff:     DefaultSendBackoff,
		MaxStickerBytes: DefaultMaxStickerBytes,
		Logging: LoggingConfig{
			Level:      getString("POKEPROTO_LOG_LEVEL", DefaultLogLevel),
			Path:       getString("POKEPROTO_LOG_PATH", DefaultLogPath),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
		SnapshotPath:     strings.TrimSpace(os.Getenv("POKEPROTO_SNAPSHOT_PATH")),
		SnapshotInterval: DefaultSnapshotInterval,
		HandshakeTimeout: DefaultHandshakeTimeout,
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("POKEPROTO_HOST_PORT")); raw != "" {
		if value, err := parsePort(raw); err != nil {
			problems = append(problems, fmt.Sprintf("POKEPROTO_HOST_PORT must be a valid port, got %q", raw))
		} else {
			cfg.HostPort = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("POKEPROTO_JOINER_PORT")); raw != "" {
		if value, err := parsePort(raw); err != nil {
			problems = append(problems, fmt.Sprintf("POKEPROTO_JOINER_PORT must be a valid port, got %q", raw))
		} else {
			cfg.JoinerPort = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("POKEPROTO_SPECTATOR_PORT")); raw != "" {
		if value, err := parsePort(raw); err != nil {
			problems = append(problems, fmt.Sprintf("POKEPROTO_SPECTATOR_PORT must be a valid port, got %q", raw))
		} else {
			cfg.SpectatorPort = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("POKEPROTO_MAX_FRAME_BYTES")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("POKEPROTO_MAX_FRAME_BYTES must be a positive integer, got %q", raw))
		} else {
			cfg.MaxFrameBytes = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("POKEPROTO_POLL_TIMEOUT")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("POKEPROTO_POLL_TIMEOUT must be a positive duration, got %q", raw))
		} else {
			cfg.PollTimeout = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("POKEPROTO_RETRY_TIMEOUT")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("POKEPROTO_RETRY_TIMEOUT must be a positive duration, got %q", raw))
		} else {
			cfg.Reliability.Timeout = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("POKEPROTO_MAX_RETRIES")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("POKEPROTO_MAX_RETRIES must be a non-negative integer, got %q", raw))
		} else {
			cfg.Reliability.MaxRetries = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("POKEPROTO_DUPLICATE_WINDOW")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("POKEPROTO_DUPLICATE_WINDOW must be a positive integer, got %q", raw))
		} else {
			cfg.Reliability.DuplicateWindow = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("POKEPROTO_MAX_STICKER_BYTES")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("POKEPROTO_MAX_STICKER_BYTES must be a positive integer, got %q", raw))
		} else {
			cfg.MaxStickerBytes = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("POKEPROTO_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("POKEPROTO_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("POKEPROTO_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("POKEPROTO_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("POKEPROTO_LOG_MAX_AGE_DAYS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("POKEPROTO_LOG_MAX_AGE_DAYS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxAgeDays = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("POKEPROTO_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("POKEPROTO_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("POKEPROTO_SNAPSHOT_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("POKEPROTO_SNAPSHOT_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.SnapshotInterval = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("POKEPROTO_HANDSHAKE_TIMEOUT")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("POKEPROTO_HANDSHAKE_TIMEOUT must be a positive duration, got %q", raw))
		} else {
			cfg.HandshakeTimeout = duration
		}
	}

	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parsePort(raw string) (int, error) {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 || value > 65535 {
		return 0, fmt.Errorf("invalid port %q", raw)
	}
	return value, nil
}
