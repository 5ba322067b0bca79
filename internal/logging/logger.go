// Package logging is the JSON logger shared by every endpoint role.
// Each line carries a fixed head (ts, level, msg, plus the session_id
// once a connection is bound) followed by structured fields in the
// order they were attached, and lands in a size-rotated file whose
// older generations are gzip-compressed and pruned by count and age.
package logging

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"pokeproto/internal/config"
)

// Level orders verbosity from chattiest to most severe.
type Level uint8

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "info"
	}
}

func parseLevel(raw string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	}
	return InfoLevel, fmt.Errorf("logging: unknown level %q", raw)
}

// Field is one structured attribute on a log line.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field    { return Field{Key: key, Value: value} }
func Int(key string, value int) Field   { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Error wraps err under the conventional "error" key. The rendered
// value is err's message: marshaling most error types directly yields
// an empty JSON object.
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Logger emits one JSON object per line. A Logger is immutable; With
// derives a child carrying extra fields and leaves the parent alone.
type Logger struct {
	level Level
	out   io.Writer
	mu    *sync.Mutex // shared by every logger derived from the same sink
	bound []Field
}

func newLogger(out io.Writer, level Level) *Logger {
	return &Logger{level: level, out: out, mu: &sync.Mutex{}}
}

// New opens (or creates) the configured log file and returns a logger
// writing through the rotation policy in cfg.
func New(cfg config.LoggingConfig) (*Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	sink, err := openRotatingFile(cfg)
	if err != nil {
		return nil, err
	}
	return newLogger(sink, level), nil
}

// NewTestLogger returns a logger that keeps every level enabled and
// discards all output.
func NewTestLogger() *Logger { return newLogger(io.Discard, DebugLevel) }

// With derives a logger that attaches fields to every subsequent line.
func (l *Logger) With(fields ...Field) *Logger {
	bound := make([]Field, 0, len(l.bound)+len(fields))
	bound = append(bound, l.bound...)
	bound = append(bound, fields...)
	return &Logger{level: l.level, out: l.out, mu: l.mu, bound: bound}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.emit(DebugLevel, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.emit(InfoLevel, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.emit(WarnLevel, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.emit(ErrorLevel, msg, fields) }

// emit renders the line with a fixed key order (head, then bound
// fields, then call fields) so two peers' logs diff cleanly. A later
// field silently replaces an earlier one with the same key.
func (l *Logger) emit(level Level, msg string, fields []Field) {
	if level < l.level {
		return
	}
	line := make([]Field, 0, 3+len(l.bound)+len(fields))
	line = append(line,
		String("ts", time.Now().UTC().Format(time.RFC3339Nano)),
		String("level", level.String()),
		String("msg", msg),
	)
	line = append(line, l.bound...)
	line = append(line, fields...)

	dedup := make([]Field, 0, len(line))
	at := make(map[string]int, len(line))
	for _, f := range line {
		if i, ok := at[f.Key]; ok {
			dedup[i] = f
			continue
		}
		at[f.Key] = len(dedup)
		dedup = append(dedup, f)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range dedup {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(f.Key)
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(f.Value)
		if err != nil {
			value, _ = json.Marshal(fmt.Sprint(f.Value))
		}
		buf.Write(value)
	}
	buf.WriteString("}\n")

	l.mu.Lock()
	_, _ = l.out.Write(buf.Bytes())
	l.mu.Unlock()
}

// SessionIDField is the key tying every log line to the peer
// connection it belongs to.
const SessionIDField = "session_id"

type contextKey uint8

const (
	loggerKey contextKey = iota
	sessionKey
)

// GenerateSessionID mints the random identifier bound to a connection
// when its handshake completes.
func GenerateSessionID() string {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(raw[:])
}

// ContextWithLogger stores a logger in ctx.
func ContextWithLogger(ctx context.Context, l *Logger) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey, l)
}

// LoggerFromContext retrieves the context's logger, or a discarding
// one when none was stored.
func LoggerFromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*Logger); ok && l != nil {
			return l
		}
	}
	return NewTestLogger()
}

// ContextWithSessionID stores a connection's session identifier in ctx.
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	if sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey, sessionID)
}

// SessionIDFromContext extracts a connection's session identifier.
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if sid, ok := ctx.Value(sessionKey).(string); ok {
		return sid
	}
	return ""
}

// WithSession binds a session ID to the context and returns the
// derived logger. Unlike a request-scoped trace, the session ID spans
// every datagram exchanged with one peer for the lifetime of the
// connection.
func WithSession(ctx context.Context, base *Logger, sessionID string) (context.Context, *Logger, string) {
	sid := strings.TrimSpace(sessionID)
	if sid == "" {
		sid = GenerateSessionID()
	}
	if base == nil {
		base = NewTestLogger()
	}
	derived := base.With(String(SessionIDField, sid))
	ctx = ContextWithSessionID(ctx, sid)
	ctx = ContextWithLogger(ctx, derived)
	return ctx, derived, sid
}

// rotationStamp formats rotation suffixes. Nanosecond precision keeps
// back-to-back rotations distinct, and UTC timestamps sort lexically
// in age order, so pruning needs no stat calls.
const rotationStamp = "20060102T150405.000000000"

// rotatingFile is the on-disk sink: appends to path until the size
// limit would be crossed, then moves the current file aside under a
// timestamp suffix (gzip-compressing it in the same step when
// enabled) and prunes older generations past the count or age bound.
type rotatingFile struct {
	mu       sync.Mutex
	path     string
	limit    int64
	keep     int
	maxAge   time.Duration
	compress bool

	f       *os.File
	written int64
}

func openRotatingFile(cfg config.LoggingConfig) (*rotatingFile, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("logging: log path must not be empty")
	}
	if cfg.MaxSizeMB <= 0 {
		return nil, fmt.Errorf("logging: max size must be positive")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	r := &rotatingFile{
		path:     cfg.Path,
		limit:    int64(cfg.MaxSizeMB) << 20,
		keep:     cfg.MaxBackups,
		maxAge:   time.Duration(cfg.MaxAgeDays) * 24 * time.Hour,
		compress: cfg.Compress,
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *rotatingFile) open() error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	r.f = f
	r.written = info.Size()
	return nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.written+int64(len(p)) > r.limit {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := r.f.Write(p)
	r.written += int64(n)
	return n, err
}

func (r *rotatingFile) rotate() error {
	if err := r.f.Close(); err != nil {
		return err
	}
	aside := fmt.Sprintf("%s.%s", r.path, time.Now().UTC().Format(rotationStamp))
	if r.compress {
		if err := gzipFile(r.path, aside+".gz"); err != nil {
			return err
		}
		if err := os.Remove(r.path); err != nil {
			return err
		}
	} else {
		if err := os.Rename(r.path, aside); err != nil {
			return err
		}
	}
	r.prune()
	return r.open()
}

// prune deletes rotated generations beyond the retention bounds. Best
// effort: a failed removal just retries on the next rotation.
func (r *rotatingFile) prune() {
	dir := filepath.Dir(r.path)
	prefix := filepath.Base(r.path) + "."
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	var rotated []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), prefix) {
			rotated = append(rotated, entry.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(rotated)))
	cutoff := ""
	if r.maxAge > 0 {
		cutoff = prefix + time.Now().UTC().Add(-r.maxAge).Format(rotationStamp)
	}
	for i, name := range rotated {
		pastCount := r.keep > 0 && i >= r.keep
		pastAge := cutoff != "" && name < cutoff
		if pastCount || pastAge {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
}

// gzipFile streams src into dst, compressed.
func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		_ = gz.Close()
		_ = out.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
