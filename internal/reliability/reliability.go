// Package reliability layers sequencing, acknowledgment, and bounded
// retransmission on top of an unordered, lossy transport. Every message
// except ACK itself is tracked as pending until an ACK for its sequence
// number arrives or its retry budget is exhausted.
package reliability

import (
	"container/list"
	"sync"
	"time"

	"pokeproto/internal/logging"
	"pokeproto/internal/wire"
)

const (
	// defaultTimeout is how long a pending send waits before its first retry.
	defaultTimeout = 500 * time.Millisecond
	// defaultMaxRetries bounds retransmission attempts before giving up.
	defaultMaxRetries = 3
	// receivedWindowSize caps the duplicate-detection history, shared
	// across all sources.
	receivedWindowSize = 1000
)

// pendingSend tracks one unacknowledged outbound message.
type pendingSend struct {
	seq       uint32
	message   wire.Message
	retries   int
	timestamp time.Time
}

// Option configures optional Layer behaviour at construction time.
type Option func(*Layer)

// WithClock overrides the default wall-clock time source.
func WithClock(clock func() time.Time) Option {
	return func(l *Layer) {
		//1.- Allow tests to inject a deterministic time source.
		if clock != nil {
			l.now = clock
		}
	}
}

// WithTimeout overrides the default retry timeout.
func WithTimeout(d time.Duration) Option {
	return func(l *Layer) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithMaxRetries overrides the default retransmission budget.
func WithMaxRetries(n int) Option {
	return func(l *Layer) {
		if n > 0 {
			l.maxRetries = n
		}
	}
}

// WithDuplicateWindow overrides the default capacity of the
// received-sequence window used for duplicate detection.
func WithDuplicateWindow(n int) Option {
	return func(l *Layer) {
		if n > 0 {
			l.windowSize = n
		}
	}
}

// receivedKey scopes duplicate detection to the sending peer: every
// source runs its own independent sequence counter, so two peers (or a
// Joiner and a Spectator) legitimately reuse the same numbers.
type receivedKey struct {
	source string
	seq    uint32
}

// Layer maintains sequence allocation, ACK tracking, retransmission, and
// duplicate detection for one peer's outbound and inbound streams.
type Layer struct {
	mu sync.Mutex

	seqCounter uint32
	pending    map[uint32]*pendingSend

	received     map[receivedKey]*list.Element
	receivedList *list.List

	timeout    time.Duration
	maxRetries int
	windowSize int
	now        func() time.Time
}

// New constructs a Layer with its sequence counter starting at zero; the
// first call to NextSequence returns 1, matching the post-increment
// convention of the counter it is grounded on.
func New(opts ...Option) *Layer {
	l := &Layer{
		pending:      make(map[uint32]*pendingSend),
		received:     make(map[receivedKey]*list.Element),
		receivedList: list.New(),
		timeout:      defaultTimeout,
		maxRetries:   defaultMaxRetries,
		windowSize:   receivedWindowSize,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NextSequence allocates and returns the next outbound sequence number.
func (l *Layer) NextSequence() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seqCounter++
	return l.seqCounter
}

// RegisterSend assigns the next sequence number to msg, stamps it via
// SetSeq, and tracks it as pending an ACK. ACK messages are never
// tracked, since they carry no sequence number of their own.
func (l *Layer) RegisterSend(msg wire.Sequenced) uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seqCounter++
	seq := l.seqCounter
	msg.SetSeq(seq)

	l.pending[seq] = &pendingSend{
		seq:       seq,
		message:   msg,
		timestamp: l.now(),
	}
	return seq
}

// OnAck clears the pending send matching ackNumber, if any.
func (l *Layer) OnAck(ackNumber uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.pending, ackNumber)
}

// Retransmission pairs a sequence number with the exact message instance
// that must be resent under it.
type Retransmission struct {
	Seq     uint32
	Message wire.Message
}

// Tick evaluates every pending send against the timeout and returns the
// ones due for retransmission. A retransmitted message is always resent
// under its ORIGINAL sequence number; allocating a fresh sequence number
// on retry would break the receiver's duplicate-detection window and is
// deliberately not done here. Sends that exceed the retry budget are
// dropped from tracking and their sequence numbers returned as the
// second result for the caller to surface as RetryExhausted.
func (l *Layer) Tick() ([]Retransmission, []uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var due []Retransmission
	var exhausted []uint32
	now := l.now()

	for seq, p := range l.pending {
		if now.Sub(p.timestamp) < l.timeout {
			continue
		}
		if p.retries >= l.maxRetries {
			exhausted = append(exhausted, seq)
			delete(l.pending, seq)
			continue
		}
		p.retries++
		p.timestamp = now
		due = append(due, Retransmission{Seq: seq, Message: p.message})
	}
	return due, exhausted
}

// HasPending reports whether any send is still awaiting an ACK.
func (l *Layer) HasPending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending) > 0
}

// IsDuplicate reports whether sequenceNumber from source has already
// been marked received within the tracked window.
func (l *Layer) IsDuplicate(source string, sequenceNumber uint32) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.received[receivedKey{source: source, seq: sequenceNumber}]
	return ok
}

// MarkReceived records sequenceNumber from source as processed,
// evicting the oldest entry once the window exceeds its capacity.
func (l *Layer) MarkReceived(source string, sequenceNumber uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := receivedKey{source: source, seq: sequenceNumber}
	if _, ok := l.received[key]; ok {
		return
	}
	elem := l.receivedList.PushBack(key)
	l.received[key] = elem

	if l.receivedList.Len() > l.windowSize {
		oldest := l.receivedList.Front()
		l.receivedList.Remove(oldest)
		delete(l.received, oldest.Value.(receivedKey))
	}
}

// Reset clears all sequencing, pending-send, and duplicate-detection
// state, as happens when a rematch restarts the session.
func (l *Layer) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seqCounter = 0
	l.pending = make(map[uint32]*pendingSend)
	l.received = make(map[receivedKey]*list.Element)
	l.receivedList = list.New()
}

// LoggingFields describes the layer's current load for structured logs.
func (l *Layer) LoggingFields() []logging.Field {
	l.mu.Lock()
	defer l.mu.Unlock()
	return []logging.Field{
		logging.Int("pending_sends", len(l.pending)),
		logging.Int("received_window", l.receivedList.Len()),
	}
}
