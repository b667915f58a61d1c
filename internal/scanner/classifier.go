// Package scanner classifies raw keystrokes into scan-burst item codes.
//
// A USB barcode scanner emulates a very fast keyboard: characters arrive with
// inter-key gaps far below human typing speed, terminated by Enter or
// silence. The classifier watches those gaps, character by character, and
// commits a buffered burst as an item code without any explicit "this is a
// scan" signal from the device.
package scanner

import (
	"strings"
	"sync"
	"time"
	"unicode"
)

// Default timing and length thresholds. Empirically chosen: real scanners
// emit characters well under 50ms apart, humans rarely under 100ms.
const (
	DefaultFastGap          = 50 * time.Millisecond
	DefaultInactivityCommit = 100 * time.Millisecond
	DefaultMinLen           = 2
	DefaultMaxLen           = 64
)

// Config tunes the classifier thresholds.
type Config struct {
	// FastGap is the max inter-character interval to remain in a burst.
	FastGap time.Duration
	// InactivityCommit is the silence duration after which a pending
	// burst is auto-committed.
	InactivityCommit time.Duration
	// MinLen and MaxLen bound accepted code lengths. Shorter bursts are
	// discarded silently; characters beyond MaxLen are dropped.
	MinLen int
	MaxLen int
}

func (c Config) withDefaults() Config {
	if c.FastGap <= 0 {
		c.FastGap = DefaultFastGap
	}
	if c.InactivityCommit <= 0 {
		c.InactivityCommit = DefaultInactivityCommit
	}
	if c.MinLen <= 0 {
		c.MinLen = DefaultMinLen
	}
	if c.MaxLen <= 0 {
		c.MaxLen = DefaultMaxLen
	}
	return c
}

// Scheduler arms the single inactivity timer. Schedule replaces any pending
// fire (re-arm semantics); Cancel is idempotent.
type Scheduler interface {
	Schedule(d time.Duration, fn func())
	Cancel()
}

// TimerScheduler is the production Scheduler backed by time.AfterFunc.
type TimerScheduler struct {
	mu    sync.Mutex
	timer *time.Timer
}

var _ Scheduler = (*TimerScheduler)(nil)

func (s *TimerScheduler) Schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d, fn)
}

func (s *TimerScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Classifier is the scan-burst state machine. It owns its buffer and timer
// exclusively; the only outputs are the commit and redraw callbacks.
type Classifier struct {
	cfg      Config
	sched    Scheduler
	now      func() time.Time
	onCommit func(code string)
	onRedraw func()

	mu         sync.Mutex
	buf        []rune
	lastChar   time.Time
	batchDepth int
	redrawDue  bool
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithScheduler overrides the inactivity timer backend, for tests.
func WithScheduler(s Scheduler) ClassifierOption {
	return func(c *Classifier) { c.sched = s }
}

// WithNow overrides the wall clock, for tests.
func WithNow(now func() time.Time) ClassifierOption {
	return func(c *Classifier) { c.now = now }
}

// New creates a Classifier. onCommit receives each recognized item code;
// onRedraw fires after commits so the display can refresh (suppressed and
// coalesced inside a batch).
func New(cfg Config, onCommit func(code string), onRedraw func(), opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		cfg:      cfg.withDefaults(),
		sched:    &TimerScheduler{},
		now:      time.Now,
		onCommit: onCommit,
		onRedraw: onRedraw,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HandleKey feeds one key event into the state machine. manualEntry marks
// events typed while a manual text field is active: the classifier must not
// fire then, and any pending burst is discarded.
func (c *Classifier) HandleKey(ch rune, manualEntry bool) {
	c.mu.Lock()
	now := c.now()

	if manualEntry {
		c.discardLocked()
		c.mu.Unlock()
		return
	}

	switch {
	case ch == '\n' || ch == '\r':
		// Enter terminates a burst. Commit only a recent buffer; a stale
		// one is leftover noise.
		if len(c.buf) > 0 && now.Sub(c.lastChar) <= c.cfg.InactivityCommit {
			c.commitAndUnlock()
			return
		}
		c.discardLocked()
	case unicode.IsLetter(ch) || unicode.IsDigit(ch):
		if len(c.buf) > 0 && now.Sub(c.lastChar) <= c.cfg.FastGap {
			if len(c.buf) < c.cfg.MaxLen {
				c.buf = append(c.buf, ch)
			}
			c.lastChar = now
			c.armTimerLocked()
			c.mu.Unlock()
			return
		}
		// Gap exceeded or idle: the previous buffer stands on its own.
		// Commit it if long enough, then open a new burst with this char.
		pending := c.takeCommitLocked()
		c.buf = append(c.buf[:0], ch)
		c.lastChar = now
		c.armTimerLocked()
		c.mu.Unlock()
		c.emit(pending)
		return
	default:
		// Burst-terminating noise. A stale buffer is discarded; a fresh
		// one is left for the timer to decide.
		if len(c.buf) > 0 && now.Sub(c.lastChar) > c.cfg.InactivityCommit {
			c.discardLocked()
		}
	}
	c.mu.Unlock()
}

// InjectCode emits a code directly, bypassing timing classification. Used by
// quick-key shortcuts; callers batching several injections should wrap them
// in BeginBatch.
func (c *Classifier) InjectCode(code string) {
	c.emit(strings.TrimSpace(code))
}

// Batch suppresses redraws until End. Obtained from BeginBatch.
type Batch struct {
	c *Classifier
}

// BeginBatch suppresses redraw notifications until the matching End. Pairs
// nest; exactly one redraw fires at the outermost End if any commit happened
// inside.
func (c *Classifier) BeginBatch() *Batch {
	c.mu.Lock()
	c.batchDepth++
	c.mu.Unlock()
	return &Batch{c: c}
}

// End closes the batch. The last End of a nest triggers the coalesced redraw.
func (b *Batch) End() {
	c := b.c
	c.mu.Lock()
	if c.batchDepth > 0 {
		c.batchDepth--
	}
	fire := c.batchDepth == 0 && c.redrawDue
	if fire {
		c.redrawDue = false
	}
	c.mu.Unlock()
	if fire && c.onRedraw != nil {
		c.onRedraw()
	}
}

// onTimer handles the inactivity timer firing: silence means the burst ended.
func (c *Classifier) onTimer() {
	c.mu.Lock()
	c.commitAndUnlock()
}

func (c *Classifier) armTimerLocked() {
	c.sched.Schedule(c.cfg.InactivityCommit, c.onTimer)
}

func (c *Classifier) discardLocked() {
	c.buf = c.buf[:0]
	c.sched.Cancel()
}

// takeCommitLocked applies the commit rule to the current buffer and resets
// it. It returns the code to emit, or "" when the buffer was too short.
func (c *Classifier) takeCommitLocked() string {
	code := ""
	if len(c.buf) >= c.cfg.MinLen {
		code = strings.TrimSpace(string(c.buf))
	}
	c.discardLocked()
	return code
}

// commitAndUnlock runs the commit rule and releases the lock before invoking
// callbacks, so a commit handler may call back into the classifier.
func (c *Classifier) commitAndUnlock() {
	code := c.takeCommitLocked()
	c.mu.Unlock()
	c.emit(code)
}

func (c *Classifier) emit(code string) {
	if code == "" {
		return
	}
	if c.onCommit != nil {
		c.onCommit(code)
	}
	c.mu.Lock()
	suppressed := c.batchDepth > 0
	if suppressed {
		c.redrawDue = true
	}
	c.mu.Unlock()
	if !suppressed && c.onRedraw != nil {
		c.onRedraw()
	}
}
