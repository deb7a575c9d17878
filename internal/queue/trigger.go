package queue

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

// Auto-send heuristics. Delays grow with how much was written so a sentence
// in progress is not interrupted.
const (
	shortSentenceWords = 8
	longSentenceWords  = 20
	runOnWords         = 40

	shortSentenceDelay = 5 * time.Second
	longSentenceDelay  = 8 * time.Second
	runOnDelay         = 12 * time.Second

	// QuietWindow is the trailing part of a delay in which a keystroke
	// abandons the pending send.
	QuietWindow = 500 * time.Millisecond
)

var sentenceEndRe = regexp.MustCompile(`[.!?]["'”’)\]]*\s*$`)

// Timer is the part of *time.Timer the trigger uses.
type Timer interface {
	Stop() bool
}

// Clock abstracts time so the trigger can be driven by tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// RealClock is the wall clock.
var RealClock Clock = realClock{}

// Delay is how long to wait after the last keystroke before sending unsent
// text, or zero when the text should not be sent automatically.
func Delay(unsent string) time.Duration {
	words := len(strings.Fields(unsent))
	ended := sentenceEndRe.MatchString(unsent)
	switch {
	case ended && words >= longSentenceWords:
		return longSentenceDelay
	case ended && words >= shortSentenceWords:
		return shortSentenceDelay
	case words >= runOnWords:
		return runOnDelay
	default:
		return 0
	}
}

// Trigger watches the editor buffer and slices off text to send, either when
// the writer pauses long enough or when they ask explicitly.
type Trigger struct {
	clock Clock
	send  func(Job)

	mu            sync.Mutex
	text          string
	sentOffset    int
	nextIndex     int
	lastKeystroke time.Time
	timer         Timer
	generation    int
}

// NewTrigger builds a trigger that hands jobs to send, usually Queue.Enqueue.
func NewTrigger(clock Clock, send func(Job)) *Trigger {
	if clock == nil {
		clock = RealClock
	}
	return &Trigger{clock: clock, send: send}
}

// Keystroke records the full buffer after an edit and re-evaluates the
// schedule from scratch.
func (t *Trigger) Keystroke(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.text = text
	t.lastKeystroke = t.clock.Now()
	if t.sentOffset > len(text) {
		t.sentOffset = len(text)
	}
	t.cancelLocked()

	delay := Delay(text[t.sentOffset:])
	if delay == 0 {
		return
	}
	gen := t.generation
	t.timer = t.clock.AfterFunc(delay, func() { t.fire(gen) })
}

// SendNow sends unsent text immediately with UserRequested set. It reports
// false when there is nothing to send.
func (t *Trigger) SendNow() (Job, bool) {
	t.mu.Lock()
	t.cancelLocked()
	job, ok := t.sliceLocked(true)
	t.mu.Unlock()
	if ok {
		t.send(job)
	}
	return job, ok
}

// Reset starts over with a fresh buffer, for example after switching entries.
func (t *Trigger) Reset(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	t.text = text
	t.sentOffset = len(text)
}

// Unsent returns the text typed since the last send.
func (t *Trigger) Unsent() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text[t.sentOffset:]
}

// Pending reports whether an automatic send is scheduled.
func (t *Trigger) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

func (t *Trigger) cancelLocked() {
	t.generation++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *Trigger) fire(gen int) {
	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	if t.clock.Now().Sub(t.lastKeystroke) < QuietWindow {
		// A keystroke raced the timer.
		t.mu.Unlock()
		return
	}
	job, ok := t.sliceLocked(false)
	t.mu.Unlock()
	if ok {
		t.send(job)
	}
}

func (t *Trigger) sliceLocked(userRequested bool) (Job, bool) {
	unsent := strings.TrimSpace(t.text[t.sentOffset:])
	if unsent == "" {
		return Job{}, false
	}
	job := Job{Text: unsent, UserRequested: userRequested, InsertionIndex: t.nextIndex}
	t.nextIndex++
	t.sentOffset = len(t.text)
	return job, true
}
