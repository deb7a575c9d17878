package queue

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "word"
	}
	return strings.Join(parts, " ")
}

func TestDelay(t *testing.T) {
	cases := []struct {
		name string
		text string
		want time.Duration
	}{
		{"empty", "", 0},
		{"too short", "Short one.", 0},
		{"short sentence", words(8) + ".", shortSentenceDelay},
		{"quoted ending", words(9) + `!"`, shortSentenceDelay},
		{"trailing space", words(10) + ". ", shortSentenceDelay},
		{"long sentence", words(20) + "?", longSentenceDelay},
		{"unfinished", words(25), 0},
		{"run on", words(40), runOnDelay},
		{"run on ended", words(45) + ".", longSentenceDelay},
	}
	for _, tc := range cases {
		if got := Delay(tc.text); got != tc.want {
			t.Fatalf("%s: Delay = %s, want %s", tc.name, got, tc.want)
		}
	}
}

type sink struct {
	mu   sync.Mutex
	jobs []Job
}

func (s *sink) send(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

func (s *sink) sent() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Job(nil), s.jobs...)
}

const walk = "I went for a long walk by the river today."

func TestTriggerSendsAfterPause(t *testing.T) {
	clock := newFakeClock()
	out := &sink{}
	tr := NewTrigger(clock, out.send)

	tr.Keystroke(walk)
	if !tr.Pending() {
		t.Fatalf("expected a scheduled send")
	}
	clock.Advance(4 * time.Second)
	if len(out.sent()) != 0 {
		t.Fatalf("sent too early")
	}
	clock.Advance(time.Second)
	jobs := out.sent()
	if len(jobs) != 1 || jobs[0].Text != walk || jobs[0].UserRequested || jobs[0].InsertionIndex != 0 {
		t.Fatalf("unexpected jobs %+v", jobs)
	}
	if tr.Unsent() != "" || tr.Pending() {
		t.Fatalf("buffer should be fully sent")
	}

	more := walk + " Then I came home and made some tea with honey."
	tr.Keystroke(more)
	clock.Advance(shortSentenceDelay)
	jobs = out.sent()
	if len(jobs) != 2 || jobs[1].Text != "Then I came home and made some tea with honey." || jobs[1].InsertionIndex != 1 {
		t.Fatalf("unexpected second job %+v", jobs)
	}
}

func TestTriggerKeystrokeJustBeforeDeadlineCancels(t *testing.T) {
	clock := newFakeClock()
	out := &sink{}
	tr := NewTrigger(clock, out.send)

	tr.Keystroke(walk)
	clock.Advance(4800 * time.Millisecond)
	tr.Keystroke(walk + " ")
	clock.Advance(200 * time.Millisecond)
	if len(out.sent()) != 0 {
		t.Fatalf("a keystroke at 4.8s must abandon the 5s send")
	}
	clock.Advance(shortSentenceDelay)
	if jobs := out.sent(); len(jobs) != 1 || jobs[0].Text != walk {
		t.Fatalf("expected a single send after the new pause, got %+v", jobs)
	}
}

func TestTriggerQuietWindowGuard(t *testing.T) {
	clock := newFakeClock()
	out := &sink{}
	tr := NewTrigger(clock, out.send)

	tr.Keystroke(walk)
	clock.Advance(shortSentenceDelay - 100*time.Millisecond)

	// Simulate a timer that fired while a keystroke was being recorded.
	tr.mu.Lock()
	tr.lastKeystroke = clock.Now().Add(-100 * time.Millisecond)
	gen := tr.generation
	tr.mu.Unlock()
	tr.fire(gen)
	if len(out.sent()) != 0 {
		t.Fatalf("fire inside the quiet window must not send")
	}

	tr.mu.Lock()
	tr.lastKeystroke = clock.Now().Add(-QuietWindow)
	tr.mu.Unlock()
	tr.fire(gen)
	if len(out.sent()) != 1 {
		t.Fatalf("fire outside the quiet window should send")
	}
}

func TestTriggerStaleGenerationIgnored(t *testing.T) {
	clock := newFakeClock()
	out := &sink{}
	tr := NewTrigger(clock, out.send)

	tr.Keystroke(walk)
	tr.mu.Lock()
	stale := tr.generation
	tr.mu.Unlock()
	tr.Keystroke(walk + " And")
	clock.Advance(time.Minute)
	tr.fire(stale)
	if len(out.sent()) != 0 {
		t.Fatalf("unfinished text must not be sent, got %+v", out.sent())
	}
}

func TestTriggerSendNow(t *testing.T) {
	clock := newFakeClock()
	out := &sink{}
	tr := NewTrigger(clock, out.send)

	if _, ok := tr.SendNow(); ok {
		t.Fatalf("nothing to send yet")
	}
	tr.Keystroke("half a thought")
	job, ok := tr.SendNow()
	if !ok || !job.UserRequested || job.Text != "half a thought" {
		t.Fatalf("unexpected job %+v", job)
	}
	if tr.Unsent() != "" || len(out.sent()) != 1 {
		t.Fatalf("send now should consume the buffer")
	}

	tr.Keystroke("half a thought " + walk)
	tr.SendNow()
	clock.Advance(time.Minute)
	if jobs := out.sent(); len(jobs) != 2 || jobs[1].InsertionIndex != 1 {
		t.Fatalf("explicit send should cancel the timer, got %+v", jobs)
	}
}

func TestTriggerResetAndShrink(t *testing.T) {
	clock := newFakeClock()
	out := &sink{}
	tr := NewTrigger(clock, out.send)

	tr.Reset("yesterday's entry text")
	if tr.Unsent() != "" {
		t.Fatalf("reset text counts as sent")
	}
	tr.Keystroke("yes")
	if tr.Unsent() != "" {
		t.Fatalf("deleting below the sent offset should clamp, got %q", tr.Unsent())
	}
	tr.Keystroke("yes " + walk)
	clock.Advance(shortSentenceDelay)
	if jobs := out.sent(); len(jobs) != 1 || jobs[0].Text != walk {
		t.Fatalf("unexpected jobs %+v", jobs)
	}
}
