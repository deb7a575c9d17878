package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jacobB1290/JwebAPP-sub000/internal/action"
	"github.com/jacobB1290/JwebAPP-sub000/internal/continuation"
	"github.com/jacobB1290/JwebAPP-sub000/internal/llm"
	"github.com/jacobB1290/JwebAPP-sub000/internal/store"
)

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type scriptedDispatcher struct {
	mu       sync.Mutex
	requests []llm.DispatchRequest
	results  []func(req llm.DispatchRequest) (action.Action, error)
	inFlight int
	maxSeen  int
	delay    time.Duration
}

func (d *scriptedDispatcher) Dispatch(ctx context.Context, req llm.DispatchRequest) (action.Action, error) {
	d.mu.Lock()
	d.inFlight++
	if d.inFlight > d.maxSeen {
		d.maxSeen = d.inFlight
	}
	call := len(d.requests)
	d.requests = append(d.requests, req)
	var result func(llm.DispatchRequest) (action.Action, error)
	if call < len(d.results) {
		result = d.results[call]
	}
	d.mu.Unlock()

	if d.delay > 0 {
		time.Sleep(d.delay)
	}

	d.mu.Lock()
	d.inFlight--
	d.mu.Unlock()
	if result == nil {
		return action.Action{Database: action.DatabaseAction{Kind: action.CreateNewEntry}}, nil
	}
	return result(req)
}

func reply(act action.Action) func(llm.DispatchRequest) (action.Action, error) {
	return func(llm.DispatchRequest) (action.Action, error) { return act, nil }
}

func fail(err error) func(llm.DispatchRequest) (action.Action, error) {
	return func(llm.DispatchRequest) (action.Action, error) { return action.Action{}, err }
}

type memStore struct {
	mu        sync.Mutex
	entries   map[string]store.Entry
	messages  map[string][]store.Message
	folders   map[string]store.Folder
	memo      string
	created   int
	failWrite error
	seq       int
}

func newMemStore() *memStore {
	return &memStore{
		entries:  map[string]store.Entry{},
		messages: map[string][]store.Message{},
		folders:  map[string]store.Folder{},
	}
}

func (m *memStore) id(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) CreateEntry(_ context.Context, in store.NewEntry) (store.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := store.Entry{
		ID: m.id("entry"), Title: in.Title, FolderID: in.FolderID,
		EmotionTags: in.EmotionTags, TopicTags: in.TopicTags, Status: in.Status, Source: in.Source,
		MemoSnapshot: in.MemoSnapshot, UpdatedAt: time.Unix(int64(m.seq), 0),
	}
	m.entries[e.ID] = e
	m.created++
	return e, nil
}

func (m *memStore) UpdateEntry(_ context.Context, id string, upd store.EntryUpdate) (store.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return store.Entry{}, store.ErrNotFound
	}
	if upd.Title != nil {
		e.Title = *upd.Title
	}
	if upd.FolderID != nil {
		e.FolderID = *upd.FolderID
	}
	if upd.MemoSnapshot != nil {
		e.MemoSnapshot = *upd.MemoSnapshot
	}
	e.EmotionTags = action.MergeTags(e.EmotionTags, upd.EmotionTags)
	e.TopicTags = action.MergeTags(e.TopicTags, upd.TopicTags)
	m.entries[id] = e
	return e, nil
}

func (m *memStore) AppendMessages(_ context.Context, entryID string, msgs []store.NewMessage) ([]store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return nil, &store.PersistenceError{Op: "append messages", Err: m.failWrite}
	}
	if _, ok := m.entries[entryID]; !ok {
		return nil, store.ErrNotFound
	}
	var out []store.Message
	for _, in := range msgs {
		msg := store.Message{
			ID: m.id("msg"), EntryID: entryID, Sender: in.Sender, Content: in.Content, Type: in.Type,
			Tone: in.Tone, ToolCall: in.ToolCall, Position: len(m.messages[entryID]),
		}
		m.messages[entryID] = append(m.messages[entryID], msg)
		out = append(out, msg)
	}
	return out, nil
}

func (m *memStore) EnsureFolder(_ context.Context, name string) (store.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.folders[name]; ok {
		return f, nil
	}
	f := store.Folder{ID: m.id("folder"), Name: name}
	m.folders[name] = f
	return f, nil
}

func (m *memStore) ContextMemo(context.Context) (store.ContextMemo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return store.ContextMemo{Summary: m.memo}, nil
}

func (m *memStore) SetContextMemo(_ context.Context, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if summary != "" {
		m.memo = summary
	}
	return nil
}

func (m *memStore) RecentEntries(_ context.Context, limit int) ([]store.EntrySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.EntrySummary
	for _, e := range m.entries {
		first := ""
		if msgs := m.messages[e.ID]; len(msgs) > 0 {
			first = msgs[0].Content
		}
		out = append(out, store.EntrySummary{Entry: e, FirstHuman: first})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) FolderNames(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for name := range m.folders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

type countingMatcher struct {
	mu       sync.Mutex
	calls    int
	decision continuation.Decision
}

func (c *countingMatcher) Match(context.Context, string, []continuation.Candidate, string) continuation.Decision {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.decision
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward, running due timers in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		var due *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if due == nil || t.at.Before(due.at) {
				due = t
			}
		}
		if due == nil {
			break
		}
		due.fired = true
		c.now = due.at
		c.mu.Unlock()
		due.fn()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

var errUpstream = errors.New("upstream exploded")

func storeEntry(title string) store.NewEntry {
	return store.NewEntry{Title: title, Status: store.StatusLive, Source: store.SourceJournal}
}
