// Package queue runs the per-session send pipeline: human text is enqueued
// in order, a single worker dispatches it to the gateway, and the resulting
// action is persisted and streamed back as events.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jacobB1290/JwebAPP-sub000/internal/action"
	"github.com/jacobB1290/JwebAPP-sub000/internal/continuation"
	"github.com/jacobB1290/JwebAPP-sub000/internal/llm"
	"github.com/jacobB1290/JwebAPP-sub000/internal/store"
)

const (
	eventBuffer       = 64
	recentCandidates  = continuation.MaxCandidates
	defaultJobTimeout = 90 * time.Second

	// requestedFallback answers a manual send the model left unanswered.
	requestedFallback = "I'm here and listening. Keep going, or tell me what you'd like from me."
)

// State is the session's position in the send lifecycle.
type State int

const (
	Idle State = iota
	Queued
	Dispatching
	Error
)

func (s State) String() string {
	switch s {
	case Queued:
		return "queued"
	case Dispatching:
		return "dispatching"
	case Error:
		return "error"
	default:
		return "idle"
	}
}

// Job is one slice of human text waiting to be sent.
type Job struct {
	Text           string
	UserRequested  bool
	InsertionIndex int
	CorrelationID  string
	TurnID         TurnID
}

// EventKind tags what happened to a job.
type EventKind int

const (
	EventStarted EventKind = iota
	EventCompleted
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventCompleted:
		return "completed"
	default:
		return "failed"
	}
}

// Event reports progress of a job. Completed events carry the action even
// when persisting it failed; PersistErr says so.
type Event struct {
	Kind       EventKind
	Job        Job
	Action     action.Action
	EntryID    string
	AITurns    []TurnID
	Err        error
	PersistErr error
}

// Dispatcher is the slice of the gateway the queue needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, req llm.DispatchRequest) (action.Action, error)
}

// Matcher decides whether the first text of a session continues a recent entry.
type Matcher interface {
	Match(ctx context.Context, text string, recent []continuation.Candidate, memo string) continuation.Decision
}

// Store is the persistence the queue reads and writes.
type Store interface {
	CreateEntry(ctx context.Context, in store.NewEntry) (store.Entry, error)
	UpdateEntry(ctx context.Context, id string, upd store.EntryUpdate) (store.Entry, error)
	AppendMessages(ctx context.Context, entryID string, msgs []store.NewMessage) ([]store.Message, error)
	EnsureFolder(ctx context.Context, name string) (store.Folder, error)
	ContextMemo(ctx context.Context) (store.ContextMemo, error)
	SetContextMemo(ctx context.Context, summary string) error
	RecentEntries(ctx context.Context, limit int) ([]store.EntrySummary, error)
	FolderNames(ctx context.Context) ([]string, error)
}

// Option customises a Queue.
type Option func(*Queue)

// WithMatcher enables the first-job continuation check.
func WithMatcher(m Matcher) Option {
	return func(q *Queue) { q.matcher = m }
}

// WithModel selects the catalog model for every dispatch.
func WithModel(model string) Option {
	return func(q *Queue) { q.model = model }
}

// WithJobTimeout bounds a single job, dispatch and persistence included.
func WithJobTimeout(d time.Duration) Option {
	return func(q *Queue) { q.timeout = d }
}

// WithLogger routes queue logs to logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.log = logger
		}
	}
}

// WithNow overrides the clock used for prompts.
func WithNow(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// Queue is a single-worker FIFO for one writing session.
type Queue struct {
	gateway Dispatcher
	store   Store
	matcher Matcher
	model   string
	timeout time.Duration
	now     func() time.Time
	log     logrus.FieldLogger

	events chan Event
	signal chan struct{}

	mu          sync.Mutex
	pending     []Job
	state       State
	arena       *Arena
	entryID     string
	entryTitle  string
	checkedOnce bool
}

// New builds a queue. Call Run to start the worker and drain Events.
func New(gateway Dispatcher, st Store, opts ...Option) *Queue {
	q := &Queue{
		gateway: gateway,
		store:   st,
		timeout: defaultJobTimeout,
		now:     time.Now,
		log:     logrus.StandardLogger(),
		events:  make(chan Event, eventBuffer),
		signal:  make(chan struct{}, 1),
		arena:   NewArena(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.log = q.log.WithField("component", "queue")
	return q
}

// Events streams job progress. It must be drained.
func (q *Queue) Events() <-chan Event {
	return q.events
}

// Arena exposes the session stream.
func (q *Queue) Arena() *Arena {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.arena
}

// State reports the session state.
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Pending counts jobs not yet picked up by the worker.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Entry returns the active entry id and title, if any.
func (q *Queue) Entry() (string, string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.entryID, q.entryTitle
}

// OpenEntry makes an existing entry active. Later jobs append to it and the
// continuation check is skipped.
func (q *Queue) OpenEntry(id, title string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entryID, q.entryTitle = id, title
	q.checkedOnce = true
}

// NewSession clears the active entry and stream. Jobs already queued keep
// their place.
func (q *Queue) NewSession() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entryID, q.entryTitle = "", ""
	q.checkedOnce = false
	q.arena = NewArena()
}

// Enqueue appends a job and records its human turn in the stream. The
// returned job carries the assigned correlation and turn ids.
func (q *Queue) Enqueue(job Job) Job {
	q.mu.Lock()
	if job.CorrelationID == "" {
		job.CorrelationID = uuid.NewString()
	}
	job.TurnID = q.arena.AddHuman(job.Text)
	q.pushLocked(job)
	q.mu.Unlock()
	q.wake()
	return job
}

// Resend replaces the text of a human turn and queues it again under the same
// turn id. It only does so when the turn had failed or its replies went
// stale; a turn still waiting on the model is left alone.
func (q *Queue) Resend(id TurnID, text string) (Job, bool) {
	q.mu.Lock()
	arena := q.arena
	q.mu.Unlock()

	prev, ok := arena.Get(id)
	if !ok || prev.Role != HumanTurn || prev.Processing {
		return Job{}, false
	}
	stale := arena.Edit(id, text)
	if !stale && !prev.Failed {
		return Job{}, false
	}
	arena.update(id, func(t *Turn) {
		t.Content = text
		t.Failed = false
		t.Processing = true
	})

	job := Job{Text: text, UserRequested: true, CorrelationID: uuid.NewString(), TurnID: id}
	q.mu.Lock()
	if q.arena != arena {
		q.mu.Unlock()
		return Job{}, false
	}
	q.pushLocked(job)
	q.mu.Unlock()
	q.wake()
	return job, true
}

func (q *Queue) pushLocked(job Job) {
	q.pending = append(q.pending, job)
	if q.state != Dispatching {
		q.state = Queued
	}
}

func (q *Queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *Queue) next() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Job{}, false
	}
	job := q.pending[0]
	q.pending = q.pending[1:]
	q.state = Dispatching
	return job, true
}

// Run processes jobs one at a time until ctx is cancelled. A failed job
// never stops the loop.
func (q *Queue) Run(ctx context.Context) error {
	for {
		job, ok := q.next()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-q.signal:
				continue
			}
		}
		q.process(ctx, job)
	}
}

func (q *Queue) emit(ctx context.Context, ev Event) {
	select {
	case q.events <- ev:
	case <-ctx.Done():
	}
}

func (q *Queue) finish(failed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch {
	case len(q.pending) > 0:
		q.state = Queued
	case failed:
		q.state = Error
	default:
		q.state = Idle
	}
}

func (q *Queue) process(ctx context.Context, job Job) {
	log := q.log.WithFields(logrus.Fields{"job": job.CorrelationID, "index": job.InsertionIndex})
	q.emit(ctx, Event{Kind: EventStarted, Job: job})

	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	q.mu.Lock()
	arena := q.arena
	checkContinuation := !q.checkedOnce
	q.checkedOnce = true
	entryID, entryTitle := q.entryID, q.entryTitle
	q.mu.Unlock()

	memo, err := q.store.ContextMemo(ctx)
	if err != nil {
		log.WithError(err).Warn("memo unavailable; dispatching without it")
	}

	if checkContinuation && entryID == "" && !arena.HasContentBefore(job.TurnID) && q.matcher != nil {
		entryID, entryTitle = q.checkContinuation(ctx, job, memo.Summary, log)
	}

	folders, err := q.store.FolderNames(ctx)
	if err != nil {
		log.WithError(err).Debug("folder list unavailable")
	}

	act, err := q.gateway.Dispatch(ctx, llm.DispatchRequest{
		System: llm.BuildJournalPrompt(llm.JournalContext{
			Memo:          memo.Summary,
			EntryID:       entryID,
			EntryTitle:    entryTitle,
			Folders:       folders,
			UserRequested: job.UserRequested,
			Now:           q.now(),
		}),
		Turns:        llm.ClipTurns(arena.Context(job.TurnID)),
		ToolsEnabled: true,
		Model:        q.model,
	})
	if err != nil {
		log.WithError(err).Warn("dispatch failed")
		arena.MarkFailed(job.TurnID)
		q.finish(true)
		q.emit(ctx, Event{Kind: EventFailed, Job: job, Err: err, EntryID: entryID})
		return
	}
	act.EnforceEntry(entryID)
	if job.UserRequested && act.Outcome() == action.Silent {
		log.Warn("model stayed silent on a requested send; using a fallback reply")
		act.Responses = []action.Response{{Content: requestedFallback, Kind: action.KindConversational, Tone: action.ToneNeutral}}
	}

	applied, perr := Apply(ctx, q.store, Plan(PlanInput{
		Job:        job,
		Action:     act,
		EntryID:    entryID,
		EntryTitle: entryTitle,
		Memo:       memo.Summary,
	}))
	if perr != nil {
		log.WithError(perr).Warn("persisting action failed")
	}
	if applied.EntryID != "" {
		entryID = applied.EntryID
		q.mu.Lock()
		if q.arena == arena {
			q.entryID = applied.EntryID
			if applied.EntryTitle != "" {
				q.entryTitle = applied.EntryTitle
			}
		}
		q.mu.Unlock()
	}

	var aiTurns []TurnID
	for _, resp := range act.Responses {
		aiTurns = append(aiTurns, arena.AddAI(job.TurnID, resp))
	}
	if act.ToolCall != nil {
		aiTurns = append(aiTurns, arena.AddTool(job.TurnID, act.ToolCall))
	}
	arena.SetProcessing(job.TurnID, false)

	log.WithFields(logrus.Fields{
		"entry":    entryID,
		"outcome":  act.Outcome().String(),
		"recovery": act.Recovery.String(),
	}).Info("job complete")
	q.finish(false)
	q.emit(ctx, Event{
		Kind:       EventCompleted,
		Job:        job,
		Action:     act,
		EntryID:    entryID,
		AITurns:    aiTurns,
		PersistErr: perr,
	})
}

func (q *Queue) checkContinuation(ctx context.Context, job Job, memo string, log logrus.FieldLogger) (string, string) {
	recent, err := q.store.RecentEntries(ctx, recentCandidates)
	if err != nil {
		log.WithError(err).Warn("recent entries unavailable; skipping continuation check")
		return "", ""
	}
	candidates := make([]continuation.Candidate, 0, len(recent))
	titles := make(map[string]string, len(recent))
	for _, e := range recent {
		candidates = append(candidates, continuation.Candidate{
			EntryID: e.ID,
			Title:   e.Title,
			Excerpt: e.FirstHuman,
			Updated: e.UpdatedAt,
		})
		titles[e.ID] = e.Title
	}
	decision := q.matcher.Match(ctx, job.Text, candidates, memo)
	if !continuation.Accept(decision) {
		return "", ""
	}
	q.mu.Lock()
	q.entryID, q.entryTitle = decision.EntryID, titles[decision.EntryID]
	q.mu.Unlock()
	return decision.EntryID, titles[decision.EntryID]
}
