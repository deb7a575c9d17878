package importer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jacobB1290/JwebAPP-sub000/internal/action"
	"github.com/jacobB1290/JwebAPP-sub000/internal/llm"
	"github.com/jacobB1290/JwebAPP-sub000/internal/store"
)

// titleDispatcher answers per entry, keyed by a word in the transcript.
type titleDispatcher struct {
	mu       sync.Mutex
	requests []llm.DispatchRequest
	answers  map[string]func() (action.Action, error)
}

func (d *titleDispatcher) Dispatch(_ context.Context, req llm.DispatchRequest) (action.Action, error) {
	d.mu.Lock()
	d.requests = append(d.requests, req)
	d.mu.Unlock()
	text := req.Turns[len(req.Turns)-1].Content
	for key, answer := range d.answers {
		if strings.Contains(text, key) {
			return answer()
		}
	}
	return action.Fallback("no idea"), nil
}

func seedImport(t *testing.T, st *store.Store, title, text string) store.Entry {
	t.Helper()
	ctx := context.Background()
	e, err := st.CreateEntry(ctx, store.NewEntry{
		Title:     title,
		Tags:      []string{store.ImportedTag},
		Status:    store.StatusPending,
		Source:    store.SourceImport,
		SourceURL: "https://chat.example/" + title,
	})
	require.NoError(t, err)
	_, err = st.AppendMessages(ctx, e.ID, []store.NewMessage{
		{Sender: store.SenderHuman, Content: text, Type: store.TypeText},
		{Sender: store.SenderAssistant, Content: "reply to " + text, Type: store.TypeConversational},
	})
	require.NoError(t, err)
	return e
}

func filed(title, folder string, topics ...string) func() (action.Action, error) {
	return func() (action.Action, error) {
		return action.Action{
			EntryTitleSuggestion: title,
			FolderSuggestion:     folder,
			TopicTags:            topics,
			EmotionTags:          []string{"calm"},
			Database:             action.DatabaseAction{Kind: action.CreateNewEntry},
			Recovery:             action.StrictJSON,
		}, nil
	}
}

func TestBackfillIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	garden := seedImport(t, st, defaultTitle, "tomatoes")
	broken := seedImport(t, st, "Rent", "landlord")
	prose := seedImport(t, st, "Chat", "rambling")
	books := seedImport(t, st, "Kept title", "novels")

	gw := &titleDispatcher{answers: map[string]func() (action.Action, error){
		"tomatoes": filed("Garden log", "Home", "gardening"),
		"landlord": func() (action.Action, error) { return action.Action{}, errors.New("rate limited") },
		"novels":   filed("Reading list", "Home", "books"),
	}}
	report, err := NewBackfiller(gw, st, WithBackfillLogger(quietLogger())).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, Report{Processed: 2, Failed: 2}, report)

	got, err := st.Entry(ctx, garden.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusProcessed, got.Status)
	require.Equal(t, "Garden log", got.Title, "default titles are replaced")
	require.Equal(t, []string{"gardening"}, got.TopicTags)
	require.NotEmpty(t, got.FolderID)

	got, err = st.Entry(ctx, books.ID)
	require.NoError(t, err)
	require.Equal(t, "Kept title", got.Title, "real titles are kept")
	require.NotEmpty(t, got.FolderID)

	for _, id := range []string{broken.ID, prose.ID} {
		got, err := st.Entry(ctx, id)
		require.NoError(t, err)
		require.Equal(t, store.StatusFailed, got.Status)
	}

	folders, err := st.FolderNames(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Home"}, folders)

	for _, req := range gw.requests {
		require.False(t, req.ToolsEnabled, "filing never offers tools")
	}
}

func TestBackfillRespectsBatchSize(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	for i := 0; i < 7; i++ {
		seedImport(t, st, defaultTitle, "walks")
	}
	gw := &titleDispatcher{answers: map[string]func() (action.Action, error){"walks": filed("Walk", "")}}
	bf := NewBackfiller(gw, st, WithBackfillLogger(quietLogger()))

	report, err := bf.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, DefaultBatchSize, report.Processed)

	report, err = bf.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.Processed)

	report, err = bf.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, Report{}, report)
}

func TestBackfillBuildsOnCurrentMemo(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	require.NoError(t, st.SetContextMemo(ctx, "Writer is a nurse and has two cats."))
	seedImport(t, st, defaultTitle, "pasta")
	seedImport(t, st, defaultTitle, "weather")

	withMemo := func(title, memo string) func() (action.Action, error) {
		return func() (action.Action, error) {
			act, _ := filed(title, "")()
			act.ContextMemoUpdate = memo
			return act, nil
		}
	}
	gw := &titleDispatcher{answers: map[string]func() (action.Action, error){
		"pasta":   withMemo("Dinner", "Writer is a nurse and has two cats. Loves pasta."),
		"weather": filed("Rain", ""),
	}}
	report, err := NewBackfiller(gw, st, WithBackfillLogger(quietLogger())).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.Processed)

	require.Len(t, gw.requests, 2)
	require.Contains(t, gw.requests[0].System, "Writer is a nurse and has two cats.")
	require.Contains(t, gw.requests[0].System, "context_memo_update replaces")
	require.Contains(t, gw.requests[1].System, "Loves pasta.", "later entries see updates from earlier ones")

	memo, err := st.ContextMemo(ctx)
	require.NoError(t, err)
	require.Equal(t, "Writer is a nurse and has two cats. Loves pasta.", memo.Summary,
		"an entry without an update leaves the memo alone")
}

func TestRetryFailed(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	e := seedImport(t, st, defaultTitle, "mystery")
	gw := &titleDispatcher{}
	bf := NewBackfiller(gw, st, WithBackfillLogger(quietLogger()))

	report, err := bf.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)

	moved, err := bf.RetryFailed(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, moved)

	gw.answers = map[string]func() (action.Action, error){"mystery": filed("Solved", "")}
	report, err = bf.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Processed)
	got, err := st.Entry(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, "Solved", got.Title)
}

func TestSchedulerRunsBackfill(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := openStore(t)
	seedImport(t, st, defaultTitle, "scheduled")
	gw := &titleDispatcher{answers: map[string]func() (action.Action, error){"scheduled": filed("On time", "")}}

	sched, err := NewScheduler(ctx, "@every 1s", NewBackfiller(gw, st, WithBackfillLogger(quietLogger())), quietLogger())
	require.NoError(t, err)
	sched.Start()
	defer sched.Stop()

	select {
	case report := <-sched.Reports():
		require.Equal(t, 1, report.Processed)
	case <-time.After(5 * time.Second):
		t.Fatalf("scheduled backfill never ran")
	}
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewScheduler(context.Background(), "sometimes", NewBackfiller(&titleDispatcher{}, openStore(t)), quietLogger())
	require.Error(t, err)
}
