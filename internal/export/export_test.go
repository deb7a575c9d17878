package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/jacobB1290/JwebAPP-sub000/internal/action"
	"github.com/jacobB1290/JwebAPP-sub000/internal/store"
)

var captured = time.Date(2026, 3, 4, 20, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	tick := 0
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"),
		store.WithLogger(logger),
		store.WithClock(func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Minute)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func seed(t *testing.T, st *store.Store) store.Entry {
	t.Helper()
	ctx := context.Background()
	folder, err := st.EnsureFolder(ctx, "Home")
	require.NoError(t, err)
	e, err := st.CreateEntry(ctx, store.NewEntry{
		Title:     "Garden & home",
		FolderID:  folder.ID,
		TopicTags: []string{"gardening"},
		Status:    store.StatusLive,
		Source:    store.SourceJournal,
	})
	require.NoError(t, err)
	_, err = st.AppendMessages(ctx, e.ID, []store.NewMessage{
		{Sender: store.SenderHuman, Content: "Planted tomatoes <script>alert(1)</script>", Type: store.TypeText},
		{Sender: store.SenderAssistant, Content: "How deep did you plant them?", Type: store.TypeConversational, Tone: action.ToneCurious},
		{Sender: store.SenderAssistant, Content: "Watering plan", Type: store.TypeTool, ToolCall: &action.ToolCall{
			Kind: action.ToolChecklist, Title: "Watering plan", Data: map[string]any{"items": []any{"morning"}},
		}},
	})
	require.NoError(t, err)
	require.NoError(t, st.SetContextMemo(ctx, "Keeps a vegetable garden."))
	return e
}

func TestCollectSnapshotsEntries(t *testing.T) {
	st := openStore(t)
	e := seed(t, st)

	snaps, memo, err := Collect(context.Background(), st, captured)
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	s := snaps[0]
	require.Equal(t, e.ID, s.EntryID)
	require.Equal(t, "Home", s.Folder)
	require.Equal(t, []string{"gardening"}, s.TopicTags)
	require.Equal(t, captured, s.CapturedAt)
	require.Len(t, s.Messages, 3)
	require.Equal(t, "human", s.Messages[0].Sender)
	require.Equal(t, "curious", s.Messages[1].Tone)
	require.NotNil(t, s.Messages[2].ToolCall)

	require.NotNil(t, memo)
	require.Equal(t, "Keeps a vegetable garden.", memo.Summary)
}

func TestCollectWithoutMemo(t *testing.T) {
	_, memo, err := Collect(context.Background(), openStore(t), captured)
	require.NoError(t, err)
	require.Nil(t, memo)
}

func TestSaveMergesByEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "archive.json")
	first := Snapshot{EntryID: "a", Title: "Draft", CapturedAt: captured}
	other := Snapshot{EntryID: "b", Title: "Other", CapturedAt: captured}

	require.NoError(t, Save(path, []Snapshot{first, other}, &MemoRecord{Summary: "old"}))
	first.Title = "Final"
	require.NoError(t, Save(path, []Snapshot{first}, &MemoRecord{Summary: "new"}))

	got, err := Load(path)
	require.NoError(t, err)
	require.Len(t, got.Entries, 2)
	require.Equal(t, "Final", got.Entries[0].Title)
	require.Equal(t, recordTypeEntry, got.Entries[0].RecordType)
	require.Equal(t, "Other", got.Entries[1].Title)
	require.NotNil(t, got.Memo)
	require.Equal(t, "new", got.Memo.Summary)
}

func TestSaveNothingDoesNotCreateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.json")
	require.NoError(t, Save(path, nil, nil))
	_, err := Load(path)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadSkipsUnknownRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.json")
	raw := `[{"entryId":"legacy","title":"No header"},{"recordType":"bookmark","url":"x"}]`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	got, err := Load(path)
	require.NoError(t, err)
	require.Len(t, got.Entries, 1)
	require.Equal(t, "No header", got.Entries[0].Title)
	require.Nil(t, got.Memo)
}

func TestWriteHTML(t *testing.T) {
	st := openStore(t)
	seed(t, st)
	snaps, memo, err := Collect(context.Background(), st, captured)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, "My <journal>", Archive{Entries: snaps, Memo: memo}))
	out := buf.String()

	require.Contains(t, out, "<title>My &lt;journal&gt;</title>")
	require.Contains(t, out, "Garden &amp; home")
	require.Contains(t, out, "<blockquote>")
	require.Contains(t, out, "Keeps a vegetable garden.")
	require.Contains(t, out, "<code>checklist</code> Watering plan")
	require.NotContains(t, out, "<script>")
}

func TestMarkdownFallsBackToUntitled(t *testing.T) {
	md := Markdown(Snapshot{Messages: []SnapshotMessage{{Sender: "human", Content: "just text"}}})
	require.Contains(t, md, "## Untitled entry")
	require.Contains(t, md, "just text")
}
