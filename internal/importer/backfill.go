package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jacobB1290/JwebAPP-sub000/internal/action"
	"github.com/jacobB1290/JwebAPP-sub000/internal/compaction"
	"github.com/jacobB1290/JwebAPP-sub000/internal/llm"
	"github.com/jacobB1290/JwebAPP-sub000/internal/store"
)

// DefaultBatchSize bounds how many imported entries one backfill pass files.
const DefaultBatchSize = 5

// errUnfiled marks a reply that could not be read as a filing decision.
var errUnfiled = errors.New("model reply was not a filing decision")

// Dispatcher is the slice of the gateway backfill needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, req llm.DispatchRequest) (action.Action, error)
}

// BackfillStore is the persistence backfill reads and writes.
type BackfillStore interface {
	EntriesByStatus(ctx context.Context, status store.ProcessingStatus, limit int) ([]store.Entry, error)
	Messages(ctx context.Context, entryID string) ([]store.Message, error)
	FolderNames(ctx context.Context) ([]string, error)
	EnsureFolder(ctx context.Context, name string) (store.Folder, error)
	UpdateEntry(ctx context.Context, id string, upd store.EntryUpdate) (store.Entry, error)
	SetStatus(ctx context.Context, id string, status store.ProcessingStatus) error
	ContextMemo(ctx context.Context) (store.ContextMemo, error)
	SetContextMemo(ctx context.Context, summary string) error
}

// Report summarizes one backfill pass.
type Report struct {
	Processed int
	Failed    int
}

// Backfiller tags, titles, and files imported entries after the fact.
type Backfiller struct {
	gateway Dispatcher
	store   BackfillStore
	batch   int
	model   string
	log     logrus.FieldLogger
}

// BackfillOption customises a Backfiller.
type BackfillOption func(*Backfiller)

// WithBatchSize overrides DefaultBatchSize.
func WithBatchSize(n int) BackfillOption {
	return func(b *Backfiller) {
		if n > 0 {
			b.batch = n
		}
	}
}

// WithBackfillModel selects the catalog model used for filing.
func WithBackfillModel(model string) BackfillOption {
	return func(b *Backfiller) { b.model = model }
}

// WithBackfillLogger routes logs to logger.
func WithBackfillLogger(logger logrus.FieldLogger) BackfillOption {
	return func(b *Backfiller) {
		if logger != nil {
			b.log = logger
		}
	}
}

// NewBackfiller builds a backfiller.
func NewBackfiller(gateway Dispatcher, st BackfillStore, opts ...BackfillOption) *Backfiller {
	b := &Backfiller{gateway: gateway, store: st, batch: DefaultBatchSize, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.WithField("component", "backfill")
	return b
}

// Run files up to one batch of pending entries. A failing entry is marked
// failed and the rest of the batch continues; only a failure to list the
// batch is returned as an error.
func (b *Backfiller) Run(ctx context.Context) (Report, error) {
	var report Report
	entries, err := b.store.EntriesByStatus(ctx, store.StatusPending, b.batch)
	if err != nil {
		return report, fmt.Errorf("list pending imports: %w", err)
	}
	if len(entries) == 0 {
		return report, nil
	}
	folders, err := b.store.FolderNames(ctx)
	if err != nil {
		b.log.WithError(err).Debug("folder list unavailable")
	}
	// Memo updates replace the memo, so they apply only when it was read.
	memo, err := b.store.ContextMemo(ctx)
	memoKnown := err == nil
	if err != nil {
		b.log.WithError(err).Warn("memo unavailable; memo updates disabled for this pass")
	}
	summary := memo.Summary

	for _, e := range entries {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		log := b.log.WithField("entry", e.ID)
		folder, update, err := b.file(ctx, e, summary, folders)
		if err != nil {
			report.Failed++
			log.WithError(err).Warn("filing failed")
			if serr := b.store.SetStatus(ctx, e.ID, store.StatusFailed); serr != nil {
				log.WithError(serr).Warn("marking entry failed")
			}
			continue
		}
		report.Processed++
		if folder != "" && !contains(folders, folder) {
			folders = append(folders, folder)
		}
		if memoKnown && update != "" && update != summary {
			if err := b.store.SetContextMemo(ctx, update); err != nil {
				log.WithError(err).Warn("memo update failed")
				continue
			}
			summary = update
		}
	}
	b.log.WithFields(logrus.Fields{"processed": report.Processed, "failed": report.Failed}).Info("backfill pass done")
	return report, nil
}

// RetryFailed moves up to one batch of failed entries back to pending.
func (b *Backfiller) RetryFailed(ctx context.Context) (int, error) {
	entries, err := b.store.EntriesByStatus(ctx, store.StatusFailed, b.batch)
	if err != nil {
		return 0, fmt.Errorf("list failed imports: %w", err)
	}
	moved := 0
	for _, e := range entries {
		if err := b.store.SetStatus(ctx, e.ID, store.StatusPending); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

// file tags and files one entry. It returns the folder used and the memo
// update the model proposed, which the caller applies.
func (b *Backfiller) file(ctx context.Context, e store.Entry, memo string, folders []string) (string, string, error) {
	msgs, err := b.store.Messages(ctx, e.ID)
	if err != nil {
		return "", "", err
	}
	turns := make([]compaction.Turn, 0, len(msgs))
	for _, m := range msgs {
		role := compaction.RoleUser
		if m.Sender == store.SenderAssistant {
			role = compaction.RoleAssistant
		}
		turns = append(turns, compaction.Turn{Role: role, Content: m.Content})
	}
	if len(turns) == 0 {
		return "", "", errors.New("entry has no messages")
	}

	act, err := b.gateway.Dispatch(ctx, llm.DispatchRequest{
		System:       llm.BuildTaggingPrompt(e.Title, e.SourceURL, memo, folders),
		Turns:        llm.ClipTurns([]llm.Turn{{Role: llm.RoleUser, Content: compaction.Render(turns)}}),
		ToolsEnabled: false,
		Model:        b.model,
	})
	if err != nil {
		return "", "", err
	}
	if act.Recovery == action.PlainTextFallback {
		return "", "", errUnfiled
	}

	status := store.StatusProcessed
	upd := store.EntryUpdate{
		EmotionTags: act.EmotionTags,
		TopicTags:   act.TopicTags,
		Status:      &status,
	}
	if act.EntryTitleSuggestion != "" && (e.Title == "" || e.Title == defaultTitle) {
		title := act.EntryTitleSuggestion
		upd.Title = &title
	}
	folder := act.FolderSuggestion
	if folder != "" {
		f, err := b.store.EnsureFolder(ctx, folder)
		if err != nil {
			return "", "", err
		}
		upd.FolderID = &f.ID
	}
	if _, err := b.store.UpdateEntry(ctx, e.ID, upd); err != nil {
		return "", "", err
	}
	return folder, strings.TrimSpace(act.ContextMemoUpdate), nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
