package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jacobB1290/JwebAPP-sub000/internal/compaction"
	"github.com/jacobB1290/JwebAPP-sub000/internal/store"
)

const defaultTitle = "Imported conversation"

// Store is the persistence the importer writes to.
type Store interface {
	CreateEntry(ctx context.Context, in store.NewEntry) (store.Entry, error)
	AppendMessages(ctx context.Context, entryID string, msgs []store.NewMessage) ([]store.Message, error)
	SetStatus(ctx context.Context, id string, status store.ProcessingStatus) error
	ContextMemo(ctx context.Context) (store.ContextMemo, error)
}

// Result describes one finished import.
type Result struct {
	Entry    store.Entry
	Messages int
	Expanded bool
}

// Importer turns a fetched page into a pending entry.
type Importer struct {
	fetcher Fetcher
	store   Store
	log     logrus.FieldLogger
}

// New builds an importer. A nil logger uses the logrus standard logger.
func New(fetcher Fetcher, st Store, logger logrus.FieldLogger) *Importer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Importer{fetcher: fetcher, store: st, log: logger.WithField("component", "import")}
}

// Import fetches rawURL and stores the conversation as an entry waiting for
// backfill. Fetch failures are returned as *FetchError.
func (im *Importer) Import(ctx context.Context, rawURL string) (Result, error) {
	log := im.log.WithField("url", rawURL)
	page, err := im.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		log.WithError(err).WithField("tag", TagOf(err)).Warn("fetch failed")
		return Result{}, err
	}
	msgs, expanded := Expand(page.Messages)
	if len(msgs) == 0 {
		return Result{}, fetchError(TagEmpty, rawURL, nil)
	}

	title := strings.TrimSpace(page.Title)
	if title == "" {
		title = defaultTitle
	}
	memo, err := im.store.ContextMemo(ctx)
	if err != nil {
		log.WithError(err).Warn("memo unavailable; importing without a snapshot")
	}
	entry, err := im.store.CreateEntry(ctx, store.NewEntry{
		Title:        title,
		Tags:         []string{store.ImportedTag},
		MemoSnapshot: memo.Summary,
		Status:       store.StatusPending,
		Source:       store.SourceImport,
		SourceURL:    rawURL,
	})
	if err != nil {
		return Result{}, fmt.Errorf("import %s: %w", rawURL, err)
	}

	if _, err := im.store.AppendMessages(ctx, entry.ID, toStored(msgs)); err != nil {
		if serr := im.store.SetStatus(ctx, entry.ID, store.StatusFailed); serr != nil {
			log.WithError(serr).Warn("marking entry failed")
		}
		return Result{Entry: entry}, fmt.Errorf("import %s: %w", rawURL, err)
	}
	log.WithFields(logrus.Fields{
		"entry":    entry.ID,
		"messages": len(msgs),
		"expanded": expanded,
		"model":    page.Model,
	}).Info("conversation imported")
	return Result{Entry: entry, Messages: len(msgs), Expanded: expanded}, nil
}

// Expand replaces the conversation with its compacted turns when the first
// message is a compacted export. It reports whether it did.
func Expand(msgs []Message) ([]Message, bool) {
	msgs = cleanMessages(msgs)
	if len(msgs) == 0 || !compaction.IsCompacted(msgs[0].Content) {
		return msgs, false
	}
	turns := compaction.Parse(msgs[0].Content)
	out := fromTurns(turns)
	out = append(out, msgs[1:]...)
	return out, true
}

func toStored(msgs []Message) []store.NewMessage {
	out := make([]store.NewMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == compaction.RoleAssistant {
			out = append(out, store.NewMessage{Sender: store.SenderAssistant, Content: m.Content, Type: store.TypeConversational})
			continue
		}
		out = append(out, store.NewMessage{Sender: store.SenderHuman, Content: m.Content, Type: store.TypeText})
	}
	return out
}

// ImportAll imports each URL in turn. A failed URL is logged and skipped.
func (im *Importer) ImportAll(ctx context.Context, urls []string) ([]Result, error) {
	var (
		results []Result
		errs    []error
	)
	for _, u := range urls {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		res, err := im.Import(ctx, u)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}
