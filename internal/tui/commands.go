package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jacobB1290/JwebAPP-sub000/internal/importer"
	"github.com/jacobB1290/JwebAPP-sub000/internal/queue"
	"github.com/jacobB1290/JwebAPP-sub000/internal/store"
)

// EntryStore is the read side of the store the UI browses.
type EntryStore interface {
	Entries(ctx context.Context, limit int) ([]store.Entry, error)
	Entry(ctx context.Context, id string) (store.Entry, error)
	Messages(ctx context.Context, entryID string) ([]store.Message, error)
}

// Importer pulls a shared conversation into the journal.
type Importer interface {
	Import(ctx context.Context, rawURL string) (importer.Result, error)
}

func loadEntriesJob(st EntryStore) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 10*time.Second)
		defer cancel()
		entries, err := st.Entries(ctx, entryListLimit)
		if err != nil {
			return nil, fmt.Errorf("load entries: %w", err)
		}
		return entriesLoadedMsg{entries: entries}, nil
	}
}

func openEntryJob(st EntryStore, id string) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 10*time.Second)
		defer cancel()
		entry, err := st.Entry(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("open entry: %w", err)
		}
		msgs, err := st.Messages(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("open entry: %w", err)
		}
		return entryOpenedMsg{entry: entry, messages: msgs}, nil
	}
}

func importJob(im Importer, url string, timeout time.Duration) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		res, err := im.Import(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", importHint(importer.TagOf(err)), err)
		}
		return importDoneMsg{url: url, result: res}, nil
	}
}

func importHint(tag importer.FetchTag) string {
	switch tag {
	case importer.TagInvalidURL:
		return "that is not a share link"
	case importer.TagTimeout:
		return "the page took too long to load"
	case importer.TagBlocked:
		return "the site refused the request"
	case importer.TagEmpty:
		return "no conversation found on the page"
	case importer.TagUnavailable:
		return "the page is unavailable"
	default:
		return "import failed"
	}
}

func waitForEvent(events <-chan queue.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return queueEventMsg{Event: ev}
	}
}

func waitForSent(sent <-chan queue.Job) tea.Cmd {
	return func() tea.Msg {
		job, ok := <-sent
		if !ok {
			return nil
		}
		return sentMsg{Job: job}
	}
}

func waitForReport(reports <-chan importer.Report) tea.Cmd {
	return func() tea.Msg {
		report, ok := <-reports
		if !ok {
			return nil
		}
		return backfillReportMsg{Report: report}
	}
}

func previewText(value string, limit int) string {
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
