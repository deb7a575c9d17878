// Package export writes journal entries out as a JSON archive or as HTML.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/jacobB1290/JwebAPP-sub000/internal/action"
	"github.com/jacobB1290/JwebAPP-sub000/internal/store"
)

const (
	recordTypeEntry = "entry"
	recordTypeMemo  = "memo"
)

// Snapshot is a point-in-time copy of one entry and its messages.
type Snapshot struct {
	RecordType  string            `json:"recordType"`
	EntryID     string            `json:"entryId"`
	Title       string            `json:"title"`
	Folder      string            `json:"folder,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	EmotionTags []string          `json:"emotionTags,omitempty"`
	TopicTags   []string          `json:"topicTags,omitempty"`
	Status      string            `json:"status"`
	Source      string            `json:"source"`
	SourceURL   string            `json:"sourceUrl,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	CapturedAt  time.Time         `json:"capturedAt"`
	Messages    []SnapshotMessage `json:"messages,omitempty"`
}

// SnapshotMessage is one stored message.
type SnapshotMessage struct {
	Sender    string           `json:"sender"`
	Type      string           `json:"type"`
	Tone      string           `json:"tone,omitempty"`
	Content   string           `json:"content"`
	ToolCall  *action.ToolCall `json:"toolCall,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// MemoRecord is the archived context memo.
type MemoRecord struct {
	RecordType string    `json:"recordType"`
	Summary    string    `json:"summary"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Source is the read side of the store an export needs.
type Source interface {
	Entries(ctx context.Context, limit int) ([]store.Entry, error)
	Messages(ctx context.Context, entryID string) ([]store.Message, error)
	Folders(ctx context.Context) ([]store.Folder, error)
	ContextMemo(ctx context.Context) (store.ContextMemo, error)
}

// Collect snapshots every entry in src, newest first.
func Collect(ctx context.Context, src Source, now time.Time) ([]Snapshot, *MemoRecord, error) {
	entries, err := src.Entries(ctx, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("list entries: %w", err)
	}
	folders, err := src.Folders(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list folders: %w", err)
	}
	names := make(map[string]string, len(folders))
	for _, f := range folders {
		names[f.ID] = f.Name
	}

	snapshots := make([]Snapshot, 0, len(entries))
	for _, e := range entries {
		msgs, err := src.Messages(ctx, e.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("messages for %s: %w", e.ID, err)
		}
		snapshots = append(snapshots, snapshotOf(e, names[e.FolderID], msgs, now))
	}

	memo, err := src.ContextMemo(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read memo: %w", err)
	}
	var record *MemoRecord
	if memo.Summary != "" {
		record = &MemoRecord{RecordType: recordTypeMemo, Summary: memo.Summary, UpdatedAt: memo.UpdatedAt}
	}
	return snapshots, record, nil
}

func snapshotOf(e store.Entry, folder string, msgs []store.Message, now time.Time) Snapshot {
	out := Snapshot{
		RecordType:  recordTypeEntry,
		EntryID:     e.ID,
		Title:       e.Title,
		Folder:      folder,
		Tags:        e.Tags,
		EmotionTags: e.EmotionTags,
		TopicTags:   e.TopicTags,
		Status:      string(e.Status),
		Source:      string(e.Source),
		SourceURL:   e.SourceURL,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
		CapturedAt:  now,
	}
	for _, m := range msgs {
		out.Messages = append(out.Messages, SnapshotMessage{
			Sender:    string(m.Sender),
			Type:      string(m.Type),
			Tone:      string(m.Tone),
			Content:   m.Content,
			ToolCall:  m.ToolCall,
			Timestamp: m.CreatedAt,
		})
	}
	return out
}
