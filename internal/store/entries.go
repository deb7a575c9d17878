package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/jacobB1290/JwebAPP-sub000/internal/action"
)

const entryColumns = `id, title, COALESCE(folder_id, ''), tags, emotion_tags, topic_tags, memo_snapshot,
	processing_status, source, source_url, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner, extra ...any) (Entry, error) {
	var (
		e                      Entry
		tags, emotions, topics string
		status, source         string
		createdAt, updatedAt   int64
	)
	dest := []any{&e.ID, &e.Title, &e.FolderID, &tags, &emotions, &topics, &e.MemoSnapshot,
		&status, &source, &e.SourceURL, &createdAt, &updatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Entry{}, err
	}
	e.Tags = decodeTags(tags)
	e.EmotionTags = decodeTags(emotions)
	e.TopicTags = decodeTags(topics)
	e.Status = ProcessingStatus(status)
	e.Source = Source(source)
	e.CreatedAt = fromStamp(createdAt)
	e.UpdatedAt = fromStamp(updatedAt)
	return e, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// CreateEntry inserts a new entry and returns it.
func (s *Store) CreateEntry(ctx context.Context, in NewEntry) (Entry, error) {
	if in.Status == "" {
		in.Status = StatusLive
	}
	if in.Source == "" {
		in.Source = SourceJournal
	}
	now := s.stamp()
	e := Entry{
		ID:           uuid.NewString(),
		Title:        strings.TrimSpace(in.Title),
		FolderID:     in.FolderID,
		Tags:         action.NormalizeTags(in.Tags),
		EmotionTags:  action.NormalizeTags(in.EmotionTags),
		TopicTags:    action.NormalizeTags(in.TopicTags),
		MemoSnapshot: strings.TrimSpace(in.MemoSnapshot),
		Status:       in.Status,
		Source:       in.Source,
		SourceURL:    in.SourceURL,
		CreatedAt:    fromStamp(now),
		UpdatedAt:    fromStamp(now),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (id, title, folder_id, tags, emotion_tags, topic_tags, memo_snapshot, processing_status, source, source_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Title, nullable(e.FolderID), encodeTags(e.Tags), encodeTags(e.EmotionTags), encodeTags(e.TopicTags),
		e.MemoSnapshot, string(e.Status), string(e.Source), e.SourceURL, now, now)
	if err != nil {
		return Entry{}, wrap("create entry", err)
	}
	return e, nil
}

// Entry loads one entry by id.
func (s *Store) Entry(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, wrap("get entry", ErrNotFound)
	}
	if err != nil {
		return Entry{}, wrap("get entry", err)
	}
	return e, nil
}

// UpdateEntry applies upd atomically and returns the updated entry.
func (s *Store) UpdateEntry(ctx context.Context, id string, upd EntryUpdate) (Entry, error) {
	var out Entry
	err := s.inTx(ctx, "update entry", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
		e, err := scanEntry(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if upd.Title != nil {
			e.Title = strings.TrimSpace(*upd.Title)
		}
		if upd.FolderID != nil {
			e.FolderID = *upd.FolderID
		}
		if upd.MemoSnapshot != nil {
			e.MemoSnapshot = *upd.MemoSnapshot
		}
		if upd.Status != nil {
			e.Status = *upd.Status
		}
		e.EmotionTags = action.MergeTags(e.EmotionTags, upd.EmotionTags)
		e.TopicTags = action.MergeTags(e.TopicTags, upd.TopicTags)
		now := s.stamp()
		e.UpdatedAt = fromStamp(now)

		_, err = tx.ExecContext(ctx, `
			UPDATE entries SET title = ?, folder_id = ?, emotion_tags = ?, topic_tags = ?, memo_snapshot = ?,
				processing_status = ?, updated_at = ?
			WHERE id = ?`,
			e.Title, nullable(e.FolderID), encodeTags(e.EmotionTags), encodeTags(e.TopicTags), e.MemoSnapshot,
			string(e.Status), now, id)
		out = e
		return err
	})
	return out, err
}

// SetStatus changes only the processing status of an entry.
func (s *Store) SetStatus(ctx context.Context, id string, status ProcessingStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE entries SET processing_status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return wrap("set status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wrap("set status", ErrNotFound)
	}
	return nil
}

// Entries lists entries newest first. limit <= 0 lists everything.
func (s *Store) Entries(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries ORDER BY updated_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryEntries(ctx, "list entries", query, args...)
}

// EntriesByStatus lists entries with status, oldest first.
func (s *Store) EntriesByStatus(ctx context.Context, status ProcessingStatus, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryEntries(ctx, "entries by status",
		`SELECT `+entryColumns+` FROM entries WHERE processing_status = ? ORDER BY created_at, id LIMIT ?`,
		string(status), limit)
}

func (s *Store) queryEntries(ctx context.Context, op, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		out = append(out, e)
	}
	return out, wrap(op, rows.Err())
}

// RecentEntries returns the most recently updated journal entries together
// with their first human message. Imports still waiting for processing are
// skipped.
func (s *Store) RecentEntries(ctx context.Context, limit int) ([]EntrySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`,
			COALESCE((SELECT content FROM messages m
				WHERE m.entry_id = entries.id AND m.sender = 'human'
				ORDER BY m.position LIMIT 1), '')
		FROM entries
		WHERE processing_status IN ('live', 'processed')
		ORDER BY updated_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, wrap("recent entries", err)
	}
	defer rows.Close()
	var out []EntrySummary
	for rows.Next() {
		var first string
		e, err := scanEntry(rows, &first)
		if err != nil {
			return nil, wrap("recent entries", err)
		}
		out = append(out, EntrySummary{Entry: e, FirstHuman: first})
	}
	return out, wrap("recent entries", rows.Err())
}
