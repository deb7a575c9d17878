package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

const memoID = "singleton"

// ContextMemo reads the memo. A missing row is an empty memo, not an error.
func (s *Store) ContextMemo(ctx context.Context) (ContextMemo, error) {
	var (
		memo      ContextMemo
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT summary, updated_at FROM context_memo WHERE id = ?`, memoID).
		Scan(&memo.Summary, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ContextMemo{}, nil
	}
	if err != nil {
		return ContextMemo{}, wrap("read memo", err)
	}
	memo.UpdatedAt = fromStamp(updatedAt)
	return memo, nil
}

// SetContextMemo replaces the memo. Empty summaries are ignored so the memo
// is never cleared; concurrent writers resolve last-writer-wins.
func (s *Store) SetContextMemo(ctx context.Context, summary string) error {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO context_memo (id, summary, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET summary = excluded.summary, updated_at = excluded.updated_at`,
		memoID, summary, s.stamp())
	return wrap("write memo", err)
}
