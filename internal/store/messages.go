package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/jacobB1290/JwebAPP-sub000/internal/action"
)

// AppendMessages stores msgs at the end of an entry in one transaction.
// Positions continue from the entry's current maximum, so they stay strictly
// increasing even across imports and live writing.
func (s *Store) AppendMessages(ctx context.Context, entryID string, msgs []NewMessage) ([]Message, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	var out []Message
	err := s.inTx(ctx, "append messages", func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM entries WHERE id = ?`, entryID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
		var next int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position), -1) + 1 FROM messages WHERE entry_id = ?`, entryID).Scan(&next); err != nil {
			return err
		}
		now := s.stamp()
		for i, in := range msgs {
			msg := Message{
				ID:            uuid.NewString(),
				EntryID:       entryID,
				Sender:        in.Sender,
				Content:       in.Content,
				Type:          in.Type,
				Tone:          in.Tone,
				LinkedEntryID: in.LinkedEntryID,
				ToolCall:      in.ToolCall,
				Position:      next + i,
				CreatedAt:     fromStamp(now),
			}
			if msg.Type == "" {
				msg.Type = TypeText
			}
			toolJSON := ""
			if msg.ToolCall != nil {
				buf, err := json.Marshal(msg.ToolCall)
				if err != nil {
					return err
				}
				toolJSON = string(buf)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO messages (id, entry_id, sender, content, type, tone, linked_entry_id, tool_call, position, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				msg.ID, entryID, string(msg.Sender), msg.Content, string(msg.Type), string(msg.Tone),
				msg.LinkedEntryID, toolJSON, msg.Position, now); err != nil {
				return err
			}
			out = append(out, msg)
		}
		_, err := tx.ExecContext(ctx, `UPDATE entries SET updated_at = ? WHERE id = ?`, now, entryID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Messages returns an entry's messages in position order.
func (s *Store) Messages(ctx context.Context, entryID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entry_id, sender, content, type, tone, linked_entry_id, tool_call, position, created_at
		FROM messages WHERE entry_id = ? ORDER BY position`, entryID)
	if err != nil {
		return nil, wrap("list messages", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m                 Message
			sender, typ, tone string
			toolJSON          string
			createdAt         int64
		)
		if err := rows.Scan(&m.ID, &m.EntryID, &sender, &m.Content, &typ, &tone, &m.LinkedEntryID, &toolJSON, &m.Position, &createdAt); err != nil {
			return nil, wrap("list messages", err)
		}
		m.Sender = Sender(sender)
		m.Type = MessageType(typ)
		m.Tone = action.Tone(tone)
		m.CreatedAt = fromStamp(createdAt)
		if toolJSON != "" {
			var call action.ToolCall
			if err := json.Unmarshal([]byte(toolJSON), &call); err == nil {
				m.ToolCall = &call
			}
		}
		out = append(out, m)
	}
	return out, wrap("list messages", rows.Err())
}

// FirstHumanMessage returns the opening human message of an entry.
func (s *Store) FirstHumanMessage(ctx context.Context, entryID string) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx, `
		SELECT content FROM messages WHERE entry_id = ? AND sender = 'human'
		ORDER BY position LIMIT 1`, entryID).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return content, wrap("first human message", err)
}
