package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// EnsureFolder returns the folder called name, creating it on first use.
// Names compare case-insensitively.
func (s *Store) EnsureFolder(ctx context.Context, name string) (Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Folder{}, wrap("ensure folder", errors.New("folder name is empty"))
	}
	var out Folder
	err := s.inTx(ctx, "ensure folder", func(tx *sql.Tx) error {
		var createdAt int64
		err := tx.QueryRowContext(ctx, `SELECT id, name, description, created_at FROM folders WHERE name = ?`, name).
			Scan(&out.ID, &out.Name, &out.Description, &createdAt)
		if err == nil {
			out.CreatedAt = fromStamp(createdAt)
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		now := s.stamp()
		out = Folder{ID: uuid.NewString(), Name: name, CreatedAt: fromStamp(now)}
		_, err = tx.ExecContext(ctx, `INSERT INTO folders (id, name, description, created_at) VALUES (?, ?, '', ?)`,
			out.ID, out.Name, now)
		return err
	})
	if err != nil {
		return Folder{}, err
	}
	return out, nil
}

// Folders lists every folder by name.
func (s *Store) Folders(ctx context.Context) ([]Folder, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description, created_at FROM folders ORDER BY name`)
	if err != nil {
		return nil, wrap("list folders", err)
	}
	defer rows.Close()
	var out []Folder
	for rows.Next() {
		var (
			f         Folder
			createdAt int64
		)
		if err := rows.Scan(&f.ID, &f.Name, &f.Description, &createdAt); err != nil {
			return nil, wrap("list folders", err)
		}
		f.CreatedAt = fromStamp(createdAt)
		out = append(out, f)
	}
	return out, wrap("list folders", rows.Err())
}

// FolderNames is Folders reduced to names, for prompts.
func (s *Store) FolderNames(ctx context.Context) ([]string, error) {
	folders, err := s.Folders(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(folders))
	for _, f := range folders {
		names = append(names, f.Name)
	}
	return names, nil
}
