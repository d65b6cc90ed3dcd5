package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forgecrew/foreman/internal/types"
)

const noteColumns = `id, item_id, key, role, body, created_at, modified_at`

// scanNote reads one notes row in noteColumns order
func scanNote(s scanner) (*types.Note, error) {
	var note types.Note
	if err := s.Scan(&note.ID, &note.ItemID, &note.Key, &note.Role, &note.Body,
		&note.CreatedAt, &note.ModifiedAt); err != nil {
		return nil, err
	}
	return &note, nil
}

// upsertNote inserts a note or replaces the body/role of an existing
// (item_id, key) pair, advancing modified_at.
func upsertNote(ctx context.Context, q querier, note *types.Note) error {
	if err := note.Validate(); err != nil {
		return wrapValidation(err)
	}

	// The note's item must exist; FK enforcement alone would surface a
	// generic constraint error.
	if _, err := getItem(ctx, q, note.ItemID); err != nil {
		return err
	}

	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	now := time.Now()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	note.ModifiedAt = now

	_, err := q.ExecContext(ctx, `
		INSERT INTO notes (id, item_id, key, role, body, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id, key) DO UPDATE SET
			role = excluded.role,
			body = excluded.body,
			modified_at = excluded.modified_at
	`, note.ID, note.ItemID, note.Key, note.Role, note.Body, note.CreatedAt, note.ModifiedAt)
	return wrapDBError("upsert note", err)
}

// deleteNote removes one note by its (item_id, key) pair
func deleteNote(ctx context.Context, q querier, itemID, key string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM notes WHERE item_id = ? AND key = ?`, itemID, key)
	if err != nil {
		return wrapDBError("delete note", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("note %s/%s: %w", itemID, key, ErrNotFound)
	}
	return nil
}

// UpsertNote inserts or replaces a note keyed by (item_id, key)
func (s *Store) UpsertNote(ctx context.Context, note *types.Note) error {
	return upsertNote(ctx, s.db, note)
}

// DeleteNote removes one note
func (s *Store) DeleteNote(ctx context.Context, itemID, key string) error {
	return deleteNote(ctx, s.db, itemID, key)
}

// GetNote retrieves one note by its (item_id, key) pair
func (s *Store) GetNote(ctx context.Context, itemID, key string) (*types.Note, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+noteColumns+` FROM notes WHERE item_id = ? AND key = ?
	`, itemID, key)
	note, err := scanNote(row)
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("get note %s/%s", itemID, key), err)
	}
	return note, nil
}

// ListNotes returns notes matching the filter, oldest first
func (s *Store) ListNotes(ctx context.Context, filter types.NoteFilter) ([]*types.Note, error) {
	whereClauses := []string{"1=1"}
	args := []interface{}{}

	if filter.ItemID != "" {
		whereClauses = append(whereClauses, "item_id = ?")
		args = append(args, filter.ItemID)
	}
	if filter.Role != nil {
		whereClauses = append(whereClauses, "role = ?")
		args = append(args, *filter.Role)
	}
	if filter.Key != "" {
		whereClauses = append(whereClauses, "key = ?")
		args = append(args, filter.Key)
	}

	limitSQL := ""
	if filter.Limit > 0 {
		limitSQL = " LIMIT ?"
		args = append(args, filter.Limit)
	}

	// #nosec G201 - clause fragments are static
	query := fmt.Sprintf(`SELECT %s FROM notes WHERE %s ORDER BY created_at%s`,
		noteColumns, strings.Join(whereClauses, " AND "), limitSQL)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list notes", err)
	}
	defer func() { _ = rows.Close() }()

	var notes []*types.Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}
