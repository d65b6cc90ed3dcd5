package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forgecrew/foreman/internal/types"
)

// querier is satisfied by *sql.DB and *sql.Conn so item helpers can run
// either directly or inside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const itemColumns = `id, parent_id, title, description, summary, role, previous_role,
	status_label, priority, complexity, requires_verification, depth,
	metadata, tags, created_at, modified_at`

// scanner abstracts *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanItem reads one work_items row in itemColumns order
func scanItem(s scanner) (*types.WorkItem, error) {
	var item types.WorkItem
	var parentID, previousRole, statusLabel, metadata, tags sql.NullString
	var requiresVerification int

	err := s.Scan(
		&item.ID, &parentID, &item.Title, &item.Description, &item.Summary,
		&item.Role, &previousRole, &statusLabel, &item.Priority, &item.Complexity,
		&requiresVerification, &item.Depth, &metadata, &tags,
		&item.CreatedAt, &item.ModifiedAt,
	)
	if err != nil {
		return nil, err
	}

	item.ParentID = parentID.String
	item.PreviousRole = types.Role(previousRole.String)
	item.StatusLabel = statusLabel.String
	item.Metadata = metadata.String
	item.Tags = tags.String
	item.RequiresVerification = requiresVerification != 0
	return &item, nil
}

// nullable returns a NULL-storing value for empty optional strings
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// insertItem inserts a single work item. The caller is responsible for
// validation, timestamps, and depth derivation.
func insertItem(ctx context.Context, q querier, item *types.WorkItem) error {
	requiresVerification := 0
	if item.RequiresVerification {
		requiresVerification = 1
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO work_items (
			id, parent_id, title, description, summary, role, previous_role,
			status_label, priority, complexity, requires_verification, depth,
			metadata, tags, created_at, modified_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		item.ID, nullable(item.ParentID), item.Title, item.Description, item.Summary,
		item.Role, nullable(string(item.PreviousRole)), nullable(item.StatusLabel),
		item.Priority, item.Complexity, requiresVerification, item.Depth,
		nullable(item.Metadata), nullable(item.Tags), item.CreatedAt, item.ModifiedAt,
	)
	return wrapDBError("insert work item", err)
}

// getItem fetches a single item by id, returning ErrNotFound when absent
func getItem(ctx context.Context, q querier, id string) (*types.WorkItem, error) {
	row := q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM work_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("get work item %s", id), err)
	}
	return item, nil
}

// prepareNewItem applies defaults, validates, generates an id, stamps
// timestamps, and derives depth from the parent row.
func prepareNewItem(ctx context.Context, q querier, item *types.WorkItem) error {
	item.SetDefaults()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now()
	item.CreatedAt = now
	item.ModifiedAt = now

	if item.ParentID != "" {
		parent, err := getItem(ctx, q, item.ParentID)
		if err != nil {
			return fmt.Errorf("parent %s: %w", item.ParentID, err)
		}
		item.Depth = parent.Depth + 1
		if item.Depth > types.MaxDepth {
			return wrapValidation(fmt.Errorf("depth %d exceeds maximum %d", item.Depth, types.MaxDepth))
		}
	} else {
		item.Depth = 0
	}

	return wrapValidation(item.Validate())
}

// createItem prepares and inserts one item
func createItem(ctx context.Context, q querier, item *types.WorkItem) error {
	if err := prepareNewItem(ctx, q, item); err != nil {
		return err
	}
	return insertItem(ctx, q, item)
}

// createItems prepares and inserts a batch. Parents may be earlier entries
// of the same batch, so items are inserted in submitted order.
func createItems(ctx context.Context, q querier, items []*types.WorkItem) error {
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if item.ID != "" && seen[item.ID] {
			return wrapValidation(fmt.Errorf("duplicate item ID within batch: %s", item.ID))
		}
		if err := createItem(ctx, q, item); err != nil {
			return err
		}
		seen[item.ID] = true
	}
	return nil
}

// allowedUpdateFields lists the columns UpdateItem may touch. Role-related
// fields are included because the transition engine persists role changes
// through the same update path.
var allowedUpdateFields = map[string]bool{
	"title":                 true,
	"description":           true,
	"summary":               true,
	"role":                  true,
	"previous_role":         true,
	"status_label":          true,
	"priority":              true,
	"complexity":            true,
	"requires_verification": true,
	"metadata":              true,
	"tags":                  true,
	"parent_id":             true,
	"depth":                 true,
}

// updateItem applies a field map to one item. modified_at is always
// advanced and is strictly monotone even against clock stalls.
func updateItem(ctx context.Context, q querier, id string, updates map[string]interface{}) error {
	old, err := getItem(ctx, q, id)
	if err != nil {
		return err
	}

	// Strict monotonicity: every mutation must produce a modified_at
	// greater than the previous value.
	now := time.Now()
	if !now.After(old.ModifiedAt) {
		now = old.ModifiedAt.Add(time.Millisecond)
	}

	setClauses := []string{"modified_at = ?"}
	args := []interface{}{now}

	for key, value := range updates {
		if !allowedUpdateFields[key] {
			return wrapValidation(fmt.Errorf("invalid field for update: %s", key))
		}
		if err := validateFieldUpdate(key, value); err != nil {
			return wrapValidation(err)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = ?", key))
		args = append(args, normalizeUpdateValue(value))
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE work_items SET %s WHERE id = ?", strings.Join(setClauses, ", ")) // #nosec G201 - column names validated above
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapDBError("update work item", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update work item %s: %w", id, ErrNotFound)
	}
	return nil
}

// normalizeUpdateValue converts engine-level values into their column
// representation: booleans become 0/1, empty optional strings become NULL.
func normalizeUpdateValue(value interface{}) interface{} {
	switch v := value.(type) {
	case bool:
		if v {
			return 1
		}
		return 0
	case types.Role:
		return nullable(string(v))
	case types.Priority:
		return string(v)
	case nil:
		return nil
	default:
		return value
	}
}

// deleteItem removes an item. Foreign-key cascades drop the subtree,
// incident dependencies, notes, and audit transitions together.
func deleteItem(ctx context.Context, q querier, id string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM work_items WHERE id = ?`, id)
	if err != nil {
		return wrapDBError("delete work item", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete work item %s: %w", id, ErrNotFound)
	}
	return nil
}

// CreateItem creates a new work item
func (s *Store) CreateItem(ctx context.Context, item *types.WorkItem) error {
	return createItem(ctx, s.db, item)
}

// CreateItems creates multiple work items in submitted order
func (s *Store) CreateItems(ctx context.Context, items []*types.WorkItem) error {
	return createItems(ctx, s.db, items)
}

// GetItem retrieves a work item by id
func (s *Store) GetItem(ctx context.Context, id string) (*types.WorkItem, error) {
	return getItem(ctx, s.db, id)
}

// UpdateItem applies a validated field map to a work item
func (s *Store) UpdateItem(ctx context.Context, id string, updates map[string]interface{}) error {
	return updateItem(ctx, s.db, id, updates)
}

// DeleteItem removes a work item and everything it owns
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	return deleteItem(ctx, s.db, id)
}
