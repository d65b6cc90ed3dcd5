package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/forgecrew/foreman/internal/types"
)

const depColumns = `id, from_item_id, to_item_id, type, unblock_at, created_at`

// scanDependency reads one dependencies row in depColumns order
func scanDependency(s scanner) (*types.Dependency, error) {
	var dep types.Dependency
	var unblockAt *string
	if err := s.Scan(&dep.ID, &dep.FromItemID, &dep.ToItemID, &dep.Type, &unblockAt, &dep.CreatedAt); err != nil {
		return nil, err
	}
	if unblockAt != nil {
		dep.UnblockAt = types.Role(*unblockAt)
	}
	return &dep, nil
}

// addDependency validates and inserts a typed edge. For blocking edges a
// forward search over the normalized blocking subgraph rejects cycles
// before the row is written.
func addDependency(ctx context.Context, q querier, dep *types.Dependency) error {
	if err := dep.Validate(); err != nil {
		return err
	}

	// Both endpoints must exist
	if _, err := getItem(ctx, q, dep.FromItemID); err != nil {
		return err
	}
	if _, err := getItem(ctx, q, dep.ToItemID); err != nil {
		return err
	}

	if dep.Type.IsBlocking() {
		cycle, err := blockingPathExists(ctx, q, dep.BlockedID(), dep.BlockerID())
		if err != nil {
			return fmt.Errorf("failed to check for cycles: %w", err)
		}
		if cycle {
			return fmt.Errorf("cannot add dependency %s -> %s: %w", dep.FromItemID, dep.ToItemID, ErrCycle)
		}
	}

	if dep.ID == "" {
		dep.ID = uuid.NewString()
	}
	if dep.CreatedAt.IsZero() {
		dep.CreatedAt = time.Now()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO dependencies (id, from_item_id, to_item_id, type, unblock_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, dep.ID, dep.FromItemID, dep.ToItemID, dep.Type, nullable(string(dep.UnblockAt)), dep.CreatedAt)
	return wrapDBError("add dependency", err)
}

// blockingPathExists reports whether the blocking subgraph already carries
// a path from -> to, following edges in blocker-to-blocked direction.
func blockingPathExists(ctx context.Context, q querier, from, to string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `
		WITH RECURSIVE reach(id, depth) AS (
			SELECT ?, 0
			UNION ALL
			SELECT CASE WHEN d.type = 'IS_BLOCKED_BY' THEN d.from_item_id ELSE d.to_item_id END,
			       r.depth + 1
			FROM dependencies d
			JOIN reach r
			  ON r.id = CASE WHEN d.type = 'IS_BLOCKED_BY' THEN d.to_item_id ELSE d.from_item_id END
			WHERE d.type IN ('BLOCKS', 'IS_BLOCKED_BY')
			  AND r.depth < 100
		)
		SELECT EXISTS(SELECT 1 FROM reach WHERE id = ?)
	`, from, to).Scan(&exists)
	return exists, err
}

// removeDependency deletes one typed edge
func removeDependency(ctx context.Context, q querier, fromItemID, toItemID string, depType types.DependencyType) error {
	result, err := q.ExecContext(ctx, `
		DELETE FROM dependencies WHERE from_item_id = ? AND to_item_id = ? AND type = ?
	`, fromItemID, toItemID, depType)
	if err != nil {
		return wrapDBError("remove dependency", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("dependency %s -> %s (%s): %w", fromItemID, toItemID, depType, ErrNotFound)
	}
	return nil
}

func queryDependencies(ctx context.Context, q querier, query string, args ...interface{}) ([]*types.Dependency, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("query dependencies", err)
	}
	defer func() { _ = rows.Close() }()

	var deps []*types.Dependency
	for rows.Next() {
		dep, err := scanDependency(rows)
		if err != nil {
			return nil, err
		}
		deps = append(deps, dep)
	}
	return deps, rows.Err()
}

// AddDependency creates a typed edge between two items
func (s *Store) AddDependency(ctx context.Context, dep *types.Dependency) error {
	return addDependency(ctx, s.db, dep)
}

// RemoveDependency deletes one typed edge
func (s *Store) RemoveDependency(ctx context.Context, fromItemID, toItemID string, depType types.DependencyType) error {
	return removeDependency(ctx, s.db, fromItemID, toItemID, depType)
}

// GetDependencyRecords returns every edge incident to itemID, in either
// direction and of any type.
func (s *Store) GetDependencyRecords(ctx context.Context, itemID string) ([]*types.Dependency, error) {
	return queryDependencies(ctx, s.db, `
		SELECT `+depColumns+` FROM dependencies
		WHERE from_item_id = ? OR to_item_id = ?
		ORDER BY created_at
	`, itemID, itemID)
}

// GetIncomingBlockers returns the normalized blocking edges that gate
// itemID: BLOCKS edges pointing at it plus IS_BLOCKED_BY edges leaving it.
func (s *Store) GetIncomingBlockers(ctx context.Context, itemID string) ([]*types.Dependency, error) {
	return queryDependencies(ctx, s.db, `
		SELECT `+depColumns+` FROM dependencies
		WHERE (type = 'BLOCKS' AND to_item_id = ?)
		   OR (type = 'IS_BLOCKED_BY' AND from_item_id = ?)
		ORDER BY created_at
	`, itemID, itemID)
}

// GetOutgoingBlocking returns the blocking edges whose blocker side is
// itemID, i.e. the edges gating downstream items.
func (s *Store) GetOutgoingBlocking(ctx context.Context, itemID string) ([]*types.Dependency, error) {
	return queryDependencies(ctx, s.db, `
		SELECT `+depColumns+` FROM dependencies
		WHERE (type = 'BLOCKS' AND from_item_id = ?)
		   OR (type = 'IS_BLOCKED_BY' AND to_item_id = ?)
		ORDER BY created_at
	`, itemID, itemID)
}
