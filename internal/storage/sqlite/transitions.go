package sqlite

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/forgecrew/foreman/internal/types"
)

// trigger is quoted everywhere because it is a reserved word in SQLite.
const transitionColumns = `id, item_id, from_role, to_role, from_status_label,
	to_status_label, "trigger", summary, transitioned_at`

// scanTransition reads one role_transitions row in transitionColumns order
func scanTransition(s scanner) (*types.RoleTransition, error) {
	var tr types.RoleTransition
	var fromLabel, toLabel, summary *string
	if err := s.Scan(&tr.ID, &tr.ItemID, &tr.FromRole, &tr.ToRole,
		&fromLabel, &toLabel, &tr.Trigger, &summary, &tr.TransitionedAt); err != nil {
		return nil, err
	}
	if fromLabel != nil {
		tr.FromStatusLabel = *fromLabel
	}
	if toLabel != nil {
		tr.ToStatusLabel = *toLabel
	}
	if summary != nil {
		tr.Summary = *summary
	}
	return &tr, nil
}

// addTransition appends one audit record
func addTransition(ctx context.Context, q querier, tr *types.RoleTransition) error {
	if tr.ID == "" {
		tr.ID = uuid.NewString()
	}
	if tr.TransitionedAt.IsZero() {
		tr.TransitionedAt = time.Now()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO role_transitions (
			id, item_id, from_role, to_role, from_status_label,
			to_status_label, "trigger", summary, transitioned_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tr.ID, tr.ItemID, tr.FromRole, tr.ToRole,
		nullable(tr.FromStatusLabel), nullable(tr.ToStatusLabel),
		tr.Trigger, nullable(tr.Summary), tr.TransitionedAt)
	return wrapDBError("add role transition", err)
}

// AddTransition appends one audit record outside a transaction
func (s *Store) AddTransition(ctx context.Context, tr *types.RoleTransition) error {
	return addTransition(ctx, s.db, tr)
}

func (s *Store) queryTransitions(ctx context.Context, query string, args ...interface{}) ([]*types.RoleTransition, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("query role transitions", err)
	}
	defer func() { _ = rows.Close() }()

	var transitions []*types.RoleTransition
	for rows.Next() {
		tr, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		transitions = append(transitions, tr)
	}
	return transitions, rows.Err()
}

// GetTransitions returns the audit trail for one item, newest first
func (s *Store) GetTransitions(ctx context.Context, itemID string, limit int) ([]*types.RoleTransition, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryTransitions(ctx, `
		SELECT `+transitionColumns+` FROM role_transitions
		WHERE item_id = ?
		ORDER BY transitioned_at DESC
		LIMIT ?
	`, itemID, limit)
}

// GetTransitionsSince returns audit records across all items that landed
// at or after since, newest first.
func (s *Store) GetTransitionsSince(ctx context.Context, since time.Time, limit int) ([]*types.RoleTransition, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryTransitions(ctx, `
		SELECT `+transitionColumns+` FROM role_transitions
		WHERE transitioned_at >= ?
		ORDER BY transitioned_at DESC
		LIMIT ?
	`, since, limit)
}
