package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgecrew/foreman/internal/types"
)

func (s *Store) queryItems(ctx context.Context, query string, args ...interface{}) ([]*types.WorkItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("query work items", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*types.WorkItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListItems returns work items matching the filter, oldest first
func (s *Store) ListItems(ctx context.Context, filter types.ItemFilter) ([]*types.WorkItem, error) {
	whereClauses := []string{"1=1"}
	args := []interface{}{}

	if filter.Role != nil {
		whereClauses = append(whereClauses, "role = ?")
		args = append(args, *filter.Role)
	}
	if filter.Priority != nil {
		whereClauses = append(whereClauses, "priority = ?")
		args = append(args, *filter.Priority)
	}
	if filter.ParentID != nil {
		if *filter.ParentID == "" {
			whereClauses = append(whereClauses, "parent_id IS NULL")
		} else {
			whereClauses = append(whereClauses, "parent_id = ?")
			args = append(args, *filter.ParentID)
		}
	}
	if filter.Tag != "" {
		// Tags are stored comma-joined; match whole tags only
		whereClauses = append(whereClauses, "(',' || COALESCE(tags, '') || ',') LIKE ?")
		args = append(args, "%,"+filter.Tag+",%")
	}
	if filter.TitleContains != "" {
		whereClauses = append(whereClauses, "title LIKE ?")
		args = append(args, "%"+filter.TitleContains+"%")
	}
	if len(filter.IDs) > 0 {
		placeholders := make([]string, len(filter.IDs))
		for i, id := range filter.IDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		whereClauses = append(whereClauses, fmt.Sprintf("id IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedAfter != nil {
		whereClauses = append(whereClauses, "created_at >= ?")
		args = append(args, *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		whereClauses = append(whereClauses, "created_at < ?")
		args = append(args, *filter.CreatedBefore)
	}
	if filter.ModifiedAfter != nil {
		whereClauses = append(whereClauses, "modified_at >= ?")
		args = append(args, *filter.ModifiedAfter)
	}

	limitSQL := ""
	if filter.Limit > 0 {
		limitSQL = " LIMIT ?"
		args = append(args, filter.Limit)
	}

	// #nosec G201 - clause fragments are static
	query := fmt.Sprintf(`SELECT %s FROM work_items WHERE %s ORDER BY created_at%s`,
		itemColumns, strings.Join(whereClauses, " AND "), limitSQL)
	return s.queryItems(ctx, query, args...)
}

// GetChildren returns the direct children of parentID, oldest first
func (s *Store) GetChildren(ctx context.Context, parentID string) ([]*types.WorkItem, error) {
	return s.queryItems(ctx, `
		SELECT `+itemColumns+` FROM work_items
		WHERE parent_id = ?
		ORDER BY created_at
	`, parentID)
}

// GetChildRoleCounts returns per-role counts over the direct children of
// parentID, read fresh from the store.
func (s *Store) GetChildRoleCounts(ctx context.Context, parentID string) (types.RoleCounts, error) {
	var counts types.RoleCounts
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, COUNT(*) FROM work_items
		WHERE parent_id = ?
		GROUP BY role
	`, parentID)
	if err != nil {
		return counts, wrapDBError("get child role counts", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var role types.Role
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return counts, err
		}
		counts.Total += n
		switch role {
		case types.RoleQueue:
			counts.Queue += n
		case types.RoleWork:
			counts.Work += n
		case types.RoleReview:
			counts.Review += n
		case types.RoleTerminal:
			counts.Terminal += n
		case types.RoleBlocked:
			counts.Blocked += n
		}
	}
	return counts, rows.Err()
}

// GetDescendants returns every item below rootID in the hierarchy as a
// flat list, shallowest first. The depth cap bounds the recursion.
func (s *Store) GetDescendants(ctx context.Context, rootID string) ([]*types.WorkItem, error) {
	return s.queryItems(ctx, `
		WITH RECURSIVE subtree(id, lvl) AS (
			SELECT id, 0 FROM work_items WHERE parent_id = ?
			UNION ALL
			SELECT w.id, s.lvl + 1 FROM work_items w
			JOIN subtree s ON w.parent_id = s.id
			WHERE s.lvl < 10
		)
		SELECT `+itemColumns+` FROM work_items
		WHERE id IN (SELECT id FROM subtree)
		ORDER BY depth, created_at
	`, rootID)
}

// GetReadyItems returns unblocked, non-terminal ladder items sorted by
// priority (high first), then complexity ascending, then created_at.
func (s *Store) GetReadyItems(ctx context.Context, parentID *string, priority *types.Priority, limit int) ([]*types.WorkItem, error) {
	whereClauses := []string{"1=1"}
	args := []interface{}{}

	if parentID != nil {
		if *parentID == "" {
			whereClauses = append(whereClauses, "parent_id IS NULL")
		} else {
			whereClauses = append(whereClauses, "parent_id = ?")
			args = append(args, *parentID)
		}
	}
	if priority != nil {
		whereClauses = append(whereClauses, "priority = ?")
		args = append(args, *priority)
	}

	limitSQL := ""
	if limit > 0 {
		limitSQL = " LIMIT ?"
		args = append(args, limit)
	}

	// #nosec G201 - clause fragments are static
	query := fmt.Sprintf(`
		SELECT %s FROM ready_items
		WHERE %s
		ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END,
		         complexity, created_at%s
	`, itemColumns, strings.Join(whereClauses, " AND "), limitSQL)
	return s.queryItems(ctx, query, args...)
}

// GetStatistics returns aggregate counts for the whole workspace
func (s *Store) GetStatistics(ctx context.Context) (*types.Statistics, error) {
	stats := &types.Statistics{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN role = 'queue' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN role = 'work' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN role = 'review' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN role = 'terminal' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN role = 'blocked' THEN 1 ELSE 0 END), 0)
		FROM work_items
	`).Scan(&stats.TotalItems, &stats.QueueItems, &stats.WorkItems,
		&stats.ReviewItems, &stats.TerminalItems, &stats.BlockedItems)
	if err != nil {
		return nil, wrapDBError("get statistics", err)
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ready_items`).Scan(&stats.ReadyItems)
	if err != nil {
		return nil, wrapDBError("count ready items", err)
	}
	return stats, nil
}
