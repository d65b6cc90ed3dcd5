package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/forgecrew/foreman/internal/types"
)

// stalledAfter is how long a non-terminal item may sit unmodified before
// the health check reports it as stalled.
const stalledAfter = 7 * 24 * time.Hour

// AncestorRef identifies one ancestor on the path to the root
type AncestorRef struct {
	ItemID string `json:"itemId"`
	Title  string `json:"title"`
}

// BlockedItemReport describes one item that cannot advance right now
type BlockedItemReport struct {
	ItemID string     `json:"itemId"`
	Title  string     `json:"title"`
	Role   types.Role `json:"role"`
	// Reason is "blocked" for items explicitly in the blocked role and
	// "dependency" for ladder items gated by an unsatisfied blocker.
	Reason    string              `json:"reason"`
	Blockers  []types.BlockerInfo `json:"blockers,omitempty"`
	Item      *types.WorkItem     `json:"item,omitempty"`
	Ancestors []AncestorRef       `json:"ancestors,omitempty"`
}

// BlockedItemsQuery filters the blocked-items advisory
type BlockedItemsQuery struct {
	ParentID           *string
	IncludeItemDetails bool
	IncludeAncestors   bool
}

// GetBlockedItems enumerates items explicitly blocked or gated by an
// unsatisfied dependency, each with its blocker chain.
func (e *Engine) GetBlockedItems(ctx context.Context, query BlockedItemsQuery) ([]BlockedItemReport, error) {
	items, err := e.store.ListItems(ctx, types.ItemFilter{ParentID: query.ParentID})
	if err != nil {
		return nil, wrapStoreError(err)
	}

	reports := []BlockedItemReport{}
	for _, item := range items {
		if item.IsTerminal() {
			continue
		}
		blockers, err := e.EvaluateBlockers(ctx, item.ID)
		if err != nil {
			return nil, err
		}

		reason := ""
		if item.Role == types.RoleBlocked {
			reason = "blocked"
		} else if hasUnsatisfied(blockers) {
			reason = "dependency"
		}
		if reason == "" {
			continue
		}

		report := BlockedItemReport{
			ItemID:   item.ID,
			Title:    item.Title,
			Role:     item.Role,
			Reason:   reason,
			Blockers: blockers,
		}
		if query.IncludeItemDetails {
			report.Item = item
		}
		if query.IncludeAncestors {
			ancestors, err := e.ancestorsOf(ctx, item)
			if err != nil {
				return nil, err
			}
			report.Ancestors = ancestors
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// ancestorsOf walks the parent chain to the root, nearest first
func (e *Engine) ancestorsOf(ctx context.Context, item *types.WorkItem) ([]AncestorRef, error) {
	var refs []AncestorRef
	parentID := item.ParentID
	for i := 0; parentID != "" && i < types.MaxDepth; i++ {
		parent, err := e.store.GetItem(ctx, parentID)
		if err != nil {
			if CodeOf(err) == CodeNotFound {
				break
			}
			return nil, wrapStoreError(err)
		}
		refs = append(refs, AncestorRef{ItemID: parent.ID, Title: parent.Title})
		parentID = parent.ParentID
	}
	return refs, nil
}

// GetNextItems recommends unblocked, non-terminal items: priority high
// first, then complexity ascending, then oldest first.
func (e *Engine) GetNextItems(ctx context.Context, parentID *string, priority *types.Priority, limit int) ([]*types.WorkItem, error) {
	if limit <= 0 {
		limit = 5
	}
	items, err := e.store.GetReadyItems(ctx, parentID, priority, limit)
	if err != nil {
		return nil, wrapStoreError(err)
	}
	return items, nil
}

// NextStatus is the get_next_status advisory payload
type NextStatus struct {
	// Recommendation is Ready, Blocked, or Terminal
	Recommendation string              `json:"recommendation"`
	CurrentRole    types.Role          `json:"currentRole"`
	NextRole       types.Role          `json:"nextRole,omitempty"`
	Trigger        types.Trigger       `json:"trigger,omitempty"`
	Blockers       []types.BlockerInfo `json:"blockers,omitempty"`
	Suggestion     string              `json:"suggestion,omitempty"`
}

// GetNextStatus computes what, if anything, should happen to one item next
func (e *Engine) GetNextStatus(ctx context.Context, itemID string) (*NextStatus, error) {
	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, wrapStoreError(err)
	}

	if item.IsTerminal() {
		return &NextStatus{
			Recommendation: "Terminal",
			CurrentRole:    item.Role,
			Suggestion:     "item is terminal; no further transitions apply",
		}, nil
	}

	if item.Role == types.RoleBlocked {
		return &NextStatus{
			Recommendation: "Blocked",
			CurrentRole:    item.Role,
			NextRole:       item.PreviousRole,
			Trigger:        types.TriggerResume,
			Suggestion:     fmt.Sprintf("resume to restore role %s", item.PreviousRole),
		}, nil
	}

	blockers, err := e.EvaluateBlockers(ctx, itemID)
	if err != nil {
		return nil, err
	}
	next, _ := item.Role.Next()
	if hasUnsatisfied(blockers) {
		return &NextStatus{
			Recommendation: "Blocked",
			CurrentRole:    item.Role,
			NextRole:       next,
			Blockers:       blockers,
			Suggestion:     "advance or complete the unsatisfied blockers first",
		}, nil
	}
	return &NextStatus{
		Recommendation: "Ready",
		CurrentRole:    item.Role,
		NextRole:       next,
		Trigger:        types.TriggerStart,
		Suggestion:     fmt.Sprintf("start to advance %s -> %s", item.Role, next),
	}, nil
}

// ContextQuery selects a get_context mode: ItemID for item mode, Since
// for session resume, neither for a health check.
type ContextQuery struct {
	ItemID string
	Since  *time.Time
	Limit  int
}

// ContextReport is the get_context payload. Fields are populated per mode.
type ContextReport struct {
	Mode string `json:"mode"`

	// item mode
	Item         *types.WorkItem         `json:"item,omitempty"`
	Schema       []SchemaEntry           `json:"schema,omitempty"`
	GateStatus   *GateStatus             `json:"gateStatus,omitempty"`
	Blockers     []types.BlockerInfo     `json:"blockers,omitempty"`
	Dependencies []*types.Dependency     `json:"dependencies,omitempty"`
	Notes        []*types.Note           `json:"notes,omitempty"`
	Children     []*types.WorkItem       `json:"children,omitempty"`
	Transitions  []*types.RoleTransition `json:"transitions,omitempty"`

	// session-resume and health modes
	Statistics        *types.Statistics       `json:"statistics,omitempty"`
	ActiveItems       []*types.WorkItem       `json:"activeItems,omitempty"`
	BlockedItems      []BlockedItemReport     `json:"blockedItems,omitempty"`
	StalledItems      []*types.WorkItem       `json:"stalledItems,omitempty"`
	RecentTransitions []*types.RoleTransition `json:"recentTransitions,omitempty"`
}

// GetContext assembles orientation context for an agent session
func (e *Engine) GetContext(ctx context.Context, query ContextQuery) (*ContextReport, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 20
	}
	switch {
	case query.ItemID != "":
		return e.itemContext(ctx, query.ItemID, limit)
	case query.Since != nil:
		return e.sessionContext(ctx, *query.Since, limit)
	default:
		return e.healthContext(ctx, limit)
	}
}

func (e *Engine) itemContext(ctx context.Context, itemID string, limit int) (*ContextReport, error) {
	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, wrapStoreError(err)
	}

	report := &ContextReport{Mode: "item", Item: item}
	report.Schema = e.gates.schemas.RequirementsFor(item.TagList())

	// gate status is evaluated against the role the item would enter next
	if dest, ok := nextDestination(item); ok {
		status, err := e.gates.Check(ctx, item, dest, "")
		if err != nil {
			return nil, wrapStoreError(err)
		}
		report.GateStatus = status
	}

	if report.Blockers, err = e.EvaluateBlockers(ctx, itemID); err != nil {
		return nil, err
	}
	if report.Dependencies, err = e.store.GetDependencyRecords(ctx, itemID); err != nil {
		return nil, wrapStoreError(err)
	}
	if report.Notes, err = e.store.ListNotes(ctx, types.NoteFilter{ItemID: itemID}); err != nil {
		return nil, wrapStoreError(err)
	}
	if report.Children, err = e.store.GetChildren(ctx, itemID); err != nil {
		return nil, wrapStoreError(err)
	}
	if report.Transitions, err = e.store.GetTransitions(ctx, itemID, limit); err != nil {
		return nil, wrapStoreError(err)
	}
	return report, nil
}

// nextDestination returns the role a successful advance would enter:
// the next ladder role, or the restored role for blocked items.
func nextDestination(item *types.WorkItem) (types.Role, bool) {
	if item.Role == types.RoleBlocked {
		if item.PreviousRole == "" {
			return "", false
		}
		return item.PreviousRole, true
	}
	return item.Role.Next()
}

func (e *Engine) sessionContext(ctx context.Context, since time.Time, limit int) (*ContextReport, error) {
	report := &ContextReport{Mode: "session"}
	var err error
	if report.RecentTransitions, err = e.store.GetTransitionsSince(ctx, since, limit); err != nil {
		return nil, wrapStoreError(err)
	}
	if report.ActiveItems, err = e.activeItems(ctx, limit); err != nil {
		return nil, err
	}
	if report.BlockedItems, err = e.GetBlockedItems(ctx, BlockedItemsQuery{}); err != nil {
		return nil, err
	}
	if report.StalledItems, err = e.stalledItems(ctx, limit); err != nil {
		return nil, err
	}
	return report, nil
}

func (e *Engine) healthContext(ctx context.Context, limit int) (*ContextReport, error) {
	report := &ContextReport{Mode: "health"}
	var err error
	if report.Statistics, err = e.store.GetStatistics(ctx); err != nil {
		return nil, wrapStoreError(err)
	}
	if report.ActiveItems, err = e.activeItems(ctx, limit); err != nil {
		return nil, err
	}
	if report.BlockedItems, err = e.GetBlockedItems(ctx, BlockedItemsQuery{}); err != nil {
		return nil, err
	}
	if report.StalledItems, err = e.stalledItems(ctx, limit); err != nil {
		return nil, err
	}
	return report, nil
}

// activeItems lists items currently in work or review
func (e *Engine) activeItems(ctx context.Context, limit int) ([]*types.WorkItem, error) {
	work := types.RoleWork
	inWork, err := e.store.ListItems(ctx, types.ItemFilter{Role: &work, Limit: limit})
	if err != nil {
		return nil, wrapStoreError(err)
	}
	review := types.RoleReview
	inReview, err := e.store.ListItems(ctx, types.ItemFilter{Role: &review, Limit: limit})
	if err != nil {
		return nil, wrapStoreError(err)
	}
	return append(inWork, inReview...), nil
}

// stalledItems lists non-terminal ladder items untouched for stalledAfter
func (e *Engine) stalledItems(ctx context.Context, limit int) ([]*types.WorkItem, error) {
	items, err := e.store.ListItems(ctx, types.ItemFilter{})
	if err != nil {
		return nil, wrapStoreError(err)
	}
	cutoff := time.Now().Add(-stalledAfter)
	var stalled []*types.WorkItem
	for _, item := range items {
		if item.IsTerminal() {
			continue
		}
		if item.ModifiedAt.Before(cutoff) {
			stalled = append(stalled, item)
			if len(stalled) >= limit {
				break
			}
		}
	}
	return stalled, nil
}
