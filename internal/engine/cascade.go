package engine

import (
	"context"
	"errors"

	"github.com/forgecrew/foreman/internal/storage"
	"github.com/forgecrew/foreman/internal/types"
)

// errCascadeSettled aborts a cascade write whose parent a concurrent
// writer already moved to terminal.
var errCascadeSettled = errors.New("cascade parent already terminal")

// CascadeEvent records one parent auto-completed because every child
// reached terminal.
type CascadeEvent struct {
	ItemID       string        `json:"itemId"`
	PreviousRole types.Role    `json:"previousRole"`
	TargetRole   types.Role    `json:"targetRole"`
	Trigger      types.Trigger `json:"trigger"`
}

// ApplyCascades walks up from a just-terminal item, auto-completing each
// parent whose children are now all terminal. Each level re-reads child
// counts and the parent from the store and commits in its own transaction,
// so a concurrent cascade racing on the same parent degrades to a no-op
// (the parent is already terminal at re-read).
//
// The walk is bounded by the hierarchy depth cap. Events are returned
// closest-first.
func (e *Engine) ApplyCascades(ctx context.Context, item *types.WorkItem) ([]CascadeEvent, error) {
	var events []CascadeEvent
	current := item

	for i := 0; i < types.MaxDepth; i++ {
		if current.ParentID == "" {
			break
		}

		counts, err := e.store.GetChildRoleCounts(ctx, current.ParentID)
		if err != nil {
			return events, wrapStoreError(err)
		}
		if !counts.AllTerminal() {
			break
		}

		parent, err := e.store.GetItem(ctx, current.ParentID)
		if err != nil {
			return events, wrapStoreError(err)
		}
		if parent.IsTerminal() {
			// a concurrent sibling's cascade got here first
			break
		}

		var event CascadeEvent

		// status_label is left as-is: cascade states a derived fact and
		// must not erase an annotation like "cancelled". The parent is
		// re-read inside the transaction so two siblings finishing at once
		// produce exactly one terminal write and one audit row.
		err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
			fresh, err := tx.GetItem(ctx, parent.ID)
			if err != nil {
				return err
			}
			if fresh.IsTerminal() {
				return errCascadeSettled
			}
			event = CascadeEvent{
				ItemID:       fresh.ID,
				PreviousRole: fresh.Role,
				TargetRole:   types.RoleTerminal,
				Trigger:      types.TriggerCascade,
			}
			if err := tx.UpdateItem(ctx, fresh.ID, map[string]interface{}{
				"role":          types.RoleTerminal,
				"previous_role": nil,
			}); err != nil {
				return err
			}
			return tx.AddTransition(ctx, &types.RoleTransition{
				ItemID:          fresh.ID,
				FromRole:        fresh.Role,
				ToRole:          types.RoleTerminal,
				FromStatusLabel: fresh.StatusLabel,
				ToStatusLabel:   fresh.StatusLabel,
				Trigger:         types.TriggerCascade,
			})
		})
		if err != nil {
			if errors.Is(err, errCascadeSettled) {
				break
			}
			return events, wrapStoreError(err)
		}

		e.logger.Printf("cascade %s: %s -> terminal", parent.ID, event.PreviousRole)
		events = append(events, event)
		parent.Role = types.RoleTerminal
		current = parent
	}
	return events, nil
}
