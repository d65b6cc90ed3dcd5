package engine

import (
	"context"

	"github.com/forgecrew/foreman/internal/storage"
	"github.com/forgecrew/foreman/internal/types"
)

// CreateItems persists a batch of new items atomically. Entries may
// reference earlier entries in the same batch as parents.
func (e *Engine) CreateItems(ctx context.Context, items []*types.WorkItem) error {
	if len(items) == 0 {
		return newError(CodeValidationError, "at least one item is required")
	}
	err := e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.CreateItems(ctx, items)
	})
	if err != nil {
		return wrapStoreError(err)
	}
	for _, item := range items {
		e.logger.Printf("created item %s (%s)", item.ID, item.Title)
	}
	return nil
}

// UpdateItem applies a validated field map to one item. Role changes must
// go through the transition engine, so "role" is rejected here; reparenting
// is validated against self-parenting, parent cycles, and the depth cap,
// and descendant depths are shifted in the same transaction.
func (e *Engine) UpdateItem(ctx context.Context, id string, updates map[string]interface{}) (*types.WorkItem, error) {
	if len(updates) == 0 {
		return nil, newError(CodeValidationError, "no fields to update")
	}
	for _, guarded := range []string{"role", "previous_role", "depth"} {
		if _, ok := updates[guarded]; ok {
			return nil, newError(CodeValidationError,
				"field %s cannot be updated directly; use a transition", guarded)
		}
	}

	item, err := e.store.GetItem(ctx, id)
	if err != nil {
		return nil, wrapStoreError(err)
	}

	if newParent, ok := updates["parent_id"]; ok {
		if err := e.prepareReparent(ctx, item, newParent, updates); err != nil {
			return nil, err
		}
	} else {
		err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
			return tx.UpdateItem(ctx, id, updates)
		})
		if err != nil {
			return nil, wrapStoreError(err)
		}
	}

	updated, err := e.store.GetItem(ctx, id)
	if err != nil {
		return nil, wrapStoreError(err)
	}
	return updated, nil
}

// prepareReparent validates a parent_id change and commits it together
// with the depth shift of the moved subtree.
func (e *Engine) prepareReparent(ctx context.Context, item *types.WorkItem, newParent interface{}, updates map[string]interface{}) error {
	parentID := ""
	if newParent != nil {
		s, ok := newParent.(string)
		if !ok {
			return newError(CodeValidationError, "parent_id must be a string or null")
		}
		parentID = s
	}
	if parentID == item.ID {
		return newError(CodeValidationError, "item cannot be its own parent")
	}

	newDepth := 0
	if parentID != "" {
		parent, err := e.store.GetItem(ctx, parentID)
		if err != nil {
			return wrapStoreError(err)
		}
		// the new parent must not live inside the moved subtree
		for ancestor := parent; ancestor.ParentID != ""; {
			if ancestor.ParentID == item.ID {
				return newError(CodeValidationError,
					"cannot reparent %s under its own descendant %s", item.ID, parentID)
			}
			ancestor, err = e.store.GetItem(ctx, ancestor.ParentID)
			if err != nil {
				return wrapStoreError(err)
			}
		}
		newDepth = parent.Depth + 1
	}
	if newDepth > types.MaxDepth {
		return newError(CodeMaxDepthExceeded,
			"reparenting would place %s at depth %d (max %d)", item.ID, newDepth, types.MaxDepth)
	}

	descendants, err := e.store.GetDescendants(ctx, item.ID)
	if err != nil {
		return wrapStoreError(err)
	}
	delta := newDepth - item.Depth
	for _, d := range descendants {
		if d.Depth+delta > types.MaxDepth {
			return newError(CodeMaxDepthExceeded,
				"reparenting would place descendant %s at depth %d (max %d)",
				d.ID, d.Depth+delta, types.MaxDepth)
		}
	}

	updates["parent_id"] = nullableParent(parentID)
	updates["depth"] = newDepth
	err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.UpdateItem(ctx, item.ID, updates); err != nil {
			return err
		}
		for _, d := range descendants {
			if err := tx.UpdateItem(ctx, d.ID, map[string]interface{}{
				"depth": d.Depth + delta,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return wrapStoreError(err)
	}
	return nil
}

func nullableParent(parentID string) interface{} {
	if parentID == "" {
		return nil
	}
	return parentID
}

// DeleteItem removes an item. The store cascades the delete to the whole
// subtree plus the item's dependencies, notes, and audit trail.
func (e *Engine) DeleteItem(ctx context.Context, id string) error {
	err := e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.DeleteItem(ctx, id)
	})
	if err != nil {
		return wrapStoreError(err)
	}
	e.logger.Printf("deleted item %s (and subtree)", id)
	return nil
}

// AddDependency creates one typed edge with graph-integrity checks
func (e *Engine) AddDependency(ctx context.Context, dep *types.Dependency) error {
	if dep.FromItemID == dep.ToItemID {
		return newError(CodeSelfDependency, "item %s cannot depend on itself", dep.FromItemID)
	}
	if err := dep.Validate(); err != nil {
		return newError(CodeValidationError, "%v", err)
	}
	if err := e.store.AddDependency(ctx, dep); err != nil {
		coded := wrapStoreError(err)
		if coded.Code == CodeConflict {
			return &Error{
				Code: CodeDuplicateDependency,
				Message: "dependency " + dep.FromItemID + " -> " + dep.ToItemID +
					" (" + string(dep.Type) + ") already exists",
				cause: err,
			}
		}
		return coded
	}
	return nil
}

// DependencyResult is the per-edge outcome of a createBatch operation
type DependencyResult struct {
	FromItemID string `json:"fromItemId"`
	ToItemID   string `json:"toItemId"`
	Type       string `json:"type"`
	Created    bool   `json:"created"`
	Error      string `json:"error,omitempty"`
	Code       Code   `json:"code,omitempty"`
}

// AddDependencies creates edges independently: a failed edge is recorded
// and does not abort the rest of the batch.
func (e *Engine) AddDependencies(ctx context.Context, deps []*types.Dependency) []DependencyResult {
	results := make([]DependencyResult, 0, len(deps))
	for _, dep := range deps {
		result := DependencyResult{
			FromItemID: dep.FromItemID,
			ToItemID:   dep.ToItemID,
			Type:       string(dep.Type),
		}
		if err := e.AddDependency(ctx, dep); err != nil {
			coded := AsError(err)
			result.Error = coded.Message
			result.Code = coded.Code
		} else {
			result.Created = true
		}
		results = append(results, result)
	}
	return results
}

// RemoveDependency deletes one typed edge
func (e *Engine) RemoveDependency(ctx context.Context, fromItemID, toItemID string, depType types.DependencyType) error {
	if err := e.store.RemoveDependency(ctx, fromItemID, toItemID, depType); err != nil {
		return wrapStoreError(err)
	}
	return nil
}

// UpsertNote writes or replaces one accountability note
func (e *Engine) UpsertNote(ctx context.Context, note *types.Note) (*types.Note, error) {
	if err := note.Validate(); err != nil {
		return nil, newError(CodeValidationError, "%v", err)
	}
	if err := e.store.UpsertNote(ctx, note); err != nil {
		return nil, wrapStoreError(err)
	}
	return note, nil
}

// DeleteNote removes one note by (item, key)
func (e *Engine) DeleteNote(ctx context.Context, itemID, key string) error {
	if err := e.store.DeleteNote(ctx, itemID, key); err != nil {
		return wrapStoreError(err)
	}
	return nil
}
