package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgecrew/foreman/internal/types"
)

func TestCreateItemDefaults(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	item := mustCreateItem(t, store, &types.WorkItem{Title: "defaults"})
	assert.NotEmpty(t, item.ID)

	got, err := store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RoleQueue, got.Role)
	assert.Equal(t, types.PriorityMedium, got.Priority)
	assert.Equal(t, 5, got.Complexity)
	assert.Equal(t, 0, got.Depth)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestCreateItemDerivesDepthFromParent(t *testing.T) {
	store := newTestStore(t)

	root := mustCreateItem(t, store, &types.WorkItem{Title: "root"})
	child := mustCreateItem(t, store, &types.WorkItem{Title: "child", ParentID: root.ID})
	grandchild := mustCreateItem(t, store, &types.WorkItem{Title: "grandchild", ParentID: child.ID})

	assert.Equal(t, 1, child.Depth)
	assert.Equal(t, 2, grandchild.Depth)
}

func TestCreateItemRejectsDepthBeyondCap(t *testing.T) {
	store := newTestStore(t)

	parent := mustCreateItem(t, store, &types.WorkItem{Title: "d0"})
	for i := 1; i <= types.MaxDepth; i++ {
		parent = mustCreateItem(t, store, &types.WorkItem{Title: "child", ParentID: parent.ID})
	}
	assert.Equal(t, types.MaxDepth, parent.Depth)

	err := store.CreateItem(context.Background(), &types.WorkItem{Title: "too deep", ParentID: parent.ID})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depth")
	assert.True(t, IsValidation(err))
}

func TestCreateItemValidationFailuresAreTagged(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.CreateItem(ctx, &types.WorkItem{Title: "x", Tags: "Bad Tag"})
	assert.True(t, IsValidation(err), "tag format: %v", err)

	item := mustCreateItem(t, store, &types.WorkItem{Title: "x"})
	err = store.UpdateItem(ctx, item.ID, map[string]interface{}{"complexity": 11})
	assert.True(t, IsValidation(err), "field update: %v", err)
	err = store.UpdateItem(ctx, item.ID, map[string]interface{}{"nope": 1})
	assert.True(t, IsValidation(err), "unknown field: %v", err)
}

func TestCreateItemMissingParent(t *testing.T) {
	store := newTestStore(t)

	err := store.CreateItem(context.Background(), &types.WorkItem{Title: "orphan", ParentID: "b3b74a2e-0000-4000-8000-000000000000"})
	assert.True(t, IsNotFound(err))
}

func TestCreateItemsBatchWithIntraBatchParent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	parent := &types.WorkItem{ID: "11111111-1111-4111-8111-111111111111", Title: "parent"}
	child := &types.WorkItem{Title: "child", ParentID: parent.ID}
	require.NoError(t, store.CreateItems(ctx, []*types.WorkItem{parent, child}))

	got, err := store.GetItem(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Depth)
}

func TestCreateItemDuplicateID(t *testing.T) {
	store := newTestStore(t)

	item := mustCreateItem(t, store, &types.WorkItem{Title: "one"})
	err := store.CreateItem(context.Background(), &types.WorkItem{ID: item.ID, Title: "two"})
	assert.True(t, IsConflict(err))
}

func TestUpdateItemFields(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	item := mustCreateItem(t, store, &types.WorkItem{Title: "before"})
	require.NoError(t, store.UpdateItem(ctx, item.ID, map[string]interface{}{
		"title":      "after",
		"priority":   types.PriorityHigh,
		"complexity": 8,
	}))

	got, err := store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", got.Title)
	assert.Equal(t, types.PriorityHigh, got.Priority)
	assert.Equal(t, 8, got.Complexity)
}

func TestUpdateItemAdvancesModifiedAtMonotonically(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	item := mustCreateItem(t, store, &types.WorkItem{Title: "clock"})
	first, err := store.GetItem(ctx, item.ID)
	require.NoError(t, err)

	// two updates in rapid succession must still move modified_at forward
	require.NoError(t, store.UpdateItem(ctx, item.ID, map[string]interface{}{"title": "a"}))
	require.NoError(t, store.UpdateItem(ctx, item.ID, map[string]interface{}{"title": "b"}))

	got, err := store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, got.ModifiedAt.After(first.ModifiedAt),
		"modified_at %v should be after %v", got.ModifiedAt, first.ModifiedAt)
}

func TestUpdateItemRejectsUnknownField(t *testing.T) {
	store := newTestStore(t)

	item := mustCreateItem(t, store, &types.WorkItem{Title: "x"})
	err := store.UpdateItem(context.Background(), item.ID, map[string]interface{}{"nope": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestUpdateItemRejectsInvalidValues(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	item := mustCreateItem(t, store, &types.WorkItem{Title: "x"})

	assert.Error(t, store.UpdateItem(ctx, item.ID, map[string]interface{}{"title": ""}))
	assert.Error(t, store.UpdateItem(ctx, item.ID, map[string]interface{}{"complexity": 11}))
	assert.Error(t, store.UpdateItem(ctx, item.ID, map[string]interface{}{"priority": "urgent"}))
	assert.Error(t, store.UpdateItem(ctx, item.ID, map[string]interface{}{"role": "parked"}))
}

func TestUpdateItemNotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.UpdateItem(context.Background(), "b3b74a2e-0000-4000-8000-000000000001",
		map[string]interface{}{"title": "x"})
	assert.True(t, IsNotFound(err))
}

func TestDeleteItemCascadesToSubtreeAndOwnedRows(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	root := mustCreateItem(t, store, &types.WorkItem{Title: "root"})
	child := mustCreateItem(t, store, &types.WorkItem{Title: "child", ParentID: root.ID})
	other := mustCreateItem(t, store, &types.WorkItem{Title: "other"})

	require.NoError(t, store.AddDependency(ctx, &types.Dependency{
		FromItemID: other.ID, ToItemID: child.ID, Type: types.DepBlocks,
	}))
	require.NoError(t, store.UpsertNote(ctx, &types.Note{
		ItemID: child.ID, Key: "k", Role: types.RoleWork, Body: "note",
	}))

	require.NoError(t, store.DeleteItem(ctx, root.ID))

	_, err := store.GetItem(ctx, child.ID)
	assert.True(t, IsNotFound(err))

	deps, err := store.GetDependencyRecords(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, deps)

	notes, err := store.ListNotes(ctx, types.NoteFilter{ItemID: child.ID})
	require.NoError(t, err)
	assert.Empty(t, notes)

	// unrelated item survives
	_, err = store.GetItem(ctx, other.ID)
	assert.NoError(t, err)
}

func TestTimestampsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	before := time.Now().Add(-time.Second)
	item := mustCreateItem(t, store, &types.WorkItem{Title: "ts"})

	got, err := store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.After(before))
	assert.False(t, got.ModifiedAt.Before(got.CreatedAt))
}
