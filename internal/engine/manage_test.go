package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgecrew/foreman/internal/types"
)

func TestCreateItemsValidatesBatch(t *testing.T) {
	eng, _ := newTestEngine(t, nil)

	err := eng.CreateItems(context.Background(), nil)
	assert.Equal(t, CodeValidationError, CodeOf(err))
}

func TestCreateItemsAtomicWithIntraBatchParent(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, nil)

	parent := &types.WorkItem{ID: "22222222-2222-4222-8222-222222222222", Title: "parent"}
	child := &types.WorkItem{Title: "child", ParentID: parent.ID}
	require.NoError(t, eng.CreateItems(ctx, []*types.WorkItem{parent, child}))

	got, err := store.GetItem(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Depth)
}

func TestCreateItemsDepthCapIsValidationError(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, nil)
	d0 := createItem(t, store, &types.WorkItem{Title: "d0"})
	d1 := createItem(t, store, &types.WorkItem{Title: "d1", ParentID: d0.ID})
	d2 := createItem(t, store, &types.WorkItem{Title: "d2", ParentID: d1.ID})
	d3 := createItem(t, store, &types.WorkItem{Title: "d3", ParentID: d2.ID})

	err := eng.CreateItems(ctx, []*types.WorkItem{{Title: "too deep", ParentID: d3.ID}})
	assert.Equal(t, CodeValidationError, CodeOf(err))
}

func TestCreateItemsTagFormatIsValidationError(t *testing.T) {
	eng, _ := newTestEngine(t, nil)

	err := eng.CreateItems(context.Background(), []*types.WorkItem{{Title: "x", Tags: "Bad Tag"}})
	assert.Equal(t, CodeValidationError, CodeOf(err))
}

func TestUpdateItemRejectsGuardedFields(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})

	for _, field := range []string{"role", "previous_role", "depth"} {
		_, err := eng.UpdateItem(ctx, item.ID, map[string]interface{}{field: "whatever"})
		assert.Equal(t, CodeValidationError, CodeOf(err), field)
	}
}

func TestUpdateItemReturnsUpdatedItem(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "before"})

	updated, err := eng.UpdateItem(ctx, item.ID, map[string]interface{}{
		"title": "after", "priority": types.PriorityHigh,
	})
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Title)
	assert.Equal(t, types.PriorityHigh, updated.Priority)
}

func TestReparentRecomputesDepths(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, nil)
	oldParent := createItem(t, store, &types.WorkItem{Title: "old"})
	newParent := createItem(t, store, &types.WorkItem{Title: "new"})
	moved := createItem(t, store, &types.WorkItem{Title: "moved", ParentID: oldParent.ID})
	grandchild := createItem(t, store, &types.WorkItem{Title: "grandchild", ParentID: moved.ID})

	updated, err := eng.UpdateItem(ctx, moved.ID, map[string]interface{}{"parent_id": newParent.ID})
	require.NoError(t, err)
	assert.Equal(t, newParent.ID, updated.ParentID)
	assert.Equal(t, 1, updated.Depth)

	got, err := store.GetItem(ctx, grandchild.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Depth)
}

func TestReparentToRoot(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, nil)
	parent := createItem(t, store, &types.WorkItem{Title: "parent"})
	child := createItem(t, store, &types.WorkItem{Title: "child", ParentID: parent.ID})

	updated, err := eng.UpdateItem(ctx, child.ID, map[string]interface{}{"parent_id": nil})
	require.NoError(t, err)
	assert.Empty(t, updated.ParentID)
	assert.Equal(t, 0, updated.Depth)
}

func TestReparentUnderSelfRejected(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})

	_, err := eng.UpdateItem(ctx, item.ID, map[string]interface{}{"parent_id": item.ID})
	assert.Equal(t, CodeValidationError, CodeOf(err))
}

func TestReparentUnderOwnDescendantRejected(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, nil)
	root := createItem(t, store, &types.WorkItem{Title: "root"})
	child := createItem(t, store, &types.WorkItem{Title: "child", ParentID: root.ID})
	grandchild := createItem(t, store, &types.WorkItem{Title: "grandchild", ParentID: child.ID})

	_, err := eng.UpdateItem(ctx, root.ID, map[string]interface{}{"parent_id": grandchild.ID})
	assert.Equal(t, CodeValidationError, CodeOf(err))
}

func TestReparentDepthCapOnDescendants(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, nil)
	// a two-level subtree cannot move under a depth-2 parent: the leaf
	// would land at depth 4
	deep := createItem(t, store, &types.WorkItem{Title: "d0"})
	deep1 := createItem(t, store, &types.WorkItem{Title: "d1", ParentID: deep.ID})
	deep2 := createItem(t, store, &types.WorkItem{Title: "d2", ParentID: deep1.ID})

	moved := createItem(t, store, &types.WorkItem{Title: "moved"})
	createItem(t, store, &types.WorkItem{Title: "leaf", ParentID: moved.ID})

	_, err := eng.UpdateItem(ctx, moved.ID, map[string]interface{}{"parent_id": deep2.ID})
	assert.Equal(t, CodeMaxDepthExceeded, CodeOf(err))
}

func TestDeleteItemRemovesSubtree(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, nil)
	root := createItem(t, store, &types.WorkItem{Title: "root"})
	child := createItem(t, store, &types.WorkItem{Title: "child", ParentID: root.ID})

	require.NoError(t, eng.DeleteItem(ctx, root.ID))
	_, err := store.GetItem(ctx, child.ID)
	assert.Equal(t, CodeNotFound, CodeOf(err))
}

func TestAddDependencyCodes(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, nil)
	a := createItem(t, store, &types.WorkItem{Title: "a"})
	b := createItem(t, store, &types.WorkItem{Title: "b"})

	err := eng.AddDependency(ctx, &types.Dependency{
		FromItemID: a.ID, ToItemID: a.ID, Type: types.DepBlocks,
	})
	assert.Equal(t, CodeSelfDependency, CodeOf(err))

	err = eng.AddDependency(ctx, &types.Dependency{
		FromItemID: a.ID, ToItemID: b.ID, Type: "DEPENDS_ON",
	})
	assert.Equal(t, CodeValidationError, CodeOf(err))

	require.NoError(t, eng.AddDependency(ctx, &types.Dependency{
		FromItemID: a.ID, ToItemID: b.ID, Type: types.DepBlocks,
	}))
	err = eng.AddDependency(ctx, &types.Dependency{
		FromItemID: a.ID, ToItemID: b.ID, Type: types.DepBlocks,
	})
	assert.Equal(t, CodeDuplicateDependency, CodeOf(err))

	err = eng.AddDependency(ctx, &types.Dependency{
		FromItemID: b.ID, ToItemID: a.ID, Type: types.DepBlocks,
	})
	assert.Equal(t, CodeCyclicDependency, CodeOf(err))
}

func TestAddDependenciesBatchIndependence(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, nil)
	a := createItem(t, store, &types.WorkItem{Title: "a"})
	b := createItem(t, store, &types.WorkItem{Title: "b"})
	c := createItem(t, store, &types.WorkItem{Title: "c"})

	results := eng.AddDependencies(ctx, []*types.Dependency{
		{FromItemID: a.ID, ToItemID: b.ID, Type: types.DepBlocks},
		{FromItemID: b.ID, ToItemID: a.ID, Type: types.DepBlocks},
		{FromItemID: b.ID, ToItemID: c.ID, Type: types.DepRelatesTo},
	})
	require.Len(t, results, 3)
	assert.True(t, results[0].Created)
	assert.False(t, results[1].Created)
	assert.Equal(t, CodeCyclicDependency, results[1].Code)
	assert.True(t, results[2].Created)
}

func TestRemoveDependencyNotFound(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, nil)
	a := createItem(t, store, &types.WorkItem{Title: "a"})
	b := createItem(t, store, &types.WorkItem{Title: "b"})

	err := eng.RemoveDependency(ctx, a.ID, b.ID, types.DepBlocks)
	assert.Equal(t, CodeNotFound, CodeOf(err))
}

func TestUpsertNoteValidation(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})

	_, err := eng.UpsertNote(ctx, &types.Note{ItemID: item.ID, Key: "", Role: types.RoleWork})
	assert.Equal(t, CodeValidationError, CodeOf(err))

	note, err := eng.UpsertNote(ctx, &types.Note{
		ItemID: item.ID, Key: "design-notes", Role: types.RoleWork, Body: "sketch",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, note.ID)
}

func TestDeleteNoteNotFound(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})

	err := eng.DeleteNote(ctx, item.ID, "missing")
	assert.Equal(t, CodeNotFound, CodeOf(err))
}
