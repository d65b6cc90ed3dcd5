package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgecrew/foreman/internal/types"
)

func TestGetBlockedItems(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, nil)
	parked := createItem(t, store, &types.WorkItem{Title: "parked"})
	transition(t, eng, store, parked.ID, Request{Trigger: types.TriggerBlock})

	blocker := createItem(t, store, &types.WorkItem{Title: "blocker"})
	gated := createItem(t, store, &types.WorkItem{Title: "gated"})
	blocks(t, store, blocker, gated, "")

	createItem(t, store, &types.WorkItem{Title: "free"})

	reports, err := eng.GetBlockedItems(ctx, BlockedItemsQuery{})
	require.NoError(t, err)
	require.Len(t, reports, 2)

	byID := map[string]BlockedItemReport{}
	for _, report := range reports {
		byID[report.ItemID] = report
	}
	assert.Equal(t, "blocked", byID[parked.ID].Reason)
	assert.Equal(t, "dependency", byID[gated.ID].Reason)
	require.Len(t, byID[gated.ID].Blockers, 1)
	assert.Equal(t, blocker.ID, byID[gated.ID].Blockers[0].BlockerID)
	assert.Nil(t, byID[gated.ID].Item, "details excluded by default")
}

func TestGetBlockedItemsWithAncestors(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, nil)
	root := createItem(t, store, &types.WorkItem{Title: "epic"})
	mid := createItem(t, store, &types.WorkItem{Title: "story", ParentID: root.ID})
	leaf := createItem(t, store, &types.WorkItem{Title: "task", ParentID: mid.ID})
	transition(t, eng, store, leaf.ID, Request{Trigger: types.TriggerBlock})

	reports, err := eng.GetBlockedItems(ctx, BlockedItemsQuery{
		IncludeItemDetails: true, IncludeAncestors: true,
	})
	require.NoError(t, err)

	var found *BlockedItemReport
	for i := range reports {
		if reports[i].ItemID == leaf.ID {
			found = &reports[i]
		}
	}
	require.NotNil(t, found)
	require.NotNil(t, found.Item)
	require.Len(t, found.Ancestors, 2)
	assert.Equal(t, mid.ID, found.Ancestors[0].ItemID, "nearest ancestor first")
	assert.Equal(t, root.ID, found.Ancestors[1].ItemID)
}

func TestGetBlockedItemsScopedToParent(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, nil)
	parent := createItem(t, store, &types.WorkItem{Title: "parent"})
	inside := createItem(t, store, &types.WorkItem{Title: "inside", ParentID: parent.ID})
	outside := createItem(t, store, &types.WorkItem{Title: "outside"})
	transition(t, eng, store, inside.ID, Request{Trigger: types.TriggerBlock})
	transition(t, eng, store, outside.ID, Request{Trigger: types.TriggerBlock})

	reports, err := eng.GetBlockedItems(ctx, BlockedItemsQuery{ParentID: &parent.ID})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, inside.ID, reports[0].ItemID)
}

func TestGetNextItemsDefaultLimit(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, nil)
	for i := 0; i < 7; i++ {
		createItem(t, store, &types.WorkItem{Title: "item"})
	}

	items, err := eng.GetNextItems(ctx, nil, nil, 0)
	require.NoError(t, err)
	assert.Len(t, items, 5)
}

func TestGetNextStatusReady(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})
	forceRole(t, store, item.ID, types.RoleWork)

	status, err := eng.GetNextStatus(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ready", status.Recommendation)
	assert.Equal(t, types.RoleWork, status.CurrentRole)
	assert.Equal(t, types.RoleReview, status.NextRole)
	assert.Equal(t, types.TriggerStart, status.Trigger)
}

func TestGetNextStatusBlockedRole(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})
	forceRole(t, store, item.ID, types.RoleWork)
	transition(t, eng, store, item.ID, Request{Trigger: types.TriggerBlock})

	status, err := eng.GetNextStatus(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Blocked", status.Recommendation)
	assert.Equal(t, types.RoleWork, status.NextRole)
	assert.Equal(t, types.TriggerResume, status.Trigger)
}

func TestGetNextStatusBlockedByDependency(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	blocker := createItem(t, store, &types.WorkItem{Title: "blocker"})
	target := createItem(t, store, &types.WorkItem{Title: "target"})
	blocks(t, store, blocker, target, "")

	status, err := eng.GetNextStatus(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, "Blocked", status.Recommendation)
	require.Len(t, status.Blockers, 1)
	assert.Empty(t, status.Trigger, "no trigger until blockers clear")
}

func TestGetNextStatusTerminal(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})
	forceRole(t, store, item.ID, types.RoleTerminal)

	status, err := eng.GetNextStatus(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Terminal", status.Recommendation)
}

func TestGetContextItemMode(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, featureSchemas())
	item := createItem(t, store, &types.WorkItem{Title: "x", Tags: "feature"})
	child := createItem(t, store, &types.WorkItem{Title: "child", ParentID: item.ID})
	require.NoError(t, store.UpsertNote(ctx, &types.Note{
		ItemID: item.ID, Key: "acceptance-criteria", Role: types.RoleQueue, Body: "ok",
	}))

	report, err := eng.GetContext(ctx, ContextQuery{ItemID: item.ID})
	require.NoError(t, err)
	assert.Equal(t, "item", report.Mode)
	require.NotNil(t, report.Item)
	assert.Len(t, report.Schema, 3)
	require.NotNil(t, report.GateStatus)
	assert.True(t, report.GateStatus.CanAdvance, "queue gate satisfied for work entry")
	assert.Len(t, report.Notes, 1)
	require.Len(t, report.Children, 1)
	assert.Equal(t, child.ID, report.Children[0].ID)
}

func TestGetContextSessionMode(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})
	transition(t, eng, store, item.ID, Request{Trigger: types.TriggerStart})

	since := time.Now().Add(-time.Minute)
	report, err := eng.GetContext(ctx, ContextQuery{Since: &since})
	require.NoError(t, err)
	assert.Equal(t, "session", report.Mode)
	require.Len(t, report.RecentTransitions, 1)
	assert.Equal(t, item.ID, report.RecentTransitions[0].ItemID)
	require.Len(t, report.ActiveItems, 1)
}

func TestGetContextSessionModeListsStalled(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, nil)
	stale := createItem(t, store, &types.WorkItem{Title: "stale"})
	_, err := store.UnderlyingDB().ExecContext(ctx,
		`UPDATE work_items SET modified_at = ? WHERE id = ?`,
		time.Now().Add(-8*24*time.Hour), stale.ID)
	require.NoError(t, err)

	since := time.Now().Add(-time.Minute)
	report, err := eng.GetContext(ctx, ContextQuery{Since: &since})
	require.NoError(t, err)
	require.Len(t, report.StalledItems, 1)
	assert.Equal(t, stale.ID, report.StalledItems[0].ID)
}

func TestGetContextHealthMode(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, nil)
	createItem(t, store, &types.WorkItem{Title: "queued"})
	active := createItem(t, store, &types.WorkItem{Title: "active"})
	forceRole(t, store, active.ID, types.RoleWork)

	report, err := eng.GetContext(ctx, ContextQuery{})
	require.NoError(t, err)
	assert.Equal(t, "health", report.Mode)
	require.NotNil(t, report.Statistics)
	assert.Equal(t, 2, report.Statistics.TotalItems)
	assert.Len(t, report.ActiveItems, 1)
	assert.Empty(t, report.StalledItems)
}
