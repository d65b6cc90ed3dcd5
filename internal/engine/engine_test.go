package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgecrew/foreman/internal/storage/sqlite"
	"github.com/forgecrew/foreman/internal/types"
)

// stubSchemas maps tags to note requirements, unioned like the real provider
type stubSchemas map[string][]SchemaEntry

func (s stubSchemas) RequirementsFor(tags []string) []SchemaEntry {
	var entries []SchemaEntry
	for _, tag := range tags {
		entries = append(entries, s[tag]...)
	}
	return entries
}

func newTestEngine(t *testing.T, schemas NoteSchemaService) (*Engine, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, schemas, nil), store
}

func createItem(t *testing.T, store *sqlite.Store, item *types.WorkItem) *types.WorkItem {
	t.Helper()
	require.NoError(t, store.CreateItem(context.Background(), item))
	return item
}

func forceRole(t *testing.T, store *sqlite.Store, id string, role types.Role) {
	t.Helper()
	updates := map[string]interface{}{"role": role}
	if role != types.RoleBlocked {
		updates["previous_role"] = nil
	}
	require.NoError(t, store.UpdateItem(context.Background(), id, updates))
}

// transition runs Transition+Apply and returns the persisted item
func transition(t *testing.T, eng *Engine, store *sqlite.Store, id string, req Request) *types.WorkItem {
	t.Helper()
	ctx := context.Background()
	item, err := store.GetItem(ctx, id)
	require.NoError(t, err)
	outcome, err := eng.Transition(ctx, item, req)
	require.NoError(t, err)
	require.NoError(t, eng.Apply(ctx, outcome))
	got, err := store.GetItem(ctx, id)
	require.NoError(t, err)
	return got
}

// transitionErr runs Transition expecting a coded failure
func transitionErr(t *testing.T, eng *Engine, store *sqlite.Store, id string, req Request) *Error {
	t.Helper()
	ctx := context.Background()
	item, err := store.GetItem(ctx, id)
	require.NoError(t, err)
	_, err = eng.Transition(ctx, item, req)
	require.Error(t, err)
	return AsError(err)
}

func TestStartClimbsTheLadder(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})

	got := transition(t, eng, store, item.ID, Request{Trigger: types.TriggerStart})
	assert.Equal(t, types.RoleWork, got.Role)

	got = transition(t, eng, store, item.ID, Request{Trigger: types.TriggerStart})
	assert.Equal(t, types.RoleReview, got.Role)

	got = transition(t, eng, store, item.ID, Request{Trigger: types.TriggerStart})
	assert.Equal(t, types.RoleTerminal, got.Role)
}

func TestStartFromTerminal(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})
	forceRole(t, store, item.ID, types.RoleTerminal)

	coded := transitionErr(t, eng, store, item.ID, Request{Trigger: types.TriggerStart})
	assert.Equal(t, CodeAlreadyTerminal, coded.Code)
}

func TestStartFromBlocked(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})
	require.NoError(t, store.UpdateItem(context.Background(), item.ID, map[string]interface{}{
		"role": types.RoleBlocked, "previous_role": types.RoleWork,
	}))

	coded := transitionErr(t, eng, store, item.ID, Request{Trigger: types.TriggerStart})
	assert.Equal(t, CodeIsBlocked, coded.Code)
}

func TestCompleteFromAnyLadderRole(t *testing.T) {
	for _, role := range []types.Role{types.RoleQueue, types.RoleWork, types.RoleReview} {
		t.Run(string(role), func(t *testing.T) {
			eng, store := newTestEngine(t, nil)
			item := createItem(t, store, &types.WorkItem{Title: "x"})
			forceRole(t, store, item.ID, role)

			got := transition(t, eng, store, item.ID, Request{Trigger: types.TriggerComplete})
			assert.Equal(t, types.RoleTerminal, got.Role)
		})
	}
}

func TestCompleteRecordsSummary(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})

	got := transition(t, eng, store, item.ID, Request{
		Trigger: types.TriggerComplete, Summary: "shipped behind a flag",
	})
	assert.Equal(t, types.RoleTerminal, got.Role)
	assert.Equal(t, "shipped behind a flag", got.Summary)

	trail, err := store.GetTransitions(context.Background(), item.ID, 0)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, "shipped behind a flag", trail[0].Summary)
}

func TestSummaryLengthValidated(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})

	coded := transitionErr(t, eng, store, item.ID, Request{
		Trigger: types.TriggerComplete,
		Summary: strings.Repeat("a", types.MaxSummaryLength+1),
	})
	assert.Equal(t, CodeValidationError, coded.Code)
}

func TestCancelDefaultsLabel(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})

	got := transition(t, eng, store, item.ID, Request{Trigger: types.TriggerCancel})
	assert.Equal(t, types.RoleTerminal, got.Role)
	assert.Equal(t, "cancelled", got.StatusLabel)
}

func TestCancelKeepsCallerLabel(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})

	got := transition(t, eng, store, item.ID, Request{
		Trigger: types.TriggerCancel, StatusLabel: "wont-fix",
	})
	assert.Equal(t, "wont-fix", got.StatusLabel)
}

func TestCancelFromBlockedClearsPreviousRole(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})
	require.NoError(t, store.UpdateItem(context.Background(), item.ID, map[string]interface{}{
		"role": types.RoleBlocked, "previous_role": types.RoleReview,
	}))

	got := transition(t, eng, store, item.ID, Request{Trigger: types.TriggerCancel})
	assert.Equal(t, types.RoleTerminal, got.Role)
	assert.Empty(t, got.PreviousRole)

	trail, err := store.GetTransitions(context.Background(), item.ID, 0)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, types.RoleBlocked, trail[0].FromRole)
}

func TestCancelFromTerminal(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})
	forceRole(t, store, item.ID, types.RoleTerminal)

	coded := transitionErr(t, eng, store, item.ID, Request{Trigger: types.TriggerCancel})
	assert.Equal(t, CodeAlreadyTerminal, coded.Code)
}

func TestBlockResumeRoundTrip(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})
	forceRole(t, store, item.ID, types.RoleWork)

	blocked := transition(t, eng, store, item.ID, Request{Trigger: types.TriggerBlock})
	assert.Equal(t, types.RoleBlocked, blocked.Role)
	assert.Equal(t, types.RoleWork, blocked.PreviousRole)

	resumed := transition(t, eng, store, item.ID, Request{Trigger: types.TriggerResume})
	assert.Equal(t, types.RoleWork, resumed.Role)
	assert.Empty(t, resumed.PreviousRole)
}

func TestHoldIsBlockAlias(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})

	got := transition(t, eng, store, item.ID, Request{Trigger: types.TriggerHold})
	assert.Equal(t, types.RoleBlocked, got.Role)

	trail, err := store.GetTransitions(context.Background(), item.ID, 0)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, types.TriggerBlock, trail[0].Trigger)
}

func TestBlockFromBlocked(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})
	transition(t, eng, store, item.ID, Request{Trigger: types.TriggerBlock})

	coded := transitionErr(t, eng, store, item.ID, Request{Trigger: types.TriggerBlock})
	assert.Equal(t, CodeAlreadyBlocked, coded.Code)
}

func TestBlockFromTerminal(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})
	forceRole(t, store, item.ID, types.RoleTerminal)

	coded := transitionErr(t, eng, store, item.ID, Request{Trigger: types.TriggerBlock})
	assert.Equal(t, CodeCannotBlockTerminal, coded.Code)
}

func TestResumeWhenNotBlocked(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})

	coded := transitionErr(t, eng, store, item.ID, Request{Trigger: types.TriggerResume})
	assert.Equal(t, CodeNotBlocked, coded.Code)
}

func TestResumeWithoutPreviousRole(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})

	// craft the degenerate state directly; the engine never produces it
	probe := *item
	probe.Role = types.RoleBlocked
	probe.PreviousRole = ""
	_, err := eng.Transition(context.Background(), &probe, Request{Trigger: types.TriggerResume})
	assert.Equal(t, CodeMissingPreviousRole, CodeOf(err))
}

func TestInvalidTriggerRejected(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})

	coded := transitionErr(t, eng, store, item.ID, Request{Trigger: "finish"})
	assert.Equal(t, CodeValidationError, coded.Code)

	coded = transitionErr(t, eng, store, item.ID, Request{Trigger: types.TriggerCascade})
	assert.Equal(t, CodeValidationError, coded.Code)
}

func TestApplyRejectsStaleSnapshot(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})

	// two writers compute the same completion from one snapshot
	snapshot, err := store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	first, err := eng.Transition(ctx, snapshot, Request{Trigger: types.TriggerComplete})
	require.NoError(t, err)
	second, err := eng.Transition(ctx, snapshot, Request{Trigger: types.TriggerComplete})
	require.NoError(t, err)

	require.NoError(t, eng.Apply(ctx, first))
	err = eng.Apply(ctx, second)
	assert.Equal(t, CodeAlreadyTerminal, CodeOf(err))

	trail, err := store.GetTransitions(ctx, item.ID, 0)
	require.NoError(t, err)
	assert.Len(t, trail, 1, "the losing writer must not append an audit row")
}

func TestApplyConflictWhenRoleMovedUnderneath(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})

	snapshot, err := store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	stale, err := eng.Transition(ctx, snapshot, Request{Trigger: types.TriggerStart})
	require.NoError(t, err)

	transition(t, eng, store, item.ID, Request{Trigger: types.TriggerStart})

	err = eng.Apply(ctx, stale)
	assert.Equal(t, CodeConflict, CodeOf(err))

	got, err := store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RoleWork, got.Role)
}

func TestStartRejectsStatusLabelBeforeTerminal(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})

	coded := transitionErr(t, eng, store, item.ID, Request{
		Trigger: types.TriggerStart, StatusLabel: "phase-1",
	})
	assert.Equal(t, CodeValidationError, coded.Code)
}

func TestStartFromReviewMayLabelTerminal(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})
	forceRole(t, store, item.ID, types.RoleReview)

	got := transition(t, eng, store, item.ID, Request{
		Trigger: types.TriggerStart, StatusLabel: "shipped",
	})
	assert.Equal(t, types.RoleTerminal, got.Role)
	assert.Equal(t, "shipped", got.StatusLabel)
}

func TestStatusLabelClearedOnRoleChange(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	item := createItem(t, store, &types.WorkItem{Title: "x"})
	require.NoError(t, store.UpdateItem(context.Background(), item.ID, map[string]interface{}{
		"status_label": "paused",
	}))

	got := transition(t, eng, store, item.ID, Request{Trigger: types.TriggerStart})
	assert.Empty(t, got.StatusLabel)
}
