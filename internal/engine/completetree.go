package engine

import (
	"context"

	"github.com/forgecrew/foreman/internal/types"
)

// CompleteTreeRequest targets either a root's whole subtree or an
// explicit item list. Exactly one of RootID/ItemIDs must be set.
type CompleteTreeRequest struct {
	RootID  string   `json:"rootId,omitempty"`
	ItemIDs []string `json:"itemIds,omitempty"`
	// Trigger must be complete or cancel
	Trigger string `json:"trigger"`
	Summary string `json:"summary,omitempty"`
}

// CompleteTreeResult is the per-item outcome of a complete_tree sweep
type CompleteTreeResult struct {
	ItemID  string `json:"itemId"`
	Applied bool   `json:"applied"`
	// Skipped marks items already terminal or downstream of a failure
	Skipped       bool           `json:"skipped,omitempty"`
	CascadeEvents []CascadeEvent `json:"cascadeEvents,omitempty"`

	Error      string   `json:"error,omitempty"`
	Code       Code     `json:"code,omitempty"`
	GateErrors []string `json:"gateErrors,omitempty"`
}

// CompleteTreeSummary counts sweep outcomes. Failed covers non-gate
// failures such as an external blocker outside the target set.
type CompleteTreeSummary struct {
	Total        int `json:"total"`
	Completed    int `json:"completed"`
	Skipped      int `json:"skipped"`
	GateFailures int `json:"gateFailures"`
	Failed       int `json:"failed,omitempty"`
}

// CompleteTreeOutcome is the full complete_tree payload
type CompleteTreeOutcome struct {
	Results []CompleteTreeResult `json:"results"`
	Summary CompleteTreeSummary  `json:"summary"`
}

// CompleteTree drives every targeted item to terminal in dependency order.
// Items are swept topologically over the blocking subgraph restricted to
// the target set, so a blocker is completed before the items it gates. A
// failure stops its downstream cone (those items are skipped) without
// aborting the sweep.
func (e *Engine) CompleteTree(ctx context.Context, req CompleteTreeRequest) (*CompleteTreeOutcome, error) {
	trigger, err := types.ParseTrigger(req.Trigger)
	if err != nil {
		return nil, newError(CodeValidationError, "%v", err)
	}
	if trigger != types.TriggerComplete && trigger != types.TriggerCancel {
		return nil, newError(CodeValidationError,
			"complete_tree trigger must be complete or cancel (got %s)", trigger)
	}
	if (req.RootID == "") == (len(req.ItemIDs) == 0) {
		return nil, newError(CodeValidationError, "exactly one of root_id or item_ids is required")
	}

	items, preResults, err := e.collectTargets(ctx, req)
	if err != nil {
		return nil, err
	}

	outcome := &CompleteTreeOutcome{Results: preResults}
	outcome.Summary.Total = len(items) + len(preResults)
	outcome.Summary.Skipped = len(preResults)

	ordered, downstream, err := orderByBlocking(ctx, e, items)
	if err != nil {
		return nil, err
	}

	blockedByPredecessor := make(map[string]bool)
	for _, item := range ordered {
		if blockedByPredecessor[item.ID] {
			outcome.Results = append(outcome.Results, CompleteTreeResult{
				ItemID: item.ID, Applied: false, Skipped: true,
			})
			outcome.Summary.Skipped++
			for _, target := range downstream[item.ID] {
				blockedByPredecessor[target] = true
			}
			continue
		}

		result := e.completeOne(ctx, item, trigger, req.Summary)
		switch {
		case result.Skipped:
			outcome.Summary.Skipped++
		case !result.Applied:
			if result.Code == CodeGateCheckFailed {
				outcome.Summary.GateFailures++
			} else {
				outcome.Summary.Failed++
			}
			for _, target := range downstream[item.ID] {
				blockedByPredecessor[target] = true
			}
		default:
			outcome.Summary.Completed++
		}
		outcome.Results = append(outcome.Results, result)
	}
	return outcome, nil
}

// collectTargets resolves the target set. Items already terminal are
// reported as skipped up front and excluded from the sweep.
func (e *Engine) collectTargets(ctx context.Context, req CompleteTreeRequest) ([]*types.WorkItem, []CompleteTreeResult, error) {
	var candidates []*types.WorkItem
	if req.RootID != "" {
		if _, err := e.store.GetItem(ctx, req.RootID); err != nil {
			return nil, nil, wrapStoreError(err)
		}
		descendants, err := e.store.GetDescendants(ctx, req.RootID)
		if err != nil {
			return nil, nil, wrapStoreError(err)
		}
		candidates = descendants
	} else {
		seen := make(map[string]bool, len(req.ItemIDs))
		for _, id := range req.ItemIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			item, err := e.store.GetItem(ctx, id)
			if err != nil {
				return nil, nil, wrapStoreError(err)
			}
			candidates = append(candidates, item)
		}
	}

	var items []*types.WorkItem
	var skipped []CompleteTreeResult
	for _, item := range candidates {
		if item.IsTerminal() {
			skipped = append(skipped, CompleteTreeResult{
				ItemID: item.ID, Applied: false, Skipped: true,
			})
			continue
		}
		items = append(items, item)
	}
	return items, skipped, nil
}

// orderByBlocking topologically sorts items over the blocking edges that
// stay inside the set (blockers first), and returns the in-set downstream
// adjacency used for failure propagation. Ties keep collection order. A
// cycle aborts the whole sweep.
func orderByBlocking(ctx context.Context, e *Engine, items []*types.WorkItem) ([]*types.WorkItem, map[string][]string, error) {
	inSet := make(map[string]*types.WorkItem, len(items))
	for _, item := range items {
		inSet[item.ID] = item
	}

	downstream := make(map[string][]string)
	indegree := make(map[string]int, len(items))
	for _, item := range items {
		indegree[item.ID] = 0
	}
	for _, item := range items {
		edges, err := e.store.GetIncomingBlockers(ctx, item.ID)
		if err != nil {
			return nil, nil, wrapStoreError(err)
		}
		for _, edge := range edges {
			blockerID := edge.BlockerID()
			if _, ok := inSet[blockerID]; !ok {
				continue
			}
			downstream[blockerID] = append(downstream[blockerID], item.ID)
			indegree[item.ID]++
		}
	}

	var ordered []*types.WorkItem
	queue := make([]*types.WorkItem, 0, len(items))
	for _, item := range items {
		if indegree[item.ID] == 0 {
			queue = append(queue, item)
		}
	}
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		ordered = append(ordered, item)
		for _, targetID := range downstream[item.ID] {
			indegree[targetID]--
			if indegree[targetID] == 0 {
				queue = append(queue, inSet[targetID])
			}
		}
	}
	if len(ordered) != len(items) {
		return nil, nil, newError(CodeCyclicDependency, "blocking cycle within target set")
	}
	return ordered, downstream, nil
}

func (e *Engine) completeOne(ctx context.Context, item *types.WorkItem, trigger types.Trigger, summary string) CompleteTreeResult {
	// re-read: an earlier entry's cascade may have finished this item
	// after the target set was collected
	fresh, err := e.store.GetItem(ctx, item.ID)
	if err != nil {
		coded := AsError(err)
		return CompleteTreeResult{
			ItemID: item.ID, Applied: false, Error: coded.Message, Code: coded.Code,
		}
	}
	if fresh.IsTerminal() {
		return CompleteTreeResult{ItemID: item.ID, Applied: false, Skipped: true}
	}

	transition, err := e.Transition(ctx, fresh, Request{Trigger: trigger, Summary: summary})
	if err != nil {
		coded := AsError(err)
		return CompleteTreeResult{
			ItemID:     item.ID,
			Applied:    false,
			Error:      coded.Message,
			Code:       coded.Code,
			GateErrors: coded.Missing,
		}
	}
	if err := e.Apply(ctx, transition); err != nil {
		coded := AsError(err)
		return CompleteTreeResult{
			ItemID: item.ID, Applied: false, Error: coded.Message, Code: coded.Code,
		}
	}

	result := CompleteTreeResult{ItemID: item.ID, Applied: true}
	events, err := e.ApplyCascades(ctx, transition.Item)
	result.CascadeEvents = events
	if err != nil {
		e.logger.Printf("complete_tree cascade for %s: %v", item.ID, err)
	}
	return result
}
