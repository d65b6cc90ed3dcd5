package engine

import (
	"context"

	"github.com/forgecrew/foreman/internal/types"
)

// TransitionRequest is one entry of an advance_item batch
type TransitionRequest struct {
	ItemID      string `json:"itemId"`
	Trigger     string `json:"trigger"`
	Summary     string `json:"summary,omitempty"`
	StatusLabel string `json:"statusLabel,omitempty"`
	// ApplyCascade defaults to true when nil
	ApplyCascade *bool `json:"applyCascade,omitempty"`
}

// TransitionResult is the per-entry outcome of an advance_item batch
type TransitionResult struct {
	ItemID  string `json:"itemId"`
	Applied bool   `json:"applied"`

	PreviousRole   types.Role            `json:"previousRole,omitempty"`
	NewRole        types.Role            `json:"newRole,omitempty"`
	CascadeEvents  []CascadeEvent        `json:"cascadeEvents,omitempty"`
	UnblockedItems []types.UnblockedItem `json:"unblockedItems,omitempty"`
	// Warning reports a post-commit failure (cascade or unblock probe)
	// that did not reverse the base transition.
	Warning string `json:"warning,omitempty"`

	Error        string              `json:"error,omitempty"`
	Code         Code                `json:"code,omitempty"`
	Blockers     []types.BlockerInfo `json:"blockers,omitempty"`
	GateErrors   []string            `json:"gateErrors,omitempty"`
	NeedsSummary bool                `json:"needsSummary,omitempty"`
}

// AdvanceSummary counts batch outcomes
type AdvanceSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// AdvanceOutcome is the full advance_item payload
type AdvanceOutcome struct {
	Results []TransitionResult `json:"results"`
	Summary AdvanceSummary     `json:"summary"`
	// AllUnblockedItems unions the unblocked sets of every successful
	// entry, deduplicated by item id.
	AllUnblockedItems []types.UnblockedItem `json:"allUnblockedItems"`
}

// failedResult fills the error fields of a per-entry failure
func failedResult(itemID string, err error) TransitionResult {
	coded := AsError(err)
	return TransitionResult{
		ItemID:       itemID,
		Applied:      false,
		Error:        coded.Message,
		Code:         coded.Code,
		Blockers:     coded.Blockers,
		GateErrors:   coded.Missing,
		NeedsSummary: coded.NeedsSummary,
	}
}

// AdvanceItems processes transition requests in submitted order. Entries
// are independent: a failure in one never aborts the rest, and every
// engine-raised error becomes a structured per-entry failure.
func (e *Engine) AdvanceItems(ctx context.Context, requests []TransitionRequest) (*AdvanceOutcome, error) {
	outcome := &AdvanceOutcome{
		Results:           make([]TransitionResult, 0, len(requests)),
		AllUnblockedItems: []types.UnblockedItem{},
	}
	outcome.Summary.Total = len(requests)
	seenUnblocked := make(map[string]bool)

	for _, req := range requests {
		result := e.advanceOne(ctx, req)
		if result.Applied {
			outcome.Summary.Succeeded++
			for _, u := range result.UnblockedItems {
				if !seenUnblocked[u.ItemID] {
					seenUnblocked[u.ItemID] = true
					outcome.AllUnblockedItems = append(outcome.AllUnblockedItems, u)
				}
			}
		} else {
			outcome.Summary.Failed++
		}
		outcome.Results = append(outcome.Results, result)
	}
	return outcome, nil
}

func (e *Engine) advanceOne(ctx context.Context, req TransitionRequest) TransitionResult {
	trigger, err := types.ParseTrigger(req.Trigger)
	if err != nil {
		return failedResult(req.ItemID, newError(CodeValidationError, "%v", err))
	}

	item, err := e.store.GetItem(ctx, req.ItemID)
	if err != nil {
		return failedResult(req.ItemID, err)
	}

	transition, err := e.Transition(ctx, item, Request{
		Trigger:     trigger,
		Summary:     req.Summary,
		StatusLabel: req.StatusLabel,
	})
	if err != nil {
		return failedResult(req.ItemID, err)
	}

	if err := e.Apply(ctx, transition); err != nil {
		return failedResult(req.ItemID, err)
	}

	result := TransitionResult{
		ItemID:       req.ItemID,
		Applied:      true,
		PreviousRole: transition.FromRole,
		NewRole:      transition.ToRole,
	}

	applyCascade := req.ApplyCascade == nil || *req.ApplyCascade
	if applyCascade && transition.CascadeCandidate {
		events, err := e.ApplyCascades(ctx, transition.Item)
		result.CascadeEvents = events
		if err != nil {
			// base transition is committed; cascade failure degrades
			// to a warning
			result.Warning = "cascade failed: " + err.Error()
		}
	}

	if transition.UnblockProbe {
		probeIDs := []string{transition.Item.ID}
		for _, event := range result.CascadeEvents {
			probeIDs = append(probeIDs, event.ItemID)
		}
		seen := make(map[string]bool)
		for _, id := range probeIDs {
			unblocked, err := e.DetectUnblocked(ctx, id)
			if err != nil {
				result.Warning = "unblock detection failed: " + err.Error()
				break
			}
			for _, u := range unblocked {
				if !seen[u.ItemID] {
					seen[u.ItemID] = true
					result.UnblockedItems = append(result.UnblockedItems, u)
				}
			}
		}
	}
	return result
}
