package engine

import (
	"context"

	"github.com/forgecrew/foreman/internal/types"
)

// EvaluateBlockers resolves the incoming blocking edges of itemID into
// BlockerInfo entries with satisfaction flags. A blocker item missing from
// the store counts as unsatisfied.
func (e *Engine) EvaluateBlockers(ctx context.Context, itemID string) ([]types.BlockerInfo, error) {
	edges, err := e.store.GetIncomingBlockers(ctx, itemID)
	if err != nil {
		return nil, wrapStoreError(err)
	}

	infos := make([]types.BlockerInfo, 0, len(edges))
	for _, edge := range edges {
		required, ok := edge.EffectiveUnblockRole()
		if !ok {
			continue
		}
		info := types.BlockerInfo{
			BlockerID:    edge.BlockerID(),
			RequiredRole: required,
		}
		blocker, err := e.store.GetItem(ctx, info.BlockerID)
		switch {
		case err == nil:
			info.BlockerTitle = blocker.Title
			info.BlockerRole = blocker.Role
			info.Satisfied = blocker.Role.IsAtOrBeyond(required)
		case CodeOf(err) == CodeNotFound:
			// missing blocker stays unsatisfied
		default:
			return nil, wrapStoreError(err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func hasUnsatisfied(infos []types.BlockerInfo) bool {
	for _, info := range infos {
		if !info.Satisfied {
			return true
		}
	}
	return false
}

// DetectUnblocked probes the downstream targets of itemID after a
// rank-gaining transition: any target whose incoming blockers are now all
// satisfied is reported. Terminal targets are omitted as noise. Detection
// is advisory and mutates nothing.
func (e *Engine) DetectUnblocked(ctx context.Context, itemID string) ([]types.UnblockedItem, error) {
	edges, err := e.store.GetOutgoingBlocking(ctx, itemID)
	if err != nil {
		return nil, wrapStoreError(err)
	}

	var unblocked []types.UnblockedItem
	seen := make(map[string]bool, len(edges))
	for _, edge := range edges {
		targetID := edge.BlockedID()
		if seen[targetID] {
			continue
		}
		seen[targetID] = true

		target, err := e.store.GetItem(ctx, targetID)
		if err != nil {
			if CodeOf(err) == CodeNotFound {
				continue
			}
			return nil, wrapStoreError(err)
		}
		if target.IsTerminal() {
			continue
		}

		blockers, err := e.EvaluateBlockers(ctx, targetID)
		if err != nil {
			return nil, err
		}
		if !hasUnsatisfied(blockers) {
			unblocked = append(unblocked, types.UnblockedItem{ItemID: target.ID, Title: target.Title})
		}
	}
	return unblocked, nil
}
