// Package engine implements the work-item transition engine: trigger
// semantics over the role ladder, dependency gating, role-entry gates,
// parent cascades, and the batch orchestrators exposed as tools.
package engine

import (
	"context"
	"io"
	"log"
	"strings"

	"github.com/forgecrew/foreman/internal/storage"
	"github.com/forgecrew/foreman/internal/types"
)

// Engine evaluates and persists role transitions. It is stateless apart
// from the store, so one instance serves all concurrent requests.
type Engine struct {
	store  storage.Storage
	gates  *GateChecker
	logger *log.Logger
}

// New builds an engine. schemas may be nil for schema-free mode; logger
// may be nil to discard.
func New(store storage.Storage, schemas NoteSchemaService, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Engine{
		store:  store,
		gates:  NewGateChecker(store, schemas),
		logger: logger,
	}
}

// Store exposes the underlying storage handle for read-side services
func (e *Engine) Store() storage.Storage { return e.store }

// Request carries the caller-supplied inputs for one transition
type Request struct {
	Trigger     types.Trigger
	Summary     string
	StatusLabel string
}

// Outcome describes a computed, not-yet-persisted transition
type Outcome struct {
	// Item is the post-transition snapshot
	Item *types.WorkItem
	// Updates is the field map to persist via UpdateItem
	Updates  map[string]interface{}
	Audit    *types.RoleTransition
	FromRole types.Role
	ToRole   types.Role
	// CascadeCandidate is set when the destination is terminal and the
	// parent chain should be probed for auto-completion.
	CascadeCandidate bool
	// UnblockProbe is set when the move gained rank, so downstream
	// blocked targets may have become ready.
	UnblockProbe bool
}

// Transition validates req against item's current state and computes the
// resulting outcome. Nothing is persisted; see Apply.
//
// Gating rules: start and complete evaluate incoming blockers and the
// role-entry gate. cancel, block, and resume bypass both — cancel is an
// escape hatch and block/resume do not advance the ladder.
func (e *Engine) Transition(ctx context.Context, item *types.WorkItem, req Request) (*Outcome, error) {
	trigger := req.Trigger.Normalize()
	if !trigger.IsValid() {
		return nil, newError(CodeValidationError, "invalid trigger: %q", string(req.Trigger))
	}
	if len(req.Summary) > types.MaxSummaryLength {
		return nil, newError(CodeValidationError,
			"summary must be %d characters or less (got %d)", types.MaxSummaryLength, len(req.Summary))
	}

	var dest types.Role
	newPreviousRole := types.Role("")
	newStatusLabel := ""

	switch trigger {
	case types.TriggerStart:
		switch item.Role {
		case types.RoleTerminal:
			return nil, newError(CodeAlreadyTerminal, "item %s is already terminal", item.ID)
		case types.RoleBlocked:
			return nil, newError(CodeIsBlocked, "item %s is blocked; resume it first", item.ID)
		}
		next, ok := item.Role.Next()
		if !ok {
			return nil, newError(CodeInvalidRoleFor, "cannot start from role %s", item.Role)
		}
		if next != types.RoleTerminal && req.StatusLabel != "" {
			return nil, newError(CodeValidationError,
				"statusLabel only annotates terminal transitions (start from %s enters %s)", item.Role, next)
		}
		dest = next
		newStatusLabel = req.StatusLabel

	case types.TriggerComplete:
		switch item.Role {
		case types.RoleTerminal:
			return nil, newError(CodeAlreadyTerminal, "item %s is already terminal", item.ID)
		case types.RoleBlocked:
			return nil, newError(CodeIsBlocked, "item %s is blocked; resume it first", item.ID)
		}
		dest = types.RoleTerminal
		newStatusLabel = req.StatusLabel

	case types.TriggerCancel:
		if item.Role == types.RoleTerminal {
			return nil, newError(CodeAlreadyTerminal, "item %s is already terminal", item.ID)
		}
		dest = types.RoleTerminal
		newStatusLabel = req.StatusLabel
		if newStatusLabel == "" {
			newStatusLabel = "cancelled"
		}

	case types.TriggerBlock:
		switch item.Role {
		case types.RoleBlocked:
			return nil, newError(CodeAlreadyBlocked, "item %s is already blocked", item.ID)
		case types.RoleTerminal:
			return nil, newError(CodeCannotBlockTerminal, "item %s is terminal and cannot be blocked", item.ID)
		}
		dest = types.RoleBlocked
		newPreviousRole = item.Role

	case types.TriggerResume:
		if item.Role != types.RoleBlocked {
			return nil, newError(CodeNotBlocked, "item %s is not blocked", item.ID)
		}
		if item.PreviousRole == "" {
			return nil, newError(CodeMissingPreviousRole,
				"item %s is blocked without a previous role", item.ID)
		}
		dest = item.PreviousRole

	default:
		return nil, newError(CodeValidationError, "trigger %s is not caller-submittable", trigger)
	}

	if trigger == types.TriggerStart || trigger == types.TriggerComplete {
		blockers, err := e.EvaluateBlockers(ctx, item.ID)
		if err != nil {
			return nil, wrapStoreError(err)
		}
		if hasUnsatisfied(blockers) {
			return nil, &Error{
				Code:     CodeBlockedByDependency,
				Message:  "item " + item.ID + " has unsatisfied blockers",
				Blockers: blockers,
			}
		}

		status, err := e.gates.Check(ctx, item, dest, req.Summary)
		if err != nil {
			return nil, wrapStoreError(err)
		}
		if !status.CanAdvance {
			return nil, gateError(status)
		}
	}

	updated := *item
	updated.Role = dest
	updated.PreviousRole = newPreviousRole
	updated.StatusLabel = newStatusLabel
	if strings.TrimSpace(req.Summary) != "" {
		updated.Summary = req.Summary
	}

	updates := map[string]interface{}{
		"role":          dest,
		"previous_role": roleOrNil(newPreviousRole),
		"status_label":  stringOrNil(newStatusLabel),
	}
	if strings.TrimSpace(req.Summary) != "" {
		updates["summary"] = req.Summary
	}

	destRank, destRanked := dest.Rank()
	curRank, curRanked := item.Role.Rank()

	return &Outcome{
		Item:    &updated,
		Updates: updates,
		Audit: &types.RoleTransition{
			ItemID:          item.ID,
			FromRole:        item.Role,
			ToRole:          dest,
			FromStatusLabel: item.StatusLabel,
			ToStatusLabel:   newStatusLabel,
			Trigger:         trigger,
			Summary:         req.Summary,
		},
		FromRole:         item.Role,
		ToRole:           dest,
		CascadeCandidate: dest == types.RoleTerminal,
		UnblockProbe:     destRanked && (!curRanked || destRank > curRank),
	}, nil
}

// Apply persists a computed outcome: the item update and its audit record
// land in one transaction so readers see both or neither. The item's role
// is re-read inside the transaction; an outcome computed from a snapshot
// that another writer has since moved is rejected, so of two racing
// advances on the same item at most one lands per role step.
func (e *Engine) Apply(ctx context.Context, outcome *Outcome) error {
	err := e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		current, err := tx.GetItem(ctx, outcome.Item.ID)
		if err != nil {
			return err
		}
		if current.Role != outcome.FromRole {
			if current.IsTerminal() {
				return newError(CodeAlreadyTerminal, "item %s is already terminal", current.ID)
			}
			return newError(CodeConflict,
				"item %s moved to %s while the transition was computed", current.ID, current.Role)
		}
		if err := tx.UpdateItem(ctx, outcome.Item.ID, outcome.Updates); err != nil {
			return err
		}
		return tx.AddTransition(ctx, outcome.Audit)
	})
	if err != nil {
		return wrapStoreError(err)
	}
	e.logger.Printf("transition %s: %s -> %s (%s)",
		outcome.Item.ID, outcome.FromRole, outcome.ToRole, outcome.Audit.Trigger)
	return nil
}

func roleOrNil(r types.Role) interface{} {
	if r == "" {
		return nil
	}
	return r
}

func stringOrNil(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
