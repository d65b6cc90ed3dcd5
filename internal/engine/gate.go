package engine

import (
	"context"
	"strings"

	"github.com/forgecrew/foreman/internal/storage"
	"github.com/forgecrew/foreman/internal/types"
)

// SchemaEntry is one note requirement declared for a tag: a note under Key
// must exist with a non-empty body before the item enters a role ranked at
// or above Role.
type SchemaEntry struct {
	Key         string     `json:"key" yaml:"key"`
	Role        types.Role `json:"role" yaml:"role"`
	Required    bool       `json:"required" yaml:"required"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
}

// NoteSchemaService maps an item's tag set to the note requirements that
// apply to it. Implementations must be safe for concurrent use; the engine
// calls them on every gated transition.
type NoteSchemaService interface {
	RequirementsFor(tags []string) []SchemaEntry
}

// NoOpNoteSchemaService returns no requirements for every tag set. With it
// installed the system runs in schema-free mode and only the
// requires-verification summary rule gates transitions.
type NoOpNoteSchemaService struct{}

// RequirementsFor always returns nil
func (NoOpNoteSchemaService) RequirementsFor([]string) []SchemaEntry { return nil }

// GateStatus is the outcome of a role-entry gate evaluation
type GateStatus struct {
	CanAdvance bool `json:"canAdvance"`
	// Missing lists required note keys with no persisted non-empty note
	Missing []string `json:"missing,omitempty"`
	// NeedsSummary is set when the destination is terminal, the item
	// requires verification, and no summary is available.
	NeedsSummary bool       `json:"needsSummary,omitempty"`
	Phase        types.Role `json:"phase"`
}

// GateChecker evaluates role-entry gates against persisted notes
type GateChecker struct {
	store   storage.Storage
	schemas NoteSchemaService
}

// NewGateChecker builds a checker. A nil schemas falls back to the no-op
// provider.
func NewGateChecker(store storage.Storage, schemas NoteSchemaService) *GateChecker {
	if schemas == nil {
		schemas = NoOpNoteSchemaService{}
	}
	return &GateChecker{store: store, schemas: schemas}
}

// Check evaluates whether item may enter dest. pendingSummary is the
// summary submitted with the trigger, applied before the verification rule
// is evaluated.
func (g *GateChecker) Check(ctx context.Context, item *types.WorkItem, dest types.Role, pendingSummary string) (*GateStatus, error) {
	status := &GateStatus{CanAdvance: true, Phase: dest}

	destRank, ranked := dest.Rank()
	if ranked {
		for _, entry := range g.schemas.RequirementsFor(item.TagList()) {
			if !entry.Required {
				continue
			}
			entryRank, ok := entry.Role.Rank()
			if !ok || entryRank > destRank {
				continue
			}
			note, err := g.store.GetNote(ctx, item.ID, entry.Key)
			if err != nil {
				if CodeOf(err) == CodeNotFound {
					status.Missing = appendMissing(status.Missing, entry.Key)
					continue
				}
				return nil, err
			}
			if strings.TrimSpace(note.Body) == "" {
				status.Missing = appendMissing(status.Missing, entry.Key)
			}
		}
	}

	if dest == types.RoleTerminal && item.RequiresVerification {
		summary := item.Summary
		if strings.TrimSpace(pendingSummary) != "" {
			summary = pendingSummary
		}
		if strings.TrimSpace(summary) == "" {
			status.NeedsSummary = true
		}
	}

	status.CanAdvance = len(status.Missing) == 0 && !status.NeedsSummary
	return status, nil
}

// appendMissing adds key if not already present. Requirement lists are
// small enough that a linear scan beats a set.
func appendMissing(missing []string, key string) []string {
	for _, k := range missing {
		if k == key {
			return missing
		}
	}
	return append(missing, key)
}

// gateError converts a failed status into the coded error carried on
// transition results.
func gateError(status *GateStatus) *Error {
	missing := status.Missing
	msg := "gate check failed"
	if len(missing) > 0 {
		msg += ": missing notes " + strings.Join(missing, ", ")
	}
	if status.NeedsSummary {
		msg += ": summary required before terminal"
	}
	return &Error{
		Code:         CodeGateCheckFailed,
		Message:      msg,
		Missing:      missing,
		NeedsSummary: status.NeedsSummary,
	}
}
