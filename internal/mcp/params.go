package mcp

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/forgecrew/foreman/internal/engine"
	"github.com/forgecrew/foreman/internal/types"
)

// whenParser resolves natural-language timestamps like "yesterday" or
// "2 hours ago" for the since parameters.
var whenParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseSince accepts RFC 3339, a bare date, or natural language
func parseSince(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	if r, err := whenParser.Parse(value, time.Now()); err == nil && r != nil {
		return r.Time, nil
	}
	return time.Time{}, validationError("%s: cannot parse time %q", field, value)
}

func validationError(format string, args ...interface{}) *engine.Error {
	return &engine.Error{Code: engine.CodeValidationError, Message: fmt.Sprintf(format, args...)}
}

func requireItemID(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return validationError("%s is required", field)
	}
	if _, err := uuid.Parse(value); err != nil {
		return validationError("%s: %q is not a valid item id", field, value)
	}
	return nil
}

// advanceItemParams is the advance_item input
type advanceItemParams struct {
	Transitions []engine.TransitionRequest `json:"transitions"`
}

func (p *advanceItemParams) validate() error {
	if len(p.Transitions) == 0 {
		return validationError("transitions: at least one entry is required")
	}
	for i, t := range p.Transitions {
		if err := requireItemID(fmt.Sprintf("transitions[%d].itemId", i), t.ItemID); err != nil {
			return err
		}
		if _, err := types.ParseTrigger(t.Trigger); err != nil {
			return validationError("transitions[%d].trigger: %v", i, err)
		}
	}
	return nil
}

// completeTreeParams is the complete_tree input
type completeTreeParams struct {
	RootID  string   `json:"rootId,omitempty"`
	ItemIDs []string `json:"itemIds,omitempty"`
	Trigger string   `json:"trigger"`
	Summary string   `json:"summary,omitempty"`
}

func (p *completeTreeParams) validate() error {
	if (p.RootID == "") == (len(p.ItemIDs) == 0) {
		return validationError("exactly one of rootId or itemIds is required")
	}
	if p.RootID != "" {
		if err := requireItemID("rootId", p.RootID); err != nil {
			return err
		}
	}
	for i, id := range p.ItemIDs {
		if err := requireItemID(fmt.Sprintf("itemIds[%d]", i), id); err != nil {
			return err
		}
	}
	trigger, err := types.ParseTrigger(p.Trigger)
	if err != nil {
		return validationError("trigger: %v", err)
	}
	if trigger != types.TriggerComplete && trigger != types.TriggerCancel {
		return validationError("trigger must be complete or cancel (got %s)", trigger)
	}
	return nil
}

// itemParams describes one item to create
type itemParams struct {
	ID                   string          `json:"id,omitempty"`
	Title                string          `json:"title"`
	Description          string          `json:"description,omitempty"`
	Summary              string          `json:"summary,omitempty"`
	ParentID             string          `json:"parentId,omitempty"`
	Priority             string          `json:"priority,omitempty"`
	Complexity           int             `json:"complexity,omitempty"`
	RequiresVerification bool            `json:"requiresVerification,omitempty"`
	Tags                 []string        `json:"tags,omitempty"`
	Metadata             json.RawMessage `json:"metadata,omitempty"`
}

func (p *itemParams) toWorkItem(index int) (*types.WorkItem, error) {
	if strings.TrimSpace(p.Title) == "" {
		return nil, validationError("items[%d].title is required", index)
	}
	item := &types.WorkItem{
		ID:                   p.ID,
		Title:                p.Title,
		Description:          p.Description,
		Summary:              p.Summary,
		ParentID:             p.ParentID,
		RequiresVerification: p.RequiresVerification,
		Tags:                 strings.Join(p.Tags, ","),
	}
	if p.Priority != "" {
		priority, err := types.ParsePriority(p.Priority)
		if err != nil {
			return nil, validationError("items[%d].priority: %v", index, err)
		}
		item.Priority = priority
	}
	if p.Complexity != 0 {
		if p.Complexity < 1 || p.Complexity > 10 {
			return nil, validationError("items[%d].complexity must be between 1 and 10 (got %d)", index, p.Complexity)
		}
		item.Complexity = p.Complexity
	}
	if len(p.Metadata) > 0 {
		item.Metadata = string(p.Metadata)
	}
	return item, nil
}

// itemUpdateParams describes a partial item update. Pointer fields
// distinguish "absent" from "set to zero". ParentID set to the empty
// string reparents the item to the root.
type itemUpdateParams struct {
	Title                *string         `json:"title,omitempty"`
	Description          *string         `json:"description,omitempty"`
	Summary              *string         `json:"summary,omitempty"`
	StatusLabel          *string         `json:"statusLabel,omitempty"`
	Priority             *string         `json:"priority,omitempty"`
	Complexity           *int            `json:"complexity,omitempty"`
	RequiresVerification *bool           `json:"requiresVerification,omitempty"`
	Tags                 []string        `json:"tags,omitempty"`
	Metadata             json.RawMessage `json:"metadata,omitempty"`
	ParentID             *string         `json:"parentId,omitempty"`
}

func (p *itemUpdateParams) toFieldMap() (map[string]interface{}, error) {
	updates := make(map[string]interface{})
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return nil, validationError("title cannot be empty")
		}
		updates["title"] = *p.Title
	}
	if p.Description != nil {
		updates["description"] = *p.Description
	}
	if p.Summary != nil {
		updates["summary"] = *p.Summary
	}
	if p.StatusLabel != nil {
		if *p.StatusLabel == "" {
			updates["status_label"] = nil
		} else {
			updates["status_label"] = *p.StatusLabel
		}
	}
	if p.Priority != nil {
		priority, err := types.ParsePriority(*p.Priority)
		if err != nil {
			return nil, validationError("priority: %v", err)
		}
		updates["priority"] = priority
	}
	if p.Complexity != nil {
		if *p.Complexity < 1 || *p.Complexity > 10 {
			return nil, validationError("complexity must be between 1 and 10 (got %d)", *p.Complexity)
		}
		updates["complexity"] = *p.Complexity
	}
	if p.RequiresVerification != nil {
		updates["requires_verification"] = *p.RequiresVerification
	}
	if p.Tags != nil {
		updates["tags"] = strings.Join(p.Tags, ",")
	}
	if len(p.Metadata) > 0 {
		updates["metadata"] = string(p.Metadata)
	}
	if p.ParentID != nil {
		if *p.ParentID == "" {
			updates["parent_id"] = nil
		} else {
			if err := requireItemID("parentId", *p.ParentID); err != nil {
				return nil, err
			}
			updates["parent_id"] = *p.ParentID
		}
	}
	if len(updates) == 0 {
		return nil, validationError("no fields to update")
	}
	return updates, nil
}

// manageItemsParams is the manage_items input
type manageItemsParams struct {
	Operation string            `json:"operation"`
	Items     []itemParams      `json:"items,omitempty"`
	ItemID    string            `json:"itemId,omitempty"`
	Updates   *itemUpdateParams `json:"updates,omitempty"`
	ItemIDs   []string          `json:"itemIds,omitempty"`
}

// dependencyParams describes one edge
type dependencyParams struct {
	FromItemID string `json:"fromItemId"`
	ToItemID   string `json:"toItemId"`
	Type       string `json:"type"`
	UnblockAt  string `json:"unblockAt,omitempty"`
}

func (p *dependencyParams) toDependency(index int) (*types.Dependency, error) {
	prefix := ""
	if index >= 0 {
		prefix = fmt.Sprintf("dependencies[%d].", index)
	}
	if err := requireItemID(prefix+"fromItemId", p.FromItemID); err != nil {
		return nil, err
	}
	if err := requireItemID(prefix+"toItemId", p.ToItemID); err != nil {
		return nil, err
	}
	depType, err := types.ParseDependencyType(p.Type)
	if err != nil {
		return nil, validationError("%stype: %v", prefix, err)
	}
	dep := &types.Dependency{FromItemID: p.FromItemID, ToItemID: p.ToItemID, Type: depType}
	if p.UnblockAt != "" {
		role, err := types.ParseRole(p.UnblockAt)
		if err != nil {
			return nil, validationError("%sunblockAt: %v", prefix, err)
		}
		if _, ok := role.Rank(); !ok {
			return nil, validationError("%sunblockAt must be a ladder role (got %s)", prefix, role)
		}
		dep.UnblockAt = role
	}
	return dep, nil
}

// manageDependenciesParams is the manage_dependencies input
type manageDependenciesParams struct {
	Operation string `json:"operation"`
	dependencyParams
	Dependencies []dependencyParams `json:"dependencies,omitempty"`
}

// manageNotesParams is the manage_notes input
type manageNotesParams struct {
	Operation string `json:"operation"`
	ItemID    string `json:"itemId"`
	Key       string `json:"key"`
	Role      string `json:"role,omitempty"`
	Body      string `json:"body,omitempty"`
}

// queryItemsParams is the query_items input. ItemID fetches one item;
// otherwise the filter fields apply.
type queryItemsParams struct {
	ItemID          string   `json:"itemId,omitempty"`
	IncludeChildren bool     `json:"includeChildren,omitempty"`
	Role            string   `json:"role,omitempty"`
	Priority        string   `json:"priority,omitempty"`
	ParentID        *string  `json:"parentId,omitempty"`
	Tag             string   `json:"tag,omitempty"`
	TitleContains   string   `json:"titleContains,omitempty"`
	IDs             []string `json:"ids,omitempty"`
	CreatedAfter    string   `json:"createdAfter,omitempty"`
	CreatedBefore   string   `json:"createdBefore,omitempty"`
	Since           string   `json:"since,omitempty"` // modified-at floor, natural language allowed
	Limit           int      `json:"limit,omitempty"`
}

func (p *queryItemsParams) toFilter() (types.ItemFilter, error) {
	filter := types.ItemFilter{
		Tag:           p.Tag,
		TitleContains: p.TitleContains,
		IDs:           p.IDs,
		ParentID:      p.ParentID,
		Limit:         p.Limit,
	}
	if p.Role != "" {
		role, err := types.ParseRole(p.Role)
		if err != nil {
			return filter, validationError("role: %v", err)
		}
		filter.Role = &role
	}
	if p.Priority != "" {
		priority, err := types.ParsePriority(p.Priority)
		if err != nil {
			return filter, validationError("priority: %v", err)
		}
		filter.Priority = &priority
	}
	if p.CreatedAfter != "" {
		t, err := parseSince("createdAfter", p.CreatedAfter)
		if err != nil {
			return filter, err
		}
		filter.CreatedAfter = &t
	}
	if p.CreatedBefore != "" {
		t, err := parseSince("createdBefore", p.CreatedBefore)
		if err != nil {
			return filter, err
		}
		filter.CreatedBefore = &t
	}
	if p.Since != "" {
		t, err := parseSince("since", p.Since)
		if err != nil {
			return filter, err
		}
		filter.ModifiedAfter = &t
	}
	return filter, nil
}

// queryNotesParams is the query_notes input
type queryNotesParams struct {
	ItemID string `json:"itemId,omitempty"`
	Role   string `json:"role,omitempty"`
	Key    string `json:"key,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

func (p *queryNotesParams) toFilter() (types.NoteFilter, error) {
	filter := types.NoteFilter{ItemID: p.ItemID, Key: p.Key, Limit: p.Limit}
	if p.Role != "" {
		role, err := types.ParseRole(p.Role)
		if err != nil {
			return filter, validationError("role: %v", err)
		}
		filter.Role = &role
	}
	return filter, nil
}
