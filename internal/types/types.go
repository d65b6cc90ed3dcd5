// Package types defines core data structures for the foreman work-item
// orchestration engine.
package types

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// MaxDepth is the deepest allowed hierarchy level. Root items sit at depth 0.
const MaxDepth = 3

// MaxSummaryLength bounds the short summary field
const MaxSummaryLength = 500

// MaxNoteKeyLength bounds note keys
const MaxNoteKeyLength = 200

// WorkItem represents a trackable unit of work in the hierarchy
type WorkItem struct {
	ID          string `json:"id"`
	ParentID    string `json:"parentId,omitempty"` // empty = root item
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Role        Role   `json:"role"`
	// PreviousRole is set only while Role == blocked and records the ladder
	// role to restore on resume.
	PreviousRole Role `json:"previousRole,omitempty"`
	// StatusLabel qualifies a terminal role, e.g. "cancelled". Cleared on
	// any role change that does not set it.
	StatusLabel          string    `json:"statusLabel,omitempty"`
	Priority             Priority  `json:"priority"`
	Complexity           int       `json:"complexity"`
	RequiresVerification bool      `json:"requiresVerification,omitempty"`
	Depth                int       `json:"depth"`
	Metadata             string    `json:"metadata,omitempty"` // freeform JSON blob
	Tags                 string    `json:"tags,omitempty"`     // comma-joined kebab identifiers
	CreatedAt            time.Time `json:"createdAt"`
	ModifiedAt           time.Time `json:"modifiedAt"`
}

var tagPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Validate checks if the item has valid field values
func (w *WorkItem) Validate() error {
	if len(strings.TrimSpace(w.Title)) == 0 {
		return fmt.Errorf("title is required")
	}
	if len(w.Summary) > MaxSummaryLength {
		return fmt.Errorf("summary must be %d characters or less (got %d)", MaxSummaryLength, len(w.Summary))
	}
	if !w.Role.IsValid() {
		return fmt.Errorf("invalid role: %s", w.Role)
	}
	if !w.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", w.Priority)
	}
	if w.Complexity < 1 || w.Complexity > 10 {
		return fmt.Errorf("complexity must be between 1 and 10 (got %d)", w.Complexity)
	}
	if w.Depth < 0 || w.Depth > MaxDepth {
		return fmt.Errorf("depth must be between 0 and %d (got %d)", MaxDepth, w.Depth)
	}
	if w.ParentID == "" && w.Depth != 0 {
		return fmt.Errorf("root items must have depth 0 (got %d)", w.Depth)
	}
	if w.ParentID != "" && w.Depth == 0 {
		return fmt.Errorf("child items must have depth > 0")
	}
	if w.ParentID == w.ID && w.ID != "" {
		return fmt.Errorf("item cannot be its own parent")
	}
	// previous_role carries meaning only while blocked, and only ladder
	// roles below terminal can be restored
	if w.PreviousRole != "" {
		if w.Role != RoleBlocked {
			return fmt.Errorf("previous_role is only valid while blocked (role is %s)", w.Role)
		}
		switch w.PreviousRole {
		case RoleQueue, RoleWork, RoleReview:
		default:
			return fmt.Errorf("invalid previous_role: %s", w.PreviousRole)
		}
	}
	for _, tag := range w.TagList() {
		if !tagPattern.MatchString(tag) {
			return fmt.Errorf("invalid tag %q: tags must be lowercase kebab-case identifiers", tag)
		}
	}
	return nil
}

// SetDefaults applies default values for fields omitted at creation
func (w *WorkItem) SetDefaults() {
	if w.Role == "" {
		w.Role = RoleQueue
	}
	if w.Priority == "" {
		w.Priority = PriorityMedium
	}
	if w.Complexity == 0 {
		w.Complexity = 5
	}
}

// TagList splits the comma-joined tags field into trimmed lower-case tags.
// Empty segments are dropped.
func (w *WorkItem) TagList() []string {
	if strings.TrimSpace(w.Tags) == "" {
		return nil
	}
	parts := strings.Split(w.Tags, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		tag := strings.ToLower(strings.TrimSpace(p))
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// IsTerminal reports whether the item has reached the end of the ladder
func (w *WorkItem) IsTerminal() bool {
	return w.Role == RoleTerminal
}

// Note is an accountability artifact attached to an item, keyed by
// (item_id, key) and consulted by gate checks.
type Note struct {
	ID         string    `json:"id"`
	ItemID     string    `json:"itemId"`
	Key        string    `json:"key"`
	Role       Role      `json:"role"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// Validate checks if the note has valid field values
func (n *Note) Validate() error {
	if n.ItemID == "" {
		return fmt.Errorf("item_id is required")
	}
	if strings.TrimSpace(n.Key) == "" {
		return fmt.Errorf("key is required")
	}
	if len(n.Key) > MaxNoteKeyLength {
		return fmt.Errorf("key must be %d characters or less (got %d)", MaxNoteKeyLength, len(n.Key))
	}
	switch n.Role {
	case RoleQueue, RoleWork, RoleReview:
	default:
		return fmt.Errorf("note role must be queue, work, or review (got %s)", n.Role)
	}
	return nil
}

// RoleTransition is an append-only audit record of a role change
type RoleTransition struct {
	ID              string    `json:"id"`
	ItemID          string    `json:"itemId"`
	FromRole        Role      `json:"fromRole"`
	ToRole          Role      `json:"toRole"`
	FromStatusLabel string    `json:"fromStatusLabel,omitempty"`
	ToStatusLabel   string    `json:"toStatusLabel,omitempty"`
	Trigger         Trigger   `json:"trigger"`
	Summary         string    `json:"summary,omitempty"`
	TransitionedAt  time.Time `json:"transitionedAt"`
}

// ItemFilter is used to filter work item queries
type ItemFilter struct {
	Role          *Role
	Priority      *Priority
	ParentID      *string // non-nil empty string matches root items
	Tag           string
	TitleContains string
	IDs           []string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	ModifiedAfter *time.Time
	Limit         int
}

// NoteFilter is used to filter note queries
type NoteFilter struct {
	ItemID string
	Role   *Role
	Key    string
	Limit  int
}

// RoleCounts holds per-role item counts for a set of items
type RoleCounts struct {
	Total    int `json:"total"`
	Queue    int `json:"queue"`
	Work     int `json:"work"`
	Review   int `json:"review"`
	Terminal int `json:"terminal"`
	Blocked  int `json:"blocked"`
}

// AllTerminal reports whether every counted item is terminal. An empty set
// is not considered all-terminal.
func (c RoleCounts) AllTerminal() bool {
	return c.Total > 0 && c.Terminal == c.Total
}

// Statistics provides aggregate workspace metrics
type Statistics struct {
	TotalItems    int `json:"totalItems"`
	QueueItems    int `json:"queueItems"`
	WorkItems     int `json:"workItems"`
	ReviewItems   int `json:"reviewItems"`
	TerminalItems int `json:"terminalItems"`
	BlockedItems  int `json:"blockedItems"`
	ReadyItems    int `json:"readyItems"`
}
