package types

import (
	"fmt"
	"strings"
	"time"
)

// DependencyType categorizes the relationship between two items
type DependencyType string

// Dependency type constants (wire-exact, upper-case)
const (
	// DepBlocks gates the target: from must reach the unblock threshold
	// before to may advance.
	DepBlocks DependencyType = "BLOCKS"
	// DepIsBlockedBy is the literal dual of DepBlocks: from is gated by to.
	DepIsBlockedBy DependencyType = "IS_BLOCKED_BY"
	// DepRelatesTo is an association edge with no gating semantics.
	DepRelatesTo DependencyType = "RELATES_TO"
)

// IsValid checks if the dependency type value is valid
func (d DependencyType) IsValid() bool {
	switch d {
	case DepBlocks, DepIsBlockedBy, DepRelatesTo:
		return true
	}
	return false
}

// IsBlocking reports whether edges of this type participate in gating
func (d DependencyType) IsBlocking() bool {
	return d == DepBlocks || d == DepIsBlockedBy
}

// ParseDependencyType maps a textual dependency type (case-insensitive)
// to a DependencyType.
func ParseDependencyType(s string) (DependencyType, error) {
	d := DependencyType(strings.ToUpper(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", fmt.Errorf("invalid dependency type: %q", s)
	}
	return d, nil
}

// Dependency represents a typed edge between two work items
type Dependency struct {
	ID         string         `json:"id"`
	FromItemID string         `json:"fromItemId"`
	ToItemID   string         `json:"toItemId"`
	Type       DependencyType `json:"type"`
	// UnblockAt is the role (lower-case) the blocker must reach for the
	// edge to be satisfied. Empty means the type default.
	UnblockAt Role      `json:"unblockAt,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks if the dependency has valid field values
func (d *Dependency) Validate() error {
	if d.FromItemID == "" || d.ToItemID == "" {
		return fmt.Errorf("both from_item_id and to_item_id are required")
	}
	if d.FromItemID == d.ToItemID {
		return fmt.Errorf("item cannot depend on itself")
	}
	if !d.Type.IsValid() {
		return fmt.Errorf("invalid dependency type: %s (must be BLOCKS, IS_BLOCKED_BY, or RELATES_TO)", d.Type)
	}
	if d.UnblockAt != "" {
		if _, ok := d.UnblockAt.Rank(); !ok {
			return fmt.Errorf("unblock_at must be a ladder role (got %s)", d.UnblockAt)
		}
	}
	return nil
}

// EffectiveUnblockRole returns the threshold the blocker side of the edge
// must reach. Blocking edges default to terminal; RELATES_TO edges have
// no threshold and return false.
func (d *Dependency) EffectiveUnblockRole() (Role, bool) {
	if !d.Type.IsBlocking() {
		return "", false
	}
	if d.UnblockAt != "" {
		return d.UnblockAt, true
	}
	return RoleTerminal, true
}

// BlockerID returns the id of the item doing the blocking, for a blocking
// edge viewed from the blocked item's side.
func (d *Dependency) BlockerID() string {
	if d.Type == DepIsBlockedBy {
		return d.ToItemID
	}
	return d.FromItemID
}

// BlockedID returns the id of the item being gated by this edge.
func (d *Dependency) BlockedID() string {
	if d.Type == DepIsBlockedBy {
		return d.FromItemID
	}
	return d.ToItemID
}

// BlockerInfo describes one unsatisfied or satisfied incoming blocker,
// reported on gating failures and by the blocked-items advisory.
type BlockerInfo struct {
	BlockerID    string `json:"blockerId"`
	BlockerTitle string `json:"blockerTitle"`
	BlockerRole  Role   `json:"blockerRole"`
	RequiredRole Role   `json:"requiredRole"`
	Satisfied    bool   `json:"satisfied"`
}

// UnblockedItem reports a downstream item whose incoming blockers have all
// become satisfied.
type UnblockedItem struct {
	ItemID string `json:"itemId"`
	Title  string `json:"title"`
}
