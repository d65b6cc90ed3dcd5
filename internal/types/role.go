package types

import (
	"fmt"
	"strings"
)

// Role represents the lifecycle position of a work item.
//
// The first four roles form an ordered progression ladder:
//
//	queue(0) < work(1) < review(2) < terminal(3)
//
// blocked sits off the ladder: a blocked item has no rank and remembers the
// role it left via WorkItem.PreviousRole.
type Role string

// Role constants (wire-exact, lower-case)
const (
	RoleQueue    Role = "queue"
	RoleWork     Role = "work"
	RoleReview   Role = "review"
	RoleTerminal Role = "terminal"
	RoleBlocked  Role = "blocked"
)

// roleRanks maps ladder roles to their position. blocked is deliberately absent.
var roleRanks = map[Role]int{
	RoleQueue:    0,
	RoleWork:     1,
	RoleReview:   2,
	RoleTerminal: 3,
}

// IsValid checks if the role value is one of the five known roles
func (r Role) IsValid() bool {
	switch r {
	case RoleQueue, RoleWork, RoleReview, RoleTerminal, RoleBlocked:
		return true
	}
	return false
}

// Rank returns the ladder position of the role. The second return is false
// for blocked (and for unknown roles), which have no rank.
func (r Role) Rank() (int, bool) {
	rank, ok := roleRanks[r]
	return rank, ok
}

// IsAtOrBeyond reports whether r has reached threshold on the ladder.
// A blocked item is never at-or-beyond any threshold.
func (r Role) IsAtOrBeyond(threshold Role) bool {
	rank, ok := r.Rank()
	if !ok {
		return false
	}
	want, ok := threshold.Rank()
	if !ok {
		return false
	}
	return rank >= want
}

// Next returns the next role up the ladder. Terminal and blocked have no next.
func (r Role) Next() (Role, bool) {
	switch r {
	case RoleQueue:
		return RoleWork, true
	case RoleWork:
		return RoleReview, true
	case RoleReview:
		return RoleTerminal, true
	}
	return "", false
}

// ParseRole maps a textual role (case-insensitive) to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("invalid role: %q", s)
	}
	return r, nil
}

// Trigger names a user-driven transition request
type Trigger string

// Trigger constants (wire-exact, lower-case). hold is an alias for block.
const (
	TriggerStart    Trigger = "start"
	TriggerComplete Trigger = "complete"
	TriggerCancel   Trigger = "cancel"
	TriggerBlock    Trigger = "block"
	TriggerHold     Trigger = "hold"
	TriggerResume   Trigger = "resume"

	// TriggerCascade is recorded on audit rows written by the cascade
	// applier. It is not accepted from callers.
	TriggerCascade Trigger = "cascade"
)

// IsValid checks if the trigger is one callers may submit
func (t Trigger) IsValid() bool {
	switch t {
	case TriggerStart, TriggerComplete, TriggerCancel, TriggerBlock, TriggerHold, TriggerResume:
		return true
	}
	return false
}

// Normalize collapses the block/hold alias pair to block
func (t Trigger) Normalize() Trigger {
	if t == TriggerHold {
		return TriggerBlock
	}
	return t
}

// ParseTrigger maps a textual trigger (case-insensitive) to a Trigger.
func ParseTrigger(s string) (Trigger, error) {
	t := Trigger(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("invalid trigger: %q", s)
	}
	return t, nil
}

// Priority represents the urgency of a work item
type Priority string

// Priority constants (wire-exact, lower-case)
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// IsValid checks if the priority value is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Rank returns the sort position of the priority, high first.
// Unknown priorities sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	}
	return 3
}

// ParsePriority maps a textual priority (case-insensitive) to a Priority.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("invalid priority: %q", s)
	}
	return p, nil
}
