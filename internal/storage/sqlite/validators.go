package sqlite

import (
	"fmt"

	"github.com/forgecrew/foreman/internal/types"
)

// validateTitle validates a title value
func validateTitle(value interface{}) error {
	if title, ok := value.(string); ok {
		if len(title) == 0 {
			return fmt.Errorf("title must not be empty")
		}
	}
	return nil
}

// validateSummary validates a summary value
func validateSummary(value interface{}) error {
	if summary, ok := value.(string); ok {
		if len(summary) > types.MaxSummaryLength {
			return fmt.Errorf("summary must be %d characters or less (got %d)", types.MaxSummaryLength, len(summary))
		}
	}
	return nil
}

// validateRole validates a role value
func validateRole(value interface{}) error {
	switch v := value.(type) {
	case string:
		if !types.Role(v).IsValid() {
			return fmt.Errorf("invalid role: %s", v)
		}
	case types.Role:
		if !v.IsValid() {
			return fmt.Errorf("invalid role: %s", v)
		}
	}
	return nil
}

// validatePreviousRole validates a previous_role value; nil clears it
func validatePreviousRole(value interface{}) error {
	role := ""
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		role = v
	case types.Role:
		role = string(v)
	}
	switch types.Role(role) {
	case "", types.RoleQueue, types.RoleWork, types.RoleReview:
		return nil
	}
	return fmt.Errorf("invalid previous_role: %s", role)
}

// validatePriority validates a priority value
func validatePriority(value interface{}) error {
	switch v := value.(type) {
	case string:
		if !types.Priority(v).IsValid() {
			return fmt.Errorf("invalid priority: %s", v)
		}
	case types.Priority:
		if !v.IsValid() {
			return fmt.Errorf("invalid priority: %s", v)
		}
	}
	return nil
}

// validateComplexity validates a complexity value
func validateComplexity(value interface{}) error {
	if c, ok := value.(int); ok {
		if c < 1 || c > 10 {
			return fmt.Errorf("complexity must be between 1 and 10 (got %d)", c)
		}
	}
	return nil
}

// validateDepth validates a depth value
func validateDepth(value interface{}) error {
	if d, ok := value.(int); ok {
		if d < 0 || d > types.MaxDepth {
			return fmt.Errorf("depth must be between 0 and %d (got %d)", types.MaxDepth, d)
		}
	}
	return nil
}

// fieldValidators maps column names to their validation functions
var fieldValidators = map[string]func(interface{}) error{
	"title":         validateTitle,
	"summary":       validateSummary,
	"role":          validateRole,
	"previous_role": validatePreviousRole,
	"priority":      validatePriority,
	"complexity":    validateComplexity,
	"depth":         validateDepth,
}

// validateFieldUpdate validates a field update value
func validateFieldUpdate(key string, value interface{}) error {
	if validator, ok := fieldValidators[key]; ok {
		return validator(value)
	}
	return nil
}
