package engine

import (
	"errors"
	"fmt"

	"github.com/forgecrew/foreman/internal/storage/sqlite"
	"github.com/forgecrew/foreman/internal/types"
)

// Code is a stable, wire-visible error classification. Codes are part of
// the tool contract: clients branch on them, so they never change.
type Code string

// Error codes, grouped by origin.
const (
	// Input validation
	CodeValidationError Code = "ValidationError"

	// State machine
	CodeAlreadyTerminal     Code = "AlreadyTerminal"
	CodeAlreadyBlocked      Code = "AlreadyBlocked"
	CodeIsBlocked           Code = "IsBlocked"
	CodeNotBlocked          Code = "NotBlocked"
	CodeMissingPreviousRole Code = "MissingPreviousRole"
	CodeInvalidRoleFor      Code = "InvalidRoleForTrigger"
	CodeCannotBlockTerminal Code = "CannotBlockTerminal"

	// Gating
	CodeBlockedByDependency Code = "BlockedByDependency"
	CodeGateCheckFailed     Code = "GateCheckFailed"

	// Graph integrity
	CodeCyclicDependency    Code = "CyclicDependency"
	CodeDuplicateDependency Code = "DuplicateDependency"
	CodeSelfDependency      Code = "SelfDependency"

	// Persistence
	CodeNotFound      Code = "NotFound"
	CodeDatabaseError Code = "DatabaseError"
	CodeConflict      Code = "Conflict"

	// Hierarchy/cascade guard
	CodeMaxDepthExceeded Code = "MaxDepthExceeded"
)

// Error is a coded engine error. Blockers is populated for
// BlockedByDependency; Missing and NeedsSummary for GateCheckFailed.
type Error struct {
	Code         Code                `json:"code"`
	Message      string              `json:"message"`
	Blockers     []types.BlockerInfo `json:"blockers,omitempty"`
	Missing      []string            `json:"missing,omitempty"`
	NeedsSummary bool                `json:"needsSummary,omitempty"`
	cause        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// wrapStoreError classifies a storage-layer error into a coded engine error.
// Already-coded errors pass through unchanged.
func wrapStoreError(err error) *Error {
	var engErr *Error
	if errors.As(err, &engErr) {
		return engErr
	}
	switch {
	case sqlite.IsValidation(err):
		return &Error{Code: CodeValidationError, Message: err.Error(), cause: err}
	case sqlite.IsNotFound(err):
		return &Error{Code: CodeNotFound, Message: err.Error(), cause: err}
	case sqlite.IsCycle(err):
		return &Error{Code: CodeCyclicDependency, Message: err.Error(), cause: err}
	case sqlite.IsConflict(err):
		return &Error{Code: CodeConflict, Message: err.Error(), cause: err}
	default:
		return &Error{Code: CodeDatabaseError, Message: err.Error(), cause: err}
	}
}

// CodeOf extracts the classification from any error, mapping uncoded
// errors through the storage taxonomy. Nil returns the empty code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return wrapStoreError(err).Code
}

// AsError converts any error into a coded *Error for wire serialization.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	return wrapStoreError(err)
}
