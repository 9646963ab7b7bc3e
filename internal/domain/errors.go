package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrValidation   = errors.New("validation failed")
	ErrInvalidState = errors.New("invalid state")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrVersionNotFound is returned when a version id does not belong to the node it was
	// requested for. It matches ErrNotFound.
	ErrVersionNotFound = fmt.Errorf("version %w", ErrNotFound)
)

// NodeNotFoundError reports an unresolvable node id.
type NodeNotFoundError struct {
	NodeID int64
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("node %d: not found", e.NodeID)
}

// Is allows errors.Is() to match against ErrNotFound
func (e *NodeNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// InvalidStateError reports an operation attempted against a node whose state forbids it,
// e.g. a missing writer or publishing a trashed document.
type InvalidStateError struct {
	NodeID int64
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("node %d: %s", e.NodeID, e.Reason)
}

// Is allows errors.Is() to match against ErrInvalidState
func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// ConflictError represents a resource conflict with details about the existing resource
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // Type of resource (node, version)
	ResourceID   string // ID of the existing/conflicting resource
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return e.Message
}

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
