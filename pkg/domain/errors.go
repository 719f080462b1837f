package domain

import (
	"errors"
	"fmt"
)

// NotFoundError is returned when a referenced entity does not exist.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// PermissionDeniedError is returned when a validator is ineligible for an
// operation, either by policy or because they are not the assignee.
type PermissionDeniedError struct {
	Reason string
}

func (e PermissionDeniedError) Error() string {
	return "permission denied: " + e.Reason
}

// ConflictError is returned when an operation would violate a lifecycle or
// uniqueness invariant: a second validation for an already-covered analysis,
// or a submission against a non-pending validation.
type ConflictError struct {
	Entity EntityType
	ID     string
	Reason string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Reason)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

// IsPermissionDenied reports whether err is (or wraps) a PermissionDeniedError.
func IsPermissionDenied(err error) bool {
	var target PermissionDeniedError
	return errors.As(err, &target)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}
