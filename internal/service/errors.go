package service

import (
	"fmt"

	"returns-service/internal/model"
)

// InvalidTransitionError is returned when the target status is not a direct
// successor of the current status. The action panel never offers such a
// transition, so hitting this means a stale client or a handcrafted request.
type InvalidTransitionError struct {
	From model.ReturnStatus
	To   model.ReturnStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid return status transition from %s to %s", e.From, e.To)
}

// InvalidStateError is returned when an auxiliary operation (tracking, notes)
// is attempted in a status that does not permit it.
type InvalidStateError struct {
	Op     string
	Status model.ReturnStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s is not permitted while status is %s", e.Op, e.Status)
}

// ValidationError is returned when a required payload field is missing or out
// of range. Surfaced as an inline field error, the transition is not applied.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NotFoundError is returned when a reference does not resolve to an entity.
type NotFoundError struct {
	Resource string
	Ref      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.Ref)
}

// PersistenceError wraps a storage failure. The entity is left in its
// last-known-good state; the operator may simply retry.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
