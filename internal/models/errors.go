package models

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the impactor identifier has no physical or kinematic
// data at all. It is the only resolver error that fails a whole session.
var ErrNotFound = errors.New("no physical or kinematic data for identifier")

// ErrSessionNotFound indicates an unknown extraction session id.
var ErrSessionNotFound = errors.New("extraction session not found")

// ValidationError reports malformed or out-of-range caller input. It is
// surfaced directly and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SourceError reports a single external provider failure. It is retried per
// policy and then absorbed via the source's documented fallback; it never
// fails a session on its own.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// ComputationError reports a violated internal invariant inside the physics
// pipeline (e.g. non-finite energy). It indicates a defect, not user error.
type ComputationError struct {
	Stage  string
	Reason string
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("computation failed at %s: %s", e.Stage, e.Reason)
}
