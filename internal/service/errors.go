package service

import (
	"errors"
	"fmt"
)

// Taxonomy of turn-level failures. Every one of these is recovered at the
// turn boundary: it maps to a fixed user-legible message and the turn still
// ends normally. None crash the session.
var (
	// ErrNoCollectionResolved: the entity text referenced no known collection
	ErrNoCollectionResolved = errors.New("no collection resolved")

	// ErrInvalidFieldReference: a stage referenced a field outside the
	// target collection's schema
	ErrInvalidFieldReference = errors.New("invalid field reference")

	// ErrUnsafeOperationRejected: the query resembled a write operation.
	// Hard boundary, not a best-effort filter.
	ErrUnsafeOperationRejected = errors.New("unsafe operation rejected")

	// ErrCollectionNotFound: no target collection could be determined at
	// execution time
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrEmptyResult: the query matched no documents. A normal terminal
	// outcome, surfaced as a plain message, not an error condition.
	ErrEmptyResult = errors.New("no documents matched")

	// ErrCollaboratorUnavailable: the text-completion collaborator failed
	ErrCollaboratorUnavailable = errors.New("completion collaborator unavailable")

	// ErrIterationCeilingExceeded: the per-turn fetch retry cap was hit
	ErrIterationCeilingExceeded = errors.New("iteration ceiling exceeded")
)

// MalformedIntentError reports model output that was JSON-shaped but could
// not be parsed. The offending raw text is attached for diagnostics; it is
// reported to the caller, never silently swallowed into a generic answer.
type MalformedIntentError struct {
	Raw string
}

func (e *MalformedIntentError) Error() string {
	return fmt.Sprintf("malformed intent payload: %s", e.Raw)
}
