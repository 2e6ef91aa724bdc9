package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrActorRequired indicates a mutating call without an authenticated actor.
	ErrActorRequired = errors.New("acting user required")
)
