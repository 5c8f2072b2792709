package sync

import "errors"

// Ownership and validation failures short-circuit locally, before any
// network call. Backend-side failures are remote.ErrNotFound and
// remote.ErrTransport.
var (
	ErrUnauthorized = errors.New("sync: acting user is not authorized")
	ErrValidation   = errors.New("sync: invalid input")
)
