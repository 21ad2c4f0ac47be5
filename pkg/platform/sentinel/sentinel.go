package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// so services can translate them into domain errors with entity context.
//
//   - ErrNotFound: entity does not exist in the table
//   - ErrConflict: unique key already taken
//   - ErrNoTransaction: a write was attempted outside a unit of work
//   - ErrUnavailable: backing store temporarily unavailable
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrNoTransaction = errors.New("no transaction in context")
	ErrUnavailable   = errors.New("unavailable")
)
