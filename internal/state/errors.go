package state

import "errors"

var (
	// ErrEntityNotFound is returned when an entity ID has no recorded state.
	ErrEntityNotFound = errors.New("state: entity not found")

	// ErrInvalidEntityID is returned for IDs not shaped as domain.object_id.
	ErrInvalidEntityID = errors.New("state: invalid entity id")
)
