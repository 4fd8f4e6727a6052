package scoreboard

import "errors"

// ErrNoSnapshot is returned by a Repository that has no stored state yet
var ErrNoSnapshot = errors.New("no stored match state")

// ErrInvalidUpdate is returned when an update request is malformed or carries
// an unknown enum value. The store is left untouched.
var ErrInvalidUpdate = errors.New("invalid update")

// ErrPersist is returned when an accepted update could not be saved. The
// in-memory state already reflects the update.
var ErrPersist = errors.New("failed to persist match state")
