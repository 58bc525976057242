package workout

import "errors"

// Validation errors, raised by entry normalization before any store call.
var (
	ErrEmptyExerciseName = errors.New("workout: exercise name is empty")
	ErrInvalidSets       = errors.New("workout: sets must be a positive whole number")
	ErrInvalidReps       = errors.New("workout: reps must be a positive whole number")
	ErrInvalidWeights    = errors.New("workout: weights must contain at least one positive number")
)

// Lifecycle errors, raised by the session state machine on illegal
// transitions. The machine re-validates even when the UI already disabled
// the corresponding control.
var (
	ErrSessionAlreadyActive  = errors.New("workout: a session is already active")
	ErrNoActiveSession       = errors.New("workout: no active session")
	ErrCannotDiscardNonEmpty = errors.New("workout: cannot discard a session that has entries")

	// ErrConfirmRequired is the soft gate on finalizing a session with zero
	// entries: the caller retries with force once the user confirmed.
	ErrConfirmRequired = errors.New("workout: finalizing an empty session requires confirmation")
)
