package pulse

import "errors"

// Domain errors for the pulse package.
// Check with errors.Is() in calling code.
var (
	// ErrInvalidInput is returned for malformed or out-of-range
	// attribute writes: non-integer values, negative values, status
	// values other than 0/1, or an unrecognised attribute name.
	// The line's state is unchanged when this is returned.
	ErrInvalidInput = errors.New("pulse: invalid input")

	// ErrLineExists is returned when registering a name that a live
	// line already holds.
	ErrLineExists = errors.New("pulse: line already exists")

	// ErrLineNotFound is returned when looking up a name that is
	// absent or already withdrawn.
	ErrLineNotFound = errors.New("pulse: line not found")
)
