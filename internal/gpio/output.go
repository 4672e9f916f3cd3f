package gpio

// Level is a logic level asserted on a line.
type Level int

const (
	// Low is the deasserted logic level.
	Low Level = 0
	// High is the asserted logic level.
	High Level = 1
)

// String returns "high" or "low".
func (l Level) String() string {
	if l == High {
		return "high"
	}
	return "low"
}

// Int returns the level as 0 or 1, the wire representation used by the
// attribute surfaces.
func (l Level) Int() int {
	if l == High {
		return 1
	}
	return 0
}

// Output is an exclusively owned handle to one binary output line.
//
// SetLevel must not block indefinitely; it is called with the owning
// line's lock held on every timer tick. Close releases the line and is
// idempotent: the owner calls it exactly once at teardown, but a second
// call must be harmless.
type Output interface {
	SetLevel(level Level) error
	Close() error
}

// Request describes the line an Output should be opened for.
type Request struct {
	// Chip is the character device path (e.g. /dev/gpiochip0).
	// Empty means scan all chips for the named line.
	Chip string

	// Line is the kernel line name (e.g. "GPIO18"). Takes precedence
	// over Offset when set.
	Line string

	// Offset is the line offset on Chip. Used when Line is empty.
	Offset int

	// ActiveLow inverts the electrical polarity of the line.
	ActiveLow bool

	// Consumer is the consumer label attached to the line request.
	Consumer string
}
