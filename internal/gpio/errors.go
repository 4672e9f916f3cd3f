package gpio

import "errors"

// Domain errors for the gpio package.
// Check with errors.Is() in calling code.
var (
	// ErrLineUnavailable is returned when the requested line cannot be
	// found on any candidate chip, or is already claimed by another
	// consumer.
	ErrLineUnavailable = errors.New("gpio: line unavailable")

	// ErrUnsupported is returned by the hardware backend on platforms
	// without the Linux GPIO character device.
	ErrUnsupported = errors.New("gpio: hardware backend unsupported on this platform")

	// ErrClosed is returned when asserting a level on a closed output.
	ErrClosed = errors.New("gpio: output closed")
)
