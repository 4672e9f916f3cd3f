// Package gpio provides the output-capability port used by the pulse
// engine: a minimal interface for asserting a logic level on a physical
// (or simulated) GPIO line.
//
// Two backends are provided:
//   - gpiocdev: drives real lines through the Linux GPIO character
//     device (built on linux only).
//   - sim: an in-memory backend that records asserted levels, used for
//     development on non-Linux hosts and throughout the test suite.
//
// Levels are logic levels, not voltage levels: a line requested with
// ActiveLow inverts the electrical polarity in the kernel, so High
// always means "asserted" from the caller's point of view.
package gpio
