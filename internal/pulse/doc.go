// Package pulse implements the per-line pulse engine: the line entity,
// the duty-cycle state machine driven by a self-rescheduling one-shot
// timer, the frequency-to-period translator, the control attribute
// store, and the reference-counted line registry.
//
// A line is one independently controlled binary output. While enabled
// with a non-zero period, a timer tick advances a counter through the
// cycle: the output is driven high for on_cycles consecutive ticks,
// then low for off_cycles ticks, repeating forever. Writing any control
// attribute restarts the cycle from the high phase.
//
// # Concurrency
//
// Each line carries a single mutex held across the whole
// read-compute-apply unit of a tick or an attribute write, so the two
// can never interleave into a torn state. Output level assertions are
// non-blocking by the gpio.Output contract and happen under that lock;
// output release (Close) happens outside it. Timer cancellation is
// synchronous: the canceller takes the line lock, so it cannot return
// while a tick is mid-flight, and a late-firing callback is discarded
// by a generation check.
//
// The registry's name-to-line map has its own lock, separate from the
// per-line locks. Reference counts are mutated only under the registry
// lock; the last release runs teardown (timer cancelled, output forced
// low and closed exactly once, entry removed).
package pulse
