package pulse

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vcstech/pulseline-core/internal/gpio"
)

// afterFunc is the timer seam; tests replace it to drive ticks
// deterministically.
var afterFunc = time.AfterFunc

// degradedThreshold is the number of consecutive failed level
// assertions after which a line is reported degraded.
const degradedThreshold = 3

// Logger defines the logging interface used by the pulse package.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Line is one managed output line: the entity holding the duty-cycle
// state machine and the exclusively owned output capability.
//
// All mutable fields are guarded by mu. The reference count is owned by
// the Registry and mutated only under the registry lock.
type Line struct {
	name   string
	output gpio.Output
	tps    int // clock resolution, ticks per second
	logger Logger

	// onDegraded, if set, is invoked (outside mu) when consecutive
	// output assertion failures cross degradedThreshold.
	onDegraded func(name string, err error)

	mu          sync.Mutex
	enabled     bool
	periodTicks int
	onCycles    int
	offCycles   int
	counter     int
	level       gpio.Level

	// timer is the armed one-shot, nil when disarmed. gen is bumped on
	// every arm and cancel; a callback carrying a stale generation is
	// discarded, which makes cancellation effective the moment the
	// line lock is released.
	timer *time.Timer
	gen   uint64

	// failures counts consecutive SetLevel errors.
	failures int

	// refs and withdrawn are guarded by the owning Registry's lock.
	refs      int
	withdrawn bool
}

func newLine(name string, output gpio.Output, tps int, logger Logger) *Line {
	return &Line{
		name:      name,
		output:    output,
		tps:       tps,
		logger:    logger,
		level:     gpio.Low,
		onCycles:  defaultOnCycles,
		offCycles: defaultOffCycles,
		refs:      1, // the registry's own reference
	}
}

// Name returns the line's immutable identifying name.
func (l *Line) Name() string { return l.name }

// Snapshot returns a copy of the line's externally visible state.
func (l *Line) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		Name:        l.name,
		Enabled:     l.enabled,
		Freq:        l.freqLocked(),
		OnCycles:    l.onCycles,
		OffCycles:   l.offCycles,
		Level:       l.level.Int(),
		PeriodTicks: l.periodTicks,
	}
}

// ReadAttr formats the named attribute as a base-10 integer with a
// trailing newline. Returns ErrInvalidInput for an unrecognised name.
func (l *Line) ReadAttr(attr string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var v int
	switch attr {
	case AttrStatus:
		if l.enabled {
			v = 1
		}
	case AttrFreq:
		v = l.freqLocked()
	case AttrOnCycles:
		v = l.onCycles
	case AttrOffCycles:
		v = l.offCycles
	default:
		return "", fmt.Errorf("%w: unknown attribute %q", ErrInvalidInput, attr)
	}
	return strconv.Itoa(v) + "\n", nil
}

// WriteAttr validates and applies one attribute write. The value must
// be a base-10 non-negative integer (a trailing newline is tolerated,
// matching the one-shot write contract of the exposing layers).
//
// Every successful write resets the counter to 0, restarting the
// current phase from scratch: a line mid LOW phase stays low for a
// full on+off count before the next high. Status and freq writes
// additionally force the level; cycle-count writes do not. On error
// the line's state is unchanged.
//
// Returns the number of bytes consumed, which is the full input on
// success regardless of trailing content.
func (l *Line) WriteAttr(attr, value string) (int, error) {
	v, err := parseAttrValue(value)
	if err != nil {
		return 0, err
	}

	l.mu.Lock()
	switch attr {
	case AttrStatus:
		if v != 0 && v != 1 {
			l.mu.Unlock()
			return 0, fmt.Errorf("%w: status must be 0 or 1, got %d", ErrInvalidInput, v)
		}
		l.counter = 0
		l.applyStatusLocked(v == 1)
	case AttrFreq:
		l.counter = 0
		l.setFrequencyLocked(v)
	case AttrOnCycles:
		l.counter = 0
		l.onCycles = v
	case AttrOffCycles:
		l.counter = 0
		l.offCycles = v
	default:
		l.mu.Unlock()
		return 0, fmt.Errorf("%w: unknown attribute %q", ErrInvalidInput, attr)
	}
	l.mu.Unlock()

	l.logger.Debug("attribute written", "line", l.name, "attr", attr, "value", v)
	return len(value), nil
}

// parseAttrValue parses a base-10 non-negative integer attribute value.
func parseAttrValue(value string) (int, error) {
	s := strings.TrimRight(value, "\n")
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: value must be a base-10 integer", ErrInvalidInput)
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: value must be non-negative", ErrInvalidInput)
	}
	return v, nil
}

// applyStatusLocked applies a status write.
//
// Disabling cancels the timer and forces the output low. Enabling
// asserts high immediately; if a period is configured the timer is
// armed to fire at once so the duty cycle starts fresh from the
// write instant.
func (l *Line) applyStatusLocked(enable bool) {
	if !enable {
		l.cancelLocked()
		l.enabled = false
		l.level = gpio.Low
		l.assertLocked()
		return
	}

	l.level = gpio.High
	l.assertLocked()
	l.enabled = true
	if l.periodTicks > 0 {
		l.armLocked(0)
	}
}

// setFrequencyLocked translates a requested frequency into periodTicks,
// clamped to the clock resolution, and reconciles the timer with the
// new period.
//
// freq <= 0 means steady level: the timer is cancelled and the line
// holds whatever level it last had. A positive freq above the clock's
// ticks-per-second cannot be met and is clamped, never producing a
// zero interval.
func (l *Line) setFrequencyLocked(freq int) {
	if freq > l.tps {
		l.logger.Warn("requested frequency exceeds clock resolution, clamping",
			"line", l.name, "freq", freq, "resolution", l.tps)
		freq = l.tps
	}
	if freq > 0 {
		l.periodTicks = l.tps / freq
	} else {
		l.periodTicks = 0
	}

	if !l.enabled {
		return
	}

	// Enabled line: start the cycle fresh from a high assert, arming
	// or disarming to match the new period.
	l.level = gpio.High
	l.assertLocked()
	if l.periodTicks > 0 {
		l.armLocked(0)
	} else {
		l.cancelLocked()
	}
}

// freqLocked derives the effective frequency from the period; 0 when no
// period is configured.
func (l *Line) freqLocked() int {
	if l.periodTicks == 0 {
		return 0
	}
	return l.tps / l.periodTicks
}

// tick advances the state machine by one elapsed timer interval.
// Invoked by the armed one-shot; gen discards callbacks that lost a
// race with cancellation or rearming.
func (l *Line) tick(gen uint64) {
	l.mu.Lock()
	if gen != l.gen || !l.enabled || l.periodTicks == 0 {
		l.mu.Unlock()
		return
	}

	l.level, l.counter = nextState(l.level, l.counter, l.onCycles, l.offCycles)

	// Apply the level on every tick, transition or not, then re-arm
	// one interval from now. Measuring from the current firing absorbs
	// scheduler jitter instead of accumulating it.
	degraded := l.assertLocked()
	l.armLocked(l.intervalLocked())
	l.mu.Unlock()

	if degraded != nil && l.onDegraded != nil {
		l.onDegraded(l.name, degraded)
	}
}

// assertLocked drives the current level onto the output. Failures are
// logged and counted; the returned error is non-nil only on the tick
// that crosses the degraded threshold.
func (l *Line) assertLocked() error {
	err := l.output.SetLevel(l.level)
	if err == nil {
		l.failures = 0
		return nil
	}

	l.failures++
	l.logger.Error("level assertion failed",
		"line", l.name, "level", l.level.String(), "failures", l.failures, "error", err)
	if l.failures == degradedThreshold {
		return err
	}
	return nil
}

// intervalLocked converts periodTicks into a wall-clock interval.
func (l *Line) intervalLocked() time.Duration {
	return time.Duration(l.periodTicks) * time.Second / time.Duration(l.tps)
}

// armLocked schedules the next tick after d, superseding any armed
// timer. The stored generation invalidates older callbacks.
func (l *Line) armLocked(d time.Duration) {
	if l.timer != nil {
		l.timer.Stop()
	}
	l.gen++
	gen := l.gen
	l.timer = afterFunc(d, func() { l.tick(gen) })
}

// cancelLocked disarms the timer. Once the caller releases the line
// lock, no further tick for this line will begin: a callback that
// already fired blocks on the lock and is then discarded by the
// generation check, so cancellation observed under the lock is
// synchronous with any in-flight invocation.
func (l *Line) cancelLocked() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.gen++
}

// settingsLocked returns the persisted portion of the line's state.
func (l *Line) settingsLocked() Settings {
	return Settings{
		Enabled:   l.enabled,
		Freq:      l.freqLocked(),
		OnCycles:  l.onCycles,
		OffCycles: l.offCycles,
	}
}

// Settings returns the line's current control-attribute values.
func (l *Line) Settings() Settings {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.settingsLocked()
}

// teardown runs the last-release cleanup: cancel any armed timer,
// force the output low and release it. The output Close happens
// outside the line lock since it may block.
func (l *Line) teardown() {
	l.mu.Lock()
	l.cancelLocked()
	l.enabled = false
	l.level = gpio.Low
	if err := l.output.SetLevel(gpio.Low); err != nil {
		l.logger.Warn("forcing output low at teardown failed", "line", l.name, "error", err)
	}
	out := l.output
	l.mu.Unlock()

	if err := out.Close(); err != nil {
		l.logger.Warn("releasing output failed", "line", l.name, "error", err)
	}
}
