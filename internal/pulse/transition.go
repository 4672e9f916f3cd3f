package pulse

import "github.com/vcstech/pulseline-core/internal/gpio"

// nextState is the pure duty-cycle transition: it consumes one elapsed
// tick and returns the next output level and counter position.
//
// The counter walks [0, onCycles) in the high phase and
// [onCycles, onCycles+offCycles) in the low phase. Boundary policies
// are deliberate and load-bearing for signal timing:
//
//   - offCycles == 0 never leaves the high phase; the counter resets at
//     the on-boundary and the line pulses "always high".
//   - Re-entering the high phase seeds the counter at 1, not 0: the
//     tick that asserts the level already counts as one elapsed high
//     tick.
//   - onCycles == 0 is legal; the high phase transitions out on the
//     very first tick.
//
// A low phase with offCycles == 0 cannot be reached through the
// validated attribute store; hitting it means an invariant was bypassed
// and the function panics.
func nextState(level gpio.Level, counter, onCycles, offCycles int) (gpio.Level, int) {
	if level == gpio.High {
		if counter == onCycles {
			if offCycles > 0 {
				return gpio.Low, counter + 1
			}
			return gpio.High, 0
		}
		return gpio.High, counter + 1
	}

	if offCycles == 0 {
		panic("pulse: low phase entered with zero off cycles")
	}
	if counter == onCycles+offCycles {
		return gpio.High, 1
	}
	return gpio.Low, counter + 1
}
