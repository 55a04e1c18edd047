// Package commutator implements the sensorless six-step commutation state
// machine: a synchronous controller that self-starts a stationary rotor
// through a forced-align and open-loop ramp sequence, then advances the
// commutation step on back-EMF zero-crossings while running closed loop.
package commutator

// Step is a commutation step index in [0,5]. The range is cyclic but not a
// power of two, so wrapping is done with explicit boundary checks rather
// than modulo arithmetic.
type Step uint8

// StepCount is the number of commutation steps per electrical revolution.
const StepCount = 6

// Next returns the step advanced by one position in the given direction,
// wrapping at the 0/5 boundary.
func (s Step) Next(forward bool) Step {
	if forward {
		if s >= StepCount-1 {
			return 0
		}
		return s + 1
	}
	if s == 0 {
		return StepCount - 1
	}
	return s - 1
}

// Valid reports whether the step is inside the legal range.
func (s Step) Valid() bool {
	return s < StepCount
}
