// Package trapezoid computes a trapezoidal PWM duty profile for six-step
// motor drive: duty ramps linearly up at the start of each commutation
// step, holds flat, and ramps back down at the end, which softens torque
// ripple compared to a square drive. All arithmetic is integer-only with
// guarded division.
package trapezoid

import (
	"bldc-go/pkg/commutator"
)

// DutyBits is the PWM duty resolution. Duty values span [0, DutyMax].
const (
	DutyBits = 10
	DutyMax  = 1<<DutyBits - 1
)

// MaxRampPercent is the upper clamp for the ramp setting; the up and down
// ramps may together cover at most the whole step.
const MaxRampPercent = 50

// Command is the per-tick input to the shaper.
type Command struct {
	// Speed sets the step rate exactly as for the commutation machine;
	// zero stops the shaper and forces duty to zero.
	Speed uint16

	// Forward selects the direction the local step counter advances.
	Forward bool

	// Torque sets the flat-top drive level; only its top DutyBits bits
	// are used.
	Torque uint16

	// RampPercent is the fraction of each step spent ramping, 0-100,
	// clamped internally to MaxRampPercent. Zero disables shaping and
	// yields a square drive at the torque duty.
	RampPercent uint8
}

// Output is the shaper result for one tick.
type Output struct {
	// Duty is the shaped duty value in [0, DutyMax].
	Duty uint16

	// Chop is the PWM comparator output for this tick; it gates the
	// high-side switch bits only.
	Chop bool
}

// stepPeriod derives the step interval from the speed command, identically
// to the open-loop drive scheme.
func stepPeriod(speed uint16) uint32 {
	return uint32(65535-speed) + 1
}

// torqueDuty reduces a 16-bit torque setting to the duty resolution.
func torqueDuty(torque uint16) uint32 {
	return uint32(torque >> (16 - DutyBits))
}

// DutyAt computes the trapezoidal duty for a position within a step. It is
// a pure function of its arguments and is recomputed in full every tick.
// All intermediates are 32-bit so 16-bit inputs cannot overflow.
func DutyAt(position, period uint32, torque uint16, rampPercent uint8) uint16 {
	if rampPercent > MaxRampPercent {
		rampPercent = MaxRampPercent
	}
	full := torqueDuty(torque)
	if rampPercent == 0 {
		return uint16(full)
	}

	rampUp := period * uint32(rampPercent) / 100
	rampDown := period - rampUp

	switch {
	case position < rampUp:
		return uint16(position * full / rampUp)
	case position < rampDown:
		return uint16(full)
	default:
		div := period - rampDown
		if div == 0 {
			// Degenerate zero-width ramp; open rather than divide.
			return 0
		}
		return uint16((period - position) * full / div)
	}
}

// Shaper tracks the step timer and PWM cycle counter for one motor. Like
// the commutation machine it is updated exactly once per tick and owns no
// shared state.
type Shaper struct {
	position   uint32
	step       commutator.Step
	pwmCounter uint32
	duty       uint16
}

// NewShaper returns a shaper at position zero.
func NewShaper() *Shaper {
	return &Shaper{}
}

// Reset returns the shaper to its power-on state.
func (s *Shaper) Reset() {
	*s = Shaper{}
}

// Step returns the shaper's local commutation step.
func (s *Shaper) Step() commutator.Step { return s.step }

// Duty returns the duty computed on the most recent tick.
func (s *Shaper) Duty() uint16 { return s.duty }

// Tick advances the shaper by one tick and returns the duty and chop
// signal for this tick.
func (s *Shaper) Tick(cmd Command) Output {
	if cmd.Speed == 0 {
		s.Reset()
		return Output{}
	}

	period := stepPeriod(cmd.Speed)
	if s.position >= period {
		// Speed changes can leave the position past the new period;
		// treat it as a completed step.
		s.position = 0
		s.step = s.step.Next(cmd.Forward)
	}

	s.duty = DutyAt(s.position, period, cmd.Torque, cmd.RampPercent)
	chop := s.pwmCounter < uint32(s.duty)

	s.position++
	if s.position >= period {
		s.position = 0
		s.step = s.step.Next(cmd.Forward)
	}
	s.pwmCounter++
	if s.pwmCounter > DutyMax {
		s.pwmCounter = 0
	}

	return Output{Duty: s.duty, Chop: chop}
}

// Gate applies the chop signal to a switch pattern: high-side bits are
// ANDed with the PWM comparator, low-side bits pass through unchopped.
func Gate(pattern uint8, chop bool) uint8 {
	if chop {
		return pattern
	}
	return pattern & commutator.LowSideMask
}
