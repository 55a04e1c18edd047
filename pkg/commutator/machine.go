package commutator

import (
	"bldc-go/pkg/bemf"
)

// State is the commutation controller state.
type State int

const (
	// StateIdle is the powered-down rest state; output is all-open.
	StateIdle State = iota

	// StateAlign forces step 0 for a fixed time so the rotor settles on a
	// known pole before spinning.
	StateAlign

	// StateRampup accelerates the rotor open loop on a shrinking step
	// schedule until back-EMF is strong enough to commutate on.
	StateRampup

	// StateRunning commutates closed loop on detected zero-crossings.
	StateRunning

	// StateError is entered on stall or lost synchronization; output is
	// all-open and only an explicit stop command leaves it.
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAlign:
		return "align"
	case StateRampup:
		return "rampup"
	case StateRunning:
		return "running"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Fixed timing constants, in ticks.
const (
	// AlignTime is how long the rotor is held on the alignment pattern.
	AlignTime = 25000

	// StartupSteps is the number of open-loop steps before handing off to
	// closed-loop commutation.
	StartupSteps = 30

	// MinPeriod is the shortest allowed inter-step interval.
	MinPeriod = 500

	// MaxPeriod is the longest allowed inter-step interval; exceeding it
	// while running means a stalled rotor or lost back-EMF signal.
	MaxPeriod = 50000

	// BemfDelay is the blanking window after a commutation step during
	// which comparator activity is ignored as switching transient.
	BemfDelay = 150
)

// Command is the per-tick operator input to the state machine.
type Command struct {
	// Speed commands the target step rate; larger values mean shorter
	// step periods. Zero commands a stop and overrides everything else.
	Speed uint16

	// Forward selects the rotation direction.
	Forward bool
}

// Machine is the sensorless commutation state machine. All state updates
// happen in Tick, exactly once per tick of the controlling time base. A
// Machine belongs to one tick domain and is not safe for concurrent use.
type Machine struct {
	state State
	step  Step

	stateTimer        uint32
	bemfTimer         uint32
	commutationPeriod uint32
	lastPeriod        uint32
	startupSteps      uint32
}

// NewMachine returns a machine in the Idle state.
func NewMachine() *Machine {
	return &Machine{}
}

// Reset forces the machine to its power-on state.
func (m *Machine) Reset() {
	*m = Machine{}
}

// State returns the current controller state.
func (m *Machine) State() State { return m.state }

// Step returns the current commutation step.
func (m *Machine) Step() Step { return m.step }

// CommutationPeriod returns the current inter-step interval estimate.
func (m *Machine) CommutationPeriod() uint32 { return m.commutationPeriod }

// LastPeriod returns the most recent observed or ramp-derived step period.
func (m *Machine) LastPeriod() uint32 { return m.lastPeriod }

// startPeriod derives the initial step period from the speed command:
// larger speed, shorter period. The result is clamped into the legal
// period range.
func startPeriod(speed uint16) uint32 {
	return clampPeriod(uint32(65535-speed) + 1)
}

func clampPeriod(p uint32) uint32 {
	if p < MinPeriod {
		return MinPeriod
	}
	if p > MaxPeriod {
		return MaxPeriod
	}
	return p
}

// Tick advances the machine by one tick. comparators is the stabilized
// (synchronizer-delayed) 3-line vector. The returned value is the switch
// pattern to drive for this tick.
func (m *Machine) Tick(cmd Command, comparators uint8) uint8 {
	// A stop command overrides any in-progress sequence, including the
	// Error state, which has no other exit.
	if cmd.Speed == 0 {
		m.Reset()
		return PatternOff
	}

	switch m.state {
	case StateIdle:
		m.step = 0
		m.stateTimer = 0
		m.bemfTimer = 0
		m.commutationPeriod = startPeriod(cmd.Speed)
		m.state = StateAlign

	case StateAlign:
		m.stateTimer++
		if m.stateTimer >= AlignTime {
			m.stateTimer = 0
			m.startupSteps = 0
			m.state = StateRampup
		}

	case StateRampup:
		m.stateTimer++
		if m.stateTimer >= m.commutationPeriod {
			m.stateTimer = 0
			m.bemfTimer = 0
			m.startupSteps++
			m.step = m.step.Next(cmd.Forward)
			if m.commutationPeriod > MinPeriod {
				// Geometric acceleration ramp, about 3% per step.
				m.commutationPeriod = clampPeriod(m.commutationPeriod - m.commutationPeriod>>5)
			}
			if m.startupSteps >= StartupSteps {
				m.lastPeriod = m.commutationPeriod
				m.state = StateRunning
			}
		}

	case StateRunning:
		m.bemfTimer++
		if m.bemfTimer > MaxPeriod {
			// Stalled rotor or lost back-EMF; either way synchronization
			// is gone and the output must open.
			m.step = 0
			m.state = StateError
			break
		}
		if m.bemfDetected(cmd.Forward, comparators) && m.bemfTimer >= m.lastPeriod>>1 {
			m.step = m.step.Next(cmd.Forward)
			m.lastPeriod = m.bemfTimer
			m.bemfTimer = 0
		}

	case StateError:
		m.step = 0
	}

	return m.pattern()
}

// bemfDetected evaluates the expected zero-crossing line for the current
// step against the stabilized comparator vector. Detection is suppressed
// inside the post-commutation blanking window, which rejects switching
// transients.
func (m *Machine) bemfDetected(forward bool, comparators uint8) bool {
	if m.bemfTimer <= BemfDelay {
		return false
	}
	c := bemf.ExpectedCrossing(uint8(m.step), forward)
	return bemf.LineAsserted(comparators, c)
}

// pattern maps the current state and step to the switch output.
func (m *Machine) pattern() uint8 {
	switch m.state {
	case StateIdle, StateError:
		return PatternOff
	default:
		return Pattern(m.step)
	}
}
