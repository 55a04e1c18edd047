package bemf

// Phase identifies one of the three motor phases, matching the comparator
// bit layout (bit 2 = A, bit 1 = B, bit 0 = C).
type Phase uint8

const (
	PhaseC Phase = iota
	PhaseB
	PhaseA
)

// String returns the phase letter.
func (p Phase) String() string {
	switch p {
	case PhaseA:
		return "A"
	case PhaseB:
		return "B"
	case PhaseC:
		return "C"
	default:
		return "?"
	}
}

// Crossing describes which comparator line, with which polarity, is
// expected to assert at the zero-crossing that precedes the next
// commutation transition.
type Crossing struct {
	// Line is the comparator line of the floating phase for this step.
	Line Phase

	// Inverted selects the falling-polarity crossing: the comparator is
	// expected to read low at the crossing instant.
	Inverted bool
}

// crossingTable maps a commutation step to the floating phase and the
// expected crossing polarity for forward rotation. Each step energizes two
// phases; the third floats and carries the observable back-EMF. Crossing
// polarity alternates step to step, and flips wholesale when the rotation
// direction reverses.
var crossingTable = [6]Crossing{
	0: {Line: PhaseC, Inverted: true},
	1: {Line: PhaseB, Inverted: false},
	2: {Line: PhaseA, Inverted: true},
	3: {Line: PhaseC, Inverted: false},
	4: {Line: PhaseB, Inverted: true},
	5: {Line: PhaseA, Inverted: false},
}

// ExpectedCrossing returns the comparator line and polarity expected at the
// next commutation transition for the given step and direction. Steps
// outside [0,5] return the zero value (line C, direct polarity).
func ExpectedCrossing(step uint8, forward bool) Crossing {
	if step > 5 {
		return Crossing{}
	}
	c := crossingTable[step]
	if !forward {
		c.Inverted = !c.Inverted
	}
	return c
}

// LineAsserted evaluates the selected line of a stabilized comparator
// vector against the expected polarity.
func LineAsserted(sample uint8, c Crossing) bool {
	bit := sample>>uint(c.Line)&1 == 1
	if c.Inverted {
		return !bit
	}
	return bit
}
