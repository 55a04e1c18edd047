package commutator

// Switch pattern bit layout: bits [5:3] are the high-side switches for
// phases A, B, C and bits [2:0] the corresponding low-side switches.
const (
	HighSideMask = 0x38
	LowSideMask  = 0x07
	PatternMask  = HighSideMask | LowSideMask
)

// PatternOff is the all-switches-open output driven in Idle and Error.
const PatternOff uint8 = 0

// patternTable holds the six-step switch patterns. Each step closes one
// high-side and one low-side switch on different phases; the third phase
// floats so its back-EMF is observable.
var patternTable = [StepCount]uint8{
	0: 0b100010, // A high, B low
	1: 0b100001, // A high, C low
	2: 0b010001, // B high, C low
	3: 0b010100, // B high, A low
	4: 0b001100, // C high, A low
	5: 0b001010, // C high, B low
}

// Pattern returns the switch pattern for a step. Out-of-range steps return
// the all-open pattern.
func Pattern(s Step) uint8 {
	if !s.Valid() {
		return PatternOff
	}
	return patternTable[s]
}
