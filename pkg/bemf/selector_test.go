package bemf

import "testing"

func TestExpectedCrossingForward(t *testing.T) {
	tests := []struct {
		step     uint8
		line     Phase
		inverted bool
	}{
		{0, PhaseC, true},
		{1, PhaseB, false},
		{2, PhaseA, true},
		{3, PhaseC, false},
		{4, PhaseB, true},
		{5, PhaseA, false},
	}

	for _, tt := range tests {
		c := ExpectedCrossing(tt.step, true)
		if c.Line != tt.line || c.Inverted != tt.inverted {
			t.Errorf("step %d: got line %s inverted=%v, want line %s inverted=%v",
				tt.step, c.Line, c.Inverted, tt.line, tt.inverted)
		}
	}
}

func TestExpectedCrossingReverseFlipsPolarity(t *testing.T) {
	for step := uint8(0); step < 6; step++ {
		fwd := ExpectedCrossing(step, true)
		rev := ExpectedCrossing(step, false)
		if fwd.Line != rev.Line {
			t.Errorf("step %d: direction changed the line from %s to %s",
				step, fwd.Line, rev.Line)
		}
		if fwd.Inverted == rev.Inverted {
			t.Errorf("step %d: reverse should flip the polarity", step)
		}
	}
}

func TestExpectedCrossingOutOfRange(t *testing.T) {
	c := ExpectedCrossing(6, true)
	if c != (Crossing{}) {
		t.Errorf("step 6: got %+v, want zero value", c)
	}
}

func TestLineAsserted(t *testing.T) {
	tests := []struct {
		sample uint8
		c      Crossing
		want   bool
	}{
		{0b100, Crossing{Line: PhaseA}, true},
		{0b011, Crossing{Line: PhaseA}, false},
		{0b011, Crossing{Line: PhaseA, Inverted: true}, true},
		{0b010, Crossing{Line: PhaseB}, true},
		{0b010, Crossing{Line: PhaseB, Inverted: true}, false},
		{0b001, Crossing{Line: PhaseC}, true},
		{0b000, Crossing{Line: PhaseC, Inverted: true}, true},
	}

	for _, tt := range tests {
		if got := LineAsserted(tt.sample, tt.c); got != tt.want {
			t.Errorf("LineAsserted(%03b, %s inverted=%v) = %v, want %v",
				tt.sample, tt.c.Line, tt.c.Inverted, got, tt.want)
		}
	}
}

func TestPhaseString(t *testing.T) {
	if PhaseA.String() != "A" || PhaseB.String() != "B" || PhaseC.String() != "C" {
		t.Error("phase names should be A, B, C")
	}
	if Phase(9).String() != "?" {
		t.Error("unknown phase should print ?")
	}
}
