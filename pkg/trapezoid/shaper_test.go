package trapezoid

import (
	"testing"

	"bldc-go/pkg/commutator"
)

func TestDutyAtRampClamp(t *testing.T) {
	// Settings past the clamp behave exactly like the clamp value.
	for pos := uint32(0); pos < 100; pos += 7 {
		at70 := DutyAt(pos, 100, 0xffff, 70)
		at50 := DutyAt(pos, 100, 0xffff, 50)
		if at70 != at50 {
			t.Errorf("position %d: ramp 70 gives %d, ramp 50 gives %d", pos, at70, at50)
		}
	}
}

func TestDutyAtZeroRampIsSquare(t *testing.T) {
	tests := []struct {
		torque uint16
		want   uint16
	}{
		{0, 0},
		{0xffff, DutyMax},
		{0x8000, 0x200},
		{0x1234, 0x1234 >> 6},
	}
	for _, tt := range tests {
		// Square drive is position independent.
		for _, pos := range []uint32{0, 50, 99} {
			if got := DutyAt(pos, 100, tt.torque, 0); got != tt.want {
				t.Errorf("DutyAt(%d, 100, %#x, 0) = %d, want %d", pos, tt.torque, got, tt.want)
			}
		}
	}
}

func TestDutyAtProfile(t *testing.T) {
	// Period 100, ramp 20%: up over [0,20), flat over [20,80), down over
	// [80,100).
	const period, torque = 100, uint16(0xffff)
	full := uint16(DutyMax)

	tests := []struct {
		position uint32
		want     uint16
	}{
		{0, 0},
		{10, uint16(10 * uint32(full) / 20)},
		{19, uint16(19 * uint32(full) / 20)},
		{20, full},
		{50, full},
		{79, full},
		{80, full}, // (100-80)*full/20
		{90, uint16(10 * uint32(full) / 20)},
		{99, uint16(1 * uint32(full) / 20)},
	}
	for _, tt := range tests {
		if got := DutyAt(tt.position, period, torque, 20); got != tt.want {
			t.Errorf("DutyAt(%d) = %d, want %d", tt.position, got, tt.want)
		}
	}
}

func TestDutyAtMaxRampHasNoFlatTop(t *testing.T) {
	// At the 50% clamp the up ramp meets the down ramp in the middle.
	const period = 200
	mid := DutyAt(100, period, 0xffff, 50)
	if mid != DutyMax {
		t.Errorf("midpoint duty = %d, want %d", mid, DutyMax)
	}
	if got := DutyAt(150, period, 0xffff, 50); got != DutyMax/2 {
		t.Errorf("three-quarter duty = %d, want %d", got, DutyMax/2)
	}
}

func TestDutyAtDegenerateShortPeriod(t *testing.T) {
	// A period so short the ramp rounds to zero width must not divide by
	// zero: the flat top covers the whole step.
	if got := DutyAt(0, 1, 0xffff, 50); got != DutyMax {
		t.Errorf("DutyAt(0, 1, max, 50) = %d, want full duty", got)
	}
	// A position past the period lands on the zero-width down ramp, which
	// must open rather than divide by zero.
	if got := DutyAt(5, 1, 0xffff, 50); got != 0 {
		t.Errorf("DutyAt(5, 1, max, 50) = %d, want 0", got)
	}
}

func TestShaperStopsOnZeroSpeed(t *testing.T) {
	s := NewShaper()
	cmd := Command{Speed: 65436, Forward: true, Torque: 0xffff, RampPercent: 20}
	for i := 0; i < 500; i++ {
		s.Tick(cmd)
	}
	out := s.Tick(Command{})
	if out.Duty != 0 || out.Chop {
		t.Errorf("stop output = %+v, want zero", out)
	}
	if s.Step() != 0 || s.Duty() != 0 {
		t.Error("stop should reset the shaper state")
	}
}

func TestShaperStepAdvance(t *testing.T) {
	s := NewShaper()
	// Speed 65436 gives a period of 100 ticks.
	cmd := Command{Speed: 65436, Forward: true, Torque: 0xffff}
	for i := 0; i < 100; i++ {
		s.Tick(cmd)
	}
	if s.Step() != 1 {
		t.Errorf("step after one period = %d, want 1", s.Step())
	}
	for i := 0; i < 500; i++ {
		s.Tick(cmd)
	}
	if s.Step() != 0 {
		t.Errorf("step after six periods = %d, want 0 (wrapped)", s.Step())
	}
}

func TestShaperChopDutyCycle(t *testing.T) {
	s := NewShaper()
	// Long period and square drive keep the duty constant through whole
	// PWM cycles.
	cmd := Command{Speed: 0x8000, Forward: true, Torque: 0x8000}
	want := int(uint32(0x8000) >> 6)

	chops := 0
	for i := 0; i <= DutyMax; i++ {
		if s.Tick(cmd).Chop {
			chops++
		}
	}
	if chops != want {
		t.Errorf("chop asserted %d of %d ticks, want %d", chops, DutyMax+1, want)
	}
}

func TestGate(t *testing.T) {
	p := commutator.Pattern(0)
	if got := Gate(p, true); got != p {
		t.Errorf("Gate(chop on) = %06b, want %06b", got, p)
	}
	got := Gate(p, false)
	if got&commutator.HighSideMask != 0 {
		t.Errorf("Gate(chop off) left high-side bits set: %06b", got)
	}
	if got&commutator.LowSideMask != p&commutator.LowSideMask {
		t.Errorf("Gate(chop off) disturbed low-side bits: %06b", got)
	}
}
