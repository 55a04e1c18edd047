package commutator

import "testing"

func TestStepNextForward(t *testing.T) {
	want := []Step{1, 2, 3, 4, 5, 0}
	s := Step(0)
	for i, w := range want {
		s = s.Next(true)
		if s != w {
			t.Fatalf("advance %d: step = %d, want %d", i+1, s, w)
		}
	}
}

func TestStepNextReverse(t *testing.T) {
	want := []Step{5, 4, 3, 2, 1, 0}
	s := Step(0)
	for i, w := range want {
		s = s.Next(false)
		if s != w {
			t.Fatalf("retreat %d: step = %d, want %d", i+1, s, w)
		}
	}
}

func TestStepNextClampsOutOfRange(t *testing.T) {
	// A corrupted step must not walk further out of range.
	if got := Step(9).Next(true); got != 0 {
		t.Errorf("Step(9).Next(true) = %d, want 0", got)
	}
}

func TestStepValid(t *testing.T) {
	for s := Step(0); s < StepCount; s++ {
		if !s.Valid() {
			t.Errorf("Step(%d).Valid() = false, want true", s)
		}
	}
	if Step(6).Valid() {
		t.Error("Step(6).Valid() = true, want false")
	}
}
