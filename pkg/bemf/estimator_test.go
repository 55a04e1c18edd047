package bemf

import "testing"

// feedPulse drives one low-high-low pulse of the given high width and
// returns the measurement from the falling tick.
func feedPulse(e *IntervalEstimator, highTicks int) Measurement {
	e.Tick(false)
	for i := 0; i < highTicks; i++ {
		e.Tick(true)
	}
	return e.Tick(false)
}

func TestEstimatorPulseWidth(t *testing.T) {
	// An N-tick high pulse measures N+1: the counted high ticks plus the
	// falling tick.
	for _, n := range []int{1, 2, 5, 100} {
		e := NewIntervalEstimator()
		m := feedPulse(e, n)
		if !m.Valid {
			t.Fatalf("pulse of %d high ticks: no valid measurement", n)
		}
		if m.Period != uint32(n+1) {
			t.Errorf("pulse of %d high ticks: Period = %d, want %d", n, m.Period, n+1)
		}
	}
}

func TestEstimatorValidOneTick(t *testing.T) {
	e := NewIntervalEstimator()
	m := feedPulse(e, 3)
	if !m.Valid {
		t.Fatal("falling tick should latch a valid measurement")
	}
	// The tick after the fall must not report valid again.
	if m := e.Tick(false); m.Valid {
		t.Error("Valid should last exactly one tick")
	}
}

func TestEstimatorIndependentPulses(t *testing.T) {
	e := NewIntervalEstimator()
	if m := feedPulse(e, 10); m.Period != 11 {
		t.Errorf("first pulse Period = %d, want 11", m.Period)
	}
	// A later, shorter pulse must not inherit anything from the first.
	if m := feedPulse(e, 2); m.Period != 3 {
		t.Errorf("second pulse Period = %d, want 3", m.Period)
	}
	if e.LastPeriod() != 3 {
		t.Errorf("LastPeriod() = %d, want 3", e.LastPeriod())
	}
}

func TestEstimatorNoPulseNoMeasurement(t *testing.T) {
	e := NewIntervalEstimator()
	for i := 0; i < 50; i++ {
		if m := e.Tick(false); m.Valid {
			t.Fatal("flat low input should never produce a measurement")
		}
	}
	if e.LastPeriod() != 0 {
		t.Errorf("LastPeriod() = %d, want 0 before any pulse", e.LastPeriod())
	}
}

func TestEstimatorReset(t *testing.T) {
	e := NewIntervalEstimator()
	feedPulse(e, 5)
	e.Reset()
	if e.LastPeriod() != 0 {
		t.Errorf("LastPeriod() after Reset = %d, want 0", e.LastPeriod())
	}
	// A pulse spanning the reset must not be double counted: the line is
	// high at reset, so the estimator sees a fresh rising edge.
	e.Tick(true)
	e.Tick(true)
	if m := e.Tick(false); m.Period != 3 {
		t.Errorf("post-reset pulse Period = %d, want 3", m.Period)
	}
}
