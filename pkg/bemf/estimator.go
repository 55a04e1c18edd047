package bemf

// Measurement is one completed interval measurement from the estimator.
type Measurement struct {
	// Period is the length of the high pulse in ticks, including the tick
	// on which the falling edge was observed.
	Period uint32

	// Valid is true for exactly the one tick on which Period was latched.
	Valid bool
}

// IntervalEstimator measures how long a comparator line stays asserted.
// It consumes one boolean sample per tick and reports the pulse width on
// the tick the line falls. Successive pulses are measured independently;
// no state carries over between them.
//
// The estimator is a diagnostic service (speed readout, telemetry). The
// commutation state machine runs its own interval timers and does not
// depend on it.
type IntervalEstimator struct {
	prev        bool
	highCounter uint32
	lastPeriod  uint32
}

// NewIntervalEstimator returns an estimator in its reset state.
func NewIntervalEstimator() *IntervalEstimator {
	return &IntervalEstimator{}
}

// Tick consumes one sample and returns the measurement state for this tick.
// Measurement.Period is only meaningful on ticks where Valid is true.
func (e *IntervalEstimator) Tick(sample bool) Measurement {
	m := Measurement{Period: e.lastPeriod}

	switch {
	case sample && !e.prev:
		// Rising edge: restart the width counter. The rising tick itself
		// is part of the pulse.
		e.highCounter = 1
	case !sample && e.prev:
		// Falling edge: the pulse spanned the counted high ticks plus the
		// tick on which the fall is observed.
		e.lastPeriod = e.highCounter + 1
		m.Period = e.lastPeriod
		m.Valid = true
	case sample:
		e.highCounter++
	}

	e.prev = sample
	return m
}

// LastPeriod returns the most recently latched pulse width, or zero if no
// pulse has completed since reset.
func (e *IntervalEstimator) LastPeriod() uint32 {
	return e.lastPeriod
}

// Reset returns the estimator to its initial state.
func (e *IntervalEstimator) Reset() {
	*e = IntervalEstimator{}
}
