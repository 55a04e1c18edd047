// Motor controller metric definitions

package metrics

import (
	"bldc-go/pkg/controller"
)

// MotorMetrics holds the controller-facing metric set.
type MotorMetrics struct {
	// Commutation
	State             *Gauge
	Step              *Gauge
	CommutationSteps  *Counter
	CommutationPeriod *Gauge
	EstimatedPeriod   *Gauge
	Duty              *Gauge

	// Faults
	StallEvents *Counter

	// Loop health
	TicksTotal   *Counter
	TickOverruns *Counter
	TickDuration *Histogram

	registry *Registry
}

// NewMotorMetrics creates and registers the motor metric set on its own
// registry.
func NewMotorMetrics() *MotorMetrics {
	m := &MotorMetrics{registry: NewRegistry()}

	m.State = NewGauge("bldc_commutation_state",
		"Commutation state (0=idle 1=align 2=rampup 3=running 4=error)")
	m.Step = NewGauge("bldc_commutation_step",
		"Current commutation step index")
	m.CommutationSteps = NewCounter("bldc_commutation_steps_total",
		"Total commutation step advances")
	m.CommutationPeriod = NewGauge("bldc_commutation_period_ticks",
		"Current inter-step interval estimate in ticks")
	m.EstimatedPeriod = NewGauge("bldc_estimated_period_ticks",
		"Back-EMF interval estimator reading in ticks")
	m.Duty = NewGauge("bldc_pwm_duty",
		"Shaped PWM duty value")
	m.StallEvents = NewCounter("bldc_stall_events_total",
		"Transitions into the error state")
	m.TicksTotal = NewCounter("bldc_ticks_total",
		"Controller ticks executed")
	m.TickOverruns = NewCounter("bldc_tick_overruns_total",
		"Tick deadlines missed by the host loop")
	m.TickDuration = NewHistogram("bldc_tick_duration_seconds",
		"Wall time spent per controller tick",
		ExponentialBuckets(1e-7, 10, 7))

	m.registry.MustRegister(m.State)
	m.registry.MustRegister(m.Step)
	m.registry.MustRegister(m.CommutationSteps)
	m.registry.MustRegister(m.CommutationPeriod)
	m.registry.MustRegister(m.EstimatedPeriod)
	m.registry.MustRegister(m.Duty)
	m.registry.MustRegister(m.StallEvents)
	m.registry.MustRegister(m.TicksTotal)
	m.registry.MustRegister(m.TickOverruns)
	m.registry.MustRegister(m.TickDuration)

	return m
}

// Registry returns the registry backing this metric set.
func (m *MotorMetrics) Registry() *Registry {
	return m.registry
}

// ObserveStatus records a controller snapshot against the motor label.
func (m *MotorMetrics) ObserveStatus(prev, cur controller.Status) {
	labels := Labels{"motor": cur.Name}
	m.State.Set(labels, float64(stateValue(cur.State)))
	m.Step.Set(labels, float64(cur.Step))
	m.CommutationPeriod.Set(labels, float64(cur.CommutationPeriod))
	m.EstimatedPeriod.Set(labels, float64(cur.EstimatedPeriod))
	m.Duty.Set(labels, float64(cur.Duty))
	m.TicksTotal.Add(labels, cur.Tick-prev.Tick)
	if cur.Step != prev.Step {
		m.CommutationSteps.Inc(labels)
	}
	if cur.State == "error" && prev.State != "error" {
		m.StallEvents.Inc(labels)
	}
}

func stateValue(state string) int {
	switch state {
	case "idle":
		return 0
	case "align":
		return 1
	case "rampup":
		return 2
	case "running":
		return 3
	case "error":
		return 4
	default:
		return -1
	}
}
