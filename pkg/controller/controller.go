// Package controller wires the sensorless commutation core into a single
// per-tick step function: comparator synchronization, the commutation
// state machine, the trapezoidal duty shaper and the output composer. One
// Controller instance owns the full state for one motor.
package controller

import (
	"sync"

	"bldc-go/pkg/bemf"
	"bldc-go/pkg/commutator"
	"bldc-go/pkg/trapezoid"
)

// Inputs is everything the controller samples on one tick.
type Inputs struct {
	Speed       uint16
	Forward     bool
	Torque      uint16
	RampPercent uint8

	// Comparators is the raw 3-line back-EMF comparator vector; it is
	// asynchronous to the tick domain and passes through the synchronizer
	// before any decision logic reads it.
	Comparators uint8

	// Reset forces every sub-component to its power-on state on this
	// tick, overriding all other inputs.
	Reset bool
}

// Outputs is the controller result for one tick.
type Outputs struct {
	// Pattern is the 6-bit switch output, bits [5:3] high side A/B/C and
	// bits [2:0] low side A/B/C.
	Pattern uint8

	// Duty is the shaped PWM duty for this tick; zero when shaping is
	// disabled.
	Duty uint16

	// EstimatorPeriod and EstimatorValid expose the interval estimator's
	// diagnostic stream; the period is meaningful only on valid ticks.
	EstimatorPeriod uint32
	EstimatorValid  bool
}

// Config selects optional controller behavior.
type Config struct {
	// Name labels this controller in logs and telemetry.
	Name string

	// Shaping enables the trapezoidal duty shaper; when off the raw
	// commutation pattern is driven unmodified.
	Shaping bool
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{Name: "motor", Shaping: false}
}

// Status is a point-in-time snapshot for telemetry and logging.
type Status struct {
	Name              string `json:"name"`
	State             string `json:"state"`
	Step              uint8  `json:"step"`
	Pattern           uint8  `json:"pattern"`
	Duty              uint16 `json:"duty"`
	CommutationPeriod uint32 `json:"commutation_period"`
	LastPeriod        uint32 `json:"last_period"`
	EstimatedPeriod   uint32 `json:"estimated_period"`
	Tick              uint64 `json:"tick"`
}

// Controller is the per-motor top level. Step must be called exactly once
// per tick from a single goroutine; Status may be called concurrently.
type Controller struct {
	mu sync.RWMutex

	cfg       Config
	sync      *bemf.Synchronizer
	machine   *commutator.Machine
	shaper    *trapezoid.Shaper
	estimator *bemf.IntervalEstimator

	tick    uint64
	pattern uint8
	duty    uint16
}

// New creates a controller in its power-on state.
func New(cfg Config) *Controller {
	if cfg.Name == "" {
		cfg.Name = "motor"
	}
	return &Controller{
		cfg:       cfg,
		sync:      bemf.NewSynchronizer(),
		machine:   commutator.NewMachine(),
		shaper:    trapezoid.NewShaper(),
		estimator: bemf.NewIntervalEstimator(),
	}
}

// Reset forces the controller and every sub-component to power-on state.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *Controller) reset() {
	c.sync.Reset()
	c.machine.Reset()
	c.shaper.Reset()
	c.estimator.Reset()
	c.tick = 0
	c.pattern = commutator.PatternOff
	c.duty = 0
}

// Step advances the controller by one tick. All state reads and writes for
// the tick happen atomically inside this call.
func (c *Controller) Step(in Inputs) Outputs {
	c.mu.Lock()
	defer c.mu.Unlock()

	if in.Reset {
		c.reset()
		return Outputs{}
	}

	stabilized := c.sync.Tick(in.Comparators)

	pattern := c.machine.Tick(commutator.Command{
		Speed:   in.Speed,
		Forward: in.Forward,
	}, stabilized)

	// The estimator watches the stabilized phase A line as a speed
	// readout; it feeds telemetry only, never the machine.
	est := c.estimator.Tick(stabilized>>uint(bemf.PhaseA)&1 == 1)

	out := Outputs{
		Pattern:         pattern,
		EstimatorPeriod: est.Period,
		EstimatorValid:  est.Valid,
	}

	if c.cfg.Shaping {
		so := c.shaper.Tick(trapezoid.Command{
			Speed:       in.Speed,
			Forward:     in.Forward,
			Torque:      in.Torque,
			RampPercent: in.RampPercent,
		})
		out.Pattern = trapezoid.Gate(pattern, so.Chop)
		out.Duty = so.Duty
	}

	c.tick++
	c.pattern = out.Pattern
	c.duty = out.Duty
	return out
}

// State returns the commutation machine state.
func (c *Controller) State() commutator.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.machine.State()
}

// Status returns a snapshot of the controller for telemetry.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{
		Name:              c.cfg.Name,
		State:             c.machine.State().String(),
		Step:              uint8(c.machine.Step()),
		Pattern:           c.pattern,
		Duty:              c.duty,
		CommutationPeriod: c.machine.CommutationPeriod(),
		LastPeriod:        c.machine.LastPeriod(),
		EstimatedPeriod:   c.estimator.LastPeriod(),
		Tick:              c.tick,
	}
}
