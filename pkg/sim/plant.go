// Package sim models a three-phase motor well enough to close the loop
// around the commutation core without hardware: the plant integrates rotor
// motion from the applied switch pattern and answers with the comparator
// vector a back-EMF sensing frontend would produce.
package sim

import (
	"math"

	"bldc-go/pkg/commutator"
)

// Config holds the plant parameters. Units are normalized to the tick
// domain: angles in electrical radians, velocity in radians per tick.
type Config struct {
	// PolePairs scales electrical to mechanical rotation for RPM readout.
	PolePairs int

	// Inertia resists acceleration; larger values spin up slower.
	Inertia float64

	// Friction is viscous drag proportional to velocity. It sets the
	// no-load top speed together with TorqueGain.
	Friction float64

	// TorqueGain is the peak drive torque at full phase misalignment.
	TorqueGain float64

	// LoadTorque is a constant torque opposing rotation.
	LoadTorque float64

	// MinDetectVelocity is the speed below which the back-EMF is too weak
	// for the comparators and all three lines read low.
	MinDetectVelocity float64
}

// DefaultConfig returns parameters that spin up and lock under the stock
// alignment and ramp timing.
func DefaultConfig() Config {
	return Config{
		PolePairs:         7,
		Inertia:           1.0,
		Friction:          2e-3,
		TorqueGain:        4e-6,
		LoadTorque:        0,
		MinDetectVelocity: 1e-5,
	}
}

// Plant is one simulated rotor. It belongs to the same tick domain as the
// controller driving it and is not safe for concurrent use.
type Plant struct {
	cfg Config

	angle    float64
	velocity float64

	// energizedStep is the step decoded from the last pattern that carried
	// high-side drive, or -1 when the windings are open.
	energizedStep int
}

// New creates a plant at standstill.
func New(cfg Config) *Plant {
	return &Plant{cfg: cfg, energizedStep: -1}
}

// Reset returns the rotor to standstill at angle zero.
func (p *Plant) Reset() {
	p.angle = 0
	p.velocity = 0
	p.energizedStep = -1
}

// Angle returns the electrical rotor angle in radians.
func (p *Plant) Angle() float64 { return p.angle }

// Velocity returns the electrical velocity in radians per tick.
func (p *Plant) Velocity() float64 { return p.velocity }

// RPM converts the electrical velocity to mechanical RPM for the given
// tick rate in Hz.
func (p *Plant) RPM(tickRate float64) float64 {
	if p.cfg.PolePairs <= 0 {
		return 0
	}
	revPerTick := p.velocity / (2 * math.Pi * float64(p.cfg.PolePairs))
	return revPerTick * tickRate * 60
}

// stepField maps a commutation step to its stator field angle. The field
// leads the sector's exit crossing by a quarter turn, which keeps pull on
// the rotor through the whole sector.
func stepField(step int) float64 {
	return float64(step)*math.Pi/3 + 5*math.Pi/6
}

// decodeStep recovers the commutation step from a full drive pattern.
// Gated or open patterns return -1.
func decodeStep(pattern uint8) int {
	if pattern&commutator.HighSideMask == 0 {
		return -1
	}
	for s := uint8(0); s < commutator.StepCount; s++ {
		if commutator.Pattern(commutator.Step(s)) == pattern {
			return int(s)
		}
	}
	return -1
}

// Tick advances the rotor by one tick under the given switch pattern and
// returns the comparator vector (bit 2 = A, bit 1 = B, bit 0 = C).
func (p *Plant) Tick(pattern uint8) uint8 {
	if step := decodeStep(pattern); step >= 0 {
		p.energizedStep = step
	} else {
		p.energizedStep = -1
	}

	var torque float64
	if p.energizedStep >= 0 {
		torque = p.cfg.TorqueGain * math.Sin(stepField(p.energizedStep)-p.angle)
	}
	torque -= p.cfg.Friction * p.velocity
	if p.velocity > 0 {
		torque -= p.cfg.LoadTorque
	} else if p.velocity < 0 {
		torque += p.cfg.LoadTorque
	}

	p.velocity += torque / p.cfg.Inertia
	p.angle += p.velocity
	// Keep the angle bounded; nothing downstream needs the turn count.
	if p.angle > 2*math.Pi {
		p.angle -= 2 * math.Pi
	} else if p.angle < 0 {
		p.angle += 2 * math.Pi
	}

	return p.comparators()
}

// comparators derives the three back-EMF comparator bits from the rotor
// angle. Each phase EMF is modeled as a sinusoid; a comparator reads high
// while its phase EMF is positive. Below the detection floor the frontend
// sees no signal and all lines read low.
func (p *Plant) comparators() uint8 {
	if math.Abs(p.velocity) < p.cfg.MinDetectVelocity {
		return 0
	}
	var v uint8
	if math.Sin(p.angle) > 0 {
		v |= 1 << 2 // phase A
	}
	if math.Sin(p.angle-2*math.Pi/3) > 0 {
		v |= 1 << 1 // phase B
	}
	if math.Sin(p.angle+2*math.Pi/3) > 0 {
		v |= 1 << 0 // phase C
	}
	return v
}
