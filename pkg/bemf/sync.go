// Package bemf provides back-EMF signal conditioning for sensorless
// commutation: an input synchronizer for the raw comparator lines, an
// interval estimator for speed readout, and the expected zero-crossing
// polarity table used by the commutation state machine.
package bemf

// CompMask selects the three comparator bits of a sample.
// Bit 2 is phase A, bit 1 phase B, bit 0 phase C.
const CompMask = 0x07

// SyncStages is the depth of the input synchronizer. The comparator lines
// are asynchronous to the tick domain; three stages of reclocking are
// required before any decision logic may read them. The resulting three
// ticks of latency are part of the controller's timing contract.
const SyncStages = 3

// Synchronizer reclocks the raw 3-line comparator vector into the tick
// domain through a fixed delay chain. One instance belongs to exactly one
// tick domain; it is not safe for concurrent use.
type Synchronizer struct {
	stages [SyncStages]uint8
	out    uint8
}

// NewSynchronizer returns a synchronizer with an all-zero delay chain.
func NewSynchronizer() *Synchronizer {
	return &Synchronizer{}
}

// Tick shifts the raw comparator vector into the delay chain and returns
// the stabilized sample, which is the raw input from exactly three ticks
// earlier.
func (s *Synchronizer) Tick(raw uint8) uint8 {
	s.out = s.stages[SyncStages-1]
	copy(s.stages[1:], s.stages[:SyncStages-1])
	s.stages[0] = raw & CompMask
	return s.out
}

// Sample returns the stabilized vector emitted by the most recent Tick,
// without advancing the chain.
func (s *Synchronizer) Sample() uint8 {
	return s.out
}

// Reset clears the delay chain to all-zero.
func (s *Synchronizer) Reset() {
	*s = Synchronizer{}
}
