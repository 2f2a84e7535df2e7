// Package state holds the values shared between interrupt handlers and the
// idle loop.
//
// Every field has exactly one writer, named on the field. Readers on other
// contexts use the atomic accessors and never see a torn value. Reading more
// than one field is not atomic as a group; Snapshot is best effort.
package state

import "sync/atomic"

// BufferLen is the number of samples in one DMA batch.
const BufferLen = 4

// ButtonPhase records whether the button is held, which is also the edge the
// button handler waits for next: true means it waits for the release.
type ButtonPhase struct {
	falling atomic.Bool
}

// Falling reports whether the button is currently held.
func (p *ButtonPhase) Falling() bool { return p.falling.Load() }

// Set is called only by the button handler.
func (p *ButtonPhase) Set(falling bool) { p.falling.Store(falling) }

// Counter is a 32-bit counter that wraps.
type Counter struct {
	v atomic.Uint32
}

// Load returns the current value.
func (c *Counter) Load() uint32 { return c.v.Load() }

// Inc adds one and returns the new value. Only the owning context calls it.
func (c *Counter) Inc() uint32 { return c.v.Add(1) }

// Shared is the complete shared state of the firmware.
type Shared struct {
	// Button is written by the button handler.
	Button ButtonPhase
	// Ticks is written by the idle loop heartbeat.
	Ticks Counter
	// Batches is written by the sample completion handler.
	Batches Counter
	// Samples is the DMA destination. It is written by the DMA engine and
	// read by the sample completion handler while the engine refills it.
	Samples [BufferLen]uint16
}

// New returns zeroed shared state.
func New() *Shared {
	return &Shared{}
}

// Snapshot is a copy of the counters at roughly one moment.
type Snapshot struct {
	ButtonHeld bool
	Ticks      uint32
	Batches    uint32
}

// Snapshot reads every counter. The fields are read one after another, so an
// interrupt can land in between.
func (s *Shared) Snapshot() Snapshot {
	return Snapshot{
		ButtonHeld: s.Button.Falling(),
		Ticks:      s.Ticks.Load(),
		Batches:    s.Batches.Load(),
	}
}
