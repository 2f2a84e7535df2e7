package sim

import (
	"sync"
	"sync/atomic"

	"github.com/swotap/swotap/internal/hal"
)

// Pin is an output pin that remembers its level and counts toggles.
type Pin struct {
	level   atomic.Bool
	toggles atomic.Uint64
}

var _ hal.Pin = (*Pin)(nil)

func (p *Pin) Set()      { p.level.Store(true) }
func (p *Pin) Clear()    { p.level.Store(false) }
func (p *Pin) Get() bool { return p.level.Load() }

// Toggle inverts the level.
func (p *Pin) Toggle() {
	for {
		old := p.level.Load()
		if p.level.CompareAndSwap(old, !old) {
			p.toggles.Add(1)
			return
		}
	}
}

// Toggles returns how many times Toggle was called.
func (p *Pin) Toggles() uint64 { return p.toggles.Load() }

// EdgeLine is an external interrupt line wired to a push button.
type EdgeLine struct {
	mu      sync.Mutex
	level   bool
	trigger hal.EdgeTrigger
	enabled bool
	pending bool
	acks    int

	// Handler is the interrupt vector for this line.
	Handler func()
}

var _ hal.EdgeLine = (*EdgeLine)(nil)

func (e *EdgeLine) Acknowledge() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = false
	e.acks++
}

func (e *EdgeLine) SetTrigger(t hal.EdgeTrigger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.trigger = t
}

func (e *EdgeLine) Enable() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = true
}

// Trigger returns the configured polarity.
func (e *EdgeLine) Trigger() hal.EdgeTrigger {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.trigger
}

// Pending reports whether an edge is waiting to be acknowledged.
func (e *EdgeLine) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

// Acks returns how many times the line was acknowledged.
func (e *EdgeLine) Acks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acks
}

// Press drives the input high. It returns true if the edge raised an interrupt.
func (e *EdgeLine) Press() bool { return e.drive(true) }

// Release drives the input low. It returns true if the edge raised an interrupt.
func (e *EdgeLine) Release() bool { return e.drive(false) }

// Fire raises an interrupt regardless of the input level, as a bouncing
// contact or a glitch would.
func (e *EdgeLine) Fire() {
	e.mu.Lock()
	e.pending = true
	h := e.Handler
	e.mu.Unlock()
	if h != nil {
		h()
	}
}

func (e *EdgeLine) drive(high bool) bool {
	e.mu.Lock()
	if e.level == high {
		e.mu.Unlock()
		return false
	}
	e.level = high
	edge := hal.TriggerFalling
	if high {
		edge = hal.TriggerRising
	}
	fire := e.enabled && edge == e.trigger
	if fire {
		e.pending = true
	}
	h := e.Handler
	e.mu.Unlock()

	if fire && h != nil {
		h()
	}
	return fire
}
