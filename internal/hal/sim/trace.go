package sim

import (
	"sync"

	"github.com/swotap/swotap/internal/hal"
)

// Value is one write observed on a stimulus port.
type Value struct {
	Width int // 8, 16 or 32
	V     uint32
}

// Port is a stimulus port drained by an imaginary debug probe.
type Port struct {
	mu         sync.Mutex
	stalled    bool
	busyPolls  int
	polls      int
	values     []Value
	overwrites int
}

var _ hal.StimulusPort = (*Port)(nil)

// Ready reports FIFO space. A stalled port is never ready; a port with busy
// polls outstanding reports not-ready for that many more polls.
func (p *Port) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.polls++
	if p.stalled {
		return false
	}
	if p.busyPolls > 0 {
		p.busyPolls--
		return false
	}
	return true
}

func (p *Port) Write8(v uint8)   { p.write(8, uint32(v)) }
func (p *Port) Write16(v uint16) { p.write(16, uint32(v)) }
func (p *Port) Write32(v uint32) { p.write(32, v) }

func (p *Port) write(width int, v uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stalled {
		p.overwrites++
	}
	p.values = append(p.values, Value{Width: width, V: v})
}

// Stall makes the port report busy until Drain is called.
func (p *Port) Stall() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stalled = true
}

// Drain undoes Stall.
func (p *Port) Drain() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stalled = false
}

// BusyFor makes the next n readiness polls report busy.
func (p *Port) BusyFor(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.busyPolls = n
}

// Polls returns the number of readiness polls so far.
func (p *Port) Polls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polls
}

// Overwrites counts writes made while the port was stalled.
func (p *Port) Overwrites() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.overwrites
}

// Values returns a copy of everything written to the port.
func (p *Port) Values() []Value {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Value, len(p.values))
	copy(out, p.values)
	return out
}

// Bytes returns the 8-bit writes, in order.
func (p *Port) Bytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []byte
	for _, v := range p.values {
		if v.Width == 8 {
			out = append(out, byte(v.V))
		}
	}
	return out
}

// Text is Bytes as a string.
func (p *Port) Text() string { return string(p.Bytes()) }

// Words16 returns the 16-bit writes, in order.
func (p *Port) Words16() []uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []uint16
	for _, v := range p.values {
		if v.Width == 16 {
			out = append(out, uint16(v.V))
		}
	}
	return out
}

// Words32 returns the 32-bit writes, in order.
func (p *Port) Words32() []uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []uint32
	for _, v := range p.values {
		if v.Width == 32 {
			out = append(out, v.V)
		}
	}
	return out
}

// Reset forgets recorded values and counters.
func (p *Port) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = nil
	p.polls = 0
	p.overwrites = 0
}

// Trace is a trace unit with a fixed number of ports.
type Trace struct {
	ports []*Port
}

var _ hal.StimulusPorts = (*Trace)(nil)

// NewTrace returns a trace unit with n ready ports.
func NewTrace(n int) *Trace {
	t := &Trace{ports: make([]*Port, n)}
	for i := range t.ports {
		t.ports[i] = &Port{}
	}
	return t
}

func (t *Trace) NumPorts() int { return len(t.ports) }

// Port returns port n. It panics when n is out of range, like indexing would.
func (t *Trace) Port(n int) hal.StimulusPort { return t.ports[n] }

// Lane returns port n with its inspection helpers.
func (t *Trace) Lane(n int) *Port { return t.ports[n] }
