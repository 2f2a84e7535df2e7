package sim

import (
	"sync"
	"sync/atomic"

	"github.com/swotap/swotap/internal/hal"
)

// Timer counts caller-supplied ticks of its prescaled clock.
type Timer struct {
	mu         sync.Mutex
	prescaler  uint32
	period     uint32
	count      uint32
	running    bool
	triggerOut bool
	updates    uint64
	listeners  []func()
}

var _ hal.Timer = (*Timer)(nil)

// NewTimer returns a stopped timer with a 16-bit period.
func NewTimer() *Timer {
	return &Timer{period: 0xFFFF}
}

func (t *Timer) Configure(prescaler, period uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prescaler = prescaler
	t.period = period
}

func (t *Timer) EnableTriggerOutput() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.triggerOut = true
}

func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = true
}

func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
}

func (t *Timer) Count() uint16 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return uint16(t.count)
}

func (t *Timer) SetCount(v uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count = uint32(v)
}

// Settings returns the prescaler and period last configured.
func (t *Timer) Settings() (prescaler, period uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prescaler, t.period
}

// Running reports whether the counter is enabled.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Updates returns the number of reload events so far.
func (t *Timer) Updates() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updates
}

// onTrigger registers a consumer of the trigger output.
func (t *Timer) onTrigger(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Advance moves the counter forward by n ticks. Every reload with the trigger
// output enabled notifies the attached converter once.
func (t *Timer) Advance(n int) {
	t.mu.Lock()
	if !t.running || n <= 0 {
		t.mu.Unlock()
		return
	}
	modulus := uint64(t.period) + 1
	total := uint64(t.count) + uint64(n)
	reloads := total / modulus
	t.count = uint32(total % modulus)
	t.updates += reloads
	var listeners []func()
	if t.triggerOut {
		listeners = append(listeners, t.listeners...)
	}
	t.mu.Unlock()

	for i := uint64(0); i < reloads; i++ {
		for _, fn := range listeners {
			fn()
		}
	}
}

// Cycles is a core cycle counter. Every read returns the current value and
// then advances it by Step, so code that samples it twice sees a cost.
type Cycles struct {
	value atomic.Uint32
	step  atomic.Uint32
}

var _ hal.CycleCounter = (*Cycles)(nil)

// SetStep sets how far each read advances the counter.
func (c *Cycles) SetStep(step uint32) { c.step.Store(step) }

// Advance moves the counter forward by n cycles.
func (c *Cycles) Advance(n uint32) { c.value.Add(n) }

func (c *Cycles) Cycles() uint32 {
	return c.value.Add(c.step.Load()) - c.step.Load()
}
