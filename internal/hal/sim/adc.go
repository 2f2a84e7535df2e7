package sim

import (
	"sync"

	"github.com/swotap/swotap/internal/hal"
)

// ADC converts whatever Input returns for a channel, once per sequence slot.
type ADC struct {
	mu       sync.Mutex
	sequence []uint8
	powered  bool
	dma      bool
	source   *Timer
	sink     *DMA

	// Input supplies the analog reading for a channel. Nil reads zero.
	Input func(channel uint8) uint16
}

var _ hal.ADC = (*ADC)(nil)

// NewADC returns a converter whose DMA requests are served by dma.
func NewADC(dma *DMA) *ADC {
	return &ADC{sink: dma}
}

func (a *ADC) SetSequence(channels []uint8) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sequence = append([]uint8(nil), channels...)
}

// Sequence returns the configured regular sequence.
func (a *ADC) Sequence() []uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]uint8(nil), a.sequence...)
}

// EnableExternalTrigger attaches the converter to a simulated timer. Other
// timer implementations are ignored.
func (a *ADC) EnableExternalTrigger(src hal.Timer) {
	t, ok := src.(*Timer)
	if !ok {
		return
	}
	a.mu.Lock()
	a.source = t
	a.mu.Unlock()
	t.onTrigger(a.RunSequence)
}

// Triggered reports whether a trigger source is attached.
func (a *ADC) Triggered() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.source != nil
}

func (a *ADC) EnableDMA() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dma = true
}

func (a *ADC) PowerOn() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.powered = true
}

// RunSequence converts every slot of the sequence and hands each result to DMA.
func (a *ADC) RunSequence() {
	a.mu.Lock()
	if !a.powered {
		a.mu.Unlock()
		return
	}
	seq := append([]uint8(nil), a.sequence...)
	input, dma, sink := a.Input, a.dma, a.sink
	a.mu.Unlock()

	for _, ch := range seq {
		var v uint16
		if input != nil {
			v = input(ch)
		}
		if dma && sink != nil {
			sink.Transfer(v)
		}
	}
}
