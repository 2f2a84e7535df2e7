package sim

import "github.com/swotap/swotap/internal/hal"

// DefaultCoreHz matches the 24 MHz PLL configuration of the reference board.
const DefaultCoreHz = 24_000_000

// Board bundles one of every simulated peripheral.
type Board struct {
	Heartbeat    *Pin
	Feedback     *Pin
	Button       *EdgeLine
	ButtonTimer  *Timer
	Cycles       *Cycles
	Trace        *Trace
	ADC          *ADC
	SampleDMA    *DMA
	TriggerTimer *Timer
}

// NewBoard returns a board with lanes trace ports, all ready.
func NewBoard(lanes int) *Board {
	dma := &DMA{}
	return &Board{
		Heartbeat:    &Pin{},
		Feedback:     &Pin{},
		Button:       &EdgeLine{},
		ButtonTimer:  NewTimer(),
		Cycles:       &Cycles{},
		Trace:        NewTrace(lanes),
		ADC:          NewADC(dma),
		SampleDMA:    dma,
		TriggerTimer: NewTimer(),
	}
}

// HAL returns the board as the capability set the core consumes.
func (b *Board) HAL() hal.Board {
	return hal.Board{
		CoreHz:       DefaultCoreHz,
		Heartbeat:    b.Heartbeat,
		Feedback:     b.Feedback,
		Button:       b.Button,
		ButtonTimer:  b.ButtonTimer,
		Cycles:       b.Cycles,
		Trace:        b.Trace,
		ADC:          b.ADC,
		SampleDMA:    b.SampleDMA,
		TriggerTimer: b.TriggerTimer,
	}
}
