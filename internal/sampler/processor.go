package sampler

import (
	"github.com/swotap/swotap/internal/hal"
	"github.com/swotap/swotap/internal/state"
	"github.com/swotap/swotap/internal/trace"
)

// Processor consumes one completed batch. It runs inside the completion
// handler while the DMA engine refills the buffer, so it must be short.
type Processor interface {
	Process(samples *[state.BufferLen]uint16)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(samples *[state.BufferLen]uint16)

// Process calls f.
func (f ProcessorFunc) Process(samples *[state.BufferLen]uint16) { f(samples) }

// SampleWriter is the part of the trace sink the default processor needs.
type SampleWriter interface {
	WriteU16(lane trace.Lane, v uint16) error
}

// DefaultProcessor streams the first sample of every batch, blinks the
// heartbeat indicator when the first two samples agree, and while the
// feedback indicator is lit runs Stress to load the handler.
type DefaultProcessor struct {
	Trace     SampleWriter
	Heartbeat hal.Pin
	Feedback  hal.Pin
	// Stress is called with samples[0] when Feedback is on. Nil disables it.
	Stress func(n uint16)
}

// Process implements Processor.
func (p *DefaultProcessor) Process(samples *[state.BufferLen]uint16) {
	_ = p.Trace.WriteU16(trace.LaneSample, samples[0])

	if samples[0] == samples[1] {
		p.Heartbeat.Toggle()
	}

	if p.Stress != nil && p.Feedback.Get() {
		p.Stress(samples[0])
	}
}

// BusyWork spins for n empty iterations.
func BusyWork(n uint16) {
	for i := uint16(0); i < n; i++ {
	}
}
