// Package hal declares the hardware capabilities the acquisition core calls into.
//
// Clock-tree setup, pin muxing and register-level drivers live behind these
// interfaces. A target provides one implementation per board; package sim
// provides an in-memory board for tests and host runs.
package hal

// Pin is a digital output driving a status indicator.
type Pin interface {
	Set()
	Clear()
	Toggle()
	Get() bool
}

// EdgeTrigger selects which transition of a digital input raises an interrupt.
type EdgeTrigger int

const (
	TriggerRising EdgeTrigger = iota
	TriggerFalling
)

// String returns the trigger name.
func (t EdgeTrigger) String() string {
	switch t {
	case TriggerRising:
		return "rising"
	case TriggerFalling:
		return "falling"
	default:
		return "unknown"
	}
}

// Opposite returns the other polarity.
func (t EdgeTrigger) Opposite() EdgeTrigger {
	if t == TriggerRising {
		return TriggerFalling
	}
	return TriggerRising
}

// EdgeLine is an external interrupt line bound to one input pin.
type EdgeLine interface {
	// Acknowledge clears the pending request so the line can fire again.
	Acknowledge()
	SetTrigger(t EdgeTrigger)
	Enable()
}

// Counter is the count register of a hardware timer.
type Counter interface {
	Count() uint16
	SetCount(v uint16)
}

// Timer is a hardware timer driven from the core clock through a prescaler.
// The counter runs at core/(prescaler+1) and reloads after period.
type Timer interface {
	Counter
	Configure(prescaler, period uint32)
	// EnableTriggerOutput routes every update event to the timer's trigger output.
	EnableTriggerOutput()
	Start()
	Stop()
}

// CycleCounter is a free-running 32-bit core cycle counter.
type CycleCounter interface {
	Cycles() uint32
}

// StimulusPort is one lane of the trace unit. Ready reports whether the port's
// FIFO can accept another value.
type StimulusPort interface {
	Ready() bool
	Write8(v uint8)
	Write16(v uint16)
	Write32(v uint32)
}

// StimulusPorts is the trace unit: a fixed set of independent stimulus ports.
type StimulusPorts interface {
	NumPorts() int
	Port(n int) StimulusPort
}

// ADC is an analog converter that runs a regular sequence on an external trigger.
type ADC interface {
	SetSequence(channels []uint8)
	// EnableExternalTrigger starts one sequence per rising edge of src's trigger output.
	EnableExternalTrigger(src Timer)
	// EnableDMA makes every conversion request a transfer, continuously.
	EnableDMA()
	PowerOn()
}

// DMAChannel is a peripheral-to-memory transfer channel.
type DMAChannel interface {
	// ConfigureCircular moves 16-bit values from the converter into dst,
	// wrapping after count transfers and restarting at dst[0].
	ConfigureCircular(dst []uint16, count int)
	Enable()

	TransferComplete() bool
	ClearTransferComplete()
	TransferError() bool
	ClearTransferError()
}

// Board is the set of capabilities one target exposes to the core.
type Board struct {
	// CoreHz is the frequency the clock tree was configured for.
	CoreHz uint32

	Heartbeat Pin
	Feedback  Pin

	Button      EdgeLine
	ButtonTimer Timer
	Cycles      CycleCounter

	Trace StimulusPorts

	ADC          ADC
	SampleDMA    DMAChannel
	TriggerTimer Timer
}
