// Package sampler runs the periodic analog acquisition: a timer triggers the
// converter at a fixed rate, DMA moves each sequence into a circular buffer,
// and the transfer-complete interrupt hands the batch to a Processor.
package sampler

import (
	"github.com/swotap/swotap/internal/hal"
	"github.com/swotap/swotap/internal/metrics"
	"github.com/swotap/swotap/internal/state"
	"github.com/swotap/swotap/internal/trace"
	"github.com/swotap/swotap/pkg/errors"
	"github.com/swotap/swotap/pkg/health"
	"github.com/swotap/swotap/pkg/utils"
)

const (
	// TriggerHz is the conversion sequence rate.
	TriggerHz = 5000
	// TriggerClockHz is the trigger timer's counter rate after the prescaler.
	TriggerClockHz = 100_000
	// TriggerPeriod is the reload value that divides TriggerClockHz down to TriggerHz.
	TriggerPeriod = TriggerClockHz/TriggerHz - 1

	// DefaultChannel is the converter input sampled by the reference board.
	DefaultChannel = 17

	// BufferLen is the number of conversions per sequence and per batch.
	BufferLen = state.BufferLen
)

// ComponentName is the health tracker component for the sampler.
const ComponentName = "sampler"

// TriggerPrescaler returns the divider that turns coreHz into TriggerClockHz.
func TriggerPrescaler(coreHz uint32) uint32 {
	return coreHz/TriggerClockHz - 1
}

// TimingWriter is the part of the trace sink used for service-time output.
type TimingWriter interface {
	WriteU32(lane trace.Lane, v uint32) error
}

// Config wires a Sampler to its peripherals.
type Config struct {
	ADC     hal.ADC
	DMA     hal.DMAChannel
	Trigger hal.Timer
	CoreHz  uint32
	Channel uint8

	// TransferCount is the DMA transfer count; zero means BufferLen. Any
	// other value is rejected.
	TransferCount int

	Shared    *state.Shared
	Processor Processor

	// Cycles and Trace are needed only when MeasureServiceTime is set.
	Cycles             hal.CycleCounter
	Trace              TimingWriter
	MeasureServiceTime bool

	Metrics *metrics.Collector
	Health  *health.Tracker
	Logger  *utils.StructuredLogger
}

// Sampler owns the completion interrupt.
type Sampler struct {
	cfg    Config
	logger *utils.StructuredLogger
}

// Setup configures DMA, the converter and the trigger timer, in that order,
// and starts the timer.
func Setup(cfg Config) (*Sampler, error) {
	missing := func(what string) error {
		return errors.Newf(errors.ErrCodeNotInitialized, "sampler %s is nil", what).WithComponent("sampler")
	}
	switch {
	case cfg.ADC == nil:
		return nil, missing("converter")
	case cfg.DMA == nil:
		return nil, missing("dma channel")
	case cfg.Trigger == nil:
		return nil, missing("trigger timer")
	case cfg.Shared == nil:
		return nil, missing("shared state")
	case cfg.Processor == nil:
		return nil, missing("processor")
	case cfg.MeasureServiceTime && cfg.Cycles == nil:
		return nil, missing("cycle counter")
	case cfg.MeasureServiceTime && cfg.Trace == nil:
		return nil, missing("trace sink")
	}

	count := cfg.TransferCount
	if count == 0 {
		count = BufferLen
	}
	if count != BufferLen {
		return nil, errors.Newf(errors.ErrCodeTransferLength,
			"dma transfer count %d does not match buffer length %d", count, BufferLen).
			WithComponent("sampler")
	}
	if cfg.CoreHz < TriggerClockHz || cfg.CoreHz%TriggerClockHz != 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfig,
			"core clock %d Hz cannot be divided to %d Hz", cfg.CoreHz, TriggerClockHz).
			WithComponent("sampler")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = utils.NopLogger()
	}
	s := &Sampler{cfg: cfg, logger: logger.WithComponent("sampler")}

	cfg.DMA.ConfigureCircular(cfg.Shared.Samples[:], count)
	cfg.DMA.Enable()

	sequence := make([]uint8, BufferLen)
	for i := range sequence {
		sequence[i] = cfg.Channel
	}
	cfg.ADC.SetSequence(sequence)
	cfg.ADC.EnableExternalTrigger(cfg.Trigger)
	cfg.ADC.EnableDMA()
	cfg.ADC.PowerOn()

	cfg.Trigger.Configure(TriggerPrescaler(cfg.CoreHz), TriggerPeriod)
	cfg.Trigger.EnableTriggerOutput()
	cfg.Trigger.Start()

	cfg.Health.RegisterComponent(ComponentName)
	return s, nil
}

// HandleInterrupt services the DMA channel interrupt. A transfer error is
// logged, counted and cleared; acquisition continues. A completed batch is
// processed, counted and then its flag is cleared.
func (s *Sampler) HandleInterrupt() {
	var start uint32
	if s.cfg.MeasureServiceTime {
		start = s.cfg.Cycles.Cycles()
	}

	dma := s.cfg.DMA
	if dma.TransferError() {
		err := errors.NewError(errors.ErrCodeTransferError, "dma transfer error").
			WithComponent("sampler").
			WithOperation("isr")
		s.logger.Error("transfer error", map[string]interface{}{
			"batches": s.cfg.Shared.Batches.Load(),
		})
		s.cfg.Metrics.RecordTransferError()
		s.cfg.Health.RecordError(ComponentName, err)
		dma.ClearTransferError()
	}

	if dma.TransferComplete() {
		s.cfg.Processor.Process(&s.cfg.Shared.Samples)
		s.cfg.Shared.Batches.Inc()
		dma.ClearTransferComplete()
		s.cfg.Metrics.RecordSampleBatch()
		s.cfg.Health.RecordSuccess(ComponentName)
	}

	if s.cfg.MeasureServiceTime {
		spent := s.cfg.Cycles.Cycles() - start
		_ = s.cfg.Trace.WriteU32(trace.LaneSampleTiming, spent)
		s.cfg.Metrics.ObserveISRCycles(metrics.ISRSampleDMA, spent)
	}
}
