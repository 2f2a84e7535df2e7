package button

import (
	"io"

	"github.com/swotap/swotap/internal/edgetimer"
	"github.com/swotap/swotap/internal/hal"
	"github.com/swotap/swotap/internal/metrics"
	"github.com/swotap/swotap/internal/state"
	"github.com/swotap/swotap/internal/trace"
	"github.com/swotap/swotap/pkg/errors"
	"github.com/swotap/swotap/pkg/utils"
)

// TimingWriter is the part of the trace sink the handler needs.
type TimingWriter interface {
	WriteU32(lane trace.Lane, v uint32) error
}

// Config wires a Monitor to its peripherals.
type Config struct {
	Line      hal.EdgeLine
	Indicator hal.Pin
	Timer     *edgetimer.Timer
	Stdout    io.Writer
	Phase     *state.ButtonPhase

	// Cycles and Trace are needed only when MeasureServiceTime is set.
	Cycles             hal.CycleCounter
	Trace              TimingWriter
	MeasureServiceTime bool

	DebounceTicks uint16

	Metrics *metrics.Collector
	Logger  *utils.StructuredLogger
}

// Monitor is the button interrupt handler and the state it owns.
type Monitor struct {
	cfg     Config
	machine Machine
	logger  *utils.StructuredLogger
}

// Setup arms the line for a rising edge and enables it.
func Setup(cfg Config) (*Monitor, error) {
	missing := func(what string) error {
		return errors.Newf(errors.ErrCodeNotInitialized, "button %s is nil", what).WithComponent("button")
	}
	switch {
	case cfg.Line == nil:
		return nil, missing("edge line")
	case cfg.Indicator == nil:
		return nil, missing("indicator")
	case cfg.Timer == nil:
		return nil, missing("edge timer")
	case cfg.Stdout == nil:
		return nil, missing("stdout")
	case cfg.Phase == nil:
		return nil, missing("shared phase")
	case cfg.MeasureServiceTime && cfg.Cycles == nil:
		return nil, missing("cycle counter")
	case cfg.MeasureServiceTime && cfg.Trace == nil:
		return nil, missing("trace sink")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = utils.NopLogger()
	}

	m := &Monitor{
		cfg:     cfg,
		machine: Machine{Debounce: cfg.DebounceTicks},
		logger:  logger.WithComponent("button"),
	}
	cfg.Phase.Set(false)
	cfg.Line.SetTrigger(hal.TriggerRising)
	cfg.Line.Enable()
	return m, nil
}

// Machine returns the current state. Only the handler's own context may call it.
func (m *Monitor) Machine() Machine {
	return m.machine
}

// HandleInterrupt services one edge. The pending flag is acknowledged first
// so an edge arriving while the handler runs is not lost.
func (m *Monitor) HandleInterrupt() {
	var start uint32
	if m.cfg.MeasureServiceTime {
		start = m.cfg.Cycles.Cycles()
	}

	m.cfg.Line.Acknowledge()

	next, fx := m.machine.Step(m.cfg.Timer.Now())
	m.machine = next
	m.apply(fx)

	m.cfg.Metrics.RecordButtonEdge(fx.Kind.String())
	if fx.Kind == KindRelease {
		m.cfg.Metrics.ObserveHold(fx.Held)
	}

	if m.cfg.MeasureServiceTime {
		spent := m.cfg.Cycles.Cycles() - start
		_ = m.cfg.Trace.WriteU32(trace.LaneButtonTiming, spent)
		m.cfg.Metrics.ObserveISRCycles(metrics.ISRButton, spent)
	}
}

func (m *Monitor) apply(fx Effects) {
	switch fx.Kind {
	case KindPress:
		m.cfg.Indicator.Set()
		_, _ = io.WriteString(m.cfg.Stdout, fx.Message())
		m.cfg.Timer.Reset()
		m.cfg.Phase.Set(true)
		m.cfg.Line.SetTrigger(fx.Trigger)
	case KindRelease:
		m.cfg.Indicator.Clear()
		m.cfg.Phase.Set(false)
		m.cfg.Line.SetTrigger(fx.Trigger)
		_, _ = io.WriteString(m.cfg.Stdout, fx.Message())
	case KindIgnored:
		m.logger.Debug("edge ignored inside debounce window", map[string]interface{}{
			"falling":  m.machine.Falling,
			"debounce": m.machine.Debounce,
		})
	}
}
