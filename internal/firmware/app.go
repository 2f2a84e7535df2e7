// Package firmware assembles the acquisition core: it runs the setup phase,
// dispatches interrupt vectors to their handlers and runs the idle loop.
package firmware

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/swotap/swotap/internal/button"
	"github.com/swotap/swotap/internal/config"
	"github.com/swotap/swotap/internal/edgetimer"
	"github.com/swotap/swotap/internal/hal"
	"github.com/swotap/swotap/internal/metrics"
	"github.com/swotap/swotap/internal/sampler"
	"github.com/swotap/swotap/internal/state"
	"github.com/swotap/swotap/internal/stdio"
	"github.com/swotap/swotap/internal/trace"
	"github.com/swotap/swotap/pkg/errors"
	"github.com/swotap/swotap/pkg/health"
	"github.com/swotap/swotap/pkg/utils"
)

// App is one firmware instance bound to a board.
type App struct {
	cfg   *config.Configuration
	board hal.Board

	shared  *state.Shared
	sink    *trace.Sink
	bridge  *stdio.Bridge
	logger  *utils.StructuredLogger
	metrics *metrics.Collector
	health  *health.Tracker

	processor sampler.Processor
	now       func() time.Time

	edge    *edgetimer.Timer
	button  *button.Monitor
	sampler *sampler.Sampler
	ready   bool

	// logLane is the health component of the lane the logger writes to.
	// Its transitions are logged from Tick, never from the health callback,
	// which may run inside a logger write.
	logLane         string
	logLaneReported health.HealthState
}

// Option customizes an App before setup.
type Option func(*App)

// WithProcessor replaces the default sample processor.
func WithProcessor(p sampler.Processor) Option {
	return func(a *App) { a.processor = p }
}

// WithClock stamps log lines using now. Without it log lines carry no
// timestamp, since the target has no real-time clock.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// New validates cfg and builds the shared services: metrics, health, the
// trace sink, the stdio bridge and the logger. No peripheral is touched until Setup.
func New(board hal.Board, cfg *config.Configuration, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if board.CoreHz == 0 {
		board.CoreHz = cfg.Board.CoreHz
	}
	if board.CoreHz != cfg.Board.CoreHz {
		return nil, errors.Newf(errors.ErrCodeInvalidConfig,
			"board runs at %d Hz but configuration says %d Hz", board.CoreHz, cfg.Board.CoreHz).
			WithComponent("firmware")
	}

	a := &App{
		cfg:             cfg,
		board:           board,
		shared:          state.New(),
		logLane:         trace.HealthComponent(trace.LanePrintf),
		logLaneReported: health.StateHealthy,
	}
	for _, opt := range opts {
		opt(a)
	}

	var err error
	a.metrics, err = metrics.NewCollector(&metrics.Config{
		Enabled:   cfg.Metrics.Enabled,
		Namespace: cfg.Metrics.Namespace,
		Subsystem: cfg.Metrics.Subsystem,
	})
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeInternalError, "failed to create metrics collector").
			WithComponent("firmware").WithCause(err)
	}

	a.health = health.NewTracker(health.DefaultConfig())

	traceOpts := trace.OptionsFromConfig(cfg.Trace)
	traceOpts.Metrics = a.metrics
	traceOpts.Health = a.health
	a.sink, err = trace.New(board.Trace, traceOpts)
	if err != nil {
		return nil, err
	}
	a.bridge = stdio.NewBridge(a.sink)

	level, err := utils.ParseLogLevel(cfg.Global.LogLevel)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeInvalidConfig, "invalid log level").WithCause(err)
	}
	format, err := utils.ParseLogFormat(cfg.Global.LogFormat)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeInvalidConfig, "invalid log format").WithCause(err)
	}
	a.logger = utils.NewStructuredLogger(&utils.StructuredLoggerConfig{
		Level:         level,
		Output:        a.bridge.Stderr(),
		Format:        format,
		OmitTimestamp: a.now == nil,
		Now:           a.now,
	})

	a.health.AddStateChangeCallback(func(component string, oldState, newState health.HealthState, err error) {
		if component == a.logLane {
			return
		}
		a.logTransition(component, oldState, newState)
	})

	return a, nil
}

func (a *App) logTransition(component string, from, to health.HealthState) {
	fields := map[string]interface{}{
		"component": component,
		"from":      from.String(),
		"to":        to.String(),
	}
	if to == health.StateHealthy {
		a.logger.Info("component recovered", fields)
		return
	}
	a.logger.Warn("component health changed", fields)
}

// reportLogLane logs the printf lane's health if it changed since the last report.
func (a *App) reportLogLane() {
	current := a.health.GetState(a.logLane)
	if current == a.logLaneReported {
		return
	}
	from := a.logLaneReported
	a.logLaneReported = current
	a.logTransition(a.logLane, from, current)
}

// Setup runs the setup phase: the edge timer, the button, then the periodic
// sampler, followed by the banner. Interrupts may fire as soon as it returns.
func (a *App) Setup() error {
	if a.ready {
		return errors.NewError(errors.ErrCodeAlreadyStarted, "setup already ran").WithComponent("firmware")
	}

	var err error
	a.edge, err = edgetimer.Setup(a.board.ButtonTimer, a.board.CoreHz)
	if err != nil {
		return err
	}

	a.button, err = button.Setup(button.Config{
		Line:               a.board.Button,
		Indicator:          a.board.Feedback,
		Timer:              a.edge,
		Stdout:             a.bridge.Stdout(),
		Phase:              &a.shared.Button,
		Cycles:             a.board.Cycles,
		Trace:              a.sink,
		MeasureServiceTime: a.cfg.Button.MeasureServiceTime,
		DebounceTicks:      a.cfg.Button.DebounceTicks,
		Metrics:            a.metrics,
		Logger:             a.logger,
	})
	if err != nil {
		return err
	}

	processor := a.processor
	if processor == nil {
		dp := &sampler.DefaultProcessor{
			Trace:     a.sink,
			Heartbeat: a.board.Heartbeat,
			Feedback:  a.board.Feedback,
		}
		if a.cfg.Sampler.StressEnabled {
			dp.Stress = sampler.BusyWork
		}
		processor = dp
	}

	a.sampler, err = sampler.Setup(sampler.Config{
		ADC:                a.board.ADC,
		DMA:                a.board.SampleDMA,
		Trigger:            a.board.TriggerTimer,
		CoreHz:             a.board.CoreHz,
		Channel:            a.cfg.Board.ADCChannel,
		Shared:             a.shared,
		Processor:          processor,
		Cycles:             a.board.Cycles,
		Trace:              a.sink,
		MeasureServiceTime: a.cfg.Sampler.MeasureServiceTime,
		Metrics:            a.metrics,
		Health:             a.health,
		Logger:             a.logger,
	})
	if err != nil {
		return err
	}

	a.ready = true
	if a.cfg.Global.Banner != "" {
		_, _ = fmt.Fprintf(a.bridge.Stdout(), "%s\n", a.cfg.Global.Banner)
	}
	a.logger.Debug("setup complete", map[string]interface{}{
		"core_hz": a.board.CoreHz,
		"policy":  a.sink.Policy(),
	})
	return nil
}

// Dispatch runs the handler for irq. It is the vector table trampoline the
// platform calls from interrupt context.
func (a *App) Dispatch(irq IRQ) error {
	if !a.ready {
		return errors.Newf(errors.ErrCodeNotInitialized, "interrupt %s before setup", irq).
			WithComponent("firmware")
	}
	switch irq {
	case IRQButton:
		a.button.HandleInterrupt()
	case IRQSampleDMA:
		a.sampler.HandleInterrupt()
	default:
		return errors.Newf(errors.ErrCodeInternalError, "no handler for interrupt %s", irq).
			WithComponent("firmware")
	}
	return nil
}

// Tick advances the heartbeat once and returns the new tick count. Every
// report_every ticks it prints a TICK line, reports the printf lane's health
// and checks the trace breakers.
func (a *App) Tick() uint32 {
	n := a.shared.Ticks.Inc()
	if n%uint32(a.cfg.Heartbeat.ReportEvery) == 0 {
		_, _ = fmt.Fprintf(a.bridge.Stdout(), "TICK %d\n", n)
		a.reportLogLane()
		if breakers := a.sink.Breakers(); breakers != nil {
			if err := breakers.HealthCheck(); err != nil {
				a.logger.Warn("trace lanes shedding output", map[string]interface{}{"error": err.Error()})
			}
		}
	}
	return n
}

// Run is the idle loop. It ticks the heartbeat every heartbeat period until
// ctx is done. Interrupts keep being serviced through Dispatch meanwhile.
func (a *App) Run(ctx context.Context) error {
	if !a.ready {
		return errors.NewError(errors.ErrCodeNotInitialized, "run before setup").WithComponent("firmware")
	}

	ticker := time.NewTicker(a.cfg.Heartbeat.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.Tick()
		}
	}
}

// Shared returns the state shared with the interrupt handlers.
func (a *App) Shared() *state.Shared { return a.shared }

// Sink returns the trace sink.
func (a *App) Sink() *trace.Sink { return a.sink }

// Stdout returns the stdout stream of the stdio bridge.
func (a *App) Stdout() io.Writer { return a.bridge.Stdout() }

// Logger returns the firmware logger.
func (a *App) Logger() *utils.StructuredLogger { return a.logger }

// Metrics returns the metrics collector.
func (a *App) Metrics() *metrics.Collector { return a.metrics }

// Health returns the health tracker.
func (a *App) Health() *health.Tracker { return a.health }
