// Package trace writes values to the lanes of a debug trace unit.
//
// Each lane is a stimulus port with a small FIFO drained by the attached
// probe. A write waits for the port to report ready and then stores one 8,
// 16 or 32-bit value. How long it waits depends on the policy:
//
//	block    poll until ready, with no limit
//	bounded  poll at most SpinLimit times, then drop the value
//	drop     poll once, then drop the value
//
// Under the bounded policy a per-lane circuit breaker can stop a stalled lane
// from costing SpinLimit polls on every write: after enough consecutive drops
// the lane drops without polling until its cooldown has passed.
//
// Values written to one lane appear in the order they were written. There is
// no ordering between lanes.
package trace

import (
	stderr "errors"

	"github.com/swotap/swotap/internal/circuit"
	"github.com/swotap/swotap/internal/config"
	"github.com/swotap/swotap/internal/hal"
	"github.com/swotap/swotap/internal/metrics"
	"github.com/swotap/swotap/pkg/errors"
	"github.com/swotap/swotap/pkg/health"
	"github.com/swotap/swotap/pkg/retry"
)

// errBusy is returned by a readiness poll that found the FIFO full. It is
// allocated once so that spinning does not allocate.
var errBusy = errors.NewError(errors.ErrCodeLaneBusy, "stimulus port not ready").WithComponent("trace")

// Options configures a Sink.
type Options struct {
	// Policy is one of config.PolicyBlock, config.PolicyBounded or config.PolicyDrop.
	// Empty means block.
	Policy string
	// SpinLimit bounds readiness polls under the bounded policy.
	SpinLimit int
	// Breaker enables a per-lane circuit breaker under the bounded policy.
	Breaker *circuit.Config

	Metrics *metrics.Collector
	Health  *health.Tracker
}

// OptionsFromConfig maps the trace section of the configuration onto Options.
func OptionsFromConfig(cfg config.TraceConfig) Options {
	opts := Options{
		Policy:    cfg.Policy,
		SpinLimit: cfg.SpinLimit,
	}
	if cfg.Breaker.Enabled {
		opts.Breaker = &circuit.Config{
			ReadyToTrip: circuit.ConsecutiveFailures(uint32(cfg.Breaker.FailureThreshold)),
			Timeout:     cfg.Breaker.Cooldown,
		}
	}
	return opts
}

// Sink is the trace writer shared by every producer in the firmware.
type Sink struct {
	ports    hal.StimulusPorts
	lanes    int
	policy   string
	retryer  *retry.Retryer
	breakers *circuit.Manager
	lane     [NumLanes]*circuit.CircuitBreaker

	metrics *metrics.Collector
	health  *health.Tracker
}

// New returns a Sink writing to ports.
func New(ports hal.StimulusPorts, opts Options) (*Sink, error) {
	if ports == nil {
		return nil, errors.NewError(errors.ErrCodeNotInitialized, "trace unit is nil").WithComponent("trace")
	}

	s := &Sink{
		ports:   ports,
		lanes:   ports.NumPorts(),
		policy:  opts.Policy,
		metrics: opts.Metrics,
		health:  opts.Health,
	}
	if s.lanes > NumLanes {
		s.lanes = NumLanes
	}

	switch opts.Policy {
	case "", config.PolicyBlock:
		s.policy = config.PolicyBlock
		s.retryer = retry.New(retry.Spin(0))
	case config.PolicyBounded:
		if opts.SpinLimit <= 0 {
			return nil, errors.NewError(errors.ErrCodeInvalidConfig, "bounded policy needs a positive spin limit").
				WithComponent("trace")
		}
		s.retryer = retry.New(retry.Spin(opts.SpinLimit))
		if opts.Breaker != nil {
			s.breakers = s.newBreakers(*opts.Breaker)
		}
	case config.PolicyDrop:
		s.retryer = retry.New(retry.Spin(1))
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfig, "unknown trace policy %q", opts.Policy).
			WithComponent("trace")
	}

	for l := 0; l < s.lanes; l++ {
		s.health.RegisterComponent(HealthComponent(Lane(l)))
	}

	return s, nil
}

func (s *Sink) newBreakers(cfg circuit.Config) *circuit.Manager {
	next := cfg.OnStateChange
	cfg.OnStateChange = func(name string, from, to circuit.State) {
		s.metrics.SetBreakerState(name, int(to))
		if next != nil {
			next(name, from, to)
		}
	}
	m := circuit.NewManager(cfg)
	for l := 0; l < s.lanes; l++ {
		s.lane[l] = m.GetBreaker(Lane(l).String())
	}
	return m
}

// HealthComponent names the health component that tracks lane l.
func HealthComponent(l Lane) string {
	return "trace." + l.String()
}

// Policy returns the effective back-pressure policy.
func (s *Sink) Policy() string { return s.policy }

// Lanes returns how many lanes are writable on this trace unit.
func (s *Sink) Lanes() int { return s.lanes }

// Breakers returns the per-lane breakers, or nil when none are configured.
func (s *Sink) Breakers() *circuit.Manager { return s.breakers }

// WriteU8 writes one 8-bit value to lane.
func (s *Sink) WriteU8(lane Lane, v uint8) error {
	port, err := s.acquire(lane)
	if err != nil {
		return err
	}
	port.Write8(v)
	s.written(lane)
	return nil
}

// WriteU16 writes one 16-bit value to lane.
func (s *Sink) WriteU16(lane Lane, v uint16) error {
	port, err := s.acquire(lane)
	if err != nil {
		return err
	}
	port.Write16(v)
	s.written(lane)
	return nil
}

// WriteU32 writes one 32-bit value to lane.
func (s *Sink) WriteU32(lane Lane, v uint32) error {
	port, err := s.acquire(lane)
	if err != nil {
		return err
	}
	port.Write32(v)
	s.written(lane)
	return nil
}

// acquire waits, per policy, until lane can take a value.
func (s *Sink) acquire(lane Lane) (hal.StimulusPort, error) {
	if lane < 0 || int(lane) >= s.lanes {
		return nil, errors.Newf(errors.ErrCodeLaneOutOfRange, "lane %d out of range [0,%d)", int(lane), s.lanes).
			WithComponent("trace").WithDetail("lane", int(lane))
	}

	port := s.ports.Port(int(lane))
	poll := func() error {
		if port.Ready() {
			return nil
		}
		return errBusy
	}

	var err error
	if b := s.lane[lane]; b != nil {
		err = b.Execute(func() error { return s.retryer.Do(poll) })
	} else {
		err = s.retryer.Do(poll)
	}
	if err == nil {
		return port, nil
	}

	reason := metrics.DropBusy
	if stderr.Is(err, circuit.ErrOpenState) || stderr.Is(err, circuit.ErrTooManyRequests) {
		reason = metrics.DropBreakerOpen
	}
	dropped := errors.Newf(errors.ErrCodeLaneDropped, "value dropped on lane %s", lane).
		WithComponent("trace").
		WithDetail("lane", lane.String()).
		WithDetail("reason", reason).
		WithCause(err)

	s.metrics.RecordLaneDrop(lane.String(), reason)
	s.health.RecordError(HealthComponent(lane), dropped)
	return nil, dropped
}

func (s *Sink) written(lane Lane) {
	s.metrics.RecordLaneWrite(lane.String())
	s.health.RecordSuccess(HealthComponent(lane))
}

// IsDropped reports whether err means a value was discarded by the policy.
func IsDropped(err error) bool {
	return errors.HasCode(err, errors.ErrCodeLaneDropped)
}
