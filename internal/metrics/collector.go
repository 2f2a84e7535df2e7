package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Label values shared by the recorders.
const (
	DropBusy        = "busy"
	DropBreakerOpen = "breaker_open"

	ISRButton    = "button"
	ISRSampleDMA = "sample_dma"

	EdgePress   = "press"
	EdgeRelease = "release"
	EdgeBounce  = "bounce"
)

// Collector records firmware telemetry into a private Prometheus registry.
// A nil or disabled Collector accepts every call and records nothing.
type Collector struct {
	config   *Config
	registry *prometheus.Registry

	laneWrites     *prometheus.CounterVec
	laneDrops      *prometheus.CounterVec
	breakerState   *prometheus.GaugeVec
	isrCycles      *prometheus.HistogramVec
	sampleBatches  prometheus.Counter
	transferErrors prometheus.Counter
	buttonEdges    *prometheus.CounterVec
	holdTicks      prometheus.Histogram
}

// Config represents metrics configuration
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// NewCollector creates a new metrics collector
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = &Config{
			Enabled:   true,
			Namespace: "swotap",
		}
	}

	if !config.Enabled {
		return &Collector{config: config}, nil
	}

	collector := &Collector{
		config:   config,
		registry: prometheus.NewRegistry(),
	}

	collector.initMetrics()

	if err := collector.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return collector, nil
}

func (c *Collector) enabled() bool {
	return c != nil && c.config != nil && c.config.Enabled
}

// Registry returns the registry backing the collector, or nil when disabled.
func (c *Collector) Registry() *prometheus.Registry {
	if !c.enabled() {
		return nil
	}
	return c.registry
}

// RecordLaneWrite counts a value that reached a trace lane
func (c *Collector) RecordLaneWrite(lane string) {
	if !c.enabled() {
		return
	}
	c.laneWrites.WithLabelValues(lane).Inc()
}

// RecordLaneDrop counts a value a non-blocking policy discarded
func (c *Collector) RecordLaneDrop(lane, reason string) {
	if !c.enabled() {
		return
	}
	c.laneDrops.WithLabelValues(lane, reason).Inc()
}

// SetBreakerState publishes a lane breaker state (0 closed, 1 open, 2 half-open)
func (c *Collector) SetBreakerState(lane string, state int) {
	if !c.enabled() {
		return
	}
	c.breakerState.WithLabelValues(lane).Set(float64(state))
}

// ObserveISRCycles records how many core cycles a handler ran for
func (c *Collector) ObserveISRCycles(isr string, cycles uint32) {
	if !c.enabled() {
		return
	}
	c.isrCycles.WithLabelValues(isr).Observe(float64(cycles))
}

// RecordSampleBatch counts a processed DMA batch
func (c *Collector) RecordSampleBatch() {
	if !c.enabled() {
		return
	}
	c.sampleBatches.Inc()
}

// RecordTransferError counts a DMA transfer error
func (c *Collector) RecordTransferError() {
	if !c.enabled() {
		return
	}
	c.transferErrors.Inc()
}

// RecordButtonEdge counts a button edge by kind
func (c *Collector) RecordButtonEdge(kind string) {
	if !c.enabled() {
		return
	}
	c.buttonEdges.WithLabelValues(kind).Inc()
}

// ObserveHold records a completed hold in edge-timer ticks
func (c *Collector) ObserveHold(ticks uint16) {
	if !c.enabled() {
		return
	}
	c.holdTicks.Observe(float64(ticks))
}

func (c *Collector) initMetrics() {
	c.laneWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "lane_writes_total",
			Help:      "Total number of values written to a trace lane",
		},
		[]string{"lane"},
	)

	c.laneDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "lane_drops_total",
			Help:      "Total number of trace values dropped",
		},
		[]string{"lane", "reason"},
	)

	c.breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "lane_breaker_state",
			Help:      "Trace lane circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"lane"},
	)

	c.isrCycles = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "isr_service_cycles",
			Help:      "Core cycles spent in an interrupt handler",
			Buckets:   prometheus.ExponentialBuckets(16, 2, 16), // 16 to ~512k cycles
		},
		[]string{"isr"},
	)

	c.sampleBatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "sample_batches_total",
			Help:      "Total number of completed sample batches processed",
		},
	)

	c.transferErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "transfer_errors_total",
			Help:      "Total number of DMA transfer errors",
		},
	)

	c.buttonEdges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "button_edges_total",
			Help:      "Total number of button edges serviced",
		},
		[]string{"kind"},
	)

	c.holdTicks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "hold_duration_ticks",
			Help:      "Button hold duration in 1 kHz edge-timer ticks",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 13), // 10ms to ~41s
		},
	)
}

func (c *Collector) registerMetrics() error {
	metrics := []prometheus.Collector{
		c.laneWrites,
		c.laneDrops,
		c.breakerState,
		c.isrCycles,
		c.sampleBatches,
		c.transferErrors,
		c.buttonEdges,
		c.holdTicks,
	}

	for _, metric := range metrics {
		if err := c.registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}
