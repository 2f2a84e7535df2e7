package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/swotap/swotap/pkg/errors"
)

// Trace back-pressure policies.
const (
	PolicyBlock   = "block"
	PolicyBounded = "bounded"
	PolicyDrop    = "drop"
)

// Configuration represents the complete firmware configuration
type Configuration struct {
	Global    GlobalConfig    `yaml:"global"`
	Board     BoardConfig     `yaml:"board"`
	Trace     TraceConfig     `yaml:"trace"`
	Button    ButtonConfig    `yaml:"button"`
	Sampler   SamplerConfig   `yaml:"sampler"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// GlobalConfig represents global settings
type GlobalConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	Banner    string `yaml:"banner"`
}

// BoardConfig describes what the clock tree and pin mux were set up for.
type BoardConfig struct {
	CoreHz     uint32 `yaml:"core_hz"`
	ADCChannel uint8  `yaml:"adc_channel"`
}

// TraceConfig selects how a trace write behaves when its lane is busy
type TraceConfig struct {
	Policy    string        `yaml:"policy"`
	SpinLimit int           `yaml:"spin_limit"`
	Breaker   BreakerConfig `yaml:"breaker"`
}

// BreakerConfig represents per-lane circuit breaker settings
type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// ButtonConfig represents button monitor settings
type ButtonConfig struct {
	DebounceTicks      uint16 `yaml:"debounce_ticks"`
	MeasureServiceTime bool   `yaml:"measure_service_time"`
}

// SamplerConfig represents sample processing settings
type SamplerConfig struct {
	StressEnabled      bool `yaml:"stress_enabled"`
	MeasureServiceTime bool `yaml:"measure_service_time"`
}

// HeartbeatConfig represents idle-loop tick settings
type HeartbeatConfig struct {
	Period      time.Duration `yaml:"period"`
	ReportEvery int           `yaml:"report_every"`
}

// MetricsConfig represents metrics settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// NewDefault returns the reference board configuration
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:  "INFO",
			LogFormat: "text",
			Banner:    "hi guys!",
		},
		Board: BoardConfig{
			CoreHz:     24_000_000,
			ADCChannel: 17,
		},
		Trace: TraceConfig{
			Policy:    PolicyBlock,
			SpinLimit: 10000,
			Breaker: BreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				Cooldown:         time.Second,
			},
		},
		Button: ButtonConfig{
			DebounceTicks:      0,
			MeasureServiceTime: true,
		},
		Sampler: SamplerConfig{
			StressEnabled:      true,
			MeasureServiceTime: false,
		},
		Heartbeat: HeartbeatConfig{
			Period:      time.Millisecond,
			ReportEvery: 1000,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "swotap",
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.NewError(errors.ErrCodeConfigLoad, "failed to read config file").
			WithDetail("file", filename).WithCause(err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.NewError(errors.ErrCodeConfigLoad, "failed to parse config file").
			WithDetail("file", filename).WithCause(err)
	}

	return nil
}

// LoadFromEnv loads configuration from SWOTAP_* environment variables
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("SWOTAP_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = strings.ToUpper(val)
	}
	if val := os.Getenv("SWOTAP_LOG_FORMAT"); val != "" {
		c.Global.LogFormat = strings.ToLower(val)
	}
	if val := os.Getenv("SWOTAP_CORE_HZ"); val != "" {
		hz, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return envError("SWOTAP_CORE_HZ", val, err)
		}
		c.Board.CoreHz = uint32(hz)
	}

	if val := os.Getenv("SWOTAP_TRACE_POLICY"); val != "" {
		c.Trace.Policy = strings.ToLower(val)
	}
	if val := os.Getenv("SWOTAP_TRACE_SPIN_LIMIT"); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil {
			return envError("SWOTAP_TRACE_SPIN_LIMIT", val, err)
		}
		c.Trace.SpinLimit = limit
	}
	if val := os.Getenv("SWOTAP_TRACE_BREAKER"); val != "" {
		c.Trace.Breaker.Enabled = strings.ToLower(val) == "true"
	}

	if val := os.Getenv("SWOTAP_BUTTON_DEBOUNCE_TICKS"); val != "" {
		ticks, err := strconv.ParseUint(val, 10, 16)
		if err != nil {
			return envError("SWOTAP_BUTTON_DEBOUNCE_TICKS", val, err)
		}
		c.Button.DebounceTicks = uint16(ticks)
	}
	if val := os.Getenv("SWOTAP_SAMPLER_STRESS"); val != "" {
		c.Sampler.StressEnabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("SWOTAP_METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = strings.ToLower(val) == "true"
	}

	return nil
}

func envError(name, val string, cause error) error {
	return errors.Newf(errors.ErrCodeInvalidConfig, "invalid %s=%q", name, val).WithCause(cause)
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.NewError(errors.ErrCodeConfigSave, "failed to marshal config").WithCause(err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return errors.NewError(errors.ErrCodeConfigSave, "failed to create config directory").WithCause(err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return errors.NewError(errors.ErrCodeConfigSave, "failed to write config file").WithCause(err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return errors.Newf(errors.ErrCodeConfigValidation, format, args...).WithComponent("config")
	}

	validLogLevels := []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if c.Global.LogLevel == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return invalid("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if c.Global.LogFormat != "text" && c.Global.LogFormat != "json" {
		return invalid("invalid log_format: %s (must be text or json)", c.Global.LogFormat)
	}

	// Both fixed-rate timers derive an integer prescaler from the core clock.
	if c.Board.CoreHz == 0 || c.Board.CoreHz%100_000 != 0 {
		return invalid("core_hz %d must be a non-zero multiple of 100000", c.Board.CoreHz)
	}
	if c.Board.CoreHz/1000-1 > 0xFFFF {
		return invalid("core_hz %d too fast for a 16-bit 1 kHz prescaler", c.Board.CoreHz)
	}

	switch c.Trace.Policy {
	case PolicyBlock, PolicyDrop:
	case PolicyBounded:
		if c.Trace.SpinLimit <= 0 {
			return invalid("spin_limit must be greater than 0 for the bounded policy")
		}
	default:
		return invalid("invalid trace policy: %s (must be block, bounded or drop)", c.Trace.Policy)
	}
	if c.Trace.Breaker.Enabled {
		if c.Trace.Breaker.FailureThreshold <= 0 {
			return invalid("breaker failure_threshold must be greater than 0")
		}
		if c.Trace.Breaker.Cooldown <= 0 {
			return invalid("breaker cooldown must be greater than 0")
		}
	}

	if c.Heartbeat.Period <= 0 {
		return invalid("heartbeat period must be greater than 0")
	}
	if c.Heartbeat.ReportEvery <= 0 {
		return invalid("heartbeat report_every must be greater than 0")
	}

	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return invalid("metrics namespace must not be empty when metrics are enabled")
	}

	return nil
}

// String renders the configuration as YAML for diagnostics.
func (c *Configuration) String() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return string(data)
}
