// Package retry provides the readiness spin used by the trace sink.
//
// A Retryer calls fn again, without sleeping, for as long as fn fails with a
// retryable error. It allocates nothing per attempt, so it is safe to use from
// interrupt handlers.
package retry

import (
	stderr "errors"

	"github.com/swotap/swotap/pkg/errors"
)

// Config defines retry behavior configuration
type Config struct {
	// MaxAttempts is the maximum number of attempts including the first one.
	// Zero means no limit: the loop runs until fn succeeds or fails permanently.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`

	// RetryableErrors is a list of error codes that should trigger retry
	RetryableErrors []errors.ErrorCode `yaml:"retryable_errors" json:"retryable_errors"`
}

// Spin returns a configuration that retries a busy lane up to attempts
// times. attempts == 0 spins forever.
func Spin(attempts int) Config {
	return Config{
		MaxAttempts:     attempts,
		RetryableErrors: []errors.ErrorCode{errors.ErrCodeLaneBusy},
	}
}

// Retryer handles retry logic
type Retryer struct {
	config Config
}

// New creates a new Retryer with the given configuration
func New(config Config) *Retryer {
	if config.MaxAttempts < 0 {
		config.MaxAttempts = 0
	}
	return &Retryer{config: config}
}

// Do executes fn until it succeeds, fails permanently, or attempts run out.
// Running out wraps the last error in RETRY_EXHAUSTED.
func (r *Retryer) Do(fn func() error) error {
	var lastErr error

	for attempt := 1; r.config.MaxAttempts == 0 || attempt <= r.config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !r.isRetryable(err) {
			return err
		}
		lastErr = err
	}

	return errors.Newf(errors.ErrCodeRetryExhausted,
		"max retry attempts (%d) exceeded", r.config.MaxAttempts).WithCause(lastErr)
}

// isRetryable determines if an error is retryable
func (r *Retryer) isRetryable(err error) bool {
	var e *errors.Error
	if !stderr.As(err, &e) {
		return false
	}
	if e.Retryable {
		return true
	}
	for _, code := range r.config.RetryableErrors {
		if e.Code == code {
			return true
		}
	}
	return false
}
