package retry

import (
	stderr "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swotap/swotap/pkg/errors"
)

func busy() error {
	return errors.NewError(errors.ErrCodeLaneBusy, "not ready")
}

// pollUntil returns a poll that reports busy until its n-th call.
func pollUntil(n int, polls *int) func() error {
	return func() error {
		*polls++
		if *polls < n {
			return busy()
		}
		return nil
	}
}

func TestRetryer_SuccessFirstAttempt(t *testing.T) {
	polls := 0
	require.NoError(t, New(Spin(3)).Do(pollUntil(1, &polls)))
	assert.Equal(t, 1, polls)
}

func TestRetryer_SpinsUntilReady(t *testing.T) {
	polls := 0
	require.NoError(t, New(Spin(10)).Do(pollUntil(4, &polls)))
	assert.Equal(t, 4, polls)
}

func TestRetryer_Exhausted(t *testing.T) {
	r := New(Spin(5))

	polls := 0
	err := r.Do(func() error {
		polls++
		return busy()
	})
	require.Error(t, err)
	assert.Equal(t, 5, polls)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRetryExhausted))
	assert.True(t, errors.HasCode(err, errors.ErrCodeLaneBusy), "last error should be the cause")
}

func TestRetryer_SinglePoll(t *testing.T) {
	polls := 0
	err := New(Spin(1)).Do(pollUntil(2, &polls))
	assert.True(t, errors.HasCode(err, errors.ErrCodeRetryExhausted))
	assert.Equal(t, 1, polls)
}

func TestRetryer_NonRetryableStopsImmediately(t *testing.T) {
	r := New(Spin(5))

	polls := 0
	err := r.Do(func() error {
		polls++
		return errors.NewError(errors.ErrCodeLaneOutOfRange, "lane 9")
	})
	require.Error(t, err)
	assert.Equal(t, 1, polls)
	assert.True(t, errors.HasCode(err, errors.ErrCodeLaneOutOfRange))
	assert.False(t, errors.HasCode(err, errors.ErrCodeRetryExhausted))
}

func TestRetryer_PlainErrorNotRetried(t *testing.T) {
	r := New(Spin(5))

	polls := 0
	err := r.Do(func() error {
		polls++
		return stderr.New("plain")
	})
	require.Error(t, err)
	assert.Equal(t, 1, polls)
}

func TestRetryer_Unbounded(t *testing.T) {
	tests := []struct {
		name     string
		attempts int
	}{
		{"zero", 0},
		{"negative is normalized", -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			polls := 0
			require.NoError(t, New(Spin(tt.attempts)).Do(pollUntil(5000, &polls)))
			assert.Equal(t, 5000, polls)
		})
	}
}

func TestRetryer_RetryableFlag(t *testing.T) {
	r := New(Config{MaxAttempts: 3})

	polls := 0
	err := r.Do(func() error {
		polls++
		e := errors.NewError(errors.ErrCodeInternalError, "flaky")
		e.Retryable = true
		return e
	})
	assert.True(t, errors.HasCode(err, errors.ErrCodeRetryExhausted))
	assert.Equal(t, 3, polls)
}
