package firmware

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swotap/swotap/internal/config"
	"github.com/swotap/swotap/internal/hal/sim"
	"github.com/swotap/swotap/internal/state"
	"github.com/swotap/swotap/internal/trace"
	"github.com/swotap/swotap/pkg/errors"
	"github.com/swotap/swotap/pkg/health"
)

// boot builds an app on a simulated board and routes the board's interrupt
// lines through Dispatch, the way a vector table would.
func boot(t *testing.T, cfg *config.Configuration, opts ...Option) (*App, *sim.Board) {
	t.Helper()
	board := sim.NewBoard(trace.NumLanes)
	app, err := New(board.HAL(), cfg, opts...)
	require.NoError(t, err)

	board.Button.Handler = func() { require.NoError(t, app.Dispatch(IRQButton)) }
	board.SampleDMA.Handler = func() { require.NoError(t, app.Dispatch(IRQSampleDMA)) }

	require.NoError(t, app.Setup())
	return app, board
}

func printf(board *sim.Board) string {
	return board.Trace.Lane(int(trace.LanePrintf)).Text()
}

func TestIRQ_String(t *testing.T) {
	assert.Equal(t, "button", IRQButton.String())
	assert.Equal(t, "sample_dma", IRQSampleDMA.String())
	assert.Equal(t, "irq7", IRQ(7).String())
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Trace.Policy = "eventually"

	_, err := New(sim.NewBoard(trace.NumLanes).HAL(), cfg)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigValidation))
}

func TestNew_RejectsClockMismatch(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Board.CoreHz = 48_000_000

	_, err := New(sim.NewBoard(trace.NumLanes).HAL(), cfg)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfig))
}

func TestSetup_BannerAndPeripherals(t *testing.T) {
	app, board := boot(t, nil)

	assert.Equal(t, "hi guys!\r\n", printf(board))
	assert.True(t, board.ButtonTimer.Running())
	assert.True(t, board.TriggerTimer.Running())
	assert.Equal(t, []uint8{17, 17, 17, 17}, board.ADC.Sequence())

	err := app.Setup()
	assert.True(t, errors.HasCode(err, errors.ErrCodeAlreadyStarted))
}

func TestDispatch_BeforeSetup(t *testing.T) {
	app, err := New(sim.NewBoard(trace.NumLanes).HAL(), nil)
	require.NoError(t, err)

	assert.True(t, errors.HasCode(app.Dispatch(IRQButton), errors.ErrCodeNotInitialized))
	assert.True(t, errors.HasCode(app.Run(context.Background()), errors.ErrCodeNotInitialized))
}

func TestDispatch_UnknownVector(t *testing.T) {
	app, _ := boot(t, nil)
	assert.True(t, errors.HasCode(app.Dispatch(IRQ(42)), errors.ErrCodeInternalError))
}

func TestButtonSession(t *testing.T) {
	app, board := boot(t, nil)
	board.Trace.Lane(int(trace.LanePrintf)).Reset()

	board.Button.Press()
	assert.True(t, board.Feedback.Get())
	assert.True(t, app.Shared().Button.Falling())

	board.ButtonTimer.Advance(250)
	board.Button.Release()
	assert.False(t, board.Feedback.Get())
	assert.False(t, app.Shared().Button.Falling())

	assert.Equal(t, "Pushed down!\r\nheld: 250 ms\r\n", printf(board))
	assert.Len(t, board.Trace.Lane(int(trace.LaneButtonTiming)).Words32(), 2)
}

func TestSamplingSession(t *testing.T) {
	app, board := boot(t, nil)
	board.ADC.Input = func(uint8) uint16 { return 512 }

	board.TriggerTimer.Advance(10 * 20)

	assert.Equal(t, uint32(10), app.Shared().Batches.Load())
	words := board.Trace.Lane(int(trace.LaneSample)).Words16()
	require.Len(t, words, 10)
	assert.Equal(t, uint16(512), words[0])
	assert.Equal(t, uint64(10), board.Heartbeat.Toggles())
	assert.Equal(t, [state.BufferLen]uint16{512, 512, 512, 512}, app.Shared().Samples)
	assert.Empty(t, board.Trace.Lane(int(trace.LaneSampleTiming)).Values(), "sample timing is off by default")
}

func TestSamplingWithCustomProcessor(t *testing.T) {
	var batches int
	_, board := boot(t, nil, WithProcessor(processorFunc(func(*[state.BufferLen]uint16) { batches++ })))

	board.TriggerTimer.Advance(3 * 20)
	assert.Equal(t, 3, batches)
	assert.Empty(t, board.Trace.Lane(int(trace.LaneSample)).Values())
}

type processorFunc func(*[state.BufferLen]uint16)

func (f processorFunc) Process(s *[state.BufferLen]uint16) { f(s) }

func TestTransferErrorLogged(t *testing.T) {
	app, board := boot(t, nil)
	board.Trace.Lane(int(trace.LanePrintf)).Reset()

	board.SampleDMA.Fail()

	assert.Equal(t, "[ERROR] transfer error {batches=0, component=sampler}\r\n", printf(board))
	assert.False(t, board.SampleDMA.TransferError())
	assert.Equal(t, health.StateHealthy, app.Health().GetState("sampler"))
}

func TestTransferErrorsDegradeSampler(t *testing.T) {
	app, board := boot(t, nil)

	for i := 0; i < 3; i++ {
		board.SampleDMA.Fail()
	}
	assert.Equal(t, health.StateDegraded, app.Health().GetState("sampler"))
	assert.Contains(t, printf(board), "[WARN] component health changed {component=sampler, from=healthy, to=degraded}\r\n")
}

func TestLogClock(t *testing.T) {
	at := time.Date(2026, 10, 15, 8, 30, 0, 0, time.UTC)
	_, board := boot(t, nil, WithClock(func() time.Time { return at }))
	board.Trace.Lane(int(trace.LanePrintf)).Reset()

	board.SampleDMA.Fail()
	assert.True(t, strings.HasPrefix(printf(board), "2026-10-15 08:30:00.000 [ERROR] transfer error"))
}

func TestTick_ReportsEveryN(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Heartbeat.ReportEvery = 3
	cfg.Global.Banner = ""
	app, board := boot(t, cfg)

	for i := 0; i < 7; i++ {
		app.Tick()
	}
	assert.Equal(t, uint32(7), app.Shared().Ticks.Load())
	assert.Equal(t, "TICK 3\r\nTICK 6\r\n", printf(board))
	assert.Zero(t, board.Heartbeat.Toggles(), "the heartbeat tick does not drive indicators")
}

func TestTick_WarnsOnOpenBreaker(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Trace.Policy = config.PolicyBounded
	cfg.Trace.SpinLimit = 2
	cfg.Trace.Breaker.FailureThreshold = 1
	cfg.Trace.Breaker.Cooldown = time.Hour
	cfg.Heartbeat.ReportEvery = 1
	app, board := boot(t, cfg)

	board.Trace.Lane(int(trace.LaneSample)).Stall()
	board.TriggerTimer.Advance(20)
	board.Trace.Lane(int(trace.LanePrintf)).Reset()

	app.Tick()
	assert.Contains(t, printf(board), "TICK 1\r\n")
	assert.Contains(t, printf(board), "[WARN] trace lanes shedding output {error=circuit breakers open: [sample]}\r\n")
}

func TestRun_TicksUntilCanceled(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Heartbeat.Period = time.Millisecond
	cfg.Heartbeat.ReportEvery = 2
	app, board := boot(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool { return app.Shared().Ticks.Load() >= 4 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Contains(t, printf(board), "TICK 2\r\n")
}

func TestDropPolicyKeepsRunning(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Trace.Policy = config.PolicyDrop
	app, board := boot(t, cfg)

	board.Trace.Lane(int(trace.LaneSample)).Stall()
	board.ADC.Input = func(uint8) uint16 { return 1 }
	board.TriggerTimer.Advance(5 * 20)

	assert.Equal(t, uint32(5), app.Shared().Batches.Load())
	assert.Empty(t, board.Trace.Lane(int(trace.LaneSample)).Values())
	assert.Equal(t, health.StateLossy, app.Health().GetState("trace.sample"))
}

func TestStalledPrintfLaneDoesNotHang(t *testing.T) {
	tests := []struct {
		name    string
		policy  string
		breaker bool
	}{
		{"drop", config.PolicyDrop, false},
		{"bounded", config.PolicyBounded, false},
		{"bounded with breaker", config.PolicyBounded, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewDefault()
			cfg.Trace.Policy = tt.policy
			cfg.Trace.SpinLimit = 4
			cfg.Trace.Breaker.Enabled = tt.breaker
			cfg.Heartbeat.ReportEvery = 1
			app, board := boot(t, cfg)

			lane := board.Trace.Lane(int(trace.LanePrintf))
			lane.Stall()

			done := make(chan struct{})
			go func() {
				defer close(done)
				for i := 0; i < 5; i++ {
					app.Tick()
				}
				app.Logger().Error("still logging")
			}()

			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("heartbeat blocked on a stalled printf lane")
			}
			assert.Equal(t, uint32(5), app.Shared().Ticks.Load())
			assert.Equal(t, health.StateUnavailable, app.Health().GetState("trace.printf"))

			if tt.breaker {
				return
			}
			lane.Drain()
			lane.Reset()
			app.Tick()
			assert.Equal(t,
				"TICK 6\r\n[WARN] component health changed {component=trace.printf, from=healthy, to=unavailable}\r\n",
				printf(board))

			lane.Reset()
			app.Tick()
			assert.Equal(t, "TICK 7\r\n", printf(board), "an unchanged state is reported once")
		})
	}
}
