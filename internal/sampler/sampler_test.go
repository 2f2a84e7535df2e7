package sampler

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swotap/swotap/internal/hal/sim"
	"github.com/swotap/swotap/internal/metrics"
	"github.com/swotap/swotap/internal/state"
	"github.com/swotap/swotap/internal/trace"
	"github.com/swotap/swotap/pkg/errors"
	"github.com/swotap/swotap/pkg/health"
	"github.com/swotap/swotap/pkg/utils"
)

type recordingProcessor struct {
	batches [][state.BufferLen]uint16
}

func (p *recordingProcessor) Process(samples *[state.BufferLen]uint16) {
	p.batches = append(p.batches, *samples)
}

func baseConfig(board *sim.Board, shared *state.Shared, proc Processor) Config {
	return Config{
		ADC:       board.ADC,
		DMA:       board.SampleDMA,
		Trigger:   board.TriggerTimer,
		CoreHz:    sim.DefaultCoreHz,
		Channel:   DefaultChannel,
		Shared:    shared,
		Processor: proc,
	}
}

func setup(t *testing.T, cfg Config, board *sim.Board) *Sampler {
	t.Helper()
	s, err := Setup(cfg)
	require.NoError(t, err)
	board.SampleDMA.Handler = s.HandleInterrupt
	return s
}

func TestConstants(t *testing.T) {
	assert.Equal(t, 19, TriggerPeriod)
	assert.Equal(t, uint32(239), TriggerPrescaler(24_000_000))
	assert.Equal(t, 4, BufferLen)
}

func TestSetup_ConfiguresPeripherals(t *testing.T) {
	board := sim.NewBoard(trace.NumLanes)
	setup(t, baseConfig(board, state.New(), &recordingProcessor{}), board)

	assert.Equal(t, []uint8{17, 17, 17, 17}, board.ADC.Sequence())
	assert.True(t, board.ADC.Triggered())
	assert.Equal(t, BufferLen, board.SampleDMA.Count())

	prescaler, period := board.TriggerTimer.Settings()
	assert.Equal(t, uint32(239), prescaler)
	assert.Equal(t, uint32(19), period)
	assert.True(t, board.TriggerTimer.Running())
}

func TestSetup_Rejects(t *testing.T) {
	board := sim.NewBoard(trace.NumLanes)

	tests := []struct {
		name   string
		mutate func(*Config)
		code   errors.ErrorCode
	}{
		{"transfer count too short", func(c *Config) { c.TransferCount = 3 }, errors.ErrCodeTransferLength},
		{"transfer count too long", func(c *Config) { c.TransferCount = 8 }, errors.ErrCodeTransferLength},
		{"no processor", func(c *Config) { c.Processor = nil }, errors.ErrCodeNotInitialized},
		{"no shared state", func(c *Config) { c.Shared = nil }, errors.ErrCodeNotInitialized},
		{"measure without cycles", func(c *Config) { c.MeasureServiceTime = true }, errors.ErrCodeNotInitialized},
		{"odd core clock", func(c *Config) { c.CoreHz = 24_050_000 }, errors.ErrCodeInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig(board, state.New(), &recordingProcessor{})
			tt.mutate(&cfg)
			_, err := Setup(cfg)
			assert.True(t, errors.HasCode(err, tt.code), "err = %v", err)
		})
	}
}

func TestSampler_ProcessesEveryBatch(t *testing.T) {
	board := sim.NewBoard(trace.NumLanes)
	shared := state.New()
	proc := &recordingProcessor{}
	setup(t, baseConfig(board, shared, proc), board)

	var next uint16
	board.ADC.Input = func(ch uint8) uint16 {
		assert.Equal(t, uint8(DefaultChannel), ch)
		next++
		return next
	}

	// One trigger period is TriggerPeriod+1 counter ticks.
	board.TriggerTimer.Advance(3 * (TriggerPeriod + 1))

	require.Len(t, proc.batches, 3)
	assert.Equal(t, [state.BufferLen]uint16{1, 2, 3, 4}, proc.batches[0])
	assert.Equal(t, [state.BufferLen]uint16{9, 10, 11, 12}, proc.batches[2])
	assert.Equal(t, uint32(3), shared.Batches.Load())
	assert.False(t, board.SampleDMA.TransferComplete(), "flag must be cleared")
}

func TestSampler_CounterIncrementsAfterProcessing(t *testing.T) {
	board := sim.NewBoard(trace.NumLanes)
	shared := state.New()
	var seen []uint32
	proc := ProcessorFunc(func(*[state.BufferLen]uint16) {
		seen = append(seen, shared.Batches.Load())
	})
	setup(t, baseConfig(board, shared, proc), board)

	board.TriggerTimer.Advance(2 * (TriggerPeriod + 1))
	assert.Equal(t, []uint32{0, 1}, seen)
}

func TestSampler_TransferErrorIsLoggedAndCleared(t *testing.T) {
	board := sim.NewBoard(trace.NumLanes)
	shared := state.New()
	proc := &recordingProcessor{}
	logs := &bytes.Buffer{}
	collector, err := metrics.NewCollector(&metrics.Config{Enabled: true, Namespace: "s"})
	require.NoError(t, err)
	tracker := health.NewTracker(health.DefaultConfig())

	cfg := baseConfig(board, shared, proc)
	cfg.Metrics = collector
	cfg.Health = tracker
	cfg.Logger = utils.NewStructuredLogger(&utils.StructuredLoggerConfig{
		Level:         utils.INFO,
		Output:        logs,
		OmitTimestamp: true,
	})
	setup(t, cfg, board)

	board.SampleDMA.Fail()

	assert.Empty(t, proc.batches, "an error alone must not run the processor")
	assert.Equal(t, uint32(0), shared.Batches.Load())
	assert.False(t, board.SampleDMA.TransferError())
	assert.Equal(t, "[ERROR] transfer error {batches=0, component=sampler}\n", logs.String())

	h, err := tracker.GetComponentHealth(ComponentName)
	require.NoError(t, err)
	assert.Equal(t, 1, h.ConsecutiveErrors)

	// Acquisition keeps going.
	board.TriggerTimer.Advance(TriggerPeriod + 1)
	assert.Len(t, proc.batches, 1)
	assert.True(t, tracker.IsHealthy(ComponentName))
}

func TestSampler_ServiceTime(t *testing.T) {
	board := sim.NewBoard(trace.NumLanes)
	sink, err := trace.New(board.Trace, trace.Options{})
	require.NoError(t, err)
	board.Cycles.SetStep(40)

	cfg := baseConfig(board, state.New(), &recordingProcessor{})
	cfg.MeasureServiceTime = true
	cfg.Cycles = board.Cycles
	cfg.Trace = sink
	setup(t, cfg, board)

	board.TriggerTimer.Advance(TriggerPeriod + 1)
	assert.Equal(t, []uint32{40}, board.Trace.Lane(int(trace.LaneSampleTiming)).Words32())
}

func TestDefaultProcessor(t *testing.T) {
	tests := []struct {
		name          string
		samples       [state.BufferLen]uint16
		feedback      bool
		wantToggles   uint64
		wantStressArg []uint16
	}{
		{"distinct samples", [4]uint16{10, 11, 12, 13}, false, 0, nil},
		{"equal first pair toggles heartbeat", [4]uint16{7, 7, 0, 0}, false, 1, nil},
		{"feedback on runs stress", [4]uint16{300, 1, 2, 3}, true, 0, []uint16{300}},
		{"both", [4]uint16{5, 5, 5, 5}, true, 1, []uint16{5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board := sim.NewBoard(trace.NumLanes)
			sink, err := trace.New(board.Trace, trace.Options{})
			require.NoError(t, err)
			if tt.feedback {
				board.Feedback.Set()
			}

			var stress []uint16
			p := &DefaultProcessor{
				Trace:     sink,
				Heartbeat: board.Heartbeat,
				Feedback:  board.Feedback,
				Stress:    func(n uint16) { stress = append(stress, n) },
			}
			samples := tt.samples
			p.Process(&samples)

			assert.Equal(t, []uint16{tt.samples[0]}, board.Trace.Lane(int(trace.LaneSample)).Words16())
			assert.Equal(t, tt.wantToggles, board.Heartbeat.Toggles())
			assert.Equal(t, tt.wantStressArg, stress)
		})
	}
}

func TestSampler_RepeatedBatchesAreIdempotent(t *testing.T) {
	board := sim.NewBoard(trace.NumLanes)
	sink, err := trace.New(board.Trace, trace.Options{})
	require.NoError(t, err)
	shared := state.New()

	p := &DefaultProcessor{Trace: sink, Heartbeat: board.Heartbeat, Feedback: board.Feedback}
	setup(t, baseConfig(board, shared, p), board)

	pattern := [state.BufferLen]uint16{100, 100, 50, 50}
	var conversions int
	board.ADC.Input = func(uint8) uint16 {
		v := pattern[conversions%state.BufferLen]
		conversions++
		return v
	}

	const batches = 5
	board.TriggerTimer.Advance(batches * (TriggerPeriod + 1))

	assert.Equal(t, []uint16{100, 100, 100, 100, 100}, board.Trace.Lane(int(trace.LaneSample)).Words16())
	assert.Equal(t, uint64(batches), board.Heartbeat.Toggles(), "one toggle per completion")
	assert.Equal(t, uint32(batches), shared.Batches.Load())
	assert.Equal(t, pattern, shared.Samples)
}

func TestDefaultProcessor_NilStress(t *testing.T) {
	board := sim.NewBoard(trace.NumLanes)
	sink, err := trace.New(board.Trace, trace.Options{})
	require.NoError(t, err)
	board.Feedback.Set()

	p := &DefaultProcessor{Trace: sink, Heartbeat: board.Heartbeat, Feedback: board.Feedback}
	samples := [state.BufferLen]uint16{1, 2, 3, 4}
	assert.NotPanics(t, func() { p.Process(&samples) })
}

func TestBusyWork(t *testing.T) {
	assert.NotPanics(t, func() {
		BusyWork(0)
		BusyWork(4095)
	})
}
