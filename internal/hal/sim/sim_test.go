package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swotap/swotap/internal/hal"
)

func TestTimer_AdvanceWraps(t *testing.T) {
	tm := NewTimer()
	tm.Configure(23999, 0xFFFF)

	tm.Advance(10)
	assert.Equal(t, uint16(0), tm.Count(), "stopped timer must not count")

	tm.Start()
	tm.Advance(250)
	assert.Equal(t, uint16(250), tm.Count())

	tm.SetCount(0xFFFF)
	tm.Advance(3)
	assert.Equal(t, uint16(2), tm.Count())
	assert.Equal(t, uint64(1), tm.Updates())
}

func TestTimer_TriggerOutputDrivesADC(t *testing.T) {
	b := NewBoard(5)
	buf := make([]uint16, 4)
	b.SampleDMA.ConfigureCircular(buf, 4)
	b.SampleDMA.Enable()

	next := uint16(0)
	b.ADC.Input = func(uint8) uint16 { next++; return next }
	b.ADC.SetSequence([]uint8{1, 1, 1, 1})
	b.ADC.EnableDMA()
	b.ADC.PowerOn()
	b.ADC.EnableExternalTrigger(b.TriggerTimer)

	fired := 0
	b.SampleDMA.Handler = func() { fired++ }

	b.TriggerTimer.Configure(239, 19)
	b.TriggerTimer.Start()
	b.TriggerTimer.Advance(19)
	assert.Zero(t, fired, "no reload yet")

	b.TriggerTimer.EnableTriggerOutput()
	b.TriggerTimer.Advance(1)
	assert.Equal(t, 1, fired)
	assert.Equal(t, []uint16{1, 2, 3, 4}, buf)
	assert.True(t, b.SampleDMA.TransferComplete())

	b.TriggerTimer.Advance(40)
	assert.Equal(t, 3, fired)
	assert.Equal(t, []uint16{9, 10, 11, 12}, buf)
}

func TestDMA_FailRaisesInterrupt(t *testing.T) {
	d := &DMA{}
	raised := false
	d.Handler = func() { raised = true }

	d.Fail()
	assert.True(t, raised)
	assert.True(t, d.TransferError())
	d.ClearTransferError()
	assert.False(t, d.TransferError())
}

func TestEdgeLine_FiresOnConfiguredEdge(t *testing.T) {
	e := &EdgeLine{}
	calls := 0
	e.Handler = func() { calls++ }

	assert.False(t, e.Press(), "disabled line must not fire")
	require.False(t, e.Release())

	e.SetTrigger(hal.TriggerRising)
	e.Enable()

	assert.True(t, e.Press())
	assert.True(t, e.Pending())
	assert.False(t, e.Press(), "no edge when level unchanged")
	assert.False(t, e.Release(), "falling edge ignored while trigger is rising")

	e.Acknowledge()
	assert.False(t, e.Pending())
	assert.Equal(t, 1, calls)
}

func TestPort_Readiness(t *testing.T) {
	p := &Port{}
	p.BusyFor(2)
	assert.False(t, p.Ready())
	assert.False(t, p.Ready())
	assert.True(t, p.Ready())

	p.Stall()
	assert.False(t, p.Ready())
	p.Drain()
	assert.True(t, p.Ready())
	assert.Equal(t, 5, p.Polls())

	p.Write8('a')
	p.Write16(300)
	p.Write32(70000)
	assert.Equal(t, "a", p.Text())
	assert.Equal(t, []uint16{300}, p.Words16())
	assert.Equal(t, []uint32{70000}, p.Words32())
}

func TestCycles_StepPerRead(t *testing.T) {
	c := &Cycles{}
	c.SetStep(10)
	first := c.Cycles()
	second := c.Cycles()
	assert.Equal(t, uint32(10), second-first)
}

func TestPin_Toggle(t *testing.T) {
	p := &Pin{}
	p.Toggle()
	assert.True(t, p.Get())
	p.Toggle()
	assert.False(t, p.Get())
	assert.Equal(t, uint64(2), p.Toggles())
}
