// Package edgetimer measures button hold time with a free-running 1 kHz counter.
//
// The counter is 16 bits wide and wraps every 65.536 s. Nothing tracks wraps,
// so a hold longer than 65.535 s reads short.
package edgetimer

import (
	"github.com/swotap/swotap/internal/hal"
	"github.com/swotap/swotap/pkg/errors"
)

// TickHz is the counter rate; one tick is one millisecond.
const TickHz = 1000

// Period is the reload value: the counter uses its full 16-bit range.
const Period = 0xFFFF

// Timer is the edge timer.
type Timer struct {
	hw hal.Timer
}

// Prescaler returns the divider that turns coreHz into TickHz.
func Prescaler(coreHz uint32) uint32 {
	return coreHz/TickHz - 1
}

// Setup configures hw for 1 kHz with a 16-bit period and starts it.
func Setup(hw hal.Timer, coreHz uint32) (*Timer, error) {
	if hw == nil {
		return nil, errors.NewError(errors.ErrCodeNotInitialized, "edge timer hardware is nil").
			WithComponent("edgetimer")
	}
	if coreHz < TickHz || coreHz%TickHz != 0 || Prescaler(coreHz) > 0xFFFF {
		return nil, errors.Newf(errors.ErrCodeInvalidConfig, "core clock %d Hz cannot be divided to %d Hz", coreHz, TickHz).
			WithComponent("edgetimer")
	}

	hw.Configure(Prescaler(coreHz), Period)
	hw.Start()
	return &Timer{hw: hw}, nil
}

// Now returns the current tick count.
func (t *Timer) Now() uint16 {
	return t.hw.Count()
}

// Reset sets the count to zero.
func (t *Timer) Reset() {
	t.hw.SetCount(0)
}

// Since returns the ticks elapsed from start to now, modulo 2^16.
func (t *Timer) Since(start uint16) uint16 {
	return t.Now() - start
}
