// Package sim is an in-memory board implementing every hal capability.
//
// Peripherals are advanced explicitly by the caller: timers tick when Advance
// is called, the button changes level on Press and Release, and the converter
// runs when its trigger timer overflows. Interrupt lines call the Handler hook
// installed on the peripheral, synchronously, outside of the peripheral's lock.
package sim
