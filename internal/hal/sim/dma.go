package sim

import (
	"sync"

	"github.com/swotap/swotap/internal/hal"
)

// DMA is a circular peripheral-to-memory channel.
type DMA struct {
	mu       sync.Mutex
	dst      []uint16
	count    int
	next     int
	enabled  bool
	complete bool
	errored  bool

	// Handler is the channel's interrupt vector, raised on completion or error.
	Handler func()
}

var _ hal.DMAChannel = (*DMA)(nil)

func (d *DMA) ConfigureCircular(dst []uint16, count int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dst = dst
	d.count = count
	d.next = 0
}

func (d *DMA) Enable() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = true
}

func (d *DMA) TransferComplete() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.complete
}

func (d *DMA) ClearTransferComplete() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.complete = false
}

func (d *DMA) TransferError() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.errored
}

func (d *DMA) ClearTransferError() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errored = false
}

// Count returns the configured transfer count.
func (d *DMA) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

// Transfer moves one converted value into memory. Completing the configured
// count sets the completion flag and raises the interrupt.
func (d *DMA) Transfer(v uint16) {
	d.mu.Lock()
	if !d.enabled || d.count == 0 {
		d.mu.Unlock()
		return
	}
	if d.next < len(d.dst) {
		d.dst[d.next] = v
	}
	d.next++
	wrapped := d.next == d.count
	if wrapped {
		d.next = 0
		d.complete = true
	}
	h := d.Handler
	d.mu.Unlock()

	if wrapped && h != nil {
		h()
	}
}

// Fail sets the transfer-error flag and raises the interrupt.
func (d *DMA) Fail() {
	d.mu.Lock()
	d.errored = true
	h := d.Handler
	d.mu.Unlock()
	if h != nil {
		h()
	}
}
