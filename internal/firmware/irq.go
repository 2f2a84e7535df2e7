package firmware

import "strconv"

// IRQ identifies an interrupt vector the firmware services.
type IRQ int

const (
	// IRQButton is the external interrupt line of the push button.
	IRQButton IRQ = iota
	// IRQSampleDMA is the sample DMA channel interrupt.
	IRQSampleDMA
)

// String returns the vector name.
func (i IRQ) String() string {
	switch i {
	case IRQButton:
		return "button"
	case IRQSampleDMA:
		return "sample_dma"
	default:
		return "irq" + strconv.Itoa(int(i))
	}
}
