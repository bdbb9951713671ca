//go:build tinygo || baremetal

// Package nrf52 binds the driver core's hardware contracts to the nRF52
// register blocks. Everything here is register pokes and IRQ plumbing;
// policy lives in the facades.
package nrf52

import (
	"runtime/interrupt"

	"nrfhal-go/critical"
	"nrfhal-go/dma"
)

// EasyDMA on this family only reaches data RAM, and a single descriptor
// spans at most 16 bits of count.
var easyDMACaps = dma.Caps{
	MaxSpan:  0xFFFF,
	RAMStart: 0x20000000,
	RAMEnd:   0x20040000,
}

// irqController implements critical.Controller with the global interrupt
// mask. Disable returns the prior state, so sections nest naturally.
type irqController struct{}

func (irqController) Mask() uintptr        { return uintptr(interrupt.Disable()) }
func (irqController) Unmask(prior uintptr) { interrupt.Restore(interrupt.State(prior)) }

// NewSection returns a critical section backed by the interrupt mask.
func NewSection() *critical.Section {
	return critical.New(irqController{})
}
