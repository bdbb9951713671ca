// hw/hw.go
//
// Package hw holds the contracts the driver core requires from the
// register access layer. Implementations live in platform bindings
// (platform/nrf52) and in hw/sim for hosted runs; the core only assumes
// reads/writes are atomic at field width.
package hw

import "nrfhal-go/dma"

// Clock is a monotonic tick counter readable from both task and
// interrupt context.
type Clock interface {
	Now() uint64
}

// Compare is one hardware compare channel of the clock. The comparator
// is edge-triggered: it only detects the counter *reaching* the armed
// value, so arming a deadline that already passed produces no interrupt.
// The alarm scheduler handles that race; implementations just arm.
type Compare interface {
	Arm(at uint64)
	Disarm()
	// Pending reports whether a compare event fired and has not been
	// acknowledged yet.
	Pending() bool
}

// Engine is the start/stop/progress face of one peripheral transfer
// channel. Start must never invoke completion paths synchronously;
// completion arrives via the peripheral interrupt. Stop is the abort
// sequence: synchronous, and on return the hardware no longer touches
// any armed buffer and the channel can be armed again immediately.
type Engine interface {
	Start()
	Stop()
	// Amount reports bytes moved so far (the AMOUNT register).
	Amount() int
}

// Lane is an Engine whose single DMA descriptor the core programs
// directly. Peripherals with multiple buffers per transfer (SPIM tx+rx)
// expose an Engine and arm their lanes from the facade instead.
type Lane interface {
	Engine
	Arm(d dma.Descriptor)
}
