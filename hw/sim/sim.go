// hw/sim/sim.go
//
// Package sim provides manually driven hardware stand-ins for hosted
// tests and the soaktest binary. Nothing here fires on its own: tests
// advance the clock and deliver interrupts explicitly, so races like
// "counter passed the deadline during arm" can be staged exactly.
package sim

import (
	"sync/atomic"

	"nrfhal-go/dma"
)

// Clock is a manual-advance monotonic tick counter.
type Clock struct {
	ticks atomic.Uint64
}

func (c *Clock) Now() uint64 { return c.ticks.Load() }

// Advance moves the counter forward by n ticks.
func (c *Clock) Advance(n uint64) { c.ticks.Add(n) }

// Set jumps the counter to an absolute value; tests only.
func (c *Clock) Set(v uint64) { c.ticks.Store(v) }

// Compare records arm state. OnArm, when set, runs inside Arm; tests
// use it to advance the clock mid-arm and provoke the missed-compare
// race.
type Compare struct {
	armed   atomic.Bool
	at      atomic.Uint64
	pending atomic.Bool
	arms    atomic.Uint32

	OnArm func(at uint64)
}

func (c *Compare) Arm(at uint64) {
	c.at.Store(at)
	c.armed.Store(true)
	c.arms.Add(1)
	if c.OnArm != nil {
		c.OnArm(at)
	}
}

func (c *Compare) Disarm() { c.armed.Store(false) }

func (c *Compare) Pending() bool { return c.pending.Load() }

// Armed reports the current arm state and value.
func (c *Compare) Armed() (bool, uint64) { return c.armed.Load(), c.at.Load() }

// Arms counts Arm calls since construction.
func (c *Compare) Arms() uint32 { return uint32(c.arms.Load()) }

// Due reports whether the armed deadline has been reached at tick now.
func (c *Compare) Due(now uint64) bool {
	return c.armed.Load() && now >= c.at.Load()
}

// Lane is a scripted DMA transfer channel. The test or sim harness
// completes transfers by calling the driver's HandleInterrupt after
// marking progress here.
type Lane struct {
	desc    dma.Descriptor
	started atomic.Bool
	stopped atomic.Bool
	starts  atomic.Uint32
	amount  atomic.Uint32

	// OnStart runs after Start flips the started flag. It must not call
	// back into the driver synchronously: real hardware completes via
	// interrupt, never inside TASKS_START.
	OnStart func()
}

func (l *Lane) Arm(d dma.Descriptor) {
	l.desc = d
	l.stopped.Store(false)
	l.amount.Store(0)
}

func (l *Lane) Start() {
	l.started.Store(true)
	l.starts.Add(1)
	if l.OnStart != nil {
		l.OnStart()
	}
}

func (l *Lane) Stop() {
	l.started.Store(false)
	l.stopped.Store(true)
}

func (l *Lane) Amount() int { return int(l.amount.Load()) }

// Desc returns the armed descriptor.
func (l *Lane) Desc() dma.Descriptor { return l.desc }

// SetAmount records hardware progress; call before delivering the
// completion interrupt.
func (l *Lane) SetAmount(n int) { l.amount.Store(uint32(n)) }

// Started and Stopped expose the lane's control state for assertions.
func (l *Lane) Started() bool { return l.started.Load() }
func (l *Lane) Stopped() bool { return l.stopped.Load() }

// Starts counts Start calls since construction.
func (l *Lane) Starts() uint32 { return l.starts.Load() }
