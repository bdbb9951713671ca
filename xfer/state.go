// xfer/state.go
//
// Package xfer is the bridge between interrupt-driven hardware
// transactions and awaitable operations. One State per peripheral
// channel, allocated once at driver init; the interrupt handler and the
// issuing task mutate it only inside the channel's critical section.
package xfer

import (
	"nrfhal-go/critical"
	"nrfhal-go/errcode"
	"nrfhal-go/hw"
	"nrfhal-go/wake"
)

// Status is the transaction state tag.
type Status uint8

const (
	StatusIdle Status = iota
	StatusArmed
	StatusRunning
	StatusComplete
	StatusFaulted
)

// State is the per-channel transaction record. Fields are guarded by
// sect; nothing here is shared across peripherals.
type State struct {
	sect *critical.Section
	hw   hw.Engine

	status Status
	cause  errcode.Code
	cell   wake.Cell
	moved  int // bytes transferred, recorded at completion/cancel
	want   int // bytes requested
}

func NewState(sect *critical.Section, engine hw.Engine) *State {
	return &State{sect: sect, hw: engine}
}

// Begin arms one transaction and returns its operation. The Idle check,
// arm() (register pokes only), the Armed transition and Start all happen
// in a single critical-section entry, so a completion interrupt either
// lands after this section (and finds the state Armed) or cannot land
// at all until the section exits. A caller polling afterwards then
// observes Complete/Faulted directly; no wakeup can be missed.
func (s *State) Begin(want int, arm func()) (*Op, error) {
	t := s.sect.Enter()
	if s.status != StatusIdle {
		s.sect.Exit(t)
		return nil, errcode.Busy
	}
	s.status = StatusArmed
	s.cause = ""
	s.moved = 0
	s.want = want
	if arm != nil {
		arm()
	}
	s.hw.Start()
	s.sect.Exit(t)
	return &Op{s: s}, nil
}

// Started records the hardware's start acknowledgement. Interrupt
// context only. Some peripherals collapse Armed/Running and never call it.
func (s *State) Started() {
	t := s.sect.Enter()
	if s.status == StatusArmed {
		s.status = StatusRunning
	}
	s.sect.Exit(t)
}

// Finish records a completed transfer of n bytes and wakes the waiter.
// Interrupt context only.
func (s *State) Finish(n int) {
	t := s.sect.Enter()
	var w wake.Waker
	if s.status == StatusArmed || s.status == StatusRunning {
		s.status = StatusComplete
		s.moved = n
		w = s.cell.Take()
	}
	s.sect.Exit(t)
	if w != nil {
		w.Wake()
	}
}

// Fault records an error condition with the bytes that did move and
// wakes the waiter. Faulted transactions never retry silently; the cause
// reaches the awaiting call site. Interrupt context only.
func (s *State) Fault(cause errcode.Code, n int) {
	t := s.sect.Enter()
	var w wake.Waker
	if s.status == StatusArmed || s.status == StatusRunning {
		s.status = StatusFaulted
		s.cause = cause
		s.moved = n
		w = s.cell.Take()
	}
	s.sect.Exit(t)
	if w != nil {
		w.Wake()
	}
}

// Snapshot returns the current tag; for tests and diagnostics.
func (s *State) Snapshot() Status {
	t := s.sect.Enter()
	st := s.status
	s.sect.Exit(t)
	return st
}

// reset returns the channel to Idle. Caller holds the section.
func (s *State) reset() {
	s.status = StatusIdle
	s.cause = ""
	s.cell.Clear()
}
