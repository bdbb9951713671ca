// critical/critical.go
//
// Package critical provides the only mutual-exclusion primitive shared by
// task context and interrupt context: a section executed with interrupts
// masked. Section bodies must stay O(1) register/field touches and must
// never suspend; nothing else bounds interrupt-disabled latency.
package critical

// Token carries the interrupt-enable state saved by Enter so Exit can
// restore it. Nested sections restore in LIFO order without re-enabling
// prematurely.
type Token uintptr

// Controller is the platform interrupt mask. On hardware this maps to the
// PRIMASK-style save/disable and restore primitives; on the host it is
// emulated (see MutexController).
type Controller interface {
	// Mask disables interrupts and returns the prior state.
	Mask() uintptr
	// Unmask restores the state returned by the matching Mask call.
	Unmask(prior uintptr)
}

// Section is one critical-section domain. All state a driver shares with
// its interrupt handler is guarded by exactly one Section.
type Section struct {
	ctl Controller
}

func New(ctl Controller) *Section {
	return &Section{ctl: ctl}
}

func (s *Section) Enter() Token {
	return Token(s.ctl.Mask())
}

func (s *Section) Exit(t Token) {
	s.ctl.Unmask(uintptr(t))
}

// Do runs fn inside the section. fn must not suspend and must not enter
// the same section again when the controller is not reentrant.
func (s *Section) Do(fn func()) {
	t := s.Enter()
	fn()
	s.Exit(t)
}
