// alarm/alarm.go
//
// Package alarm multiplexes one hardware compare channel into an ordered
// set of software deadlines. The comparator is edge-triggered: it only
// fires on the counter reaching the armed value, so "deadline already
// passed" is a normal input handled by re-reading the clock immediately
// after every arm and synthesizing the fire path when the event can no
// longer occur.
package alarm

import (
	"nrfhal-go/critical"
	"nrfhal-go/diag"
	"nrfhal-go/errcode"
	"nrfhal-go/hw"
)

// ID identifies a scheduled entry for cancellation. Zero is never issued.
type ID uint32

// Handler runs when the entry's deadline is reached. It executes in the
// context that serviced the deadline (interrupt context on hardware), so
// it must be non-blocking and O(1), typically a Waker.Wake.
type Handler func()

type entry struct {
	at  uint64
	seq ID
	fn  Handler
}

// before orders entries by deadline, ties broken by insertion order.
func (e entry) before(o entry) bool {
	if e.at != o.at {
		return e.at < o.at
	}
	return e.seq < o.seq
}

// Scheduler owns a fixed-capacity min-heap of deadlines and one compare
// channel. All heap and arm-state mutation happens inside the critical
// section; handlers run outside it, one at a time, in deadline order.
type Scheduler struct {
	sect  *critical.Section
	clk   hw.Clock
	cmp   hw.Compare
	trace *diag.Bus

	heap    []entry // min-heap, len <= cap, cap fixed at New
	seq     ID
	armed   bool
	armedAt uint64
}

// New returns a scheduler with room for capacity concurrent deadlines.
// The entry store is allocated once here; Schedule never allocates.
func New(sect *critical.Section, clk hw.Clock, cmp hw.Compare, capacity int, trace *diag.Bus) *Scheduler {
	if capacity <= 0 {
		capacity = 8
	}
	return &Scheduler{
		sect:  sect,
		clk:   clk,
		cmp:   cmp,
		trace: trace,
		heap:  make([]entry, 0, capacity),
	}
}

// Schedule registers fn to run when the clock reaches at. If the new
// deadline is the earliest pending one, the compare channel is re-armed
// inside the same critical-section entry, leaving no stale arm window.
// A deadline at or before the current tick fires via the synthesized
// path rather than waiting for an interrupt that cannot occur.
func (s *Scheduler) Schedule(at uint64, fn Handler) (ID, error) {
	t := s.sect.Enter()
	if len(s.heap) == cap(s.heap) {
		s.sect.Exit(t)
		s.trace.Publish(diag.Event{Source: "alarm", Code: errcode.AlarmQueueFull, N: cap(s.heap)})
		return 0, errcode.AlarmQueueFull
	}
	s.seq++
	if s.seq == 0 {
		s.seq++
	}
	id := s.seq
	s.push(entry{at: at, seq: id, fn: fn})

	synthesize := false
	if !s.armed || s.heap[0].before(entry{at: s.armedAt}) {
		synthesize = s.armMin()
	}
	s.sect.Exit(t)
	if synthesize {
		s.service()
	}
	return id, nil
}

// Cancel removes a pending entry. It reports false when the entry
// already fired or was cancelled before.
func (s *Scheduler) Cancel(id ID) bool {
	t := s.sect.Enter()
	idx := -1
	for i := range s.heap {
		if s.heap[i].seq == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.sect.Exit(t)
		return false
	}
	s.remove(idx)
	if idx == 0 {
		// The armed deadline may be gone; re-arm to the new minimum.
		if s.armMin() {
			s.sect.Exit(t)
			s.service()
			return true
		}
	}
	s.sect.Exit(t)
	return true
}

// OnCompare is the hardware compare interrupt entry point.
func (s *Scheduler) OnCompare() {
	s.service()
}

// Pending reports the number of scheduled entries; for tests and
// diagnostics.
func (s *Scheduler) Pending() int {
	t := s.sect.Enter()
	n := len(s.heap)
	s.sect.Exit(t)
	return n
}

// service pops and fires every entry whose deadline is now-or-past
// (clock granularity can make that more than one), then leaves the
// compare armed at the new minimum. Each handler runs outside the
// critical section.
func (s *Scheduler) service() {
	for {
		t := s.sect.Enter()
		if len(s.heap) == 0 {
			s.cmp.Disarm()
			s.armed = false
			s.sect.Exit(t)
			return
		}
		min := s.heap[0]
		if min.at > s.clk.Now() {
			if !s.armMin() {
				s.sect.Exit(t)
				return
			}
			// Counter passed the deadline while arming; fall through
			// and fire it ourselves.
		}
		s.remove(0)
		s.sect.Exit(t)
		if min.fn != nil {
			min.fn()
		}
	}
}

// armMin arms the compare at the current minimum and re-reads the clock.
// It reports true when the deadline already passed and the caller must
// run the fire path itself. Caller holds the section.
func (s *Scheduler) armMin() bool {
	if len(s.heap) == 0 {
		s.cmp.Disarm()
		s.armed = false
		return false
	}
	at := s.heap[0].at
	s.cmp.Arm(at)
	s.armed = true
	s.armedAt = at
	// Edge-triggered comparator: re-read the counter after arming. If it
	// is already at or past the deadline the compare event may never
	// fire, so the fire path has to be synthesized.
	return s.clk.Now() >= at
}

// ---- fixed-capacity binary min-heap ----

func (s *Scheduler) push(e entry) {
	s.heap = append(s.heap, e)
	i := len(s.heap) - 1
	for i > 0 {
		p := (i - 1) / 2
		if !s.heap[i].before(s.heap[p]) {
			break
		}
		s.heap[i], s.heap[p] = s.heap[p], s.heap[i]
		i = p
	}
}

func (s *Scheduler) remove(i int) {
	last := len(s.heap) - 1
	s.heap[i] = s.heap[last]
	s.heap = s.heap[:last]
	if i == last {
		return
	}
	// Sift down (sift up is unnecessary after replacing with the tail in
	// a removal at the root or with the arbitrary-index swap below).
	for {
		l, r := 2*i+1, 2*i+2
		m := i
		if l < len(s.heap) && s.heap[l].before(s.heap[m]) {
			m = l
		}
		if r < len(s.heap) && s.heap[r].before(s.heap[m]) {
			m = r
		}
		if m == i {
			break
		}
		s.heap[i], s.heap[m] = s.heap[m], s.heap[i]
		i = m
	}
	// Arbitrary-index removal can also need a sift up.
	for i > 0 {
		p := (i - 1) / 2
		if !s.heap[i].before(s.heap[p]) {
			break
		}
		s.heap[i], s.heap[p] = s.heap[p], s.heap[i]
		i = p
	}
}
