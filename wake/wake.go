// wake/wake.go
//
// Package wake carries the executor waker contract: an opaque handle a
// suspended task exposes so interrupt context can request it be polled
// again. The executor itself is external; drivers only see Waker.
package wake

// Waker requests that the owning task be scheduled again. Wake must be
// callable from interrupt context: non-blocking, idempotent, O(1).
type Waker interface {
	Wake()
}

// Cell holds zero or one pending waker for a peripheral channel. The
// caller provides mutual exclusion (all Cell access happens inside the
// channel's critical section); Cell itself has no lock.
type Cell struct {
	w Waker
}

// Register stores w as the pending waker. One task owns a peripheral
// handle, so a different waiter showing up means a concurrency invariant
// was already broken before this code ran; that is fatal.
func (c *Cell) Register(w Waker) {
	if c.w != nil && c.w != w {
		panic("wake: cell already occupied by a different waiter")
	}
	c.w = w
}

// Take removes and returns the pending waker, or nil.
func (c *Cell) Take() Waker {
	w := c.w
	c.w = nil
	return w
}

func (c *Cell) Clear() { c.w = nil }

// Empty reports whether no waker is pending.
func (c *Cell) Empty() bool { return c.w == nil }
