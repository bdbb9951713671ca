// xfer/op.go
package xfer

import (
	"context"

	"nrfhal-go/wake"
)

// Result is the outcome of one operation. N counts bytes moved even when
// Err is set, so partial progress stays visible.
type Result struct {
	N   int
	Err error
}

// Op is one in-flight transaction, returned armed by State.Begin. Exactly
// one task owns an Op. Whichever of Poll-to-Ready or Cancel settles it
// first also resets the channel to Idle for the next transaction.
type Op struct {
	s       *State
	res     Result
	settled bool
}

// Poll reports the transaction outcome once the state is Complete or
// Faulted; until then it registers w and reports pending. After the first
// Ready observation the result is cached and the channel is Idle again.
func (o *Op) Poll(w wake.Waker) (Result, bool) {
	if o.settled {
		return o.res, true
	}
	t := o.s.sect.Enter()
	switch o.s.status {
	case StatusComplete:
		o.res = Result{N: o.s.moved}
		o.s.reset()
		o.settled = true
	case StatusFaulted:
		o.res = Result{N: o.s.moved, Err: o.s.cause}
		o.s.reset()
		o.settled = true
	default:
		if w != nil {
			o.s.cell.Register(w)
		}
	}
	o.s.sect.Exit(t)
	return o.res, o.settled
}

// Cancel is the drop path: if the transaction has not settled it stops
// the hardware, drains the in-flight byte count, clears the waker cell
// and returns the channel to Idle, all without suspending, so it is
// safe from a defer. Idempotent. Returns bytes moved.
func (o *Op) Cancel() int {
	if o.settled {
		return o.res.N
	}
	t := o.s.sect.Enter()
	switch o.s.status {
	case StatusComplete:
		o.res = Result{N: o.s.moved}
	case StatusFaulted:
		o.res = Result{N: o.s.moved, Err: o.s.cause}
	case StatusArmed, StatusRunning:
		// Abort first: after Stop returns the hardware no longer holds
		// the descriptor, which is the memory-safety guarantee the
		// caller's buffer needs before it is released.
		o.s.hw.Stop()
		o.res = Result{N: o.s.hw.Amount()}
	}
	o.s.reset()
	o.s.sect.Exit(t)
	o.settled = true
	return o.res.N
}

// Await blocks until the operation settles or ctx is cancelled. Context
// cancellation runs the Cancel sequence and returns the bytes that moved
// alongside ctx.Err(); there is no separate cancellation signal.
func (o *Op) Await(ctx context.Context) (int, error) {
	n := wake.NewNotifier()
	for {
		if res, ready := o.Poll(n); ready {
			return res.N, res.Err
		}
		select {
		case <-n.Sleep():
		case <-ctx.Done():
			moved := o.Cancel()
			return moved, ctx.Err()
		}
	}
}
