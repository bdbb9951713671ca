// xfer/xfer_test.go
package xfer

import (
	"context"
	"errors"
	"testing"
	"time"

	"nrfhal-go/critical"
	"nrfhal-go/errcode"
	"nrfhal-go/hw/sim"
)

func newState() (*State, *sim.Lane) {
	lane := &sim.Lane{}
	sect := critical.New(critical.NewMutexController())
	return NewState(sect, lane), lane
}

func TestCompleteFlow(t *testing.T) {
	st, lane := newState()

	op, err := st.Begin(4, nil)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if !lane.Started() {
		t.Fatal("hardware not started")
	}

	go func() {
		lane.SetAmount(4)
		st.Finish(4)
	}()

	n, err := op.Await(context.Background())
	if err != nil || n != 4 {
		t.Fatalf("Await: n=%d err=%v", n, err)
	}
	if st.Snapshot() != StatusIdle {
		t.Fatalf("state not Idle after completion: %v", st.Snapshot())
	}
}

func TestCompletionBeforeFirstPoll(t *testing.T) {
	st, lane := newState()

	op, err := st.Begin(2, nil)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	// Interrupt lands before the task ever polls: construction already
	// armed inside the critical section, so the poll must observe
	// Complete directly without a wakeup.
	lane.SetAmount(2)
	st.Finish(2)

	res, ready := op.Poll(nil)
	if !ready || res.N != 2 || res.Err != nil {
		t.Fatalf("Poll after early completion: %+v ready=%v", res, ready)
	}
}

func TestFaultSurfacesCause(t *testing.T) {
	st, _ := newState()

	op, err := st.Begin(8, nil)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	go st.Fault(errcode.Overrun, 3)

	n, err := op.Await(context.Background())
	if n != 3 {
		t.Fatalf("partial progress lost: n=%d", n)
	}
	if !errors.Is(err, errcode.Overrun) {
		t.Fatalf("expected overrun, got %v", err)
	}
	if !errcode.IsTransport(err) {
		t.Fatalf("overrun should classify as transport: %v", err)
	}
	if st.Snapshot() != StatusIdle {
		t.Fatal("state not Idle after fault")
	}
}

func TestCancelStopsHardwareAndResets(t *testing.T) {
	st, lane := newState()

	op, err := st.Begin(16, nil)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	lane.SetAmount(5) // in-flight progress at abort time

	if n := op.Cancel(); n != 5 {
		t.Fatalf("drained count: got %d want 5", n)
	}
	if !lane.Stopped() {
		t.Fatal("abort sequence not issued")
	}
	if st.Snapshot() != StatusIdle {
		t.Fatal("state not Idle after cancel")
	}

	// The channel must be immediately reusable.
	op2, err := st.Begin(1, nil)
	if err != nil {
		t.Fatalf("Begin after cancel: %v", err)
	}
	go st.Finish(1)
	if n, err := op2.Await(context.Background()); err != nil || n != 1 {
		t.Fatalf("transaction after cancel: n=%d err=%v", n, err)
	}
}

func TestCancelIdempotent(t *testing.T) {
	st, _ := newState()
	op, _ := st.Begin(4, nil)
	first := op.Cancel()
	if second := op.Cancel(); second != first {
		t.Fatalf("Cancel not idempotent: %d then %d", first, second)
	}
}

func TestBeginWhileBusy(t *testing.T) {
	st, _ := newState()
	op, _ := st.Begin(4, nil)
	defer op.Cancel()

	if _, err := st.Begin(4, nil); !errors.Is(err, errcode.Busy) {
		t.Fatalf("expected busy, got %v", err)
	}
}

func TestAwaitContextCancel(t *testing.T) {
	st, lane := newState()
	op, err := st.Begin(8, nil)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var n int
	var aerr error
	go func() {
		n, aerr = op.Await(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Await did not observe cancellation")
	}
	if !errors.Is(aerr, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", aerr)
	}
	if !lane.Stopped() {
		t.Fatal("context cancel did not run the abort sequence")
	}
	if st.Snapshot() != StatusIdle {
		t.Fatal("state not Idle after cancelled await")
	}
	_ = n
}

func TestArmRunsInsideBegin(t *testing.T) {
	st, lane := newState()
	armed := false
	op, err := st.Begin(1, func() { armed = !lane.Started() })
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer op.Cancel()
	if !armed {
		t.Fatal("arm must run before Start")
	}
}
