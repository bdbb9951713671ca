// drivers/nfct/nfct_test.go
package nfct

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nrfhal-go/critical"
	"nrfhal-go/diag"
	"nrfhal-go/dma"
	"nrfhal-go/errcode"
	"nrfhal-go/hw"
	"nrfhal-go/hw/sim"
)

type fakeDev struct {
	txl, rxl sim.Lane
	caps     dma.Caps
	field    bool

	mu sync.Mutex
	ev []Events
}

func (f *fakeDev) Tx() hw.Lane        { return &f.txl }
func (f *fakeDev) Rx() hw.Lane        { return &f.rxl }
func (f *fakeDev) Caps() dma.Caps     { return f.caps }
func (f *fakeDev) FieldPresent() bool { return f.field }

func (f *fakeDev) push(e Events) {
	f.mu.Lock()
	f.ev = append(f.ev, e)
	f.mu.Unlock()
}

func (f *fakeDev) TakeEvents() Events {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ev) == 0 {
		return Events{}
	}
	e := f.ev[0]
	f.ev = f.ev[1:]
	return e
}

func newDriver(trace *diag.Bus) (*Driver, *fakeDev) {
	dev := &fakeDev{caps: dma.Caps{MaxSpan: 255}}
	sect := critical.New(critical.NewMutexController())
	return New(sect, dev, Config{Name: "nfct", Trace: trace}), dev
}

func TestTransmitReceive(t *testing.T) {
	d, dev := newDriver(nil)
	dev.txl.OnStart = func() {
		go func() {
			dev.txl.SetAmount(dev.txl.Desc().Len())
			dev.push(Events{TxFrameEnd: true})
			d.HandleInterrupt()
		}()
	}
	dev.rxl.OnStart = func() {
		go func() {
			copy(dev.rxl.Desc().Bytes(), []byte{0x50, 0x00})
			dev.rxl.SetAmount(2)
			dev.push(Events{RxFrameEnd: true})
			d.HandleInterrupt()
		}()
	}

	if err := d.Transmit(context.Background(), []byte{0x26}); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	buf := make([]byte, 16)
	n, err := d.Receive(context.Background(), buf)
	if err != nil || n != 2 {
		t.Fatalf("Receive: n=%d err=%v", n, err)
	}
}

func TestReceiveFrameError(t *testing.T) {
	d, dev := newDriver(nil)
	dev.rxl.OnStart = func() {
		go func() {
			dev.rxl.SetAmount(1)
			dev.push(Events{RxErr: errcode.Framing})
			d.HandleInterrupt()
		}()
	}

	_, err := d.Receive(context.Background(), make([]byte, 16))
	if !errors.Is(err, errcode.Framing) {
		t.Fatalf("expected framing fault, got %v", err)
	}
	if !dev.rxl.Stopped() {
		t.Fatal("fault path did not stop frame reception")
	}
}

func TestFieldTransitions(t *testing.T) {
	trace := diag.NewBus(4)
	events := trace.Subscribe()
	d, dev := newDriver(trace)

	dev.field = true
	dev.push(Events{FieldDetected: true})
	d.HandleInterrupt()

	if !d.FieldPresent() {
		t.Fatal("field not reported present")
	}
	select {
	case ev := <-events:
		if ev.Detail != "field_on" {
			t.Fatalf("field event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no field_on event")
	}

	dev.field = false
	dev.push(Events{FieldLost: true})
	d.HandleInterrupt()
	select {
	case ev := <-events:
		if ev.Detail != "field_off" {
			t.Fatalf("field event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no field_off event")
	}
}
