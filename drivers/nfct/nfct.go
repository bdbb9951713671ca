// drivers/nfct/nfct.go
//
// Package nfct is the async near-field tag facade: frame-at-a-time
// exchange with a reader's field. Frame transfers ride the same
// state-machine core as every other peripheral; field presence is a
// level the register layer exposes directly.
package nfct

import (
	"context"

	"nrfhal-go/critical"
	"nrfhal-go/diag"
	"nrfhal-go/dma"
	"nrfhal-go/errcode"
	"nrfhal-go/hw"
	"nrfhal-go/xfer"
)

// Events is one read-and-clear snapshot of the peripheral's event
// registers, taken in interrupt context.
type Events struct {
	TxFrameEnd bool
	RxFrameEnd bool
	// RxErr carries the decoded frame error (framing, parity, overrun);
	// empty when no error fired.
	RxErr errcode.Code
	// Field transitions, for diagnostics.
	FieldDetected bool
	FieldLost     bool
}

// Device is the register access layer for one NFCT instance.
type Device interface {
	Tx() hw.Lane
	Rx() hw.Lane
	Caps() dma.Caps
	FieldPresent() bool
	TakeEvents() Events
}

type Config struct {
	Name  string
	Trace *diag.Bus
}

type Driver struct {
	dev   Device
	caps  dma.Caps
	tx    *xfer.State
	rx    *xfer.State
	trace *diag.Bus
	name  string
}

func New(sect *critical.Section, dev Device, cfg Config) *Driver {
	name := cfg.Name
	if name == "" {
		name = "nfct"
	}
	return &Driver{
		dev:   dev,
		caps:  dev.Caps(),
		tx:    xfer.NewState(sect, dev.Tx()),
		rx:    xfer.NewState(sect, dev.Rx()),
		trace: cfg.Trace,
		name:  name,
	}
}

// HandleInterrupt services the NFCT interrupt.
func (d *Driver) HandleInterrupt() {
	ev := d.dev.TakeEvents()
	if ev.FieldDetected {
		d.trace.Publish(diag.Event{Source: d.name, Detail: "field_on"})
	}
	if ev.FieldLost {
		d.trace.Publish(diag.Event{Source: d.name, Detail: "field_off"})
	}
	if ev.TxFrameEnd {
		d.tx.Finish(d.dev.Tx().Amount())
	}
	if ev.RxErr != "" {
		d.dev.Rx().Stop()
		d.rx.Fault(ev.RxErr, d.dev.Rx().Amount())
		d.trace.Publish(diag.Event{Source: d.name, Code: ev.RxErr, Detail: "rx_fault"})
	} else if ev.RxFrameEnd {
		d.rx.Finish(d.dev.Rx().Amount())
	}
}

// FieldPresent reports whether a reader field is energising the antenna.
func (d *Driver) FieldPresent() bool { return d.dev.FieldPresent() }

// Transmit sends one frame. Frames are atomic on the wire and never
// chunk.
func (d *Driver) Transmit(ctx context.Context, frame []byte) error {
	desc, err := dma.Describe(frame, d.caps)
	if err != nil {
		return err
	}
	op, err := d.tx.Begin(len(frame), func() { d.dev.Tx().Arm(desc) })
	if err != nil {
		return err
	}
	_, err = op.Await(ctx)
	return err
}

// Receive captures one frame into buf and returns its length.
func (d *Driver) Receive(ctx context.Context, buf []byte) (int, error) {
	desc, err := dma.DescribeRx(buf, d.caps)
	if err != nil {
		return 0, err
	}
	op, err := d.rx.Begin(len(buf), func() { d.dev.Rx().Arm(desc) })
	if err != nil {
		return 0, err
	}
	return op.Await(ctx)
}
