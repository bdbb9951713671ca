// drivers/radio/radio.go
//
// Package radio is the async packet-radio facade. One packet buffer per
// operation: Send arms the packet pointer and ramps the transmitter,
// Receive arms it for capture. A packet that arrives with a bad CRC is a
// transport fault, not a silent retry.
package radio

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
	TxEnd bool
	RxEnd bool
	CrcOK bool // meaningful only with RxEnd
}

// Device is the register access layer for one radio instance. The two
// lanes share the packet pointer; their Start tasks ramp the transmitter
// or receiver respectively, and Stop is the disable sequence.
type Device interface {
	TxLane() hw.Lane
	RxLane() hw.Lane
	Caps() dma.Caps // MaxSpan is the maximum on-air frame
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
		name = "radio"
	}
	return &Driver{
		dev:   dev,
		caps:  dev.Caps(),
		tx:    xfer.NewState(sect, dev.TxLane()),
		rx:    xfer.NewState(sect, dev.RxLane()),
		trace: cfg.Trace,
		name:  name,
	}
}

// HandleInterrupt services the radio interrupt.
func (d *Driver) HandleInterrupt() {
	ev := d.dev.TakeEvents()
	if ev.TxEnd {
		d.tx.Finish(d.dev.TxLane().Amount())
	}
	if ev.RxEnd {
		if ev.CrcOK {
			d.rx.Finish(d.dev.RxLane().Amount())
		} else {
			d.dev.RxLane().Stop()
			d.rx.Fault(errcode.CRCError, 0)
			d.trace.Publish(diag.Event{Source: d.name, Code: errcode.CRCError, Detail: "rx_fault"})
		}
	}
}

// Send transmits one packet. Packets never chunk: a frame is atomic on
// air, so an over-long packet is a configuration error.
func (d *Driver) Send(ctx context.Context, pkt []byte) error {
	desc, err := dma.Describe(pkt, d.caps)
	if err != nil {
		return err
	}
	op, err := d.tx.Begin(len(pkt), func() { d.dev.TxLane().Arm(desc) })
	if err != nil {
		return err
	}
	_, err = op.Await(ctx)
	return err
}

// Receive captures one packet into buf and returns its length.
// Cancelling ctx runs the disable sequence, so buf is free the moment
// Receive returns.
func (d *Driver) Receive(ctx context.Context, buf []byte) (int, error) {
	desc, err := dma.DescribeRx(buf, d.caps)
	if err != nil {
		return 0, err
	}
	op, err := d.rx.Begin(len(buf), func() { d.dev.RxLane().Arm(desc) })
	if err != nil {
		return 0, err
	}
	return op.Await(ctx)
}
