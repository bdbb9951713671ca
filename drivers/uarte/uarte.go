// drivers/uarte/uarte.go
//
// Package uarte is the async serial facade over a DMA-backed UART
// (UARTE-style: one EasyDMA lane per direction). Requests longer than
// the hardware's single-descriptor span are decomposed into chunks,
// issued strictly in order; a fault aborts the remainder and reports the
// bytes that did move.
package uarte

import (
	"context"

	"nrfhal-go/critical"
	"nrfhal-go/diag"
	"nrfhal-go/dma"
	"nrfhal-go/errcode"
	"nrfhal-go/hw"
	"nrfhal-go/x/mathx"
	"nrfhal-go/xfer"
)

// Events is one read-and-clear snapshot of the peripheral's event
// registers, taken in interrupt context.
type Events struct {
	TxEnd bool
	RxEnd bool
	// RxErr carries the decoded ERRORSRC cause (overrun, parity,
	// framing, break); empty when no error fired.
	RxErr errcode.Code
}

// Device is the register access layer for one UARTE instance.
type Device interface {
	Tx() hw.Lane
	Rx() hw.Lane
	Caps() dma.Caps
	// TakeEvents reads and clears pending events. Interrupt context.
	TakeEvents() Events
}

type Config struct {
	Name  string    // diagnostics source tag, e.g. "uarte0"
	Pool  *dma.Pool // bounce storage for tx sources outside the DMA window
	Trace *diag.Bus // optional
}

// Driver owns the two transfer channels of one UARTE. Created once; the
// states live for the driver's lifetime.
type Driver struct {
	dev   Device
	caps  dma.Caps
	tx    *xfer.State
	rx    *xfer.State
	pool  *dma.Pool
	trace *diag.Bus
	name  string
}

func New(sect *critical.Section, dev Device, cfg Config) *Driver {
	name := cfg.Name
	if name == "" {
		name = "uarte"
	}
	caps := dev.Caps()
	if caps.MaxSpan <= 0 {
		caps.MaxSpan = 0xFFFF
	}
	return &Driver{
		dev:   dev,
		caps:  caps,
		tx:    xfer.NewState(sect, dev.Tx()),
		rx:    xfer.NewState(sect, dev.Rx()),
		pool:  cfg.Pool,
		trace: cfg.Trace,
		name:  name,
	}
}

// HandleInterrupt services the UARTE interrupt. The platform binding
// wires it to the real vector; sims call it directly.
func (d *Driver) HandleInterrupt() {
	ev := d.dev.TakeEvents()
	if ev.TxEnd {
		d.tx.Finish(d.dev.Tx().Amount())
	}
	if ev.RxErr != "" {
		// Stop before surfacing so the peripheral is immediately
		// reusable; faults never leave the channel half-armed.
		d.dev.Rx().Stop()
		d.rx.Fault(ev.RxErr, d.dev.Rx().Amount())
		d.trace.Publish(diag.Event{Source: d.name, Code: ev.RxErr, Detail: "rx_fault"})
	} else if ev.RxEnd {
		d.rx.Finish(d.dev.Rx().Amount())
	}
}

// Write transmits p, chunking at the DMA span. It returns the bytes that
// reached the hardware even on error. Cancelling ctx aborts the in-flight
// chunk and reports its drained count.
func (d *Driver) Write(ctx context.Context, p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		n := mathx.Min(len(p), d.caps.MaxSpan)
		desc, release, err := d.stageTx(p[:n])
		if err != nil {
			return total, err
		}
		op, err := d.tx.Begin(n, func() { d.dev.Tx().Arm(desc) })
		if err != nil {
			release()
			return total, err
		}
		m, err := op.Await(ctx)
		release()
		total += m
		if err != nil {
			return total, err
		}
		if m < n {
			// Short completion without a fault ends the transfer; issuing
			// the next chunk would misplace it past the unfilled span.
			return total, nil
		}
		p = p[n:]
	}
	return total, nil
}

// Read fills p from the wire, chunking at the DMA span. RX errors
// surface as transport faults with the partial count. A chunk that
// completes short without a fault ends the read with the bytes that
// arrived.
func (d *Driver) Read(ctx context.Context, p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		n := mathx.Min(len(p), d.caps.MaxSpan)
		desc, err := dma.DescribeRx(p[:n], d.caps)
		if err != nil {
			return total, err
		}
		op, err := d.rx.Begin(n, func() { d.dev.Rx().Arm(desc) })
		if err != nil {
			return total, err
		}
		m, err := op.Await(ctx)
		total += m
		if err != nil {
			return total, err
		}
		if m < n {
			return total, nil
		}
		p = p[n:]
	}
	return total, nil
}

// stageTx validates a chunk as a DMA source, falling back to a bounce
// copy when the memory is outside the hardware's window.
func (d *Driver) stageTx(chunk []byte) (dma.Descriptor, func(), error) {
	desc, err := dma.Describe(chunk, d.caps)
	if err == nil {
		return desc, func() {}, nil
	}
	if errcode.Of(err) == errcode.NoDmaStorage && d.pool != nil {
		return d.pool.Stage(chunk)
	}
	return dma.Descriptor{}, nil, err
}
