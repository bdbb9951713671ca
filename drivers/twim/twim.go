// drivers/twim/twim.go
//
// Package twim is the async I²C master facade (TWIM-style, EasyDMA per
// direction). Multi-phase transactions hold the bus claim for the whole
// sequence: two tasks issuing write-then-read transactions never
// interleave on the wire. Bus-level mutual exclusion is facade policy,
// layered above single-transfer completion.
package twim

import (
	"context"

	"tinygo.org/x/drivers"

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
	TxDone bool
	RxDone bool
	// Err carries the decoded ERRORSRC cause (address_nack, data_nack,
	// overrun); empty when no error fired.
	Err errcode.Code
}

// Device is the register access layer for one TWIM instance.
type Device interface {
	SetAddress(addr uint16)
	Tx() hw.Lane
	Rx() hw.Lane
	Caps() dma.Caps
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
	bus   chan struct{} // facade-level ownership token
	trace *diag.Bus
	name  string
}

func New(sect *critical.Section, dev Device, cfg Config) *Driver {
	name := cfg.Name
	if name == "" {
		name = "twim"
	}
	caps := dev.Caps()
	if caps.MaxSpan <= 0 {
		caps.MaxSpan = 0xFF
	}
	return &Driver{
		dev:   dev,
		caps:  caps,
		tx:    xfer.NewState(sect, dev.Tx()),
		rx:    xfer.NewState(sect, dev.Rx()),
		bus:   make(chan struct{}, 1),
		trace: cfg.Trace,
		name:  name,
	}
}

// HandleInterrupt services the TWIM interrupt.
func (d *Driver) HandleInterrupt() {
	ev := d.dev.TakeEvents()
	if ev.Err != "" {
		// Stop before surfacing; only the active phase's state machine
		// is Armed/Running, the other Fault is a no-op.
		d.dev.Tx().Stop()
		d.dev.Rx().Stop()
		d.tx.Fault(ev.Err, d.dev.Tx().Amount())
		d.rx.Fault(ev.Err, d.dev.Rx().Amount())
		d.trace.Publish(diag.Event{Source: d.name, Code: ev.Err, Detail: "bus_fault"})
		return
	}
	if ev.TxDone {
		d.tx.Finish(d.dev.Tx().Amount())
	}
	if ev.RxDone {
		d.rx.Finish(d.dev.Rx().Amount())
	}
}

func (d *Driver) claim(ctx context.Context) error {
	select {
	case d.bus <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Driver) release() { <-d.bus }

// Write transmits p to the addressed peripheral.
func (d *Driver) Write(ctx context.Context, addr uint16, p []byte) (int, error) {
	if err := d.claim(ctx); err != nil {
		return 0, err
	}
	defer d.release()
	d.dev.SetAddress(addr)
	return d.writePhase(ctx, p)
}

// Read fills p from the addressed peripheral.
func (d *Driver) Read(ctx context.Context, addr uint16, p []byte) (int, error) {
	if err := d.claim(ctx); err != nil {
		return 0, err
	}
	defer d.release()
	d.dev.SetAddress(addr)
	return d.readPhase(ctx, p)
}

// WriteRead performs the combined write-then-read transaction. The bus
// claim spans both phases, so the sequence is atomic with respect to
// other tasks on this driver.
func (d *Driver) WriteRead(ctx context.Context, addr uint16, w, r []byte) error {
	if err := d.claim(ctx); err != nil {
		return err
	}
	defer d.release()
	d.dev.SetAddress(addr)
	if len(w) > 0 {
		if _, err := d.writePhase(ctx, w); err != nil {
			return err
		}
	}
	if len(r) > 0 {
		if _, err := d.readPhase(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// Tx implements the tinygo.org/x/drivers I2C contract, so existing
// device drivers from that ecosystem run on this core unchanged.
func (d *Driver) Tx(addr uint16, w, r []byte) error {
	return d.WriteRead(context.Background(), addr, w, r)
}

var _ drivers.I2C = (*Driver)(nil)

func (d *Driver) writePhase(ctx context.Context, p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		n := mathx.Min(len(p), d.caps.MaxSpan)
		desc, err := dma.Describe(p[:n], d.caps)
		if err != nil {
			return total, err
		}
		op, err := d.tx.Begin(n, func() { d.dev.Tx().Arm(desc) })
		if err != nil {
			return total, err
		}
		m, err := op.Await(ctx)
		total += m
		if err != nil {
			return total, err
		}
		if m < n {
			// Short completion without a fault ends the phase; the next
			// chunk would land past the bytes that never moved.
			return total, nil
		}
		p = p[n:]
	}
	return total, nil
}

func (d *Driver) readPhase(ctx context.Context, p []byte) (int, error) {
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
