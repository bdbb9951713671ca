// drivers/spim/spim.go
//
// Package spim is the async SPI master facade (SPIM-style: one EasyDMA
// descriptor per direction, one START per chunk). SPI is synchronous, so
// a chunk moves max(len(w), len(r)) clocks: extra received bytes are
// dropped, short transmit sides are padded by the hardware's over-read
// character.
package spim

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
	End bool
	Err errcode.Code // empty when no error fired
}

// Device is the register access layer for one SPIM instance. Start,
// Stop and Amount act on the whole two-descriptor transfer; an empty
// descriptor passed to ArmTx/ArmRx means that direction moves no data
// this chunk.
type Device interface {
	hw.Engine
	ArmTx(d dma.Descriptor)
	ArmRx(d dma.Descriptor)
	Caps() dma.Caps
	TakeEvents() Events
}

type Config struct {
	Name  string
	Pool  *dma.Pool
	Trace *diag.Bus
}

type Driver struct {
	dev   Device
	caps  dma.Caps
	st    *xfer.State
	bus   chan struct{}
	pool  *dma.Pool
	trace *diag.Bus
	name  string
}

func New(sect *critical.Section, dev Device, cfg Config) *Driver {
	name := cfg.Name
	if name == "" {
		name = "spim"
	}
	caps := dev.Caps()
	if caps.MaxSpan <= 0 {
		caps.MaxSpan = 0xFF
	}
	return &Driver{
		dev:   dev,
		caps:  caps,
		st:    xfer.NewState(sect, dev),
		bus:   make(chan struct{}, 1),
		pool:  cfg.Pool,
		trace: cfg.Trace,
		name:  name,
	}
}

// HandleInterrupt services the SPIM interrupt.
func (d *Driver) HandleInterrupt() {
	ev := d.dev.TakeEvents()
	if ev.Err != "" {
		d.dev.Stop()
		d.st.Fault(ev.Err, d.dev.Amount())
		d.trace.Publish(diag.Event{Source: d.name, Code: ev.Err, Detail: "bus_fault"})
		return
	}
	if ev.End {
		d.st.Finish(d.dev.Amount())
	}
}

// TxContext clocks the full-duplex transfer, chunking both directions at
// the DMA span. It returns the bytes clocked even on error.
func (d *Driver) TxContext(ctx context.Context, w, r []byte) (int, error) {
	select {
	case d.bus <- struct{}{}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	defer func() { <-d.bus }()

	total := 0
	for len(w) > 0 || len(r) > 0 {
		nw := mathx.Min(len(w), d.caps.MaxSpan)
		nr := mathx.Min(len(r), d.caps.MaxSpan)

		var wdesc, rdesc dma.Descriptor
		release := func() {}
		if nw > 0 {
			var err error
			wdesc, release, err = d.stageTx(w[:nw])
			if err != nil {
				return total, err
			}
		}
		if nr > 0 {
			var err error
			rdesc, err = dma.DescribeRx(r[:nr], d.caps)
			if err != nil {
				release()
				return total, err
			}
		}

		want := mathx.Max(nw, nr)
		op, err := d.st.Begin(want, func() {
			d.dev.ArmTx(wdesc)
			d.dev.ArmRx(rdesc)
		})
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
		if m < want {
			// Short completion without a fault ends the transfer; both
			// slices would otherwise advance past unclocked bytes.
			return total, nil
		}
		w = w[nw:]
		r = r[nr:]
	}
	return total, nil
}

// Tx implements the tinygo.org/x/drivers SPI contract.
func (d *Driver) Tx(w, r []byte) error {
	_, err := d.TxContext(context.Background(), w, r)
	return err
}

// Transfer clocks a single byte.
func (d *Driver) Transfer(b byte) (byte, error) {
	var wbuf, rbuf [1]byte
	wbuf[0] = b
	err := d.Tx(wbuf[:], rbuf[:])
	return rbuf[0], err
}

var _ drivers.SPI = (*Driver)(nil)

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
