// drivers/pwm/pwm.go
//
// Package pwm plays duty-cycle sequences through a DMA-fed pulse-width
// peripheral. The hardware walks a halfword sequence autonomously, so
// the sequence buffer falls under the same hand-off contract as any
// other descriptor: untouched until SEQEND or a confirmed stop.
package pwm

import (
	"context"

	"nrfhal-go/critical"
	"nrfhal-go/diag"
	"nrfhal-go/dma"
	"nrfhal-go/hw"
	"nrfhal-go/xfer"
)

// Events is one read-and-clear snapshot of the peripheral's event
// registers, taken in interrupt context.
type Events struct {
	SeqEnd  bool
	Stopped bool
}

// Device is the register access layer for one PWM instance. The lane's
// Amount counts halfwords played.
type Device interface {
	Seq() hw.Lane
	Caps() dma.Caps // MaxSpan in halfwords
	TakeEvents() Events
}

type Config struct {
	Name  string
	Trace *diag.Bus
}

type Driver struct {
	dev   Device
	caps  dma.Caps
	seq   *xfer.State
	trace *diag.Bus
	name  string
}

func New(sect *critical.Section, dev Device, cfg Config) *Driver {
	name := cfg.Name
	if name == "" {
		name = "pwm"
	}
	return &Driver{
		dev:   dev,
		caps:  dev.Caps(),
		seq:   xfer.NewState(sect, dev.Seq()),
		trace: cfg.Trace,
		name:  name,
	}
}

// HandleInterrupt services the PWM interrupt.
func (d *Driver) HandleInterrupt() {
	ev := d.dev.TakeEvents()
	if ev.SeqEnd || ev.Stopped {
		d.seq.Finish(d.dev.Seq().Amount())
	}
}

// Play runs one pass of the duty-cycle sequence and returns when the
// last value has been loaded. The sequence must fit a single descriptor;
// splitting a waveform would glitch the output, so over-long sequences
// are rejected outright rather than chunked.
func (d *Driver) Play(ctx context.Context, duty []uint16) error {
	desc, err := dma.DescribeU16(duty, d.caps)
	if err != nil {
		return err
	}
	op, err := d.seq.Begin(len(duty), func() { d.dev.Seq().Arm(desc) })
	if err != nil {
		return err
	}
	_, err = op.Await(ctx)
	return err
}

// Stop halts playback. The stop sequence is synchronous, so on return
// the hardware no longer walks the sequence buffer; an in-flight Play
// returns with the halfwords loaded before the stop took effect. A Stop
// with nothing playing is a no-op.
func (d *Driver) Stop() {
	d.dev.Seq().Stop()
	d.seq.Finish(d.dev.Seq().Amount())
}
