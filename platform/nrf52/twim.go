//go:build tinygo || baremetal

// platform/nrf52/twim.go
package nrf52

import (
	"device/nrf"
	"runtime/interrupt"

	"nrfhal-go/critical"
	"nrfhal-go/diag"
	"nrfhal-go/dma"
	"nrfhal-go/drivers/twim"
	"nrfhal-go/errcode"
	"nrfhal-go/hw"
)

// TWIMConfig selects pins and rate for one TWIM instance. Frequency
// takes the raw FREQUENCY register value.
type TWIMConfig struct {
	SclPin, SdaPin uint32
	Frequency      uint32
	Trace          *diag.Bus
}

var twimCaps = dma.Caps{
	MaxSpan:  0xFF,
	RAMStart: easyDMACaps.RAMStart,
	RAMEnd:   easyDMACaps.RAMEnd,
}

type twimTxLane struct{ p *nrf.TWIM_Type }

func (l twimTxLane) Arm(d dma.Descriptor) {
	l.p.TXD.PTR.Set(uint32(d.Addr()))
	l.p.TXD.MAXCNT.Set(uint32(d.Len()))
}

func (l twimTxLane) Start() {
	// LASTTX_STOP raises STOPPED when the write phase completes.
	l.p.SHORTS.Set(nrf.TWIM_SHORTS_LASTTX_STOP)
	l.p.EVENTS_STOPPED.Set(0)
	l.p.TASKS_STARTTX.Set(1)
}

func (l twimTxLane) Stop() { twimStop(l.p) }

func (l twimTxLane) Amount() int { return int(l.p.TXD.AMOUNT.Get()) }

type twimRxLane struct{ p *nrf.TWIM_Type }

func (l twimRxLane) Arm(d dma.Descriptor) {
	l.p.RXD.PTR.Set(uint32(d.Addr()))
	l.p.RXD.MAXCNT.Set(uint32(d.Len()))
}

func (l twimRxLane) Start() {
	l.p.SHORTS.Set(nrf.TWIM_SHORTS_LASTRX_STOP)
	l.p.EVENTS_STOPPED.Set(0)
	l.p.TASKS_STARTRX.Set(1)
}

func (l twimRxLane) Stop() { twimStop(l.p) }

func (l twimRxLane) Amount() int { return int(l.p.RXD.AMOUNT.Get()) }

func twimStop(p *nrf.TWIM_Type) {
	p.EVENTS_STOPPED.Set(0)
	p.TASKS_STOP.Set(1)
	for p.EVENTS_STOPPED.Get() == 0 {
	}
	p.EVENTS_STOPPED.Set(0)
}

type twimDev struct {
	p *nrf.TWIM_Type
	// lastRx distinguishes which phase a STOPPED event belongs to; it is
	// written under the transaction's critical section (lane Start runs
	// inside Begin) and read in the interrupt handler.
	lastRx bool
}

type twimDevTx struct{ *twimDev }

func (d twimDevTx) Arm(desc dma.Descriptor) { twimTxLane{d.p}.Arm(desc) }
func (d twimDevTx) Start()                  { d.lastRx = false; twimTxLane{d.p}.Start() }
func (d twimDevTx) Stop()                   { twimStop(d.p) }
func (d twimDevTx) Amount() int             { return int(d.p.TXD.AMOUNT.Get()) }

type twimDevRx struct{ *twimDev }

func (d twimDevRx) Arm(desc dma.Descriptor) { twimRxLane{d.p}.Arm(desc) }
func (d twimDevRx) Start()                  { d.lastRx = true; twimRxLane{d.p}.Start() }
func (d twimDevRx) Stop()                   { twimStop(d.p) }
func (d twimDevRx) Amount() int             { return int(d.p.RXD.AMOUNT.Get()) }

func (d *twimDev) SetAddress(addr uint16) { d.p.ADDRESS.Set(uint32(addr)) }
func (d *twimDev) Tx() hw.Lane            { return twimDevTx{d} }
func (d *twimDev) Rx() hw.Lane            { return twimDevRx{d} }
func (d *twimDev) Caps() dma.Caps         { return twimCaps }

func (d *twimDev) TakeEvents() twim.Events {
	var ev twim.Events
	if d.p.EVENTS_ERROR.Get() != 0 {
		d.p.EVENTS_ERROR.Set(0)
		src := d.p.ERRORSRC.Get()
		d.p.ERRORSRC.Set(src) // write-one-to-clear
		ev.Err = decodeTWIMError(src)
		return ev
	}
	if d.p.EVENTS_STOPPED.Get() != 0 {
		d.p.EVENTS_STOPPED.Set(0)
		if d.lastRx {
			ev.RxDone = true
		} else {
			ev.TxDone = true
		}
	}
	return ev
}

func decodeTWIMError(src uint32) errcode.Code {
	switch {
	case src&nrf.TWIM_ERRORSRC_ANACK != 0:
		return errcode.AddressNack
	case src&nrf.TWIM_ERRORSRC_DNACK != 0:
		return errcode.DataNack
	case src&nrf.TWIM_ERRORSRC_OVERRUN != 0:
		return errcode.Overrun
	}
	return errcode.Error
}

var twim1 *twim.Driver

// NewTWIM1 configures TWIM1 and returns its driver. Call once. TWIM1 is
// used so the bus does not share an IRQ with SPIM0.
func NewTWIM1(sect *critical.Section, cfg TWIMConfig) *twim.Driver {
	p := nrf.TWIM1

	p.ENABLE.Set(nrf.TWIM_ENABLE_ENABLE_Disabled)
	p.PSEL.SCL.Set(cfg.SclPin)
	p.PSEL.SDA.Set(cfg.SdaPin)
	if cfg.Frequency == 0 {
		cfg.Frequency = nrf.TWIM_FREQUENCY_FREQUENCY_K100
	}
	p.FREQUENCY.Set(cfg.Frequency)
	p.ENABLE.Set(nrf.TWIM_ENABLE_ENABLE_Enabled)

	p.INTENSET.Set(nrf.TWIM_INTENSET_STOPPED | nrf.TWIM_INTENSET_ERROR)

	twim1 = twim.New(sect, &twimDev{p: p}, twim.Config{
		Name:  "twim1",
		Trace: cfg.Trace,
	})

	intr := interrupt.New(nrf.IRQ_SPIM1_SPIS1_TWIM1_TWIS1_SPI1_TWI1, handleTWIM1)
	intr.Enable()
	return twim1
}

func handleTWIM1(interrupt.Interrupt) {
	if twim1 != nil {
		twim1.HandleInterrupt()
	}
}
