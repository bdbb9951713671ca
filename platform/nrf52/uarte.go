//go:build tinygo || baremetal

// platform/nrf52/uarte.go
package nrf52

import (
	"device/nrf"
	"runtime/interrupt"

	"nrfhal-go/critical"
	"nrfhal-go/diag"
	"nrfhal-go/dma"
	"nrfhal-go/drivers/uarte"
	"nrfhal-go/errcode"
	"nrfhal-go/hw"
)

// UARTEConfig selects pins and line rate. Baud takes the raw BAUDRATE
// register value; the common ones are exported below.
type UARTEConfig struct {
	TxPin, RxPin uint32
	Baud         uint32
	Pool         *dma.Pool
	Trace        *diag.Bus
}

const (
	Baud9600   = 0x00275000
	Baud115200 = 0x01D60000
	Baud1M     = 0x10000000
)

type uarteTxLane struct{ p *nrf.UARTE_Type }

func (l uarteTxLane) Arm(d dma.Descriptor) {
	l.p.TXD.PTR.Set(uint32(d.Addr()))
	l.p.TXD.MAXCNT.Set(uint32(d.Len()))
}

func (l uarteTxLane) Start() {
	l.p.EVENTS_ENDTX.Set(0)
	l.p.TASKS_STARTTX.Set(1)
}

// Stop aborts the transfer and waits for the hardware to confirm it no
// longer holds the descriptor.
func (l uarteTxLane) Stop() {
	l.p.EVENTS_TXSTOPPED.Set(0)
	l.p.TASKS_STOPTX.Set(1)
	for l.p.EVENTS_TXSTOPPED.Get() == 0 {
	}
	l.p.EVENTS_TXSTOPPED.Set(0)
}

func (l uarteTxLane) Amount() int { return int(l.p.TXD.AMOUNT.Get()) }

type uarteRxLane struct{ p *nrf.UARTE_Type }

func (l uarteRxLane) Arm(d dma.Descriptor) {
	l.p.RXD.PTR.Set(uint32(d.Addr()))
	l.p.RXD.MAXCNT.Set(uint32(d.Len()))
}

func (l uarteRxLane) Start() {
	l.p.EVENTS_ENDRX.Set(0)
	l.p.TASKS_STARTRX.Set(1)
}

func (l uarteRxLane) Stop() {
	l.p.EVENTS_RXTO.Set(0)
	l.p.TASKS_STOPRX.Set(1)
	for l.p.EVENTS_RXTO.Get() == 0 {
	}
	l.p.EVENTS_RXTO.Set(0)
}

func (l uarteRxLane) Amount() int { return int(l.p.RXD.AMOUNT.Get()) }

type uarteDev struct {
	p *nrf.UARTE_Type
}

func (d *uarteDev) Tx() hw.Lane    { return uarteTxLane{d.p} }
func (d *uarteDev) Rx() hw.Lane    { return uarteRxLane{d.p} }
func (d *uarteDev) Caps() dma.Caps { return easyDMACaps }

func (d *uarteDev) TakeEvents() uarte.Events {
	var ev uarte.Events
	if d.p.EVENTS_ENDTX.Get() != 0 {
		d.p.EVENTS_ENDTX.Set(0)
		ev.TxEnd = true
	}
	if d.p.EVENTS_ERROR.Get() != 0 {
		d.p.EVENTS_ERROR.Set(0)
		src := d.p.ERRORSRC.Get()
		d.p.ERRORSRC.Set(src) // write-one-to-clear
		ev.RxErr = decodeUARTEError(src)
	}
	if d.p.EVENTS_ENDRX.Get() != 0 {
		d.p.EVENTS_ENDRX.Set(0)
		ev.RxEnd = true
	}
	return ev
}

func decodeUARTEError(src uint32) errcode.Code {
	switch {
	case src&nrf.UARTE_ERRORSRC_OVERRUN != 0:
		return errcode.Overrun
	case src&nrf.UARTE_ERRORSRC_PARITY != 0:
		return errcode.Parity
	case src&nrf.UARTE_ERRORSRC_FRAMING != 0:
		return errcode.Framing
	case src&nrf.UARTE_ERRORSRC_BREAK != 0:
		return errcode.BreakCond
	}
	return errcode.Error
}

var uarte0 *uarte.Driver

// NewUARTE0 configures UARTE0 and returns its driver. Call once.
func NewUARTE0(sect *critical.Section, cfg UARTEConfig) *uarte.Driver {
	p := nrf.UARTE0

	p.ENABLE.Set(nrf.UARTE_ENABLE_ENABLE_Disabled)
	p.PSEL.TXD.Set(cfg.TxPin)
	p.PSEL.RXD.Set(cfg.RxPin)
	if cfg.Baud == 0 {
		cfg.Baud = Baud115200
	}
	p.BAUDRATE.Set(cfg.Baud)
	p.ENABLE.Set(nrf.UARTE_ENABLE_ENABLE_Enabled)

	p.INTENSET.Set(nrf.UARTE_INTENSET_ENDTX | nrf.UARTE_INTENSET_ENDRX | nrf.UARTE_INTENSET_ERROR)

	uarte0 = uarte.New(sect, &uarteDev{p: p}, uarte.Config{
		Name:  "uarte0",
		Pool:  cfg.Pool,
		Trace: cfg.Trace,
	})

	intr := interrupt.New(nrf.IRQ_UARTE0_UART0, handleUARTE0)
	intr.Enable()
	return uarte0
}

func handleUARTE0(interrupt.Interrupt) {
	if uarte0 != nil {
		uarte0.HandleInterrupt()
	}
}
