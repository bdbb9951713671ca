//go:build tinygo || baremetal

// platform/nrf52/spim.go
package nrf52

import (
	"device/nrf"
	"runtime/interrupt"

	"nrfhal-go/critical"
	"nrfhal-go/diag"
	"nrfhal-go/dma"
	"nrfhal-go/drivers/spim"
)

// SPIMConfig selects pins, rate and mode for one SPIM instance.
type SPIMConfig struct {
	SckPin, MosiPin, MisoPin uint32
	Frequency                uint32 // raw FREQUENCY register value
	Mode                     uint8  // 0..3
	Pool                     *dma.Pool
	Trace                    *diag.Bus
}

// spimCaps: the nrf52832-generation SPIM counts 8 bits; chunking above
// that is the facade's job either way.
var spimCaps = dma.Caps{
	MaxSpan:  0xFF,
	RAMStart: easyDMACaps.RAMStart,
	RAMEnd:   easyDMACaps.RAMEnd,
}

type spimDev struct {
	p *nrf.SPIM_Type
}

func (d *spimDev) ArmTx(desc dma.Descriptor) {
	d.p.TXD.PTR.Set(uint32(desc.Addr()))
	d.p.TXD.MAXCNT.Set(uint32(desc.Len()))
}

func (d *spimDev) ArmRx(desc dma.Descriptor) {
	d.p.RXD.PTR.Set(uint32(desc.Addr()))
	d.p.RXD.MAXCNT.Set(uint32(desc.Len()))
}

func (d *spimDev) Start() {
	d.p.EVENTS_END.Set(0)
	d.p.TASKS_START.Set(1)
}

func (d *spimDev) Stop() {
	d.p.EVENTS_STOPPED.Set(0)
	d.p.TASKS_STOP.Set(1)
	for d.p.EVENTS_STOPPED.Get() == 0 {
	}
	d.p.EVENTS_STOPPED.Set(0)
}

// Amount reports the longer direction: SPI clocks both in lockstep, so
// that is the number of clocked bytes.
func (d *spimDev) Amount() int {
	tx := int(d.p.TXD.AMOUNT.Get())
	rx := int(d.p.RXD.AMOUNT.Get())
	if rx > tx {
		return rx
	}
	return tx
}

func (d *spimDev) Caps() dma.Caps { return spimCaps }

func (d *spimDev) TakeEvents() spim.Events {
	var ev spim.Events
	if d.p.EVENTS_END.Get() != 0 {
		d.p.EVENTS_END.Set(0)
		ev.End = true
	}
	return ev
}

var spim0 *spim.Driver

// NewSPIM0 configures SPIM0 and returns its driver. Call once.
func NewSPIM0(sect *critical.Section, cfg SPIMConfig) *spim.Driver {
	p := nrf.SPIM0

	p.ENABLE.Set(nrf.SPIM_ENABLE_ENABLE_Disabled)
	p.PSEL.SCK.Set(cfg.SckPin)
	p.PSEL.MOSI.Set(cfg.MosiPin)
	p.PSEL.MISO.Set(cfg.MisoPin)
	if cfg.Frequency == 0 {
		cfg.Frequency = nrf.SPIM_FREQUENCY_FREQUENCY_M4
	}
	p.FREQUENCY.Set(cfg.Frequency)

	var conf uint32
	switch cfg.Mode {
	case 1:
		conf |= nrf.SPIM_CONFIG_CPHA_Trailing << nrf.SPIM_CONFIG_CPHA_Pos
	case 2:
		conf |= nrf.SPIM_CONFIG_CPOL_ActiveLow << nrf.SPIM_CONFIG_CPOL_Pos
	case 3:
		conf |= nrf.SPIM_CONFIG_CPOL_ActiveLow << nrf.SPIM_CONFIG_CPOL_Pos
		conf |= nrf.SPIM_CONFIG_CPHA_Trailing << nrf.SPIM_CONFIG_CPHA_Pos
	}
	p.CONFIG.Set(conf)
	p.ENABLE.Set(nrf.SPIM_ENABLE_ENABLE_Enabled)

	p.INTENSET.Set(nrf.SPIM_INTENSET_END)

	spim0 = spim.New(sect, &spimDev{p: p}, spim.Config{
		Name:  "spim0",
		Pool:  cfg.Pool,
		Trace: cfg.Trace,
	})

	intr := interrupt.New(nrf.IRQ_SPIM0_SPIS0_TWIM0_TWIS0_SPI0_TWI0, handleSPIM0)
	intr.Enable()
	return spim0
}

func handleSPIM0(interrupt.Interrupt) {
	if spim0 != nil {
		spim0.HandleInterrupt()
	}
}
