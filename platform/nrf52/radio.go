//go:build tinygo || baremetal

// platform/nrf52/radio.go
package nrf52

import (
	"device/nrf"
	"runtime/interrupt"

	"nrfhal-go/critical"
	"nrfhal-go/diag"
	"nrfhal-go/dma"
	"nrfhal-go/drivers/radio"
	"nrfhal-go/hw"
)

// RadioConfig carries the on-air parameters. Address/prefix/channel
// follow the classic BASE0/PREFIX0 addressing scheme.
type RadioConfig struct {
	Address  uint32
	Prefix   byte
	Channel  uint8 // 0..125
	MaxFrame int
	Trace    *diag.Bus
}

type radioLane struct {
	p  *nrf.RADIO_Type
	rx bool
}

func (l radioLane) Arm(d dma.Descriptor) {
	l.p.PACKETPTR.Set(uint32(d.Addr()))
	l.armedLen(d.Len())
}

func (l radioLane) armedLen(n int) {
	// MAXLEN guards the EasyDMA write; the length prefix on air may be
	// shorter but can never overrun the armed buffer.
	cnf := l.p.PCNF1.Get()
	cnf = (cnf &^ (0xFF << nrf.RADIO_PCNF1_MAXLEN_Pos)) | uint32(n)<<nrf.RADIO_PCNF1_MAXLEN_Pos
	l.p.PCNF1.Set(cnf)
}

func (l radioLane) Start() {
	l.p.EVENTS_END.Set(0)
	l.p.EVENTS_DISABLED.Set(0)
	// READY_START chains ramp-up into the transfer.
	l.p.SHORTS.Set(nrf.RADIO_SHORTS_READY_START | nrf.RADIO_SHORTS_END_DISABLE)
	if l.rx {
		l.p.TASKS_RXEN.Set(1)
	} else {
		l.p.TASKS_TXEN.Set(1)
	}
}

func (l radioLane) Stop() {
	l.p.EVENTS_DISABLED.Set(0)
	l.p.TASKS_DISABLE.Set(1)
	for l.p.EVENTS_DISABLED.Get() == 0 {
	}
	l.p.EVENTS_DISABLED.Set(0)
}

// Amount: the radio reports no byte counter; the armed frame length is
// the transfer size, and the facade reads the on-air length from the
// frame itself.
func (l radioLane) Amount() int {
	return int(l.p.PCNF1.Get() >> nrf.RADIO_PCNF1_MAXLEN_Pos & 0xFF)
}

type radioDev struct {
	p    *nrf.RADIO_Type
	caps dma.Caps
}

func (d *radioDev) TxLane() hw.Lane { return radioLane{p: d.p} }
func (d *radioDev) RxLane() hw.Lane { return radioLane{p: d.p, rx: true} }
func (d *radioDev) Caps() dma.Caps  { return d.caps }

func (d *radioDev) TakeEvents() radio.Events {
	var ev radio.Events
	if d.p.EVENTS_END.Get() != 0 {
		d.p.EVENTS_END.Set(0)
		state := d.p.STATE.Get()
		if state == nrf.RADIO_STATE_STATE_RxIdle || state == nrf.RADIO_STATE_STATE_RxDisable || state == nrf.RADIO_STATE_STATE_Rx {
			ev.RxEnd = true
			ev.CrcOK = d.p.CRCSTATUS.Get() == nrf.RADIO_CRCSTATUS_CRCSTATUS_CRCOk
		} else {
			ev.TxEnd = true
		}
	}
	return ev
}

var radio0 *radio.Driver

// NewRadio powers the radio, applies the on-air configuration and
// returns its driver. The high-frequency clock must already be running.
func NewRadio(sect *critical.Section, cfg RadioConfig) *radio.Driver {
	p := nrf.RADIO

	p.POWER.Set(1)
	p.MODE.Set(nrf.RADIO_MODE_MODE_Nrf_1Mbit)
	p.TXPOWER.Set(nrf.RADIO_TXPOWER_TXPOWER_0dBm)
	p.FREQUENCY.Set(uint32(cfg.Channel))

	p.BASE0.Set(cfg.Address)
	p.PREFIX0.Set(uint32(cfg.Prefix))
	p.TXADDRESS.Set(0)
	p.RXADDRESSES.Set(1)

	if cfg.MaxFrame <= 0 || cfg.MaxFrame > 0xFF {
		cfg.MaxFrame = 64
	}
	p.PCNF0.Set(8 << nrf.RADIO_PCNF0_LFLEN_Pos)
	p.PCNF1.Set(uint32(cfg.MaxFrame)<<nrf.RADIO_PCNF1_MAXLEN_Pos |
		3<<nrf.RADIO_PCNF1_BALEN_Pos |
		nrf.RADIO_PCNF1_ENDIAN_Little<<nrf.RADIO_PCNF1_ENDIAN_Pos)

	p.CRCCNF.Set(1)
	p.CRCINIT.Set(0xFF)
	p.CRCPOLY.Set(0x107)

	p.INTENSET.Set(nrf.RADIO_INTENSET_END)

	radio0 = radio.New(sect, &radioDev{p: p, caps: dma.Caps{
		MaxSpan:  cfg.MaxFrame,
		RAMStart: easyDMACaps.RAMStart,
		RAMEnd:   easyDMACaps.RAMEnd,
	}}, radio.Config{Name: "radio", Trace: cfg.Trace})

	intr := interrupt.New(nrf.IRQ_RADIO, handleRadio)
	intr.Enable()
	return radio0
}

func handleRadio(interrupt.Interrupt) {
	if radio0 != nil {
		radio0.HandleInterrupt()
	}
}

// StartHFCLK starts the high-frequency clock the radio requires.
func StartHFCLK() {
	nrf.CLOCK.EVENTS_HFCLKSTARTED.Set(0)
	nrf.CLOCK.TASKS_HFCLKSTART.Set(1)
	for nrf.CLOCK.EVENTS_HFCLKSTARTED.Get() == 0 {
	}
}
