//go:build tinygo || baremetal

// platform/nrf52/rtc.go
package nrf52

import (
	"device/nrf"
	"runtime/interrupt"
	"runtime/volatile"

	"nrfhal-go/alarm"
)

// TicksPerSecond is the RTC rate with the prescaler at zero.
const TicksPerSecond = 32768

// rtcClock extends the 24-bit RTC counter to 64 bits. The overflow
// counter advances in the RTC interrupt; Now re-reads until the two
// halves are consistent, so it is safe from both contexts.
type rtcClock struct {
	p   *nrf.RTC_Type
	ovf volatile.Register32
}

func (c *rtcClock) Now() uint64 {
	for {
		hi := c.ovf.Get()
		lo := c.p.COUNTER.Get() & 0xFFFFFF
		if c.ovf.Get() == hi {
			return uint64(hi)<<24 | uint64(lo)
		}
	}
}

// rtcCompare is one CC channel of the RTC. The comparator is
// edge-triggered and 24-bit; the alarm scheduler's re-check-after-arm
// covers both the passed-deadline race and far deadlines truncated into
// an earlier wrap (they fire early and get re-armed).
type rtcCompare struct {
	p  *nrf.RTC_Type
	ch int
}

func (c *rtcCompare) Arm(at uint64) {
	c.p.CC[c.ch].Set(uint32(at) & 0xFFFFFF)
	c.p.EVENTS_COMPARE[c.ch].Set(0)
	c.p.INTENSET.Set(uint32(nrf.RTC_INTENSET_COMPARE0) << c.ch)
}

func (c *rtcCompare) Disarm() {
	c.p.INTENCLR.Set(uint32(nrf.RTC_INTENCLR_COMPARE0) << c.ch)
	c.p.EVENTS_COMPARE[c.ch].Set(0)
}

func (c *rtcCompare) Pending() bool {
	return c.p.EVENTS_COMPARE[c.ch].Get() != 0
}

var (
	rtc0Clock rtcClock
	rtc0Sched *alarm.Scheduler
)

// StartRTC0 starts the low-frequency counter and returns the alarm
// scheduler multiplexing CC[0]. Call once, before scheduling anything.
func StartRTC0(capacity int) *alarm.Scheduler {
	sect := NewSection()
	rtc0Clock.p = nrf.RTC0

	nrf.RTC0.PRESCALER.Set(0)
	nrf.RTC0.EVENTS_OVRFLW.Set(0)
	nrf.RTC0.INTENSET.Set(nrf.RTC_INTENSET_OVRFLW)

	rtc0Sched = alarm.New(sect, &rtc0Clock, &rtcCompare{p: nrf.RTC0, ch: 0}, capacity, nil)

	intr := interrupt.New(nrf.IRQ_RTC0, handleRTC0)
	intr.Enable()

	nrf.RTC0.TASKS_START.Set(1)
	return rtc0Sched
}

func handleRTC0(interrupt.Interrupt) {
	if nrf.RTC0.EVENTS_OVRFLW.Get() != 0 {
		nrf.RTC0.EVENTS_OVRFLW.Set(0)
		rtc0Clock.ovf.Set(rtc0Clock.ovf.Get() + 1)
	}
	if nrf.RTC0.EVENTS_COMPARE[0].Get() != 0 {
		nrf.RTC0.EVENTS_COMPARE[0].Set(0)
		if rtc0Sched != nil {
			rtc0Sched.OnCompare()
		}
	}
}
