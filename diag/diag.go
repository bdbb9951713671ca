// diag/diag.go
//
// Package diag is the driver core's diagnostics surface: small events
// fanned out to subscriber channels with non-blocking sends. Degraded
// paths (DMA bounce copies), transport faults and scheduler overflow are
// reported here instead of a log framework, which MCU builds don't carry.
package diag

import (
	"sync"
	"sync/atomic"

	"nrfhal-go/errcode"
	"nrfhal-go/x/timex"
)

// Event is one diagnostics datum.
type Event struct {
	Source string       // peripheral or layer, e.g. "uarte0", "dma", "alarm"
	Code   errcode.Code // what happened
	Detail string       // short free-form note
	N      int          // byte count or entry count where meaningful
	TSms   int64
}

// Bus fans events out to subscribers. A nil *Bus is valid and drops
// everything, so drivers never have to check whether diagnostics are
// wired.
//
// Publish is called from interrupt handlers, which must never block: the
// subscriber list is a copy-on-write slice behind an atomic pointer, so
// Publish takes no lock. Subscribe serialises writers against each other
// only.
type Bus struct {
	subs  atomic.Pointer[[]chan Event]
	mu    sync.Mutex // guards Subscribe's copy-and-swap
	qLen  int
	drops uint32
}

func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 16
	}
	return &Bus{qLen: queueLen}
}

// Subscribe returns a channel receiving all future events.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, b.qLen)
	b.mu.Lock()
	var next []chan Event
	if cur := b.subs.Load(); cur != nil {
		next = append(next, *cur...)
	}
	next = append(next, ch)
	b.subs.Store(&next)
	b.mu.Unlock()
	return ch
}

// Publish delivers ev to every subscriber without blocking or locking;
// slow consumers lose events and the loss is counted. Safe from
// interrupt context.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	subs := b.subs.Load()
	if subs == nil {
		return
	}
	if ev.TSms == 0 {
		ev.TSms = timex.NowMs()
	}
	for _, ch := range *subs {
		select {
		case ch <- ev:
		default:
			atomic.AddUint32(&b.drops, 1)
		}
	}
}

// Drops reports how many events were lost to full subscriber queues.
func (b *Bus) Drops() uint32 {
	if b == nil {
		return 0
	}
	return atomic.LoadUint32(&b.drops)
}
