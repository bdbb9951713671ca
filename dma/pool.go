// dma/pool.go
package dma

import (
	"sync"

	"nrfhal-go/diag"
	"nrfhal-go/errcode"
)

// Pool provides bounce storage inside the DMA-visible window for transmit
// sources the hardware cannot reach (flash constants, stack temporaries on
// the wrong region). Staging trades a copy for safety and is reported as a
// degraded path.
type Pool struct {
	mu    sync.Mutex
	slots [][]byte
	used  []bool
	caps  Caps
	trace *diag.Bus
}

// NewPool allocates nslots bounce buffers of slotSize bytes each. The
// slots are allocated once, up front; staging never allocates.
func NewPool(slotSize, nslots int, caps Caps, trace *diag.Bus) *Pool {
	if slotSize <= 0 || nslots <= 0 {
		panic("dma: pool needs at least one non-empty slot")
	}
	p := &Pool{
		slots: make([][]byte, nslots),
		used:  make([]bool, nslots),
		caps:  caps,
		trace: trace,
	}
	for i := range p.slots {
		p.slots[i] = make([]byte, slotSize)
	}
	return p
}

// Stage copies src into a free slot and returns a descriptor over the
// copy plus a release func. The slot stays reserved until release is
// called, which must happen only after the transfer completed or its
// cancel path confirmed the hardware stopped.
func (p *Pool) Stage(src []byte) (Descriptor, func(), error) {
	if len(src) == 0 {
		return Descriptor{}, nil, errcode.InvalidParams
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(src) > len(p.slots[0]) || (p.caps.MaxSpan > 0 && len(src) > p.caps.MaxSpan) {
		return Descriptor{}, nil, errcode.BufferTooLong
	}
	for i := range p.slots {
		if p.used[i] {
			continue
		}
		p.used[i] = true
		slot := p.slots[i][:len(src)]
		copy(slot, src)
		idx := i
		release := func() {
			p.mu.Lock()
			p.used[idx] = false
			p.mu.Unlock()
		}
		p.trace.Publish(diag.Event{
			Source: "dma",
			Code:   errcode.OK,
			Detail: "bounce_copy",
			N:      len(src),
		})
		return Descriptor{buf: slot}, release, nil
	}
	return Descriptor{}, nil, errcode.NoDmaStorage
}
