// dma/dma.go
//
// Package dma guards every buffer handed to peripheral-driven DMA.
// Hardware reads and writes memory autonomously from a descriptor, so all
// validation happens here, before any register is armed; nothing is ever
// rejected mid-transfer.
package dma

import (
	"unsafe"

	"nrfhal-go/errcode"
)

// Caps describes one peripheral's DMA reach.
type Caps struct {
	// MaxSpan is the largest single-descriptor transfer (MAXCNT width).
	MaxSpan int
	// Align is the required buffer alignment; 0 or 1 means none.
	Align int
	// RAMStart/RAMEnd bound the hardware-visible memory window. Both
	// zero means the whole address space is reachable (hosted builds).
	RAMStart, RAMEnd uintptr
}

func (c Caps) reachable(addr uintptr, n int) bool {
	if c.RAMStart == 0 && c.RAMEnd == 0 {
		return true
	}
	return addr >= c.RAMStart && addr+uintptr(n) <= c.RAMEnd
}

// Descriptor is an address + length pair the hardware will walk. It is
// only constructed through validation; the referenced memory must stay
// untouched by software until the transfer completes or the operation's
// cancel path has confirmed the hardware stopped.
type Descriptor struct {
	buf []byte
}

// Addr returns the start address for the PTR register.
func (d Descriptor) Addr() uintptr {
	if len(d.buf) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&d.buf[0]))
}

// Len returns the span for the MAXCNT register.
func (d Descriptor) Len() int { return len(d.buf) }

// Bytes exposes the described memory to register-layer and simulated
// hardware. Driver code never touches it while a transfer is in flight.
func (d Descriptor) Bytes() []byte { return d.buf }

// Describe validates buf as a transmit source.
func Describe(buf []byte, caps Caps) (Descriptor, error) {
	if len(buf) == 0 {
		return Descriptor{}, errcode.InvalidParams
	}
	if caps.MaxSpan > 0 && len(buf) > caps.MaxSpan {
		return Descriptor{}, errcode.BufferTooLong
	}
	addr := uintptr(unsafe.Pointer(&buf[0]))
	if caps.Align > 1 && addr%uintptr(caps.Align) != 0 {
		return Descriptor{}, errcode.BufferUnaligned
	}
	if !caps.reachable(addr, len(buf)) {
		// Source outside the DMA window can still be staged via a Pool.
		return Descriptor{}, errcode.NoDmaStorage
	}
	return Descriptor{buf: buf}, nil
}

// DescribeRx validates buf as a receive destination. A destination the
// hardware cannot write is a configuration error, not a staging case.
func DescribeRx(buf []byte, caps Caps) (Descriptor, error) {
	if len(buf) == 0 {
		return Descriptor{}, errcode.InvalidParams
	}
	if caps.MaxSpan > 0 && len(buf) > caps.MaxSpan {
		return Descriptor{}, errcode.BufferTooLong
	}
	addr := uintptr(unsafe.Pointer(&buf[0]))
	if caps.Align > 1 && addr%uintptr(caps.Align) != 0 {
		return Descriptor{}, errcode.BufferUnaligned
	}
	if !caps.reachable(addr, len(buf)) {
		return Descriptor{}, errcode.BufferNotWritable
	}
	return Descriptor{buf: buf}, nil
}

// DescribeU16 validates a halfword sequence (PWM duty cycles) as a
// transmit source. Halfword transfers are counted in halfwords by the
// hardware, so MaxSpan applies to len(seq).
func DescribeU16(seq []uint16, caps Caps) (Descriptor, error) {
	if len(seq) == 0 {
		return Descriptor{}, errcode.InvalidParams
	}
	if caps.MaxSpan > 0 && len(seq) > caps.MaxSpan {
		return Descriptor{}, errcode.BufferTooLong
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&seq[0])), len(seq)*2)
	addr := uintptr(unsafe.Pointer(&seq[0]))
	if addr%2 != 0 {
		return Descriptor{}, errcode.BufferUnaligned
	}
	if !caps.reachable(addr, len(b)) {
		return Descriptor{}, errcode.NoDmaStorage
	}
	return Descriptor{buf: b}, nil
}
