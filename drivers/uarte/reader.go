// drivers/uarte/reader.go
package uarte

import (
	"context"

	"nrfhal-go/diag"
	"nrfhal-go/x/ringx"
)

// Reader layers continuous reception over the one-shot Read operation:
// a pump task keeps a small DMA transfer in flight and accumulates bytes
// in a ring, so callers get buffered, non-blocking reads with coalesced
// readiness notifications.
type Reader struct {
	d       *Driver
	ring    *ringx.Ring
	scratch []byte
	trace   *diag.Bus
	name    string
	stopped chan struct{}
}

// NewReader builds a buffered reader. ringSize must be a power of two;
// chunk bounds the in-flight DMA transfer and is clamped to the DMA span.
func NewReader(d *Driver, ringSize, chunk int) *Reader {
	if chunk <= 0 || chunk > d.caps.MaxSpan {
		chunk = d.caps.MaxSpan
	}
	if chunk > 64 {
		chunk = 64
	}
	return &Reader{
		d:       d,
		ring:    ringx.New(ringSize),
		scratch: make([]byte, chunk),
		trace:   d.trace,
		name:    d.name,
		stopped: make(chan struct{}),
	}
}

// Start launches the receive pump. It runs until ctx is cancelled;
// cancelling aborts the in-flight transfer through the operation's drop
// path, so the scratch buffer is safe to release.
func (r *Reader) Start(ctx context.Context) {
	go func() {
		defer close(r.stopped)
		for {
			if ctx.Err() != nil {
				return
			}
			n, err := r.d.Read(ctx, r.scratch)
			if n > 0 {
				// Ring full drops the tail; counted, not blocked on.
				if w := r.ring.WriteFrom(r.scratch[:n]); w < n {
					r.trace.Publish(diag.Event{Source: r.name, Detail: "rx_ring_full", N: n - w})
				}
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				// Transport fault: already reported by the driver;
				// reception continues with the next transfer.
				continue
			}
		}
	}()
}

// Stopped is closed when the pump has exited.
func (r *Reader) Stopped() <-chan struct{} { return r.stopped }

// Buffered returns the number of bytes waiting in the ring.
func (r *Reader) Buffered() int { return r.ring.Available() }

// Read drains buffered bytes without blocking; n may be zero.
func (r *Reader) Read(p []byte) (int, error) {
	return r.ring.ReadInto(p), nil
}

// Readable signals the empty-to-non-empty edge; receivers must drain the
// ring and may see coalesced notifications.
func (r *Reader) Readable() <-chan struct{} { return r.ring.Readable() }

// RecvSomeContext blocks for at least one byte or ctx cancellation.
func (r *Reader) RecvSomeContext(ctx context.Context, p []byte) (int, error) {
	for {
		if n := r.ring.ReadInto(p); n > 0 {
			return n, nil
		}
		select {
		case <-r.ring.Readable():
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}
