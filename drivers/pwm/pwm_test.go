// drivers/pwm/pwm_test.go
package pwm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nrfhal-go/critical"
	"nrfhal-go/dma"
	"nrfhal-go/errcode"
	"nrfhal-go/hw"
	"nrfhal-go/hw/sim"
)

type fakeDev struct {
	lane sim.Lane
	caps dma.Caps

	mu sync.Mutex
	ev []Events
}

func (f *fakeDev) Seq() hw.Lane   { return &f.lane }
func (f *fakeDev) Caps() dma.Caps { return f.caps }

func (f *fakeDev) push(e Events) {
	f.mu.Lock()
	f.ev = append(f.ev, e)
	f.mu.Unlock()
}

func (f *fakeDev) TakeEvents() Events {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ev) == 0 {
		return Events{}
	}
	e := f.ev[0]
	f.ev = f.ev[1:]
	return e
}

func TestPlay(t *testing.T) {
	dev := &fakeDev{caps: dma.Caps{MaxSpan: 64}}
	sect := critical.New(critical.NewMutexController())
	d := New(sect, dev, Config{Name: "pwm0"})
	dev.lane.OnStart = func() {
		go func() {
			// Amount counts halfwords played, not bytes armed.
			dev.lane.SetAmount(dev.lane.Desc().Len() / 2)
			dev.push(Events{SeqEnd: true})
			d.HandleInterrupt()
		}()
	}

	duty := []uint16{100, 200, 300, 400}
	if err := d.Play(context.Background(), duty); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if dev.lane.Desc().Len() != 8 {
		t.Fatalf("armed span: got %d bytes want 8", dev.lane.Desc().Len())
	}
}

func TestPlayRejectsOverlongSequence(t *testing.T) {
	dev := &fakeDev{caps: dma.Caps{MaxSpan: 4}}
	sect := critical.New(critical.NewMutexController())
	d := New(sect, dev, Config{})

	// Chunking a waveform would glitch the output, so this fails instead.
	err := d.Play(context.Background(), make([]uint16, 5))
	if !errors.Is(err, errcode.BufferTooLong) {
		t.Fatalf("overlong sequence: %v", err)
	}
	if dev.lane.Starts() != 0 {
		t.Fatal("rejected sequence still started the hardware")
	}
}

func TestStopHaltsPlayback(t *testing.T) {
	dev := &fakeDev{caps: dma.Caps{MaxSpan: 64}}
	sect := critical.New(critical.NewMutexController())
	d := New(sect, dev, Config{})

	done := make(chan error, 1)
	go func() { done <- d.Play(context.Background(), []uint16{1, 2, 3, 4}) }()
	for !dev.lane.Started() {
		time.Sleep(time.Millisecond)
	}

	dev.lane.SetAmount(2) // two halfwords played at stop time
	d.Stop()

	if err := <-done; err != nil {
		t.Fatalf("stopped Play: %v", err)
	}
	if !dev.lane.Stopped() {
		t.Fatal("Stop did not halt the lane")
	}

	// Idempotent with nothing playing, and the channel stays usable.
	d.Stop()
	dev.lane.OnStart = func() {
		go func() {
			dev.lane.SetAmount(1)
			dev.push(Events{SeqEnd: true})
			d.HandleInterrupt()
		}()
	}
	if err := d.Play(context.Background(), []uint16{7}); err != nil {
		t.Fatalf("Play after Stop: %v", err)
	}
}

func TestPlayContextCancel(t *testing.T) {
	dev := &fakeDev{caps: dma.Caps{MaxSpan: 64}}
	sect := critical.New(critical.NewMutexController())
	d := New(sect, dev, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Sequence never completes; cancellation must stop playback so the
	// buffer can be reused.
	if err := d.Play(ctx, []uint16{1, 2}); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled Play: %v", err)
	}
	if !dev.lane.Stopped() {
		t.Fatal("cancel did not stop playback")
	}
}
