// cmd/soaktest/main.go
//
// Hosted soak exercise over the simulated hardware: hammers the transfer
// core, the serial facade and the alarm scheduler from several goroutines
// at once. Run it when touching the critical-section or state-machine
// code; the race detector makes it earn its keep.
package main

import (
	"context"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"nrfhal-go/alarm"
	"nrfhal-go/critical"
	"nrfhal-go/diag"
	"nrfhal-go/dma"
	"nrfhal-go/drivers/uarte"
	"nrfhal-go/hw"
	"nrfhal-go/hw/sim"
)

func logln(s string) { println(s) }
func logn(s string, n int) {
	println(s + " " + strconv.Itoa(n))
}

// --- simulated UARTE ----------------------------------------------------------

type simUARTE struct {
	txl, rxl sim.Lane
	caps     dma.Caps

	mu sync.Mutex
	ev []uarte.Events
}

func (f *simUARTE) Tx() hw.Lane    { return &f.txl }
func (f *simUARTE) Rx() hw.Lane    { return &f.rxl }
func (f *simUARTE) Caps() dma.Caps { return f.caps }

func (f *simUARTE) push(e uarte.Events) {
	f.mu.Lock()
	f.ev = append(f.ev, e)
	f.mu.Unlock()
}

func (f *simUARTE) TakeEvents() uarte.Events {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ev) == 0 {
		return uarte.Events{}
	}
	e := f.ev[0]
	f.ev = f.ev[1:]
	return e
}

// --- individual soaks (return bool pass/fail) ---------------------------------

func soakWrite() bool {
	const rounds = 5000

	dev := &simUARTE{caps: dma.Caps{MaxSpan: 16}}
	sect := critical.New(critical.NewMutexController())
	trace := diag.NewBus(64)
	d := uarte.New(sect, dev, uarte.Config{Name: "uarte0", Trace: trace})
	dev.txl.OnStart = func() {
		go func() {
			dev.txl.SetAmount(dev.txl.Desc().Len())
			dev.push(uarte.Events{TxEnd: true})
			d.HandleInterrupt()
		}()
	}

	var total atomic.Uint64
	buf := make([]byte, 57) // forces a ragged chunk tail every round
	for i := 0; i < rounds; i++ {
		n, err := d.Write(context.Background(), buf)
		if err != nil {
			logln("soakWrite: " + err.Error())
			return false
		}
		total.Add(uint64(n))
	}
	if got := total.Load(); got != rounds*uint64(len(buf)) {
		logn("soakWrite: byte count mismatch", int(got))
		return false
	}
	return true
}

func soakCancel() bool {
	const rounds = 2000

	dev := &simUARTE{caps: dma.Caps{MaxSpan: 64}}
	sect := critical.New(critical.NewMutexController())
	d := uarte.New(sect, dev, uarte.Config{Name: "uarte0"})

	// Odd rounds complete, even rounds hang and get cancelled; the channel
	// must survive the alternation indefinitely.
	var complete atomic.Bool
	dev.txl.OnStart = func() {
		if !complete.Load() {
			return
		}
		go func() {
			dev.txl.SetAmount(dev.txl.Desc().Len())
			dev.push(uarte.Events{TxEnd: true})
			d.HandleInterrupt()
		}()
	}

	buf := make([]byte, 8)
	for i := 0; i < rounds; i++ {
		complete.Store(i%2 == 1)
		if i%2 == 1 {
			if _, err := d.Write(context.Background(), buf); err != nil {
				logln("soakCancel: completing round failed: " + err.Error())
				return false
			}
			continue
		}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			_, err := d.Write(ctx, buf)
			done <- err
		}()
		for !dev.txl.Started() {
			time.Sleep(time.Microsecond)
		}
		cancel()
		if err := <-done; err != context.Canceled {
			logln("soakCancel: hung round returned wrong error")
			return false
		}
	}
	return true
}

func soakAlarm() bool {
	const sleepers = 8
	const rounds = 500

	clk := &sim.Clock{}
	cmp := &sim.Compare{}
	sect := critical.New(critical.NewMutexController())
	sched := alarm.New(sect, clk, cmp, 64, nil)

	// Tick pump: advance the clock and deliver compare interrupts, the
	// way an RTC would.
	stop := make(chan struct{})
	var pump sync.WaitGroup
	pump.Add(1)
	go func() {
		defer pump.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			clk.Advance(1)
			if cmp.Due(clk.Now()) {
				sched.OnCompare()
			}
		}
	}()

	var wg sync.WaitGroup
	var failed atomic.Bool
	for g := 0; g < sleepers; g++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				seed = seed*6364136223846793005 + 1442695040888963407
				ticks := seed%97 + 1
				if err := sched.Sleep(context.Background(), ticks); err != nil {
					failed.Store(true)
					return
				}
			}
		}(uint64(g + 1))
	}
	wg.Wait()
	close(stop)
	pump.Wait()

	if failed.Load() {
		logln("soakAlarm: a sleeper failed")
		return false
	}
	if n := sched.Pending(); n != 0 {
		logn("soakAlarm: entries left pending", n)
		return false
	}
	return true
}

func soakReader() bool {
	dev := &simUARTE{caps: dma.Caps{MaxSpan: 16}}
	sect := critical.New(critical.NewMutexController())
	d := uarte.New(sect, dev, uarte.Config{Name: "uarte0"})

	const want = 100_000
	var produced atomic.Uint64
	dev.rxl.OnStart = func() {
		go func() {
			n := dev.rxl.Desc().Len()
			if rem := want - int(produced.Load()); n > rem {
				n = rem
			}
			if n <= 0 {
				return // wire idle; pump stays blocked until cancelled
			}
			b := dev.rxl.Desc().Bytes()
			for i := 0; i < n; i++ {
				b[i] = byte(produced.Load() + uint64(i))
			}
			produced.Add(uint64(n))
			dev.rxl.SetAmount(n)
			dev.push(uarte.Events{RxEnd: true})
			d.HandleInterrupt()
		}()
	}

	r := uarte.NewReader(d, 256, 16)
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	got := 0
	next := byte(0)
	buf := make([]byte, 64)
	deadline, cancelDeadline := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelDeadline()
	for got < want {
		n, err := r.RecvSomeContext(deadline, buf)
		if err != nil {
			logln("soakReader: " + err.Error())
			cancel()
			return false
		}
		for _, b := range buf[:n] {
			if b != next {
				logn("soakReader: stream corrupted at byte", got)
				cancel()
				return false
			}
			next++
			got++
		}
	}
	cancel()
	<-r.Stopped()
	return true
}

// --- main ---------------------------------------------------------------------

type soakFn struct {
	name string
	fn   func() bool
}

func main() {
	soaks := []soakFn{
		{"soakWrite", soakWrite},
		{"soakCancel", soakCancel},
		{"soakAlarm", soakAlarm},
		{"soakReader", soakReader},
	}

	passed, failed := 0, 0
	logln("== hal soak starting ==")
	start := time.Now()
	for _, s := range soaks {
		if s.fn() {
			logln("[PASS] " + s.name)
			passed++
		} else {
			logln("[FAIL] " + s.name)
			failed++
		}
	}
	logln("== done in " + time.Since(start).String() + " ==")
	logn("passed", passed)
	logn("failed", failed)
	if failed > 0 {
		os.Exit(1)
	}
}
