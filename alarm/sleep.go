// alarm/sleep.go
package alarm

import (
	"context"

	"nrfhal-go/wake"
)

// Sleep blocks until ticks clock ticks elapse or ctx is cancelled. It is
// the delay primitive the executor's sleep-until-next-wake builds on: a
// scheduled entry whose handler wakes the sleeping task.
func (s *Scheduler) Sleep(ctx context.Context, ticks uint64) error {
	n := wake.NewNotifier()
	id, err := s.Schedule(s.clk.Now()+ticks, n.Wake)
	if err != nil {
		return err
	}
	select {
	case <-n.Sleep():
		return nil
	case <-ctx.Done():
		s.Cancel(id)
		return ctx.Err()
	}
}

// Now reads the scheduler's clock, so callers can compute absolute
// deadlines without holding a second reference.
func (s *Scheduler) Now() uint64 { return s.clk.Now() }
