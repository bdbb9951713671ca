package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// Ticks converts a duration to clock ticks at the given rate, rounding
// up so a requested delay is never shortened by truncation. Whole
// seconds convert separately from the remainder, so the nanosecond
// multiply cannot overflow for any representable duration.
func Ticks(d time.Duration, hz uint32) uint64 {
	if d <= 0 || hz == 0 {
		return 0
	}
	sec := uint64(d / time.Second)
	rem := uint64(d % time.Second)
	frac := (rem*uint64(hz) + uint64(time.Second) - 1) / uint64(time.Second)
	return sec*uint64(hz) + frac
}

// Duration converts clock ticks at the given rate back to a duration.
func Duration(ticks uint64, hz uint32) time.Duration {
	if hz == 0 {
		return 0
	}
	return time.Duration(ticks * uint64(time.Second) / uint64(hz))
}
