package timex

import (
	"testing"
	"time"
)

func TestTicksRoundsUp(t *testing.T) {
	const hz = 32768
	cases := []struct {
		d    time.Duration
		want uint64
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Second, 32768},
		{time.Millisecond, 33},       // 32.768 rounds up
		{30517 * time.Nanosecond, 1}, // just under one tick period
		{24 * time.Hour, 2831155200}, // beyond the naive multiply's range
		{1000 * time.Hour, 117964800000},
	}
	for _, c := range cases {
		if got := Ticks(c.d, hz); got != c.want {
			t.Errorf("Ticks(%v) = %d, want %d", c.d, got, c.want)
		}
	}
}

func TestDurationInvertsWholeSeconds(t *testing.T) {
	const hz = 32768
	if got := Duration(32768, hz); got != time.Second {
		t.Fatalf("Duration(1s of ticks) = %v", got)
	}
	if got := Duration(0, 0); got != 0 {
		t.Fatalf("zero rate: %v", got)
	}
}
