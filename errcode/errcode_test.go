package errcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeIsError(t *testing.T) {
	var err error = Busy
	if err.Error() != "busy" {
		t.Fatalf("Error(): %q", err.Error())
	}
	if !errors.Is(err, Busy) {
		t.Fatal("errors.Is failed on a bare code")
	}
}

func TestOf(t *testing.T) {
	if Of(nil) != OK {
		t.Fatal("nil should map to OK")
	}
	if Of(Overrun) != Overrun {
		t.Fatal("bare code lost")
	}
	wrapped := &E{C: AddressNack, Op: "twim.write"}
	if Of(wrapped) != AddressNack {
		t.Fatal("wrapped code lost")
	}
	if Of(errors.New("something else")) != Error {
		t.Fatal("foreign error should map to the generic fallback")
	}
}

func TestEWrapsCause(t *testing.T) {
	cause := errors.New("underlying")
	err := &E{C: Framing, Msg: "rx frame", Err: cause}
	if !errors.Is(err, cause) {
		t.Fatal("cause not reachable through Unwrap")
	}
	if got := err.Error(); got != "framing: rx frame" {
		t.Fatalf("Error(): %q", got)
	}
}

func TestClassifiers(t *testing.T) {
	cases := []struct {
		err       error
		config    bool
		transport bool
	}{
		{BufferTooLong, true, false},
		{NoDmaStorage, true, false},
		{AlarmQueueFull, true, false},
		{Overrun, false, true},
		{DataNack, false, true},
		{CRCError, false, true},
		{Unsupported, false, false},
		{nil, false, false},
	}
	for _, c := range cases {
		if got := IsConfiguration(c.err); got != c.config {
			t.Errorf("IsConfiguration(%v) = %v", c.err, got)
		}
		if got := IsTransport(c.err); got != c.transport {
			t.Errorf("IsTransport(%v) = %v", c.err, got)
		}
	}
}

func TestCodeInWrapChains(t *testing.T) {
	err := fmt.Errorf("chunk 3: %w", Overrun)
	if !errors.Is(err, Overrun) {
		t.Fatal("code not found through fmt wrapping")
	}
}
