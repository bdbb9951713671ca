package errcode

// Code is a stable error identifier shared by task and interrupt context.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	Busy          Code = "busy"
	InvalidParams Code = "invalid_params"
	Unsupported   Code = "unsupported"

	// Configuration errors: detected before any register is armed.
	BufferTooLong     Code = "buffer_too_long"
	BufferUnaligned   Code = "buffer_unaligned"
	BufferNotWritable Code = "buffer_not_writable"
	NoDmaStorage      Code = "no_dma_capable_storage"
	AlarmQueueFull    Code = "alarm_queue_full"

	// Transport errors: surfaced as the faulted outcome of an operation.
	Overrun     Code = "overrun"
	Parity      Code = "parity"
	Framing     Code = "framing"
	BreakCond   Code = "break"
	AddressNack Code = "address_nack"
	DataNack    Code = "data_nack"
	CRCError    Code = "crc_error"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// IsConfiguration reports whether err was raised by pre-transaction
// validation, i.e. no hardware was armed.
func IsConfiguration(err error) bool {
	switch Of(err) {
	case Busy, InvalidParams, BufferTooLong, BufferUnaligned,
		BufferNotWritable, NoDmaStorage, AlarmQueueFull:
		return true
	}
	return false
}

// IsTransport reports whether err is a bus-level fault observed by the
// interrupt handler mid-transaction.
func IsTransport(err error) bool {
	switch Of(err) {
	case Overrun, Parity, Framing, BreakCond, AddressNack, DataNack, CRCError:
		return true
	}
	return false
}
