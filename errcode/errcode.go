package errcode

// Code is the outcome of a serial, two-wire or driver call. Codes compare
// with ==, cost nothing to return from interrupt paths and satisfy error.
type Code string

func (c Code) Error() string { return string(c) }

// The strings are stable; they are logged and published as-is.
const (
	OK            Code = "ok"
	Unsupported   Code = "unsupported"
	InvalidParams Code = "invalid_params"

	// Serial
	BufferEmpty     Code = "buffer_empty"
	UnsupportedBaud Code = "unsupported_baud"

	// Port / configuration
	UnknownPort       Code = "unknown_port"
	InvalidSpeed      Code = "invalid_speed"
	InvalidBufferSize Code = "invalid_buffer_size"
	InvalidAddress    Code = "invalid_address"
	OutOfMemory       Code = "out_of_memory"

	// Two-wire transactions
	WriteNotStarted Code = "write_not_started"
	NotTransmitting Code = "not_transmitting"
	Nack            Code = "nack"
	ArbitrationLost Code = "arbitration_lost"
	BusError        Code = "bus_error"

	Error Code = "error" // unclassified
)

// E attaches the failing operation, detail and an optional cause to a Code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is match an *E against its bare Code.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// Wrap attaches an operation name to a code. A nil-equivalent code (OK) yields nil.
func Wrap(op string, c Code) error {
	if c == OK || c == "" {
		return nil
	}
	return &E{C: c, Op: op}
}

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
