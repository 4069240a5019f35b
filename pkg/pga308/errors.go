package pga308

import (
	"errors"
	"fmt"
)

var (
	// ErrShortReply indicates a read reply is not exactly 2 bytes.
	ErrShortReply = errors.New("short reply")
	// ErrIDVerify indicates the chip identity doesn't match.
	// Reserved: nothing in this package produces it yet.
	ErrIDVerify = errors.New("chip id mismatch")
)

// Outcome classifies the result of an operation.
type Outcome int

const (
	// OutcomeOK means the operation succeeded.
	OutcomeOK Outcome = iota
	// OutcomeTransport means the transport failed to switch direction,
	// send or receive.
	OutcomeTransport
	// OutcomeMismatch means a read-back value differs from what was written.
	OutcomeMismatch
	// OutcomeIDVerify is reserved for chip identity checks.
	OutcomeIDVerify
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeTransport:
		return "transport"
	case OutcomeMismatch:
		return "mismatch"
	case OutcomeIDVerify:
		return "id-verify"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// OutcomeOf classifies err. A nil error is OutcomeOK and errors of
// unknown origin are reported as transport failures.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	var mismatch *MismatchError
	if errors.As(err, &mismatch) {
		return OutcomeMismatch
	}
	if errors.Is(err, ErrIDVerify) {
		return OutcomeIDVerify
	}
	return OutcomeTransport
}

// TransportError wraps a failure reported by the Transport.
type TransportError struct {
	Op       string
	Register Register
	Err      error
}

// Error implements error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Register, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// MismatchError reports a read-back value different from the one written.
type MismatchError struct {
	Register Register
	Expected uint16
	Actual   uint16
}

// Error implements error.
func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s read back 0x%04X, expected 0x%04X",
		e.Register, e.Actual, e.Expected)
}

// StepError reports the configuration step that aborted Configure.
type StepError struct {
	Step Step
	Err  error
}

// Error implements error.
func (e *StepError) Error() string {
	return fmt.Sprintf("configure aborted at %s: %v", e.Step, e.Err)
}

// Unwrap returns the failure of the step.
func (e *StepError) Unwrap() error {
	return e.Err
}
