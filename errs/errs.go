// Package errs defines the flat error taxonomy shared by every layer of the
// probe stack: wire transport, SWD framing, DAP, and the RP2350 DM driver.
// Every layer returns the same Kind values rather than inventing its own
// sentinel errors, so a caller can recover intent with a single errors.As.
package errs

import "fmt"

// Kind enumerates the flat set of error categories a probe operation can
// fail with. There is no exception hierarchy: every layer reports one of
// these, possibly wrapping a lower Kind's Error without changing it.
type Kind int

const (
	OK Kind = iota
	// AlreadyHalted is soft: Halt returns it when the hart was already
	// halted. Callers typically treat it as success.
	AlreadyHalted
	NotConnected
	NotInitialized
	NotHalted
	InvalidParam
	InvalidState
	Alignment
	Timeout
	Parity
	Protocol
	Wait
	Fault
	AbstractCmd
	Verify
	ResourceBusy
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "ok"
	case AlreadyHalted:
		return "already halted"
	case NotConnected:
		return "not connected"
	case NotInitialized:
		return "not initialized"
	case NotHalted:
		return "not halted"
	case InvalidParam:
		return "invalid parameter"
	case InvalidState:
		return "invalid state"
	case Alignment:
		return "alignment"
	case Timeout:
		return "timeout"
	case Parity:
		return "parity error"
	case Protocol:
		return "protocol error"
	case Wait:
		return "wait"
	case Fault:
		return "fault"
	case AbstractCmd:
		return "abstract command error"
	case Verify:
		return "verify mismatch"
	case ResourceBusy:
		return "resource busy"
	default:
		return "unknown error"
	}
}

// Error is the concrete error type returned by every layer. Op identifies
// the operation that failed ("dap.readAP", "dm.halt", ...); Msg carries
// additional formatted context (required for Parity, Protocol, and Fault
// per the wire-protocol binding contract); Err, if non-nil, is the
// lower-layer cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Msg, e.Err)
		}
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind, so errors.Is
// against another *Error compares by Kind rather than identity. For a
// bare Kind, compare against Of(err) instead.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error with formatted context.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches op/kind context to a lower-layer error without discarding
// it; intermediate layers use this so the kind set never grows per layer.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Of extracts the Kind from err, returning OK if err is nil and InvalidState
// if err is a non-nil error this package did not produce.
func Of(err error) Kind {
	if err == nil {
		return OK
	}
	var e *Error
	if As(err, &e) {
		return e.Kind
	}
	return InvalidState
}

// As walks err's single-error Unwrap chain and stores the first *Error it
// finds in target, so callers of this package don't need a second import
// for the common case. Errors that unwrap to several errors (Unwrap()
// []error, as built by errors.Join) are not searched.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
