package query

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a container query failure.
type ErrorKind string

const (
	// KindTransport covers a closed container, a title mismatch, a failed slot
	// guard and timeouts.
	KindTransport ErrorKind = "transport"
	// KindProtocol means the container did not look the way the script expects.
	KindProtocol ErrorKind = "protocol"
	// KindRunaway means a loop or the script as a whole ran past its ceiling.
	KindRunaway ErrorKind = "runaway"
	// KindNotFound means a searched-for slot is not present on any page.
	KindNotFound ErrorKind = "not_found"
)

var (
	ErrTitleMismatch    = errors.New("container title mismatch")
	ErrPredicateFail    = errors.New("slot does not match")
	ErrTimeout          = errors.New("timed out waiting for container")
	ErrContainerChanged = errors.New("container changed")
	ErrStepLimit        = errors.New("step limit exceeded")
	ErrNoSnapshot       = errors.New("no container snapshot")
	ErrAlreadyExecuted  = errors.New("script already executed")
)

// Error is the failure delivered to a script's error handler. Its message is
// the human-readable reason.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind) + " error"
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a query error of the given kind.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a query error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return ""
}

func asQueryError(err error) *Error {
	var qe *Error
	if errors.As(err, &qe) {
		return qe
	}
	return &Error{Kind: KindProtocol, Msg: err.Error(), Err: err}
}
