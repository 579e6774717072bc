package platform

import (
	"errors"
	"fmt"
)

// CancelErrorKind tells which step of a cancellation failed.
type CancelErrorKind int

const (
	// PageUnreachable: navigation failed or landed on a different URL,
	// usually because the browser profile is not logged in.
	PageUnreachable CancelErrorKind = iota + 1
	// ControlNotFound: the cancel control is missing, ambiguous, or not the
	// expected kind of element.
	ControlNotFound
	// ActivationFailed: clicking the control failed.
	ActivationFailed
)

func (k CancelErrorKind) String() string {
	switch k {
	case PageUnreachable:
		return "page unreachable"
	case ControlNotFound:
		return "control not found"
	case ActivationFailed:
		return "activation failed"
	default:
		return "unknown"
	}
}

// CancelError reports a failed cancellation of one listing.
type CancelError struct {
	Kind     CancelErrorKind
	Platform string
	ItemID   string
	// Detail names the URL or locator involved.
	Detail string
	Err    error
}

func (e *CancelError) Error() string {
	msg := fmt.Sprintf("cancel %s on %s: %s: %s", e.ItemID, e.Platform, e.Kind, e.Detail)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CancelError) Unwrap() error { return e.Err }

// IsCancelError reports whether err is (or wraps) a *CancelError.
func IsCancelError(err error) bool {
	var ce *CancelError
	return errors.As(err, &ce)
}
