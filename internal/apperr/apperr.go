package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies failures so that HTTP handlers and background tasks can
// react without inspecting error strings.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindBadRequest
	KindUpstreamTimeout
	KindUpstreamFailure
	KindInternal
	KindInconsistency
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindBadRequest:
		return "bad_request"
	case KindUpstreamTimeout:
		return "upstream_timeout"
	case KindUpstreamFailure:
		return "upstream_failure"
	case KindInternal:
		return "internal"
	case KindInconsistency:
		return "inconsistency"
	default:
		return "unknown"
	}
}

// Error carries a Kind, the operation that failed and an optional cause.
// Msg is safe to return to HTTP callers; Err is for logs only.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

func Unauthorized(op, msg string) *Error { return newErr(KindUnauthorized, op, msg, nil) }

func BadRequest(op, msg string) *Error { return newErr(KindBadRequest, op, msg, nil) }

func Internal(op string, err error) *Error { return newErr(KindInternal, op, "", err) }

func Inconsistency(op, msg string, err error) *Error {
	return newErr(KindInconsistency, op, msg, err)
}

// Upstream wraps an error from an external dependency, choosing between
// UpstreamTimeout and UpstreamFailure.
func Upstream(op string, err error) *Error {
	if IsTimeout(err) {
		return newErr(KindUpstreamTimeout, op, "", err)
	}
	return newErr(KindUpstreamFailure, op, "", err)
}

// UpstreamStatus reports a non-2xx response from an external dependency.
func UpstreamStatus(op string, status int) *Error {
	return newErr(KindUpstreamFailure, op, fmt.Sprintf("unexpected status %d", status), nil)
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message returns the caller-safe message of err, or fallback.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return fallback
}

// HTTPStatus maps err onto the response code returned to HTTP callers.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthorized:
		return http.StatusForbidden
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	case KindUpstreamFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
