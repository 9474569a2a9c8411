package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error into one of the outcomes callers can act on.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindUpstream
	KindUnauthorized
)

// Error carries a classification and a stable detail code alongside the
// human-readable message. Detail codes (e.g. "DEVICE_NOT_FOUND") are part of
// the API contract and reported verbatim to callers.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound reports a missing vendor device or registry row.
func NotFound(detail string) *Error {
	return &Error{Kind: KindNotFound, Detail: detail}
}

// Conflict reports an already-registered / not-registered state clash.
func Conflict(detail string) *Error {
	return &Error{Kind: KindConflict, Detail: detail}
}

// Upstream reports a vendor or registry call that returned a failure status.
// The upstream's own failure detail is embedded via err.
func Upstream(detail string, err error) *Error {
	return &Error{Kind: KindUpstream, Detail: detail, Err: err}
}

// Unauthorized reports a shared-secret or caller-identity mismatch.
func Unauthorized(detail string) *Error {
	return &Error{Kind: KindUnauthorized, Detail: detail}
}

// KindOf returns the classification of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Detail returns the stable detail code of err, or its plain message.
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return err.Error()
}

// HTTPStatus maps an error classification to the response status the
// handlers use. Conflicts map to 400 to match the original API contract.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusBadGateway
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
