package api

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Code classifies a stream or call failure.
type Code int

const (
	OK Code = iota
	Canceled
	Unknown
	InvalidArgument
	NotFound
	PermissionDenied
	Unauthenticated
	Unavailable
	Internal
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case Canceled:
		return "CANCELED"
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case NotFound:
		return "NOT_FOUND"
	case PermissionDenied:
		return "PERMISSION_DENIED"
	case Unauthenticated:
		return "UNAUTHENTICATED"
	case Unavailable:
		return "UNAVAILABLE"
	case Internal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// Status is the error carried across the wire when a handler closes a
// stream with a failure.
type Status struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (s *Status) Error() string {
	return fmt.Sprintf("%s: %s", s.Code, s.Message)
}

func Errorf(code Code, format string, args ...any) error {
	return &Status{Code: code, Message: fmt.Sprintf(format, args...)}
}

// FromError converts any error into a Status suitable for the wire.
func FromError(err error) *Status {
	if err == nil {
		return nil
	}
	var status *Status
	if errors.As(err, &status) {
		return status
	}
	return &Status{Code: CodeOf(err), Message: err.Error()}
}

func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var status *Status
	if errors.As(err, &status) {
		return status.Code
	}
	switch {
	case errors.Is(err, context.Canceled):
		return Canceled
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, io.ErrUnexpectedEOF):
		return Unavailable
	}
	return Unknown
}

// IsAuthError reports whether err should end the user's session.
func IsAuthError(err error) bool {
	code := CodeOf(err)
	return code == Unauthenticated || code == PermissionDenied
}
