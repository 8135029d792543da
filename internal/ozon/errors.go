package ozon

import (
	"errors"
	"fmt"
)

var (
	// ErrPlanRestricted means the seller subscription does not cover the
	// endpoint. Public methods swallow it and report an empty success.
	ErrPlanRestricted = errors.New("ozon: seller plan does not allow this operation")

	// ErrTransient matches every failure worth rescheduling.
	ErrTransient = errors.New("ozon: transient failure")

	// ErrInvalidArgument is a caller bug: a required parameter is missing.
	ErrInvalidArgument = errors.New("ozon: invalid argument")

	// ErrUnknownToken is returned when credentials cannot be resolved.
	ErrUnknownToken = errors.New("ozon: unknown token")
)

// APIError describes a non-successful marketplace response.
type APIError struct {
	Endpoint   string
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ozon %s: status %d code %d: %s", e.Endpoint, e.StatusCode, e.Code, e.Message)
}

// Is lets callers match APIError against ErrTransient.
func (e *APIError) Is(target error) bool {
	return target == ErrTransient
}

// Retryable reports whether a failed call may be rescheduled.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrInvalidArgument) && !errors.Is(err, ErrPlanRestricted)
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
