// Package errs defines the error kinds surfaced by the forecasting core.
// Every error returned by a core operation matches exactly one kind via errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrDataUnavailable  = errors.New("data unavailable")
	ErrModelNotFound    = errors.New("model not found")
	ErrInvalidInput     = errors.New("invalid input")
)

// Error carries a kind, a message and an optional underlying cause.
type Error struct {
	Kind  error
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func InsufficientData(format string, a ...any) error {
	return &Error{Kind: ErrInsufficientData, Msg: fmt.Sprintf(format, a...)}
}

func DataUnavailable(cause error, format string, a ...any) error {
	return &Error{Kind: ErrDataUnavailable, Msg: fmt.Sprintf(format, a...), Cause: cause}
}

func ModelNotFound(symbol string) error {
	return &Error{Kind: ErrModelNotFound, Msg: fmt.Sprintf("no trained model for symbol %q", symbol)}
}

func InvalidInput(format string, a ...any) error {
	return &Error{Kind: ErrInvalidInput, Msg: fmt.Sprintf(format, a...)}
}

// KindOf returns a short label for the error kind, used for metrics and logs.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, ErrModelNotFound):
		return "model_not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}

// IsDomain reports whether err is one of the core's terminal error kinds.
func IsDomain(err error) bool {
	return KindOf(err) != "internal" && err != nil
}
