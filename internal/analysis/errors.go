package analysis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/meal-analyzer/internal/model"
)

// Kind is the stable, caller-visible class of a request-scoped failure.
type Kind string

const (
	KindInvalidRequest          Kind = "InvalidRequest"
	KindUnauthorized            Kind = "Unauthorized"
	KindForbidden               Kind = "Forbidden"
	KindAllProvidersFailed      Kind = "AllProvidersFailed"
	KindMalformedProviderOutput Kind = "MalformedProviderOutput"
	KindTranscriptionError      Kind = "TranscriptionError"
	KindInternal                Kind = "Internal"
)

// Error is a request-scoped analysis failure. Msg is safe to show callers;
// Err and Attempts are for logs.
type Error struct {
	Kind     Kind
	Msg      string
	Attempts []model.ProviderAttempt
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the Kind of err, or KindInternal if err carries none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// PublicMessage returns the caller-facing message of err.
func PublicMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Msg
	}
	return "internal error"
}

// attemptsError joins the per-provider failures of an orchestration.
type attemptsError []model.ProviderAttempt

func (a attemptsError) Error() string {
	parts := make([]string, 0, len(a))
	for _, at := range a {
		parts = append(parts, fmt.Sprintf("%s: %s: %v", at.Provider, at.Outcome, at.Err))
	}
	return strings.Join(parts, "; ")
}

func (a attemptsError) Unwrap() []error {
	errs := make([]error, 0, len(a))
	for _, at := range a {
		if at.Err != nil {
			errs = append(errs, at.Err)
		}
	}
	return errs
}

var (
	errEmptyContent         = eris.New("provider returned empty content")
	errAdapterNotConfigured = eris.New("provider not configured")
)
