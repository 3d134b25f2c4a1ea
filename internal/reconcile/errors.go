package reconcile

import (
	"errors"
	"fmt"

	"nathanbeddoewebdev/vmstate/internal/domain"
)

// Kind classifies a reconcile failure so callers can branch on it.
type Kind string

const (
	// KindValidation means the desired state was rejected before any
	// provider call was made.
	KindValidation Kind = "validation"
	// KindAuth means the credentials or second factor were rejected.
	KindAuth Kind = "auth"
	// KindLookup means a required account or group could not be resolved.
	KindLookup Kind = "lookup"
	// KindProvider means a remote API call failed.
	KindProvider Kind = "provider"
	// KindPollTimeout is never returned as an error; it tags degraded
	// results whose power-on did not settle in time.
	KindPollTimeout Kind = "poll-timeout"
	// KindInvariant means the engine reached a state it has no rule for.
	KindInvariant Kind = "invariant"
)

// Error is the failure record of a reconcile pass.
type Error struct {
	Kind    Kind
	Message string
	// Changed is true when a mutation had already been applied before the
	// failure (for example a create whose follow-up poll failed).
	Changed bool
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// ProviderError returns the underlying provider diagnostics, if any.
func (e *Error) ProviderError() (*domain.ProviderError, bool) {
	var pe *domain.ProviderError
	if errors.As(e.Err, &pe) {
		return pe, true
	}
	return nil, false
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

func validationErrorf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func lookupErrorf(format string, args ...any) error {
	return &Error{Kind: KindLookup, Message: fmt.Sprintf(format, args...)}
}

func invariantErrorf(format string, args ...any) error {
	return &Error{Kind: KindInvariant, Message: fmt.Sprintf(format, args...)}
}

// providerError wraps a failed provider call. Rejected credentials are
// reported as KindAuth.
func providerError(msg string, err error) error {
	if re, ok := AsError(err); ok {
		return re
	}
	kind := KindProvider
	if errors.Is(err, domain.ErrUnauthorized) {
		kind = KindAuth
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}
