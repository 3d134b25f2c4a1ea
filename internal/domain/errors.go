package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for cross-provider error classification.
// Providers wrap these (usually through ProviderError) so callers can
// handle error categories without importing provider-specific SDKs.
//
//	if errors.Is(err, domain.ErrUnauthorized) { ... }
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized indicates the request was rejected due to
	// invalid, expired, or missing credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates the provider throttled the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrConflict indicates a state or uniqueness conflict, such as
	// a duplicate VM name or an operation on a VM in a transitional state.
	ErrConflict = errors.New("conflict")

	// ErrUnsupportedSpec indicates the provider cannot honour part of a
	// VMSpec, such as sizing beyond a fixed server type.
	ErrUnsupportedSpec = errors.New("unsupported by provider")
)

// ProviderError describes a failed call against a provider API. The
// status, method and URL are surfaced to the user verbatim.
type ProviderError struct {
	StatusCode int
	Method     string
	URL        string
	Message    string
	// Err is the transport or SDK error, if any.
	Err error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	if e.Method != "" {
		b.WriteString(e.Method)
		b.WriteByte(' ')
	}
	if e.URL != "" {
		b.WriteString(e.URL)
	}
	if b.Len() > 0 {
		b.WriteString(": ")
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, "%d ", e.StatusCode)
	}
	b.WriteString(e.Message)
	return strings.TrimSpace(b.String())
}

// Unwrap exposes the sentinel matching the HTTP status together with the
// underlying error, so both errors.Is(err, ErrNotFound) and errors.As on
// transport errors work.
func (e *ProviderError) Unwrap() []error {
	var errs []error
	if s := statusSentinel(e.StatusCode); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func statusSentinel(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}
