package platform

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/api/googleapi"
)

// Kind classifies an upstream failure into the handful of cases the
// orchestrator reacts to differently.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidCredential
	KindQuotaExceeded
	KindRateLimited
	KindUpstreamUnavailable
	KindBadRequest
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredential:
		return "invalid_credential"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindBadRequest:
		return "bad_request"
	default:
		return "unknown"
	}
}

// Error is a classified upstream failure carrying the HTTP status for
// user display.
type Error struct {
	Kind   Kind
	Status int
	err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("platform: %s (http %d): %v", e.Kind, e.Status, e.err)
}

func (e *Error) Unwrap() error { return e.err }

// CredentialFailure reports whether the error should burn the credential
// (rotate to the next one) rather than just the call.
func (e *Error) CredentialFailure() bool {
	return e.Kind == KindInvalidCredential || e.Kind == KindQuotaExceeded
}

// quotaReasons are the googleapi 403 reasons that mean the key ran out of
// units, as opposed to a plain permission problem.
var quotaReasons = map[string]bool{
	"quotaExceeded":         true,
	"dailyLimitExceeded":    true,
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
}

// Classify wraps an upstream error with its Kind. Already classified
// errors pass through unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return classifyStatus(gerr.Code, reasons(gerr), err)
	}

	var nerr net.Error
	if errors.As(err, &nerr) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindUpstreamUnavailable, err: err}
	}

	return &Error{Kind: KindUpstreamUnavailable, err: err}
}

func classifyStatus(status int, reasons []string, err error) *Error {
	e := &Error{Status: status, err: err}
	switch {
	case status == 401:
		e.Kind = KindInvalidCredential
	case status == 400:
		// keyInvalid arrives as a 400, not a 401.
		e.Kind = KindBadRequest
		for _, r := range reasons {
			if r == "keyInvalid" {
				e.Kind = KindInvalidCredential
			}
		}
	case status == 403:
		// 403 is quota or forbidden; the reason decides.
		e.Kind = KindInvalidCredential
		for _, r := range reasons {
			if quotaReasons[r] {
				e.Kind = KindQuotaExceeded
			}
		}
	case status == 429:
		e.Kind = KindRateLimited
	case status >= 500:
		e.Kind = KindUpstreamUnavailable
	default:
		e.Kind = KindUnknown
	}
	return e
}

func reasons(gerr *googleapi.Error) []string {
	out := make([]string, 0, len(gerr.Errors))
	for _, item := range gerr.Errors {
		out = append(out, item.Reason)
	}
	return out
}
