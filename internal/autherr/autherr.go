package autherr

import (
	"errors"
	"fmt"
	"time"
)

// Kind discriminates auth failures so callers can branch without string
// matching on messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindRateLimited
	KindInvalidCredentials
	KindUnauthorized
	KindNetworkTransient
	KindRefreshFailed
	KindMFARequired
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindUnauthorized:
		return "unauthorized"
	case KindNetworkTransient:
		return "network_transient"
	case KindRefreshFailed:
		return "refresh_failed"
	case KindMFARequired:
		return "mfa_required"
	}
	return "unknown"
}

// Error is the tagged auth error surfaced by the SDK. RetryAfter is only
// meaningful for KindRateLimited.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match on kind via the sentinel values below.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// New builds a tagged error wrapping cause (cause may be nil).
func New(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// RateLimited builds the cooldown rejection carrying retryAfter.
func RateLimited(retryAfter time.Duration) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Message:    fmt.Sprintf("too many attempts, retry in %s", retryAfter.Round(time.Second)),
		RetryAfter: retryAfter,
	}
}

// KindOf returns the kind of err, or KindUnknown when err is not tagged.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsRateLimited(err error) bool { return KindOf(err) == KindRateLimited }
func IsUnauthorized(err error) bool {
	k := KindOf(err)
	return k == KindUnauthorized || k == KindInvalidCredentials
}
func IsTransient(err error) bool { return KindOf(err) == KindNetworkTransient }
