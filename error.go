package strata

import (
	"errors"
	"fmt"
	"syscall"
)

type ErrorCode int

const (
	Unknown ErrorCode = iota
	// CapacityExhausted flags a storage-full condition on a local tier. The
	// engine's circuit breaker keys off this code, never off error message text.
	CapacityExhausted
	// Unavailable flags a tier that cannot be reached (network down, connection
	// refused). Treated as transient.
	Unavailable
	// InvalidRecord flags a record failing basic shape checks. Not retried.
	InvalidRecord
	// UnknownNamespace flags a sync queue item whose key namespace has no
	// registered cold-tier save operation. Logged and skipped.
	UnknownNamespace
)

var (
	errEmptyIdentityKey = errors.New("identity key can't be empty string")
	errNegativeVersion  = errors.New("version can't be negative")
	errMalformedPayload = errors.New("payload is not valid JSON")
)

// STRATA custom error.
type Error struct {
	Code     ErrorCode
	Err      error
	UserData any
}

func (e Error) Error() string {
	return fmt.Sprintf("error code: %d, user data: %v, details: %v", e.Code, e.UserData, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}

// IsCapacityExhausted reports whether the error indicates storage exhaustion on
// a tier. Tier implementations classify their own backend errors with the
// CapacityExhausted code; the errno checks cover file-backed stores surfacing
// raw OS errors.
func IsCapacityExhausted(err error) bool {
	if err == nil {
		return false
	}
	var e Error
	if errors.As(err, &e) && e.Code == CapacityExhausted {
		return true
	}
	return errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT)
}

// IsUnavailable reports whether the error indicates an unreachable tier.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var e Error
	return errors.As(err, &e) && e.Code == Unavailable
}
