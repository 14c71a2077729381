package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors shared across the access layer. Callers classify with
// errors.Is rather than string matching.
var (
	// ErrPoolExhausted means the session pool is at capacity and no idle
	// entry could be evicted.
	ErrPoolExhausted = errors.New("session pool exhausted")

	// ErrNotFound means ONU discovery exhausted every search range without
	// a match. It signals "device offline or invalid port", not a transport
	// failure, and must not be retried.
	ErrNotFound = errors.New("onu not found")

	// ErrInvalidInput means a malformed port address, empty command, or a
	// request that failed validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSessionDamaged marks a pooled session whose terminal state is
	// unknown after a timeout. The pool discards it instead of recycling.
	ErrSessionDamaged = errors.New("session in unknown terminal state")
)

// ConnError is a transport-level connect or login failure.
type ConnError struct {
	Host string
	Err  error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Host, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// TimeoutError means an expected prompt or response was not observed within
// the configured window.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s: %v", e.Op, e.Timeout, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// VarbindError means the SNMP agent returned an error varbind for one OID
// (noSuchObject, noSuchInstance, endOfMibView).
type VarbindError struct {
	OID  string
	Kind string
}

func (e *VarbindError) Error() string {
	return fmt.Sprintf("snmp agent returned %s for %s", e.Kind, e.OID)
}

// IsTimeout reports whether err is (or wraps) a prompt/response timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsNotFound reports whether err means the discovery search came up empty.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
