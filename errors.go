package cachify

import "github.com/cachify/cachify/cerr"

// ErrorCode enumerates the Cachify error taxonomy (spec.md §6/§7). The
// type lives in the internal cerr package so every subpackage (kvs, files,
// persistence, ...) can construct it without importing this root package.
type ErrorCode = cerr.ErrorCode

const (
	Unknown               = cerr.Unknown
	Validation            = cerr.Validation
	EngineTransport       = cerr.EngineTransport
	Capacity              = cerr.Capacity
	SessionLocked         = cerr.SessionLocked
	SessionNotOwned       = cerr.SessionNotOwned
	SessionAcquireTimeout = cerr.SessionAcquireTimeout
	SessionAlreadyHeld    = cerr.SessionAlreadyHeld
	RestoreFrameError     = cerr.RestoreFrameError
	RestoreKeyMismatch    = cerr.RestoreKeyMismatch
)

// Error is the Cachify-wide error type; see cerr.Error.
type Error = cerr.Error

// NewError builds a Cachify error with the given code and cause.
func NewError(code ErrorCode, err error, userData any) *Error {
	return cerr.NewError(code, err, userData)
}
