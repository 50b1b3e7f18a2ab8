// Package common defines shared constants and sentinel errors used across
// client and server layers of moodkeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// ErrStorage marks a local persistence failure. It is fatal to the calling
	// operation and is surfaced to the user as "could not save".
	ErrStorage = errors.New("storage error")

	// ErrRemote marks a network or remote store failure. It is never fatal:
	// the affected rows stay pending and are retried on the next sync.
	ErrRemote = errors.New("remote error")

	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal        = errors.New("internal error")
	ErrorUnauthorized    = errors.New("unauthorized")
	ErrorForbidden       = errors.New("forbidden")
	ErrorValidation      = errors.New("validation error")
	ErrUnknownCollection = errors.New("unknown collection")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
