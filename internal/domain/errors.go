package domain

import "errors"

// Sentinel errors for domain operations
var (
	// ErrNotFound indicates the requested row does not exist
	ErrNotFound = errors.New("record not found")

	// ErrServerOffline indicates the backend is unreachable
	ErrServerOffline = errors.New("catalog backend is unreachable")

	// ErrAuthFailed indicates the credentials or token were rejected
	ErrAuthFailed = errors.New("authentication failed")

	// ErrNotAdmin indicates the signed-in account has no admin role
	ErrNotAdmin = errors.New("account is not an admin")

	// ErrNoSession indicates no usable session is stored
	ErrNoSession = errors.New("not logged in")

	// ErrInvalidInput indicates a write payload failed validation
	ErrInvalidInput = errors.New("invalid input")
)
