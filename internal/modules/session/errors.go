package session

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailAlreadyExists = errors.New("email already exists")
	// ErrPasswordLoginUnavailable: account was provisioned via Google and has
	// no local password.
	ErrPasswordLoginUnavailable = errors.New("password login unavailable")
	ErrInvalidRefreshToken      = errors.New("invalid refresh token")
	// ErrReuseDetected: an already-rotated-away refresh token was presented.
	// The whole family has been revoked; the client must authenticate again.
	ErrReuseDetected = errors.New("refresh token reuse detected")
)
