package domain

import "errors"

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrNoSession           = errors.New("no active session")
	ErrSessionExpired      = errors.New("session expired")
	ErrForbidden           = errors.New("access forbidden")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
