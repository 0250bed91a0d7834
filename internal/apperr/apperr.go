package apperr

import "errors"

// Sentinel error kinds returned by the core services. Handlers map these to
// HTTP statuses with errors.Is; everything else is a 500.
var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidState  = errors.New("invalid state")
	ErrExpired       = errors.New("code expired")
	ErrInactive      = errors.New("code inactive")
	ErrConflict      = errors.New("not enrolled")
	ErrAlreadyLogged = errors.New("attendance already recorded for today")
)
