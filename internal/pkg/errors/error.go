package xerrors

import "errors"

// Common reusable client errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrSessionExpired = errors.New("session expired or invalid")
	ErrNotLoggedIn    = errors.New("not logged in")
	ErrStorage        = errors.New("session storage unavailable")
	ErrInvalidToken   = errors.New("invalid token")
	ErrDuplicateEntry = errors.New("duplicate entry")
	ErrForbidden      = errors.New("forbidden")
	ErrOTPInvalid     = errors.New("invalid or expired code")
)
