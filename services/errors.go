package services

import "errors"

// Sentinel errors for the synchronous request path. Controllers map these
// to HTTP codes with errors.Is; validation details are wrapped around
// ErrValidation so the message survives to the caller.
var (
	ErrValidation        = errors.New("validation_failed")
	ErrOverlap           = errors.New("dates_overlap")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not_found")
	ErrAlreadyReviewed   = errors.New("already_reviewed")
)
