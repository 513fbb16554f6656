package ml

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrFeatureMismatch    = errors.New("feature mismatch")
	ErrSessionUnavailable = errors.New("session unavailable")
)
