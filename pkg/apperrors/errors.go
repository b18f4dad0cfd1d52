package apperrors

import "errors"

var (
	// ErrInvalidNPA rejects input that is not exactly three ASCII digits.
	// Absence of data is never reported through an error; see the lookup
	// and repository contracts.
	ErrInvalidNPA = errors.New("NPA must be exactly 3 digits")

	// ErrMalformedPayload marks a provider response that must not be
	// allowed to replace the local replica.
	ErrMalformedPayload = errors.New("malformed LERG payload")
)
