package domain

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")

	// ErrCounterInvariant is returned when an increment would leave clicks above
	// impressions or conversions above clicks.
	ErrCounterInvariant = errors.New("feedback counter invariant violated")

	ErrQueueFull = errors.New("queue full")
)
