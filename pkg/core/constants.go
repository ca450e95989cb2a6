package core

import "errors"

// Errors
var (
	ErrNilOrder         = errors.New("nil order")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrInvalidSide      = errors.New("invalid side")
	ErrOrderExists      = errors.New("order exists")
	ErrNonexistentOrder = errors.New("nonexistent order")

	// ErrInvariantViolation is never returned. The book panics with an error
	// wrapping it when its internal state is found to be inconsistent.
	ErrInvariantViolation = errors.New("order book invariant violation")
)
