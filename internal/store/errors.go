package store

import "errors"

// Sentinel errors returned by all Store implementations. Handlers map
// these onto the HTTP error taxonomy with errors.Is.
var (
	// ErrNotFound is returned when a user, product or other resource
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned on unique-constraint violations
	// (duplicate email, duplicate product name).
	ErrDuplicate = errors.New("already exists")

	// ErrInsufficientFunds is returned by ExecuteBuy when the wallet
	// cannot cover the purchase. No state is changed.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientHoldings is returned by ExecuteSell when the
	// portfolio holds fewer units than requested. No state is changed.
	ErrInsufficientHoldings = errors.New("insufficient holdings")
)
