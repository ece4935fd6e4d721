package exchange

import "errors"

// Error taxonomy. Names match the domain error kinds the original
// implementation raises; callers compare with errors.Is.
var (
	ErrUnsupportedInstrument   = errors.New("instrument unknown")
	ErrInstrumentAlreadyExists = errors.New("instrument already exists")
	ErrInstrumentMissing       = errors.New("instrument missing")
	ErrWrongCredentials        = errors.New("account unknown or duplicate")
	ErrAccountHasOpenOrders    = errors.New("account has open orders")
	ErrIncorrectPrice          = errors.New("price rounds to zero or is non-positive")
	ErrInsufficientFunds       = errors.New("reservation would drive available balance negative")
	ErrWrongOrderID            = errors.New("unknown order id")
	ErrOrderCancellationError  = errors.New("order already closed, or attempt to cancel a market order")

	// ErrOrderCreationError is reserved for the external agent collaborator;
	// the core never returns it, but it is exported so a collaborator's
	// duplicate client-side order id detection can compare against a single
	// well-known sentinel.
	ErrOrderCreationError = errors.New("duplicate client-side order id")
)
