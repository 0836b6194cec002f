package ledger

import (
	"errors"
	"fmt"
)

// Every ledger operation either succeeds or fails with exactly one of these
// kinds. All of them are recoverable and user-facing; the HTTP layer maps
// each kind to a status code and message.
var (
	ErrCurrencyNotFound = errors.New("currency not found")
	ErrNoCurrencies     = errors.New("no currencies enabled in this scope")
	ErrSimilarCurrency  = errors.New("a currency with that name or icon is already enabled here")
	ErrInvalidIcon      = errors.New("invalid icon for currency")
	ErrBadAmount        = errors.New("could not parse an amount from the input")
)

// TooManyCurrenciesError signals the scope is at its enabled-currency
// capacity and the caller is not elevated.
type TooManyCurrenciesError struct {
	Max int
}

func (e *TooManyCurrenciesError) Error() string {
	return fmt.Sprintf("maximum amount of currencies reached (%d)", e.Max)
}

// NotEnoughMoneyError signals a spend exceeding the wallet balance.
type NotEnoughMoneyError struct {
	Deficit int64
	Icon    string
}

func (e *NotEnoughMoneyError) Error() string {
	return fmt.Sprintf("not enough money, missing %d %s", e.Deficit, e.Icon)
}

// MissingPermissionError is a permission-gate denial.
type MissingPermissionError struct {
	Permission string
}

func (e *MissingPermissionError) Error() string {
	return fmt.Sprintf("missing permission %q", e.Permission)
}
