package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound             = errors.New("error not found")
	ErrInvalidInput         = errors.New("error invalid input")
	ErrInsufficientFunds    = errors.New("error insufficient funds")
	ErrInsufficientHoldings = errors.New("error insufficient holdings")
	ErrPriceUnavailable     = errors.New("error price unavailable")
)

// InsufficientFundsError carries the shortfall so it can be shown to the user.
// errors.Is(err, ErrInsufficientFunds) matches it.
type InsufficientFundsError struct {
	Shortfall decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds, short %s", e.Shortfall.String())
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

type InsufficientHoldingsError struct {
	Shortfall decimal.Decimal
}

func (e *InsufficientHoldingsError) Error() string {
	return fmt.Sprintf("insufficient holdings, short %s", e.Shortfall.String())
}

func (e *InsufficientHoldingsError) Is(target error) bool {
	return target == ErrInsufficientHoldings
}
