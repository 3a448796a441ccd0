package domain

import "github.com/shopspring/decimal"

// Balance is a single currency balance as reported by an exchange.
type Balance struct {
	Currency string
	Balance  decimal.Decimal
}
