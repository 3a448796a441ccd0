package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fill is what an exchange client reports back for a placed limit order.
type Fill struct {
	OrderID   string
	Price     decimal.Decimal
	DealSize  decimal.Decimal
	DealFunds decimal.Decimal
	Fee       decimal.Decimal
}

// Order is an executed order. Values are copied, never mutated after creation.
type Order struct {
	ID        string          `json:"id"`
	Pair      Pair            `json:"-"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Size      decimal.Decimal `json:"size"`
	DealFunds decimal.Decimal `json:"deal_funds"`
	Fee       decimal.Decimal `json:"fee"`
	CreatedAt time.Time       `json:"created_at"`
	// CostBasis is the quote amount paid for a buy; zero for sells.
	CostBasis decimal.Decimal `json:"cost_basis,omitempty"`
}

// NewOrderFromFill builds an Order for the given pair and side.
func NewOrderFromFill(pair Pair, side Side, fill Fill, createdAt time.Time) Order {
	funds := fill.DealFunds
	if funds.IsZero() {
		funds = fill.Price.Mul(fill.DealSize)
	}

	order := Order{
		ID:        fill.OrderID,
		Pair:      pair,
		Symbol:    pair.String(),
		Side:      side,
		Price:     fill.Price,
		Size:      fill.DealSize,
		DealFunds: funds,
		Fee:       fill.Fee,
		CreatedAt: createdAt,
	}
	if side == SideBuy {
		order.CostBasis = funds
	}

	return order
}
