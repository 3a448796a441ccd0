package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActiveTrade is an open buy position awaiting a matching sell.
type ActiveTrade struct {
	OrderID  string          `json:"order_id"`
	Symbol   string          `json:"symbol"`
	BuyPrice decimal.Decimal `json:"buy_price"`
	Amount   decimal.Decimal `json:"amount"`
	Fee      decimal.Decimal `json:"fee"`
	BuyTime  time.Time       `json:"buy_time"`
	// TargetPrice is the sell threshold derived from BuyPrice.
	TargetPrice decimal.Decimal `json:"target_price"`
	BuyOrder    Order           `json:"-"`
}

// ClosedTrade is an ActiveTrade that was matched by a sell.
type ClosedTrade struct {
	ActiveTrade
	SellOrder Order           `json:"sell_order"`
	Profit    decimal.Decimal `json:"profit"`
	ClosedAt  time.Time       `json:"closed_at"`
}
