package orders

import (
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/dipbot/internal/domain"
)

// Profit is the outcome of closing a buy/sell pair.
type Profit struct {
	BuyCost         decimal.Decimal
	SellProceeds    decimal.Decimal
	EffectiveCrypto decimal.Decimal
	Value           decimal.Decimal
}

// CalculateTargetSellPrice inflates the margin by both fee legs.
func CalculateTargetSellPrice(buyPrice, profitMargin, makerFee, takerFee decimal.Decimal) decimal.Decimal {
	return buyPrice.Mul(decimal.NewFromInt(1).Add(profitMargin).Add(makerFee).Add(takerFee))
}

// CalculateProfit returns sell proceeds net of the sell fee minus the buy cost.
// EffectiveCrypto is the bought size reduced by the buy fee share.
func CalculateProfit(buy, sell domain.Order) Profit {
	buyCost := buy.CostBasis
	if buyCost.IsZero() {
		buyCost = buy.DealFunds
	}

	effective := buy.Size
	if buyCost.IsPositive() {
		effective = buy.Size.Sub(buy.Fee.Div(buyCost).Mul(buy.Size))
	}

	proceeds := sell.DealFunds.Sub(sell.Fee)

	return Profit{
		BuyCost:         buyCost,
		SellProceeds:    proceeds,
		EffectiveCrypto: effective,
		Value:           proceeds.Sub(buyCost),
	}
}
