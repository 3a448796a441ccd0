package orders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/vadiminshakov/dipbot/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateTargetSellPrice(t *testing.T) {
	target := CalculateTargetSellPrice(d("100"), d("0.01"), d("0.001"), d("0.001"))
	assert.True(t, target.Equal(d("101.2")), "got %s", target)

	target = CalculateTargetSellPrice(d("50000"), d("0.02"), decimal.Zero, decimal.Zero)
	assert.True(t, target.Equal(d("51000")), "got %s", target)
}

func TestCalculateProfit(t *testing.T) {
	buy := domain.Order{
		Side:      domain.SideBuy,
		Price:     d("50"),
		Size:      d("2"),
		DealFunds: d("100"),
		CostBasis: d("100"),
		Fee:       d("0.1"),
	}
	sell := domain.Order{
		Side:      domain.SideSell,
		Price:     d("55"),
		Size:      d("2"),
		DealFunds: d("110"),
		Fee:       d("0.11"),
	}

	p := CalculateProfit(buy, sell)
	assert.True(t, p.BuyCost.Equal(d("100")))
	assert.True(t, p.SellProceeds.Equal(d("109.89")))
	assert.True(t, p.Value.Equal(d("9.89")), "got %s", p.Value)
	assert.True(t, p.EffectiveCrypto.Equal(d("1.998")), "got %s", p.EffectiveCrypto)
}

func TestCalculateProfit_Loss(t *testing.T) {
	buy := domain.Order{Size: d("1"), DealFunds: d("100"), CostBasis: d("100")}
	sell := domain.Order{Size: d("1"), DealFunds: d("99"), Fee: d("0.099")}

	p := CalculateProfit(buy, sell)
	assert.True(t, p.Value.Equal(d("-1.099")), "got %s", p.Value)
	assert.True(t, p.EffectiveCrypto.Equal(d("1")))
}
