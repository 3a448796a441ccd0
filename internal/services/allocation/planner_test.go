package allocation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPlanner_TradableAndLiquid(t *testing.T) {
	p, err := New(d("0.5"), nil)
	require.NoError(t, err)

	assert.True(t, p.Tradable(d("1000")).Equal(d("500")))
	assert.True(t, p.Liquid(d("1000")).Equal(d("500")))

	p, err = New(d("0.2"), nil)
	require.NoError(t, err)
	assert.True(t, p.Tradable(d("1000")).Add(p.Liquid(d("1000"))).Equal(d("1000")))
}

func TestPlanner_AllocateEqualWeights(t *testing.T) {
	p, err := New(d("0.5"), nil)
	require.NoError(t, err)

	alloc := p.Allocate(d("500"), []string{"BTC-USDT", "ETH-USDT", "XRP-USDT", "ADA-USDT"})
	require.Len(t, alloc, 4)
	for symbol, amount := range alloc {
		assert.True(t, amount.Equal(d("125")), "%s got %s", symbol, amount)
	}
}

func TestPlanner_AllocateExplicitWeights(t *testing.T) {
	p, err := New(d("0.5"), map[string]decimal.Decimal{
		"BTC-USDT": d("0.6"),
		"ETH-USDT": d("0.4"),
	})
	require.NoError(t, err)

	alloc := p.Allocate(d("1000"), []string{"BTC-USDT", "ETH-USDT", "DOT-USDT"})
	assert.True(t, alloc["BTC-USDT"].Equal(d("600")))
	assert.True(t, alloc["ETH-USDT"].Equal(d("400")))
	assert.True(t, alloc["DOT-USDT"].IsZero())
	assert.Equal(t, []string{"BTC-USDT=0.6", "ETH-USDT=0.4"}, p.Weights())
}

func TestPlanner_AllocateEmpty(t *testing.T) {
	p, err := New(d("0.5"), nil)
	require.NoError(t, err)

	assert.Empty(t, p.Allocate(decimal.Zero, []string{"BTC-USDT"}))
	assert.Empty(t, p.Allocate(d("-10"), []string{"BTC-USDT"}))
	assert.Empty(t, p.Allocate(d("100"), nil))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(d("1.5"), nil)
	require.Error(t, err)

	_, err = New(d("-0.1"), nil)
	require.Error(t, err)

	_, err = New(d("0.5"), map[string]decimal.Decimal{"BTC-USDT": d("0.7"), "ETH-USDT": d("0.7")})
	require.Error(t, err)

	_, err = New(d("0.5"), map[string]decimal.Decimal{"BTC-USDT": d("-0.1")})
	require.Error(t, err)
}
