package signal

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func prices(values ...int64) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		out = append(out, decimal.NewFromInt(v))
	}
	return out
}

func TestEngine_NoDecisionBeforeFull(t *testing.T) {
	e, err := NewEngine(zap.NewNop(), 5)
	require.NoError(t, err)

	_, ready := e.Evaluate("BTC-USDT", decimal.NewFromInt(1))
	assert.False(t, ready)

	for _, p := range prices(100, 102, 98, 101) {
		e.Observe("BTC-USDT", p)
		_, ready = e.Evaluate("BTC-USDT", decimal.NewFromInt(1))
		assert.False(t, ready)
	}

	e.Observe("BTC-USDT", decimal.NewFromInt(99))
	_, ready = e.Evaluate("BTC-USDT", decimal.NewFromInt(1))
	assert.True(t, ready)
}

func TestEngine_DipBuy(t *testing.T) {
	e, err := NewEngine(nil, 5)
	require.NoError(t, err)
	e.Seed("BTC-USDT", prices(100, 102, 98, 101, 99))

	// mean 100, sample std dev sqrt(2.5) ~ 1.58
	decision, ready := e.Evaluate("BTC-USDT", decimal.NewFromInt(99))
	require.True(t, ready)
	assert.True(t, decision.Buy, decision.Reason)
	assert.True(t, decision.Reference.Equal(decimal.NewFromInt(100)))
	assert.InDelta(t, 1.5811, decision.StdDev.InexactFloat64(), 0.001)

	decision, ready = e.Evaluate("BTC-USDT", decimal.NewFromInt(97))
	require.True(t, ready)
	assert.False(t, decision.Buy, decision.Reason)

	decision, _ = e.Evaluate("BTC-USDT", decimal.NewFromInt(100))
	assert.False(t, decision.Buy)

	decision, _ = e.Evaluate("BTC-USDT", decimal.NewFromInt(105))
	assert.False(t, decision.Buy)
}

func TestEngine_ConstantPricesNeverBuy(t *testing.T) {
	e, err := NewEngine(nil, 4)
	require.NoError(t, err)
	e.Seed("ETH-USDT", prices(50, 50, 50, 50))

	stats := e.Stats("ETH-USDT")
	assert.True(t, stats.StdDev.IsZero())

	for _, current := range prices(49, 50, 51) {
		decision, ready := e.Evaluate("ETH-USDT", current)
		require.True(t, ready)
		assert.False(t, decision.Buy)
	}
}

func TestEngine_RingEvictsOldest(t *testing.T) {
	e, err := NewEngine(nil, 3)
	require.NoError(t, err)

	for _, p := range prices(1000, 10, 11, 12) {
		e.Observe("XRP-USDT", p)
	}

	stats := e.Stats("XRP-USDT")
	assert.Equal(t, 3, stats.Count)
	assert.True(t, stats.Ready)
	assert.True(t, stats.Mean.Equal(decimal.NewFromInt(11)))
}

func TestEngine_SymbolsAreIndependent(t *testing.T) {
	e, err := NewEngine(nil, 2)
	require.NoError(t, err)
	e.Seed("BTC-USDT", prices(1, 2))

	assert.True(t, e.Ready("BTC-USDT"))
	assert.False(t, e.Ready("ETH-USDT"))
	assert.Equal(t, Stats{Capacity: 2}, e.Stats("ETH-USDT"))
}

func TestNewEngine_InvalidCapacity(t *testing.T) {
	_, err := NewEngine(nil, 1)
	require.Error(t, err)
}
