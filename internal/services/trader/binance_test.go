package trader

import (
	"testing"

	"github.com/adshao/go-binance/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vadiminshakov/dipbot/internal/domain"
)

func TestBinanceFill(t *testing.T) {
	t.Run("executed order uses average price and sums quote commission", func(t *testing.T) {
		resp := &binance.CreateOrderResponse{
			OrderID:                  42,
			ExecutedQuantity:         "2",
			CummulativeQuoteQuantity: "99",
			Fills: []*binance.Fill{
				{Price: "49", Quantity: "1", Commission: "0.049", CommissionAsset: "USDT"},
				{Price: "50", Quantity: "1", Commission: "0.05", CommissionAsset: "USDT"},
				{Price: "50", Quantity: "0", Commission: "0.001", CommissionAsset: "BNB"},
			},
		}

		core, logs := observer.New(zapcore.WarnLevel)
		fill, err := binanceFill(zap.New(core), resp, btc, domain.SideSell, d("50"), d("2"))
		require.NoError(t, err)
		assert.Equal(t, "42", fill.OrderID)
		assert.True(t, fill.Price.Equal(d("49.5")))
		assert.True(t, fill.DealSize.Equal(d("2")))
		assert.True(t, fill.DealFunds.Equal(d("99")))
		assert.True(t, fill.Fee.Equal(d("0.099")), "fee %s", fill.Fee)
		require.Equal(t, 1, logs.FilterField(zap.String("asset", "BNB")).Len(), "BNB commission is logged")
	})

	t.Run("base commission on a buy reduces the received size", func(t *testing.T) {
		resp := &binance.CreateOrderResponse{
			OrderID:                  8,
			ExecutedQuantity:         "0.001",
			CummulativeQuoteQuantity: "50",
			Fills: []*binance.Fill{
				{Price: "50000", Quantity: "0.001", Commission: "0.000001", CommissionAsset: "BTC"},
			},
		}

		fill, err := binanceFill(zap.NewNop(), resp, btc, domain.SideBuy, d("50000"), d("0.001"))
		require.NoError(t, err)
		assert.True(t, fill.DealSize.Equal(d("0.000999")), "size %s", fill.DealSize)
		assert.True(t, fill.DealFunds.Equal(d("50")))
		assert.True(t, fill.Fee.Equal(d("0.05")), "fee %s", fill.Fee)
		// quote debit booked by the ledger equals what was spent
		assert.True(t, fill.DealSize.Mul(fill.Price).Add(fill.Fee).Equal(d("50")))
	})

	t.Run("base commission on a sell is converted to quote", func(t *testing.T) {
		resp := &binance.CreateOrderResponse{
			OrderID:                  7,
			ExecutedQuantity:         "1",
			CummulativeQuoteQuantity: "50",
			Fills: []*binance.Fill{
				{Price: "50", Quantity: "1", Commission: "0.001", CommissionAsset: "BTC"},
			},
		}

		fill, err := binanceFill(zap.NewNop(), resp, btc, domain.SideSell, d("50"), d("1"))
		require.NoError(t, err)
		assert.True(t, fill.Fee.Equal(d("0.05")), "fee %s", fill.Fee)
		assert.True(t, fill.DealSize.Equal(d("1")))
	})

	t.Run("resting order falls back to requested values", func(t *testing.T) {
		resp := &binance.CreateOrderResponse{OrderID: 9, ExecutedQuantity: "0"}

		fill, err := binanceFill(zap.NewNop(), resp, btc, domain.SideBuy, d("50"), d("2"))
		require.NoError(t, err)
		assert.True(t, fill.Price.Equal(d("50")))
		assert.True(t, fill.DealSize.Equal(d("2")))
		assert.True(t, fill.Fee.IsZero())
	})

	t.Run("malformed quantity", func(t *testing.T) {
		_, err := binanceFill(zap.NewNop(), &binance.CreateOrderResponse{ExecutedQuantity: "x"}, btc, domain.SideBuy, d("1"), d("1"))
		require.Error(t, err)
	})
}

func TestCloid(t *testing.T) {
	id := cloid("abc")
	assert.Len(t, id, 34)
	assert.Equal(t, "0x", id[:2])
	assert.Equal(t, id, cloid("abc"))
	assert.NotEqual(t, id, cloid("abd"))
}
