package orders

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/dipbot/internal/domain"
	"github.com/vadiminshakov/dipbot/internal/ledger"
	"github.com/vadiminshakov/dipbot/internal/mocks"
	"github.com/vadiminshakov/dipbot/internal/services/pricer"
	"github.com/vadiminshakov/dipbot/internal/services/trader"
	"go.uber.org/zap"
)

var (
	btc = domain.Pair{From: "BTC", To: "USDT"}
	eth = domain.Pair{From: "ETH", To: "USDT"}
)

func decEq(s string) interface{} {
	want := d(s)
	return mock.MatchedBy(func(v decimal.Decimal) bool { return v.Equal(want) })
}

func testConfig() Config {
	return Config{
		ProfitMargin:   d("0.01"),
		MakerFee:       d("0.001"),
		TakerFee:       d("0.001"),
		MaxTotalOrders: 10,
		AccountType:    ledger.AccountTrading,
	}
}

func newWallet(usdt string) *ledger.Wallet {
	w := ledger.NewWallet(zap.NewNop())
	w.AddAccount(ledger.AccountTrading)
	w.UpdateBalance(ledger.AccountTrading, domain.QuoteCurrency, d(usdt))
	w.UpdateBalance(ledger.AccountTrading, "BTC", decimal.Zero)
	w.UpdateBalance(ledger.AccountTrading, "ETH", decimal.Zero)
	return w
}

func newManager(t *testing.T, client ExchangeClient, w *ledger.Wallet, cfg Config) *Manager {
	t.Helper()
	m, err := NewManager(zap.NewNop(), client, w, cfg)
	require.NoError(t, err)
	return m
}

func TestManager_SimulatedBuy(t *testing.T) {
	prices := pricer.Func(func(context.Context, domain.Pair) (decimal.Decimal, error) {
		return d("50"), nil
	})
	sim := trader.NewSimulateTrader(zap.NewNop(), prices, d("1000"), d("0.001"))
	w := newWallet("1000")
	m := newManager(t, sim, w, testConfig())

	order := m.PlaceBuyOrder(context.Background(), btc, d("100"), d("50"))
	require.NotNil(t, order)

	assert.True(t, order.Size.Equal(d("2")), "size %s", order.Size)
	assert.True(t, order.Fee.Equal(d("0.1")), "fee %s", order.Fee)
	assert.True(t, order.CostBasis.Equal(d("100")))
	assert.Equal(t, "sim_buy_BTC-USDT_1", order.ID)

	trades := m.ActiveTrades()
	require.Contains(t, trades, order.ID)
	assert.True(t, trades[order.ID].TargetPrice.Equal(d("50.6")))
	assert.True(t, trades[order.ID].Amount.Equal(d("2")))

	assert.True(t, w.Balance(ledger.AccountTrading, "BTC").Equal(d("2")))
	assert.True(t, w.Balance(ledger.AccountTrading, domain.QuoteCurrency).Equal(d("899.9")))
	assert.Equal(t, map[string]int{"BTC-USDT": 1}, m.ActiveOrderCounts())
	assert.Equal(t, 1, m.Outstanding())
}

func TestManager_BuyAndCloseTrade(t *testing.T) {
	client := mocks.NewExchangeClient(t)
	client.On("PlaceLimitOrder", mock.Anything, btc, domain.SideBuy, decEq("50"), decEq("2")).
		Return(&domain.Fill{OrderID: "b1", Price: d("50"), DealSize: d("2"), Fee: d("0.1")}, nil).Once()
	client.On("PlaceLimitOrder", mock.Anything, btc, domain.SideSell, decEq("55"), decEq("2")).
		Return(&domain.Fill{OrderID: "s1", Price: d("55"), DealSize: d("2"), Fee: d("0.11")}, nil).Once()

	w := newWallet("1000")
	m := newManager(t, client, w, testConfig())

	buy := m.PlaceBuyOrder(context.Background(), btc, d("100"), d("50"))
	require.NotNil(t, buy)

	sell := m.PlaceSellOrder(context.Background(), btc, d("2"), d("55"))
	require.NotNil(t, sell)
	assert.Equal(t, 2, m.ActiveOrderCounts()["BTC-USDT"])

	profit, ok := m.CloseTrade(buy.ID, *sell)
	require.True(t, ok)
	assert.True(t, profit.Value.Equal(d("9.89")), "profit %s", profit.Value)

	assert.Empty(t, m.ActiveTrades())
	assert.Empty(t, m.ActiveOrderCounts())
	assert.Equal(t, 0, m.Outstanding())
	assert.Equal(t, 1, m.TotalTrades())
	require.Len(t, m.ClosedTrades(), 1)
	assert.Equal(t, "s1", m.ClosedTrades()[0].SellOrder.ID)

	assert.True(t, w.Profits()["BTC-USDT"].Equal(d("9.89")))
	// 1000 - 100 - 0.1 + 110 - 0.11
	assert.True(t, w.Balance(ledger.AccountTrading, domain.QuoteCurrency).Equal(d("1009.79")))
	assert.True(t, w.Balance(ledger.AccountTrading, "BTC").IsZero())

	_, ok = m.CloseTrade(buy.ID, *sell)
	assert.False(t, ok)
}

func TestManager_TransportFailureLeavesLedgerUntouched(t *testing.T) {
	client := mocks.NewExchangeClient(t)
	client.On("PlaceLimitOrder", mock.Anything, btc, domain.SideBuy, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset")).Once()

	w := newWallet("1000")
	m := newManager(t, client, w, testConfig())

	assert.Nil(t, m.PlaceBuyOrder(context.Background(), btc, d("100"), d("50")))
	assert.True(t, w.Balance(ledger.AccountTrading, domain.QuoteCurrency).Equal(d("1000")))
	assert.True(t, w.Balance(ledger.AccountTrading, "BTC").IsZero())
	assert.Empty(t, m.ActiveTrades())
	assert.Equal(t, 0, m.Outstanding())
}

func TestManager_SubmitTimeoutIsFailure(t *testing.T) {
	client := mocks.NewExchangeClient(t)
	client.On("PlaceLimitOrder", mock.Anything, btc, domain.SideBuy, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded).Once()

	cfg := testConfig()
	cfg.ExchangeTimeout = 10 * time.Millisecond
	m := newManager(t, client, newWallet("1000"), cfg)

	intent, err := m.PrepareBuy(btc, d("100"), d("50"))
	require.NoError(t, err)
	assert.Equal(t, 1, m.Outstanding())

	_, err = m.Submit(context.Background(), intent)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	m.Release(intent)
	assert.Equal(t, 0, m.Outstanding())
}

func TestManager_InsufficientFunds(t *testing.T) {
	client := mocks.NewExchangeClient(t)
	m := newManager(t, client, newWallet("50"), testConfig())

	_, err := m.PrepareBuy(btc, d("100"), d("50"))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Nil(t, m.PlaceBuyOrder(context.Background(), btc, d("100"), d("50")))
	assert.True(t, m.AvailableBalance("BTC-USDT").Equal(d("50")))

	_, err = m.PrepareSell(eth, d("1"), d("10"), "")
	require.ErrorIs(t, err, ErrInsufficientFunds)
	client.AssertNotCalled(t, "PlaceLimitOrder")
}

func TestManager_OrderCapIsGlobal(t *testing.T) {
	client := mocks.NewExchangeClient(t)
	cfg := testConfig()
	cfg.MaxTotalOrders = 2
	m := newManager(t, client, newWallet("1000"), cfg)

	_, err := m.PrepareBuy(btc, d("10"), d("5"))
	require.NoError(t, err)
	assert.True(t, m.CanPlaceOrder("ETH-USDT"))

	_, err = m.PrepareBuy(eth, d("10"), d("5"))
	require.NoError(t, err)

	assert.False(t, m.CanPlaceOrder("BTC-USDT"))
	assert.False(t, m.CanPlaceOrder("ETH-USDT"))
	assert.False(t, m.CanPlaceOrder("DOT-USDT"))

	_, err = m.PrepareBuy(btc, d("10"), d("5"))
	require.ErrorIs(t, err, ErrOrderLimit)
}

func TestManager_InvalidOrder(t *testing.T) {
	m := newManager(t, mocks.NewExchangeClient(t), newWallet("1000"), testConfig())

	_, err := m.PrepareBuy(btc, decimal.Zero, d("50"))
	require.ErrorIs(t, err, ErrInvalidOrder)

	_, err = m.PrepareBuy(btc, d("10"), decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidOrder)

	_, err = m.PrepareSell(btc, d("-1"), d("50"), "")
	require.ErrorIs(t, err, ErrInvalidOrder)
	assert.Equal(t, 0, m.Outstanding())
}

func TestManager_EmptyFillIsFailure(t *testing.T) {
	client := mocks.NewExchangeClient(t)
	client.On("PlaceLimitOrder", mock.Anything, btc, domain.SideBuy, mock.Anything, mock.Anything).
		Return(&domain.Fill{}, nil).Once()

	w := newWallet("1000")
	m := newManager(t, client, w, testConfig())

	assert.Nil(t, m.PlaceBuyOrder(context.Background(), btc, d("100"), d("50")))
	assert.True(t, w.Balance(ledger.AccountTrading, domain.QuoteCurrency).Equal(d("1000")))
	assert.Equal(t, 0, m.Outstanding())
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(nil, nil, newWallet("1"), testConfig())
	require.Error(t, err)

	cfg := testConfig()
	cfg.MaxTotalOrders = 0
	_, err = NewManager(nil, mocks.NewExchangeClient(t), newWallet("1"), cfg)
	require.Error(t, err)
}
