// Package orders turns buy and sell decisions into exchange orders and reconciles
// successful fills into the ledger.
package orders

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/dipbot/internal/domain"
	"github.com/vadiminshakov/dipbot/internal/ledger"
	"github.com/vadiminshakov/dipbot/pkg/ringbuffer"
)

const defaultClosedTradesCap = 500

var (
	ErrOrderLimit        = errors.New("order limit reached")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidOrder      = errors.New("invalid order")
)

// ExchangeClient is the capability set the manager needs from an exchange.
type ExchangeClient interface {
	GetTickerPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
	PlaceLimitOrder(ctx context.Context, pair domain.Pair, side domain.Side, price, size decimal.Decimal) (*domain.Fill, error)
	ListAccountBalances(ctx context.Context, accountType string) ([]domain.Balance, error)
}

// Config holds order sizing and limit parameters.
type Config struct {
	ProfitMargin    decimal.Decimal
	MakerFee        decimal.Decimal
	TakerFee        decimal.Decimal
	MaxTotalOrders  int
	AccountType     string
	ExchangeTimeout time.Duration
	ClosedTradesCap int
}

// Intent is a validated order that holds a reserved slot until applied or released.
type Intent struct {
	Pair  domain.Pair
	Side  domain.Side
	Price decimal.Decimal
	Size  decimal.Decimal
	// BuyOrderID links a sell to the trade it closes.
	BuyOrderID string
}

// Manager tracks active trades and outstanding orders. It is not safe for concurrent
// use except for Submit, which only talks to the exchange.
type Manager struct {
	client ExchangeClient
	wallet *ledger.Wallet
	cfg    Config
	l      *zap.Logger
	now    func() time.Time

	activeTrades map[string]domain.ActiveTrade
	activeOrders map[string][]domain.Order
	closedTrades *ringbuffer.Ring[domain.ClosedTrade]
	reserved     int
	totalTrades  int
}

// NewManager creates a manager bound to a wallet and an exchange client.
func NewManager(l *zap.Logger, client ExchangeClient, wallet *ledger.Wallet, cfg Config) (*Manager, error) {
	if client == nil {
		return nil, errors.New("exchange client is required")
	}
	if wallet == nil {
		return nil, errors.New("wallet is required")
	}
	if cfg.MaxTotalOrders < 1 {
		return nil, errors.Errorf("max total orders must be positive, got %d", cfg.MaxTotalOrders)
	}
	if cfg.AccountType == "" {
		cfg.AccountType = ledger.AccountTrading
	}
	if cfg.ClosedTradesCap <= 0 {
		cfg.ClosedTradesCap = defaultClosedTradesCap
	}
	if l == nil {
		l = zap.NewNop()
	}

	return &Manager{
		client:       client,
		wallet:       wallet,
		cfg:          cfg,
		l:            l,
		now:          time.Now,
		activeTrades: make(map[string]domain.ActiveTrade),
		activeOrders: make(map[string][]domain.Order),
		closedTrades: ringbuffer.New[domain.ClosedTrade](cfg.ClosedTradesCap),
	}, nil
}

// Outstanding counts placed orders plus reserved in-flight ones.
func (m *Manager) Outstanding() int {
	n := m.reserved
	for _, orders := range m.activeOrders {
		n += len(orders)
	}
	return n
}

// CanPlaceOrder reports whether another order fits under the global cap.
// The cap is shared by all symbols.
func (m *Manager) CanPlaceOrder(symbol string) bool {
	return m.Outstanding() < m.cfg.MaxTotalOrders
}

// AvailableBalance returns the quote balance a buy on symbol may spend.
func (m *Manager) AvailableBalance(symbol string) decimal.Decimal {
	return m.wallet.Balance(m.cfg.AccountType, domain.QuoteCurrency)
}

// CalculateTargetSellPrice returns the exit price for a buy price.
func (m *Manager) CalculateTargetSellPrice(buyPrice decimal.Decimal) decimal.Decimal {
	return CalculateTargetSellPrice(buyPrice, m.cfg.ProfitMargin, m.cfg.MakerFee, m.cfg.TakerFee)
}

// PrepareBuy validates a buy of amountUSDT at limitPrice and reserves an order slot.
func (m *Manager) PrepareBuy(pair domain.Pair, amountUSDT, limitPrice decimal.Decimal) (Intent, error) {
	symbol := pair.String()
	if !amountUSDT.IsPositive() || !limitPrice.IsPositive() {
		return Intent{}, errors.Wrapf(ErrInvalidOrder, "buy %s amount %s at %s", symbol, amountUSDT, limitPrice)
	}
	if !m.CanPlaceOrder(symbol) {
		return Intent{}, errors.Wrapf(ErrOrderLimit, "%d outstanding", m.Outstanding())
	}
	if available := m.AvailableBalance(symbol); amountUSDT.GreaterThan(available) {
		return Intent{}, errors.Wrapf(ErrInsufficientFunds, "need %s, have %s", amountUSDT, available)
	}

	m.reserved++
	return Intent{
		Pair:  pair,
		Side:  domain.SideBuy,
		Price: limitPrice,
		Size:  amountUSDT.Div(limitPrice),
	}, nil
}

// PrepareSell validates a sell of amountCrypto at targetPrice and reserves an order slot.
func (m *Manager) PrepareSell(pair domain.Pair, amountCrypto, targetPrice decimal.Decimal, buyOrderID string) (Intent, error) {
	symbol := pair.String()
	if !amountCrypto.IsPositive() || !targetPrice.IsPositive() {
		return Intent{}, errors.Wrapf(ErrInvalidOrder, "sell %s amount %s at %s", symbol, amountCrypto, targetPrice)
	}
	if !m.CanPlaceOrder(symbol) {
		return Intent{}, errors.Wrapf(ErrOrderLimit, "%d outstanding", m.Outstanding())
	}
	if held := m.wallet.Balance(m.cfg.AccountType, pair.From); amountCrypto.GreaterThan(held) {
		return Intent{}, errors.Wrapf(ErrInsufficientFunds, "need %s %s, have %s", amountCrypto, pair.From, held)
	}

	m.reserved++
	return Intent{
		Pair:       pair,
		Side:       domain.SideSell,
		Price:      targetPrice,
		Size:       amountCrypto,
		BuyOrderID: buyOrderID,
	}, nil
}

// Submit sends the intent to the exchange. It does not touch manager state.
func (m *Manager) Submit(ctx context.Context, intent Intent) (*domain.Fill, error) {
	if m.cfg.ExchangeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.ExchangeTimeout)
		defer cancel()
	}

	fill, err := m.client.PlaceLimitOrder(ctx, intent.Pair, intent.Side, intent.Price, intent.Size)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to place %s order for %s", intent.Side, intent.Pair)
	}
	if fill == nil || fill.OrderID == "" || !fill.DealSize.IsPositive() {
		return nil, errors.Errorf("exchange returned an empty fill for %s %s", intent.Side, intent.Pair)
	}

	return fill, nil
}

// Release drops the slot reserved by a failed intent.
func (m *Manager) Release(intent Intent) {
	if m.reserved > 0 {
		m.reserved--
	}
}

// ApplyBuy records a successful buy and opens an active trade keyed by the order ID.
func (m *Manager) ApplyBuy(intent Intent, fill domain.Fill) domain.Order {
	m.Release(intent)

	now := m.now()
	order := domain.NewOrderFromFill(intent.Pair, domain.SideBuy, fill, now)
	acct := m.cfg.AccountType

	m.wallet.RecordTrade(acct, intent.Pair.From, order.Size, order.Price, domain.SideBuy)
	m.wallet.ChargeFee(acct, domain.QuoteCurrency, order.Fee)
	m.wallet.UpdatePrice(acct, intent.Pair.From, order.Price, now)

	m.activeTrades[order.ID] = domain.ActiveTrade{
		OrderID:     order.ID,
		Symbol:      order.Symbol,
		BuyPrice:    order.Price,
		Amount:      order.Size,
		Fee:         order.Fee,
		BuyTime:     now,
		TargetPrice: m.CalculateTargetSellPrice(order.Price),
		BuyOrder:    order,
	}
	m.activeOrders[order.Symbol] = append(m.activeOrders[order.Symbol], order)

	m.l.Info("buy order filled",
		zap.String("order_id", order.ID),
		zap.String("pair", order.Symbol),
		zap.String("price", order.Price.String()),
		zap.String("size", order.Size.String()),
		zap.String("fee", order.Fee.String()))

	return order
}

// ApplySell records a successful sell.
func (m *Manager) ApplySell(intent Intent, fill domain.Fill) domain.Order {
	m.Release(intent)

	now := m.now()
	order := domain.NewOrderFromFill(intent.Pair, domain.SideSell, fill, now)
	acct := m.cfg.AccountType

	m.wallet.RecordTrade(acct, intent.Pair.From, order.Size, order.Price, domain.SideSell)
	m.wallet.ChargeFee(acct, domain.QuoteCurrency, order.Fee)
	m.wallet.UpdatePrice(acct, intent.Pair.From, order.Price, now)

	m.activeOrders[order.Symbol] = append(m.activeOrders[order.Symbol], order)

	m.l.Info("sell order filled",
		zap.String("order_id", order.ID),
		zap.String("pair", order.Symbol),
		zap.String("price", order.Price.String()),
		zap.String("size", order.Size.String()),
		zap.String("fee", order.Fee.String()))

	return order
}

// PlaceBuyOrder runs prepare, submit and apply in one call. It returns nil when
// the order was not placed.
func (m *Manager) PlaceBuyOrder(ctx context.Context, pair domain.Pair, amountUSDT, limitPrice decimal.Decimal) *domain.Order {
	intent, err := m.PrepareBuy(pair, amountUSDT, limitPrice)
	if err != nil {
		m.l.Info("buy not placed", zap.String("pair", pair.String()), zap.Error(err))
		return nil
	}
	return m.execute(ctx, intent)
}

// PlaceSellOrder runs prepare, submit and apply in one call. It returns nil when
// the order was not placed.
func (m *Manager) PlaceSellOrder(ctx context.Context, pair domain.Pair, amountCrypto, targetPrice decimal.Decimal) *domain.Order {
	intent, err := m.PrepareSell(pair, amountCrypto, targetPrice, "")
	if err != nil {
		m.l.Info("sell not placed", zap.String("pair", pair.String()), zap.Error(err))
		return nil
	}
	return m.execute(ctx, intent)
}

func (m *Manager) execute(ctx context.Context, intent Intent) *domain.Order {
	fill, err := m.Submit(ctx, intent)
	if err != nil {
		m.Release(intent)
		m.l.Error("order failed", zap.String("pair", intent.Pair.String()), zap.Error(err))
		return nil
	}

	var order domain.Order
	if intent.Side == domain.SideBuy {
		order = m.ApplyBuy(intent, *fill)
	} else {
		order = m.ApplySell(intent, *fill)
	}
	return &order
}

// CloseTrade computes and records profit for the trade opened by buyOrderID,
// moves it to the closed history and prunes both orders from the active set.
func (m *Manager) CloseTrade(buyOrderID string, sell domain.Order) (Profit, bool) {
	trade, ok := m.activeTrades[buyOrderID]
	if !ok {
		m.l.Warn("no active trade to close", zap.String("buy_order_id", buyOrderID))
		return Profit{}, false
	}

	profit := CalculateProfit(trade.BuyOrder, sell)
	m.wallet.RecordProfit(trade.Symbol, profit.Value)
	m.totalTrades++

	delete(m.activeTrades, buyOrderID)
	m.closedTrades.Push(domain.ClosedTrade{
		ActiveTrade: trade,
		SellOrder:   sell,
		Profit:      profit.Value,
		ClosedAt:    m.now(),
	})
	m.pruneOrders(trade.Symbol, buyOrderID, sell.ID)

	m.l.Info("trade closed",
		zap.String("pair", trade.Symbol),
		zap.String("buy_order_id", buyOrderID),
		zap.String("sell_order_id", sell.ID),
		zap.String("buy_cost", profit.BuyCost.String()),
		zap.String("sell_proceeds", profit.SellProceeds.String()),
		zap.String("effective_crypto", profit.EffectiveCrypto.String()),
		zap.String("profit", profit.Value.String()))

	return profit, true
}

func (m *Manager) pruneOrders(symbol string, ids ...string) {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	kept := m.activeOrders[symbol][:0]
	for _, o := range m.activeOrders[symbol] {
		if _, ok := drop[o.ID]; !ok {
			kept = append(kept, o)
		}
	}
	if len(kept) == 0 {
		delete(m.activeOrders, symbol)
		return
	}
	m.activeOrders[symbol] = kept
}

// ActiveTrades returns a copy of the open trades keyed by buy order ID.
func (m *Manager) ActiveTrades() map[string]domain.ActiveTrade {
	out := make(map[string]domain.ActiveTrade, len(m.activeTrades))
	for id, t := range m.activeTrades {
		out[id] = t
	}
	return out
}

// OpenTrades returns the number of open trades for a symbol.
func (m *Manager) OpenTrades(symbol string) int {
	n := 0
	for _, t := range m.activeTrades {
		if t.Symbol == symbol {
			n++
		}
	}
	return n
}

// ActiveOrders returns a copy of the outstanding orders per symbol.
func (m *Manager) ActiveOrders() map[string][]domain.Order {
	out := make(map[string][]domain.Order, len(m.activeOrders))
	for symbol, orders := range m.activeOrders {
		out[symbol] = append([]domain.Order(nil), orders...)
	}
	return out
}

// ActiveOrderCounts returns the number of outstanding orders per symbol.
func (m *Manager) ActiveOrderCounts() map[string]int {
	out := make(map[string]int, len(m.activeOrders))
	for symbol, orders := range m.activeOrders {
		out[symbol] = len(orders)
	}
	return out
}

// ClosedTrades returns the closed trade history, oldest first.
func (m *Manager) ClosedTrades() []domain.ClosedTrade {
	return m.closedTrades.Values()
}

// TotalTrades returns the number of closed trades.
func (m *Manager) TotalTrades() int {
	return m.totalTrades
}
