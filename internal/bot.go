package internal

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/dipbot/config"
	"github.com/vadiminshakov/dipbot/internal/domain"
	"github.com/vadiminshakov/dipbot/internal/ledger"
	"github.com/vadiminshakov/dipbot/internal/services/allocation"
	"github.com/vadiminshakov/dipbot/internal/services/market/collector"
	"github.com/vadiminshakov/dipbot/internal/services/orders"
	"github.com/vadiminshakov/dipbot/internal/services/pricer"
	"github.com/vadiminshakov/dipbot/internal/services/signal"
	"github.com/vadiminshakov/dipbot/pkg/retrier"
	"github.com/vadiminshakov/dipbot/pkg/ringbuffer"
)

const statusHistoryCap = 120

// Bot drives the per-tick loop: prices, signals, orders and status snapshots.
// Only Run (or Tick) mutates state; readers get copies.
type Bot struct {
	mu sync.RWMutex

	cfg     config.Config
	l       *zap.Logger
	client  orders.ExchangeClient
	prices  *pricer.Fetcher
	klines  collector.KlineProvider
	retrier *retrier.Retrier
	now     func() time.Time

	wallet  *ledger.Wallet
	planner *allocation.Planner
	engine  *signal.Engine
	orders  *orders.Manager

	symbols     []domain.Pair
	allocations map[string]decimal.Decimal
	lastPrices  map[string]decimal.Decimal
	initialized bool

	snapshots *ringbuffer.Ring[domain.StatusSnapshotRecord]
	nextIndex uint64
}

// NewBot wires the bot components around an exchange client. klines may be nil,
// in which case signal buffers are filled from live ticks only.
func NewBot(l *zap.Logger, cfg config.Config, client orders.ExchangeClient, klines collector.KlineProvider) (*Bot, error) {
	if l == nil {
		l = zap.NewNop()
	}
	if client == nil {
		return nil, errors.New("exchange client is required")
	}

	planner, err := allocation.New(cfg.LiquidRatio, cfg.SymbolWeights)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create allocation planner")
	}

	engine, err := signal.NewEngine(l.Named("signal"), cfg.PriceHistoryLength)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create signal engine")
	}

	wallet := ledger.NewWallet(l.Named("ledger"))

	manager, err := orders.NewManager(l.Named("orders"), client, wallet, orders.Config{
		ProfitMargin:    cfg.ProfitMargin,
		MakerFee:        cfg.MakerFee,
		TakerFee:        cfg.TakerFee,
		MaxTotalOrders:  cfg.MaxTotalOrders,
		AccountType:     ledger.AccountTrading,
		ExchangeTimeout: cfg.ExchangeTimeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create order manager")
	}

	r := retrier.New(
		retrier.WithMaxRetries(cfg.MaxRetries),
		retrier.WithInitialInterval(cfg.RetryDelay),
		retrier.WithLogger(l, "exchange"),
		retrier.WithRetryIf(func(err error) bool { return !errors.Is(err, context.Canceled) }),
	)

	return &Bot{
		cfg:         cfg,
		l:           l,
		client:      client,
		prices:      pricer.NewFetcher(l.Named("pricer"), pricer.Func(client.GetTickerPrice), r, cfg.ExchangeTimeout),
		klines:      klines,
		retrier:     r,
		now:         time.Now,
		wallet:      wallet,
		planner:     planner,
		engine:      engine,
		orders:      manager,
		symbols:     append([]domain.Pair(nil), cfg.Symbols...),
		allocations: make(map[string]decimal.Decimal),
		lastPrices:  make(map[string]decimal.Decimal),
		snapshots:   ringbuffer.New[domain.StatusSnapshotRecord](statusHistoryCap),
	}, nil
}

// Initialize creates the trading account, syncs balances from the exchange,
// optionally seeds signal buffers from candles and computes allocations.
func (b *Bot) Initialize(ctx context.Context) error {
	b.wallet.AddAccount(ledger.AccountTrading)

	if err := b.syncBalances(ctx); err != nil {
		return err
	}

	symbols := b.Symbols()
	for _, pair := range symbols {
		if !b.wallet.HasCurrency(ledger.AccountTrading, pair.From) {
			b.wallet.UpdateBalance(ledger.AccountTrading, pair.From, decimal.Zero)
		}
	}

	if b.cfg.WarmupInterval != "" && b.klines != nil {
		closes := collector.ClosePrices(ctx, b.l, b.klines, symbols, b.cfg.WarmupInterval, b.cfg.PriceHistoryLength)
		b.mu.Lock()
		for symbol, prices := range closes {
			b.engine.Seed(symbol, prices)
		}
		b.mu.Unlock()
		b.l.Info("signal buffers seeded", zap.Int("symbols", len(closes)), zap.String("interval", b.cfg.WarmupInterval))
	}

	prices := b.prices.FetchAll(ctx, symbols)
	b.mu.Lock()
	b.observePrices(prices)
	b.mu.Unlock()

	if err := b.UpdateAllocations(ctx, symbols); err != nil {
		return err
	}

	b.mu.Lock()
	b.initialized = true
	b.mu.Unlock()

	return nil
}

func (b *Bot) syncBalances(ctx context.Context) error {
	balances, err := retrier.DoWithData(b.retrier, ctx, func(ctx context.Context) ([]domain.Balance, error) {
		if b.cfg.ExchangeTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, b.cfg.ExchangeTimeout)
			defer cancel()
		}
		return b.client.ListAccountBalances(ctx, ledger.AccountTrading)
	})
	if err != nil {
		return errors.Wrap(err, "failed to sync balances")
	}

	b.wallet.UpdateBalance(ledger.AccountTrading, domain.QuoteCurrency, decimal.Zero)
	for _, bal := range balances {
		b.wallet.UpdateBalance(ledger.AccountTrading, bal.Currency, bal.Balance)
	}

	b.l.Info("balances synced",
		zap.Int("currencies", len(balances)),
		zap.String("usdt", b.wallet.Balance(ledger.AccountTrading, domain.QuoteCurrency).String()))

	return nil
}

// UpdateAllocations switches the traded symbol set and recomputes the per-symbol
// USDT allocations from the current total balance.
func (b *Bot) UpdateAllocations(ctx context.Context, symbols []domain.Pair) error {
	for _, pair := range symbols {
		if pair.To != domain.QuoteCurrency {
			return errors.Errorf("pair %s is not quoted in %s", pair, domain.QuoteCurrency)
		}
	}

	total := b.wallet.TotalBalanceInUSDT(ctx, b.cachedPrice(ctx))
	tradable := b.planner.Tradable(total)

	allocations := b.planner.Allocate(tradable, pairStrings(symbols))

	b.mu.Lock()
	b.symbols = append([]domain.Pair(nil), symbols...)
	b.allocations = allocations
	b.mu.Unlock()

	for _, pair := range symbols {
		if !b.wallet.HasCurrency(ledger.AccountTrading, pair.From) {
			b.wallet.UpdateBalance(ledger.AccountTrading, pair.From, decimal.Zero)
		}
	}

	b.l.Info("allocations updated",
		zap.String("total_usdt", total.String()),
		zap.String("tradable_usdt", tradable.String()),
		zap.Strings("weights", b.planner.Weights()),
		zap.Int("symbols", len(symbols)))

	return nil
}

// cachedPrice prefers the last observed tick price and falls back to the exchange.
func (b *Bot) cachedPrice(ctx context.Context) ledger.PriceFetcher {
	return func(_ context.Context, pair domain.Pair) (decimal.Decimal, error) {
		b.mu.RLock()
		price, ok := b.lastPrices[pair.String()]
		b.mu.RUnlock()
		if ok {
			return price, nil
		}
		return b.prices.GetPrice(ctx, pair)
	}
}

// Run ticks every poll_price_interval until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.RLock()
	ready := b.initialized
	b.mu.RUnlock()
	if !ready {
		return errors.New("bot is not initialized")
	}

	ticker := time.NewTicker(b.cfg.PollPriceInterval)
	defer ticker.Stop()

	b.l.Info("starting trading loop",
		zap.Strings("symbols", pairStrings(b.Symbols())),
		zap.Duration("poll_interval", b.cfg.PollPriceInterval))

	for {
		select {
		case <-ctx.Done():
			b.l.Info("context done, stopping trading loop")
			return ctx.Err()
		case <-ticker.C:
			b.Tick(ctx)
		}
	}
}

type dispatch struct {
	intent orders.Intent
	fill   *domain.Fill
	err    error
}

// Tick runs one iteration: fetch prices, update buffers and ledger, place buys and
// exit sells, then append a status snapshot.
func (b *Bot) Tick(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, b.priceDeadline())
	prices := b.prices.FetchAll(fetchCtx, b.watchedPairs())
	cancel()

	b.mu.Lock()
	b.observePrices(prices)
	intents := b.planOrders(prices)
	b.mu.Unlock()

	results := b.submit(ctx, intents)

	b.mu.Lock()
	b.applyResults(results)
	b.mu.Unlock()

	b.appendSnapshot(b.GetCurrentStatus(prices))
}

// priceDeadline bounds a tick's price fetch so a slow pair cannot hold back the others.
func (b *Bot) priceDeadline() time.Duration {
	deadline := b.cfg.PollPriceInterval
	if b.cfg.ExchangeTimeout > 0 && b.cfg.ExchangeTimeout < deadline {
		deadline = b.cfg.ExchangeTimeout
	}
	return deadline
}

// watchedPairs returns the selected pairs plus pairs that still hold open trades,
// so a trade stays exitable after its symbol is deselected.
func (b *Bot) watchedPairs() []domain.Pair {
	b.mu.RLock()
	defer b.mu.RUnlock()

	pairs := append([]domain.Pair(nil), b.symbols...)
	seen := make(map[string]struct{}, len(pairs))
	for _, pair := range pairs {
		seen[pair.String()] = struct{}{}
	}
	for _, trade := range b.orders.ActiveTrades() {
		if _, ok := seen[trade.Symbol]; ok {
			continue
		}
		pair, err := domain.ParsePair(trade.Symbol)
		if err != nil {
			continue
		}
		seen[trade.Symbol] = struct{}{}
		pairs = append(pairs, pair)
	}
	return pairs
}

func (b *Bot) observePrices(prices map[string]decimal.Decimal) {
	now := b.now()
	for symbol, price := range prices {
		pair, err := domain.ParsePair(symbol)
		if err != nil {
			continue
		}
		b.engine.Observe(symbol, price)
		b.wallet.UpdatePrice(ledger.AccountTrading, pair.From, price, now)
		b.lastPrices[symbol] = price
	}
}

// planOrders reserves slots for exit sells first, then for dip buys.
func (b *Bot) planOrders(prices map[string]decimal.Decimal) []orders.Intent {
	var intents []orders.Intent

	for _, trade := range b.orders.ActiveTrades() {
		pair, err := domain.ParsePair(trade.Symbol)
		if err != nil {
			continue
		}
		price, ok := prices[trade.Symbol]
		if !ok || price.LessThan(trade.TargetPrice) {
			continue
		}

		intent, err := b.orders.PrepareSell(pair, trade.Amount, trade.TargetPrice, trade.OrderID)
		if err != nil {
			b.l.Info("sell not placed", zap.String("pair", trade.Symbol), zap.Error(err))
			continue
		}
		intents = append(intents, intent)
	}

	for _, pair := range b.symbols {
		symbol := pair.String()
		price, ok := prices[symbol]
		if !ok {
			continue
		}

		if !b.engine.Ready(symbol) {
			stats := b.engine.Stats(symbol)
			b.l.Debug("price history warming up",
				zap.String("pair", symbol),
				zap.Int("count", stats.Count),
				zap.Int("capacity", stats.Capacity))
			continue
		}

		decision, _ := b.engine.Evaluate(symbol, price)
		if !decision.Buy {
			continue
		}

		if b.orders.OpenTrades(symbol) >= b.cfg.MaxOpenTradesPerSymbol {
			b.l.Debug("buy signal skipped, trade already open", zap.String("pair", symbol))
			continue
		}
		// keep one slot for the exit sell
		if b.orders.Outstanding()+1 >= b.cfg.MaxTotalOrders {
			b.l.Info("buy signal skipped, order limit", zap.String("pair", symbol), zap.Int("outstanding", b.orders.Outstanding()))
			continue
		}

		amount := b.allocations[symbol].Div(decimal.NewFromInt(int64(b.cfg.MaxOpenTradesPerSymbol)))
		intent, err := b.orders.PrepareBuy(pair, amount, decision.Price)
		if err != nil {
			b.l.Info("buy not placed", zap.String("pair", symbol), zap.Error(err))
			continue
		}

		b.l.Info("buy signal",
			zap.String("pair", symbol),
			zap.String("price", decision.Price.String()),
			zap.String("mean", decision.Reference.String()),
			zap.String("stddev", decision.StdDev.String()),
			zap.String("amount_usdt", amount.String()))
		intents = append(intents, intent)
	}

	return intents
}

func (b *Bot) submit(ctx context.Context, intents []orders.Intent) []dispatch {
	results := make([]dispatch, len(intents))

	var g errgroup.Group
	for i, intent := range intents {
		g.Go(func() error {
			fill, err := b.orders.Submit(ctx, intent)
			results[i] = dispatch{intent: intent, fill: fill, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (b *Bot) applyResults(results []dispatch) {
	for _, res := range results {
		if res.err != nil {
			b.orders.Release(res.intent)
			b.l.Error("order failed",
				zap.String("pair", res.intent.Pair.String()),
				zap.String("side", res.intent.Side.String()),
				zap.Error(res.err))
			continue
		}

		if res.intent.Side == domain.SideBuy {
			b.orders.ApplyBuy(res.intent, *res.fill)
			continue
		}

		sell := b.orders.ApplySell(res.intent, *res.fill)
		b.orders.CloseTrade(res.intent.BuyOrderID, sell)
	}
}

// GetCurrentStatus builds a snapshot valued at prices, falling back to the last
// observed tick price for symbols missing from prices.
func (b *Bot) GetCurrentStatus(prices map[string]decimal.Decimal) domain.StatusSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	valued := make(map[string]decimal.Decimal, len(b.lastPrices)+len(prices))
	for symbol, p := range b.lastPrices {
		valued[symbol] = p
	}
	for symbol, p := range prices {
		valued[symbol] = p
	}

	total := b.wallet.TotalBalanceInUSDT(context.Background(), func(_ context.Context, pair domain.Pair) (decimal.Decimal, error) {
		p, ok := valued[pair.String()]
		if !ok {
			return decimal.Zero, errors.Errorf("no price for %s", pair)
		}
		return p, nil
	})

	totalProfit := b.wallet.TotalProfit()
	trades := b.orders.TotalTrades()
	avg := decimal.Zero
	if trades > 0 {
		avg = totalProfit.Div(decimal.NewFromInt(int64(trades)))
	}

	snapshotPrices := make(map[string]decimal.Decimal, len(prices))
	for symbol, p := range prices {
		snapshotPrices[symbol] = p
	}

	return domain.StatusSnapshot{
		Timestamp:         b.now(),
		Prices:            snapshotPrices,
		ActiveTrades:      b.orders.ActiveTrades(),
		Profits:           b.wallet.Profits(),
		TotalProfit:       totalProfit,
		CurrentTotalUSDT:  total,
		TradableUSDT:      b.planner.Tradable(total),
		LiquidUSDT:        b.planner.Liquid(total),
		WalletSummary:     b.wallet.AccountSummary(),
		TotalTrades:       trades,
		AvgProfitPerTrade: avg,
		ActiveOrders:      b.orders.ActiveOrderCounts(),
	}
}

func (b *Bot) appendSnapshot(s domain.StatusSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextIndex++
	b.snapshots.Push(domain.StatusSnapshotRecord{Index: b.nextIndex, Snapshot: s})
}

// LatestStatus returns the most recent snapshot.
func (b *Bot) LatestStatus() (domain.StatusSnapshotRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshots.Last()
}

// SnapshotsAfter returns retained snapshots with an index greater than index, oldest first.
func (b *Bot) SnapshotsAfter(index uint64) []domain.StatusSnapshotRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []domain.StatusSnapshotRecord
	for _, rec := range b.snapshots.Values() {
		if rec.Index > index {
			out = append(out, rec)
		}
	}
	return out
}

// AccountSummary returns a copy of all account balances and latest prices.
func (b *Bot) AccountSummary() domain.AccountSummary {
	return b.wallet.AccountSummary()
}

// CurrencyHistory returns the price and trade history of a trading-account currency.
func (b *Bot) CurrencyHistory(symbol string) (ledger.History, bool) {
	return b.wallet.CurrencyHistory(ledger.AccountTrading, symbol)
}

// ClosedTrades returns recently closed trades, oldest first.
func (b *Bot) ClosedTrades() []domain.ClosedTrade {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.orders.ClosedTrades()
}

// Allocations returns the USDT allocation per symbol.
func (b *Bot) Allocations() map[string]decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]decimal.Decimal, len(b.allocations))
	for symbol, v := range b.allocations {
		out[symbol] = v
	}
	return out
}

func pairStrings(pairs []domain.Pair) []string {
	out := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		out = append(out, pair.String())
	}
	return out
}

// Symbols returns the traded pairs.
func (b *Bot) Symbols() []domain.Pair {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]domain.Pair(nil), b.symbols...)
}
