package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/dipbot/internal/domain"
	"go.uber.org/zap"
)

const defaultPriceHistoryCap = 10000

// PriceFetcher returns the current price of a pair.
type PriceFetcher func(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)

// Wallet maps account types to accounts and keeps realized profit per symbol.
type Wallet struct {
	mu              sync.RWMutex
	accounts        map[string]*Account
	profits         map[string]decimal.Decimal
	priceHistoryCap int
	l               *zap.Logger
	now             func() time.Time
}

// Option configures a Wallet.
type Option func(*Wallet)

// WithPriceHistoryCap bounds the number of price observations kept per currency.
func WithPriceHistoryCap(n int) Option {
	return func(w *Wallet) {
		if n > 0 {
			w.priceHistoryCap = n
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *Wallet) {
		w.now = now
	}
}

// NewWallet creates an empty wallet.
func NewWallet(l *zap.Logger, opts ...Option) *Wallet {
	if l == nil {
		l = zap.NewNop()
	}
	w := &Wallet{
		accounts:        make(map[string]*Account),
		profits:         make(map[string]decimal.Decimal),
		priceHistoryCap: defaultPriceHistoryCap,
		l:               l,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// AddAccount creates an empty account if it does not exist yet.
func (w *Wallet) AddAccount(accountType string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.addAccount(accountType)
}

func (w *Wallet) addAccount(accountType string) *Account {
	if acc, ok := w.accounts[accountType]; ok {
		return acc
	}
	acc := newAccount(accountType)
	w.accounts[accountType] = acc
	w.l.Info("added account", zap.String("account", accountType))
	return acc
}

// HasAccount reports whether the account exists.
func (w *Wallet) HasAccount(accountType string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	_, ok := w.accounts[accountType]
	return ok
}

// HasCurrency reports whether the symbol exists in the account.
func (w *Wallet) HasCurrency(accountType, symbol string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	acc, ok := w.accounts[accountType]
	if !ok {
		return false
	}
	_, ok = acc.currency(symbol)
	return ok
}

// UpdateBalance sets the absolute balance, creating account and currency when absent.
func (w *Wallet) UpdateBalance(accountType, symbol string, newBalance decimal.Decimal) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.setBalance(accountType, symbol, newBalance)
}

func (w *Wallet) setBalance(accountType, symbol string, newBalance decimal.Decimal) {
	acc := w.addAccount(accountType)
	acc.setBalance(symbol, newBalance, w.priceHistoryCap)
	if newBalance.IsNegative() {
		w.l.Warn("negative balance",
			zap.String("account", accountType),
			zap.String("symbol", symbol),
			zap.String("balance", newBalance.String()))
	}
	w.l.Debug("updated balance",
		zap.String("account", accountType),
		zap.String("symbol", symbol),
		zap.String("balance", newBalance.String()))
}

// UpdatePrice appends a price observation. Unknown account or symbol is a no-op.
// A zero ts means now.
func (w *Wallet) UpdatePrice(accountType, symbol string, price decimal.Decimal, ts time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	acc, ok := w.accounts[accountType]
	if !ok {
		return
	}
	c, ok := acc.currency(symbol)
	if !ok {
		return
	}
	if ts.IsZero() {
		ts = w.now()
	}
	c.updatePrice(price, ts)
}

// RecordTrade applies a fill to the currency balance and the account's USDT balance.
// It returns false, leaving state untouched, when the account or currency is unknown.
func (w *Wallet) RecordTrade(accountType, symbol string, amount, price decimal.Decimal, side domain.Side) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	acc, ok := w.accounts[accountType]
	if !ok {
		w.l.Warn("failed to record trade: account not found",
			zap.String("account", accountType), zap.String("symbol", symbol))
		return false
	}
	c, ok := acc.currency(symbol)
	if !ok {
		w.l.Warn("failed to record trade: currency not found",
			zap.String("account", accountType), zap.String("symbol", symbol))
		return false
	}
	if side != domain.SideBuy && side != domain.SideSell {
		w.l.Warn("failed to record trade: unknown side", zap.String("side", side.String()))
		return false
	}

	c.recordTrade(amount, price, side, w.now())

	quote := amount.Mul(price)
	usdt := acc.balance(domain.QuoteCurrency)
	if side == domain.SideBuy {
		usdt = usdt.Sub(quote)
	} else {
		usdt = usdt.Add(quote)
	}
	w.setBalance(accountType, domain.QuoteCurrency, usdt)

	w.l.Info("recorded trade",
		zap.String("side", side.String()),
		zap.String("symbol", symbol),
		zap.String("amount", amount.String()),
		zap.String("price", price.String()))
	return true
}

// ChargeFee debits a fee from the given currency of the account.
func (w *Wallet) ChargeFee(accountType, symbol string, fee decimal.Decimal) {
	if fee.IsZero() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	acc, ok := w.accounts[accountType]
	if !ok {
		w.l.Warn("failed to charge fee: account not found", zap.String("account", accountType))
		return
	}
	w.setBalance(accountType, symbol, acc.balance(symbol).Sub(fee))
}

// Transfer moves amount of symbol between accounts. It never leaves the source negative.
func (w *Wallet) Transfer(fromAccount, toAccount, symbol string, amount decimal.Decimal) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	from, okFrom := w.accounts[fromAccount]
	to, okTo := w.accounts[toAccount]
	if !okFrom || !okTo {
		w.l.Warn("transfer failed: account not found",
			zap.String("from", fromAccount), zap.String("to", toAccount))
		return false
	}
	if amount.IsNegative() {
		w.l.Warn("transfer failed: negative amount", zap.String("amount", amount.String()))
		return false
	}

	available := from.balance(symbol)
	if available.LessThan(amount) {
		w.l.Warn("insufficient balance for transfer",
			zap.String("symbol", symbol),
			zap.String("account", fromAccount),
			zap.String("available", available.String()),
			zap.String("requested", amount.String()))
		return false
	}

	from.setBalance(symbol, available.Sub(amount), w.priceHistoryCap)
	to.setBalance(symbol, to.balance(symbol).Add(amount), w.priceHistoryCap)

	w.l.Info("transferred",
		zap.String("symbol", symbol),
		zap.String("amount", amount.String()),
		zap.String("from", fromAccount),
		zap.String("to", toAccount))
	return true
}

// TotalBalanceInUSDT values every balance in USDT. A failed price fetch contributes zero.
func (w *Wallet) TotalBalanceInUSDT(ctx context.Context, fetch PriceFetcher) decimal.Decimal {
	type holding struct {
		symbol  string
		balance decimal.Decimal
	}

	w.mu.RLock()
	holdings := make([]holding, 0)
	for _, acc := range w.accounts {
		for symbol, c := range acc.currencies {
			holdings = append(holdings, holding{symbol: symbol, balance: c.balance})
		}
	}
	w.mu.RUnlock()

	total := decimal.Zero
	for _, h := range holdings {
		if h.symbol == domain.QuoteCurrency {
			total = total.Add(h.balance)
			continue
		}
		if h.balance.IsZero() {
			continue
		}

		price, err := fetch(ctx, domain.Pair{From: h.symbol, To: domain.QuoteCurrency})
		if err != nil {
			w.l.Warn("failed to fetch price for valuation, counting as zero",
				zap.String("symbol", h.symbol), zap.Error(err))
			continue
		}
		total = total.Add(h.balance.Mul(price))
	}

	return total
}

// AccountSummary returns a copy of balances and latest prices per account.
func (w *Wallet) AccountSummary() domain.AccountSummary {
	w.mu.RLock()
	defer w.mu.RUnlock()

	summary := make(domain.AccountSummary, len(w.accounts))
	for accountType, acc := range w.accounts {
		currencies := make(map[string]domain.CurrencySummary, len(acc.currencies))
		for symbol, c := range acc.currencies {
			currencies[symbol] = domain.CurrencySummary{
				Balance:      c.balance,
				CurrentPrice: c.CurrentPrice(),
			}
		}
		summary[accountType] = currencies
	}
	return summary
}

// Balance returns the balance of symbol, zero when unknown.
func (w *Wallet) Balance(accountType, symbol string) decimal.Decimal {
	w.mu.RLock()
	defer w.mu.RUnlock()

	acc, ok := w.accounts[accountType]
	if !ok {
		return decimal.Zero
	}
	return acc.balance(symbol)
}

// Balances returns all balances of an account.
func (w *Wallet) Balances(accountType string) map[string]decimal.Decimal {
	w.mu.RLock()
	defer w.mu.RUnlock()

	acc, ok := w.accounts[accountType]
	if !ok {
		return map[string]decimal.Decimal{}
	}
	out := make(map[string]decimal.Decimal, len(acc.currencies))
	for symbol, c := range acc.currencies {
		out[symbol] = c.balance
	}
	return out
}

// AccountTypes returns the sorted account types.
func (w *Wallet) AccountTypes() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	types := make([]string, 0, len(w.accounts))
	for t := range w.accounts {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// CurrencyHistory returns a copy of the recorded price, buy and sell history.
func (w *Wallet) CurrencyHistory(accountType, symbol string) (History, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	acc, ok := w.accounts[accountType]
	if !ok {
		return History{}, false
	}
	c, ok := acc.currency(symbol)
	if !ok {
		return History{}, false
	}
	return c.history(), true
}

// RecordProfit adds realized profit to a symbol.
func (w *Wallet) RecordProfit(symbol string, profit decimal.Decimal) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.profits[symbol] = w.profits[symbol].Add(profit)
}

// Profits returns a copy of realized profit per symbol.
func (w *Wallet) Profits() map[string]decimal.Decimal {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make(map[string]decimal.Decimal, len(w.profits))
	for symbol, p := range w.profits {
		out[symbol] = p
	}
	return out
}

// TotalProfit sums realized profit over all symbols.
func (w *Wallet) TotalProfit() decimal.Decimal {
	w.mu.RLock()
	defer w.mu.RUnlock()

	total := decimal.Zero
	for _, p := range w.profits {
		total = total.Add(p)
	}
	return total
}
