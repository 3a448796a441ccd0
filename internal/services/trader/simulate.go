// Package trader implements exchange clients that quote prices, place limit orders
// and list balances, for live exchanges and for simulation.
package trader

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/dipbot/internal/domain"
	"go.uber.org/zap"
)

// Pricer returns the current price of a pair.
type Pricer interface {
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}

// SimulateTrader fills limit orders immediately at the limit price against an
// in-memory wallet. Prices come from a real market pricer.
type SimulateTrader struct {
	mu      sync.Mutex
	pricer  Pricer
	wallet  map[string]decimal.Decimal
	feeRate decimal.Decimal
	seq     uint64
	l       *zap.Logger
}

// NewSimulateTrader creates a simulator holding initialUSDT.
func NewSimulateTrader(l *zap.Logger, pricer Pricer, initialUSDT, feeRate decimal.Decimal) *SimulateTrader {
	if l == nil {
		l = zap.NewNop()
	}
	return &SimulateTrader{
		pricer:  pricer,
		wallet:  map[string]decimal.Decimal{domain.QuoteCurrency: initialUSDT},
		feeRate: feeRate,
		l:       l,
	}
}

func (t *SimulateTrader) GetTickerPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	return t.pricer.GetPrice(ctx, pair)
}

// PlaceLimitOrder fills the whole size at price. The fee is size*price*feeRate in USDT.
func (t *SimulateTrader) PlaceLimitOrder(ctx context.Context, pair domain.Pair, side domain.Side, price, size decimal.Decimal) (*domain.Fill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !price.IsPositive() || !size.IsPositive() {
		return nil, fmt.Errorf("invalid order: price %s, size %s", price, size)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	funds := price.Mul(size)
	fee := funds.Mul(t.feeRate)
	quote := t.wallet[pair.To]
	base := t.wallet[pair.From]

	switch side {
	case domain.SideBuy:
		if quote.LessThan(funds.Add(fee)) {
			return nil, errors.Errorf("insufficient %s balance: have %s, need %s", pair.To, quote, funds.Add(fee))
		}
		t.wallet[pair.To] = quote.Sub(funds).Sub(fee)
		t.wallet[pair.From] = base.Add(size)
	case domain.SideSell:
		if base.LessThan(size) {
			return nil, errors.Errorf("insufficient %s balance: have %s, need %s", pair.From, base, size)
		}
		t.wallet[pair.From] = base.Sub(size)
		t.wallet[pair.To] = quote.Add(funds).Sub(fee)
	default:
		return nil, errors.Errorf("unknown side %q", side)
	}

	t.seq++
	fill := &domain.Fill{
		OrderID:   fmt.Sprintf("sim_%s_%s_%d", side, pair.String(), t.seq),
		Price:     price,
		DealSize:  size,
		DealFunds: funds,
		Fee:       fee,
	}

	t.l.Debug("simulated fill",
		zap.String("order_id", fill.OrderID),
		zap.String("price", price.String()),
		zap.String("size", size.String()),
		zap.String("fee", fee.String()))

	return fill, nil
}

// ListAccountBalances returns the simulated wallet sorted by currency.
func (t *SimulateTrader) ListAccountBalances(_ context.Context, _ string) ([]domain.Balance, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	balances := make([]domain.Balance, 0, len(t.wallet))
	for currency, amount := range t.wallet {
		balances = append(balances, domain.Balance{Currency: currency, Balance: amount})
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].Currency < balances[j].Currency })

	return balances, nil
}
