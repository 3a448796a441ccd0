// Package pricer fetches current prices from exchanges.
package pricer

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/dipbot/internal/domain"
	"github.com/vadiminshakov/dipbot/pkg/retrier"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pricer returns the current price of a pair.
type Pricer interface {
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}

// Func adapts a ticker function to Pricer.
type Func func(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)

// GetPrice calls f.
func (f Func) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	return f(ctx, pair)
}

// Fetcher wraps a Pricer with per-call timeouts and retries.
type Fetcher struct {
	source  Pricer
	retrier *retrier.Retrier
	timeout time.Duration
	l       *zap.Logger
}

// NewFetcher creates a Fetcher. A nil retrier means a single attempt.
func NewFetcher(l *zap.Logger, source Pricer, r *retrier.Retrier, timeout time.Duration) *Fetcher {
	if l == nil {
		l = zap.NewNop()
	}
	if r == nil {
		r = retrier.New(retrier.WithMaxRetries(0))
	}
	return &Fetcher{source: source, retrier: r, timeout: timeout, l: l}
}

// GetPrice fetches a single price with retries. Each attempt is bounded by the
// fetcher timeout.
func (f *Fetcher) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	price, err := retrier.DoWithData(f.retrier, ctx, func(ctx context.Context) (decimal.Decimal, error) {
		return f.fetchOnce(ctx, pair)
	})
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to get price for %s", pair)
	}
	return price, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	price, err := f.source.GetPrice(ctx, pair)
	if err != nil {
		return decimal.Zero, err
	}
	if !price.IsPositive() {
		return decimal.Zero, errors.Errorf("non-positive price %s for %s", price, pair)
	}
	return price, nil
}

// FetchAll fetches prices concurrently, one attempt per pair. It returns when every
// pair has answered or ctx is done, whichever comes first. Failed and late pairs are
// left out of the result.
func (f *Fetcher) FetchAll(ctx context.Context, pairs []domain.Pair) map[string]decimal.Decimal {
	var (
		mu     sync.Mutex
		prices = make(map[string]decimal.Decimal, len(pairs))
		g      errgroup.Group
	)

	for _, pair := range pairs {
		g.Go(func() error {
			price, err := f.fetchOnce(ctx, pair)
			if err != nil {
				f.l.Warn("failed to fetch price", zap.String("pair", pair.String()), zap.Error(err))
				return nil
			}

			mu.Lock()
			prices[pair.String()] = price
			mu.Unlock()
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		f.l.Warn("price fetch deadline reached", zap.Error(ctx.Err()))
	}

	mu.Lock()
	defer mu.Unlock()
	out := make(map[string]decimal.Decimal, len(prices))
	for symbol, price := range prices {
		out[symbol] = price
	}
	return out
}
