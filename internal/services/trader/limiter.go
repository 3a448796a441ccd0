package trader

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/dipbot/internal/domain"
	"golang.org/x/time/rate"
)

// Client is the exchange capability set every trader implements.
type Client interface {
	GetTickerPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
	PlaceLimitOrder(ctx context.Context, pair domain.Pair, side domain.Side, price, size decimal.Decimal) (*domain.Fill, error)
	ListAccountBalances(ctx context.Context, accountType string) ([]domain.Balance, error)
}

// RateLimited throttles all calls of the wrapped client through one token bucket.
type RateLimited struct {
	next    Client
	limiter *rate.Limiter
}

// NewRateLimited wraps next. A non-positive rps disables limiting.
func NewRateLimited(next Client, rps float64, burst int) *RateLimited {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (r *RateLimited) wait(ctx context.Context) error {
	return errors.Wrap(r.limiter.Wait(ctx), "rate limiter")
}

func (r *RateLimited) GetTickerPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	if err := r.wait(ctx); err != nil {
		return decimal.Zero, err
	}
	return r.next.GetTickerPrice(ctx, pair)
}

func (r *RateLimited) PlaceLimitOrder(ctx context.Context, pair domain.Pair, side domain.Side, price, size decimal.Decimal) (*domain.Fill, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.PlaceLimitOrder(ctx, pair, side, price, size)
}

func (r *RateLimited) ListAccountBalances(ctx context.Context, accountType string) ([]domain.Balance, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.ListAccountBalances(ctx, accountType)
}
