package collector

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/dipbot/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// KlineProvider fetches historical candles for a pair.
type KlineProvider interface {
	GetKlines(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.MarketCandle, error)
}

func parseCandle(open, high, low, closePrice, volume string) (domain.MarketCandle, error) {
	var (
		c   domain.MarketCandle
		err error
	)
	if c.Open, err = decimal.NewFromString(open); err != nil {
		return c, errors.Wrap(err, "parse open")
	}
	if c.High, err = decimal.NewFromString(high); err != nil {
		return c, errors.Wrap(err, "parse high")
	}
	if c.Low, err = decimal.NewFromString(low); err != nil {
		return c, errors.Wrap(err, "parse low")
	}
	if c.Close, err = decimal.NewFromString(closePrice); err != nil {
		return c, errors.Wrap(err, "parse close")
	}
	if c.Volume, err = decimal.NewFromString(volume); err != nil {
		return c, errors.Wrap(err, "parse volume")
	}
	return c, nil
}

// ClosePrices fetches the last limit candles for every pair and returns their close
// prices keyed by pair string, oldest first. Pairs that fail are logged and skipped.
func ClosePrices(ctx context.Context, l *zap.Logger, provider KlineProvider, pairs []domain.Pair, interval string, limit int) map[string][]decimal.Decimal {
	var (
		mu  sync.Mutex
		out = make(map[string][]decimal.Decimal, len(pairs))
		g   errgroup.Group
	)

	for _, pair := range pairs {
		g.Go(func() error {
			candles, err := provider.GetKlines(ctx, pair, interval, limit)
			if err != nil {
				l.Warn("warm-up candles unavailable", zap.String("pair", pair.String()), zap.Error(err))
				return nil
			}

			closes := make([]decimal.Decimal, 0, len(candles))
			for _, c := range candles {
				closes = append(closes, c.Close)
			}

			mu.Lock()
			out[pair.String()] = closes
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return out
}
