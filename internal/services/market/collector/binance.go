// Package collector fetches historical candles used to warm up price buffers.
package collector

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/dipbot/internal/domain"
)

// BinanceKlineProvider fetches klines from the public Binance API.
type BinanceKlineProvider struct {
	client *binance.Client
}

func NewBinanceKlineProvider(client *binance.Client) *BinanceKlineProvider {
	return &BinanceKlineProvider{client: client}
}

// GetKlines returns up to limit candles, oldest first.
func (p *BinanceKlineProvider) GetKlines(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.MarketCandle, error) {
	klines, err := p.client.NewKlinesService().
		Symbol(pair.Symbol()).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from Binance for %s", pair.String())
	}

	result := make([]domain.MarketCandle, 0, len(klines))
	for i, k := range klines {
		candle, err := parseCandle(k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "candle %d", i)
		}
		candle.OpenTime = time.UnixMilli(k.OpenTime)
		candle.CloseTime = time.UnixMilli(k.CloseTime)
		result = append(result, candle)
	}

	return result, nil
}
