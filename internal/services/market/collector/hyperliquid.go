package collector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"
	"github.com/vadiminshakov/dipbot/internal/domain"
)

// HyperliquidKlineProvider fetches candles from the Hyperliquid Info API.
type HyperliquidKlineProvider struct {
	info *hyperliquid.Info
}

func NewHyperliquidKlineProvider(info *hyperliquid.Info) *HyperliquidKlineProvider {
	return &HyperliquidKlineProvider{info: info}
}

// parseInterval understands "1m", "15m", "1h", "4h", "1d".
func parseInterval(interval string) (time.Duration, error) {
	if len(interval) < 2 {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid interval number %q", interval)
	}

	switch interval[len(interval)-1] {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported interval unit %q", interval)
	}
}

func (p *HyperliquidKlineProvider) GetKlines(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.MarketCandle, error) {
	if p.info == nil {
		return nil, errors.New("hyperliquid info is nil")
	}
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}
	dur, err := parseInterval(interval)
	if err != nil {
		return nil, err
	}

	coin := strings.ToUpper(pair.From)
	endMs := time.Now().UnixMilli()
	// two extra candles cover rounding at the window edges
	startMs := endMs - (int64(limit)+2)*dur.Milliseconds()

	candles, err := p.info.CandlesSnapshot(ctx, coin, interval, startMs, endMs)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch candles from Hyperliquid for %s", coin)
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	out := make([]domain.MarketCandle, 0, len(candles))
	for i, c := range candles {
		candle, err := parseCandle(c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "candle %d", i)
		}
		candle.OpenTime = time.UnixMilli(c.TimeOpen)
		candle.CloseTime = time.UnixMilli(c.TimeClose)
		out = append(out, candle)
	}

	return out, nil
}
