package internal

import (
	"testing"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/dipbot/config"
	"github.com/vadiminshakov/dipbot/internal/clients"
	"github.com/vadiminshakov/dipbot/internal/services/market/collector"
	"github.com/vadiminshakov/dipbot/internal/services/trader"
)

func defaultConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Defaults().Parse()
	require.NoError(t, err)
	return cfg
}

func TestNewServiceProvider(t *testing.T) {
	cfg := defaultConfig(t)

	tests := []struct {
		name       string
		client     any
		wantTrader any
		wantKlines any
	}{
		{"simulate", clients.NewSimulateClient(), &trader.SimulateTrader{}, &collector.BinanceKlineProvider{}},
		{"binance", binance.NewClient("k", "s"), &trader.BinanceTrader{}, &collector.BinanceKlineProvider{}},
		{"bybit", bybit.NewClient(), &trader.BybitTrader{}, &collector.BinanceKlineProvider{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := newServiceProvider(tt.client, zap.NewNop())
			require.NoError(t, err)

			tr, err := p.Trader(cfg)
			require.NoError(t, err)
			assert.IsType(t, tt.wantTrader, tr)
			assert.IsType(t, tt.wantKlines, p.KlineProvider())
		})
	}
}

func TestNewServiceProviderUnknownClient(t *testing.T) {
	_, err := newServiceProvider("not a client", zap.NewNop())
	require.Error(t, err)
}

func TestNewBotForPlatformSimulate(t *testing.T) {
	cfg := defaultConfig(t)

	bot, err := NewBotForPlatform(nil, cfg, config.Credentials{})
	require.NoError(t, err)
	assert.Len(t, bot.Symbols(), len(cfg.Symbols))
	assert.Empty(t, bot.Allocations())
}

func TestNewBotForPlatformUnknown(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Platform = "kraken"

	_, err := NewBotForPlatform(zap.NewNop(), cfg, config.Credentials{})
	require.Error(t, err)
}
