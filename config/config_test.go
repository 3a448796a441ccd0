package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, PlatformSimulate, cfg.Platform)
	assert.Equal(t, DefaultSymbols, cfg.SymbolStrings())
	assert.True(t, cfg.ProfitMargin.Equal(decimal.RequireFromString("0.01")))
	assert.True(t, cfg.LiquidRatio.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, cfg.InitialBalance.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, 120, cfg.PriceHistoryLength)
	assert.Equal(t, time.Second, cfg.PollPriceInterval)
	assert.Equal(t, 10, cfg.MaxTotalOrders)
	assert.Equal(t, 1, cfg.MaxOpenTradesPerSymbol)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Empty(t, cfg.StatusAddr)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
platform: binance
symbols: [btc-usdt, ETH-USDT, BTC-USDT]
profit_margin: "0.02"
liquid_ratio: "0.3"
price_history_length: 5
poll_price_interval: 2s
max_total_orders: 4
symbol_weights:
  BTC-USDT: "0.6"
  ETH-USDT: "0.4"
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, PlatformBinance, cfg.Platform)
	assert.Equal(t, []string{"BTC-USDT", "ETH-USDT"}, cfg.SymbolStrings())
	assert.True(t, cfg.ProfitMargin.Equal(decimal.RequireFromString("0.02")))
	assert.True(t, cfg.LiquidRatio.Equal(decimal.RequireFromString("0.3")))
	assert.Equal(t, 5, cfg.PriceHistoryLength)
	assert.Equal(t, 2*time.Second, cfg.PollPriceInterval)
	assert.Equal(t, 4, cfg.MaxTotalOrders)
	require.Len(t, cfg.SymbolWeights, 2)
	assert.True(t, cfg.SymbolWeights["BTC-USDT"].Equal(decimal.RequireFromString("0.6")))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DIPBOT_PLATFORM", "bybit")
	t.Setenv("DIPBOT_MAX_TOTAL_ORDERS", "6")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, PlatformBybit, cfg.Platform)
	assert.Equal(t, 6, cfg.MaxTotalOrders)
}

func TestLoadFlagOverride(t *testing.T) {
	path := writeConfig(t, "platform: binance\n")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--platform=hyperliquid", "--symbols=SOL-USDT"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, PlatformHyperliquid, cfg.Platform)
	assert.Equal(t, []string{"SOL-USDT"}, cfg.SymbolStrings())
}

func TestUnchangedFlagsDoNotOverride(t *testing.T) {
	path := writeConfig(t, "platform: binance\n")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(nil))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, PlatformBinance, cfg.Platform)
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *ConfigTmp)
	}{
		{"unknown platform", func(c *ConfigTmp) { c.Platform = "kraken" }},
		{"bad symbol", func(c *ConfigTmp) { c.Symbols = []string{"BTCUSDT"} }},
		{"non usdt quote", func(c *ConfigTmp) { c.Symbols = []string{"ETH-BTC"} }},
		{"bad decimal", func(c *ConfigTmp) { c.ProfitMargin = "abc" }},
		{"ratio above one", func(c *ConfigTmp) { c.LiquidRatio = "1.5" }},
		{"negative ratio", func(c *ConfigTmp) { c.LiquidRatio = "-0.1" }},
		{"short history", func(c *ConfigTmp) { c.PriceHistoryLength = 1 }},
		{"single order slot", func(c *ConfigTmp) { c.MaxTotalOrders = 1 }},
		{"no trades per symbol", func(c *ConfigTmp) { c.MaxOpenTradesPerSymbol = 0 }},
		{"zero poll interval", func(c *ConfigTmp) { c.PollPriceInterval = 0 }},
		{"negative fee", func(c *ConfigTmp) { c.MakerFee = "-0.001" }},
		{"bad weight", func(c *ConfigTmp) { c.SymbolWeights = map[string]string{"BTC-USDT": "x"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmp := Defaults()
			tt.mutate(&tmp)
			_, err := tmp.Parse()
			require.Error(t, err)
		})
	}
}

func TestParseEmptySymbolsFallsBackToDefaults(t *testing.T) {
	tmp := Defaults()
	tmp.Symbols = nil

	cfg, err := tmp.Parse()
	require.NoError(t, err)
	assert.Len(t, cfg.Symbols, len(DefaultSymbols))
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", "")
	t.Setenv("BINANCE_API_SECRET", "")

	_, err := LoadCredentials(PlatformBinance)
	require.Error(t, err)

	_, err = LoadCredentials(PlatformSimulate)
	require.NoError(t, err)

	t.Setenv("BINANCE_API_KEY", "key")
	t.Setenv("BINANCE_API_SECRET", "secret")
	creds, err := LoadCredentials(PlatformBinance)
	require.NoError(t, err)
	assert.Equal(t, "key", creds.BinanceAPIKey)

	t.Setenv("HYPERLIQUID_PRIVATE_KEY", "")
	_, err = LoadCredentials(PlatformHyperliquid)
	require.Error(t, err)
}
