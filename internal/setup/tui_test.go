package setup

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/dipbot/config"
)

func TestValidators(t *testing.T) {
	assert.NoError(t, validateSymbols("btc-usdt, ETH-USDT"))
	assert.Error(t, validateSymbols(""))
	assert.Error(t, validateSymbols("ETH-BTC"))
	assert.Error(t, validateSymbols("BTCUSDT"))

	assert.NoError(t, validateRatio("0.5"))
	assert.NoError(t, validateRatio("1"))
	assert.Error(t, validateRatio("1.01"))
	assert.Error(t, validateRatio("-0.1"))
	assert.Error(t, validateRatio("abc"))

	assert.NoError(t, validateMinInt(2)("2"))
	assert.Error(t, validateMinInt(2)("1"))
	assert.Error(t, validateMinInt(2)("x"))

	assert.NoError(t, validateDuration("30s"))
	assert.Error(t, validateDuration("0s"))
	assert.Error(t, validateDuration("soon"))
}

func TestBuildConfigAndLoad(t *testing.T) {
	a := defaultAnswers()
	a.Platform = config.PlatformBinance
	a.Symbols = "btc-usdt, sol-usdt"
	a.ProfitMargin = "0.02"
	a.PollInterval = "5s"
	a.MaxTotalOrders = "6"

	tmp, err := buildConfig(a)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC-USDT", "SOL-USDT"}, tmp.Symbols)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteConfig(path, tmp))

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, config.PlatformBinance, cfg.Platform)
	assert.Equal(t, []string{"BTC-USDT", "SOL-USDT"}, cfg.SymbolStrings())
	assert.Equal(t, "0.02", cfg.ProfitMargin.String())
	assert.Equal(t, 5*time.Second, cfg.PollPriceInterval)
	assert.Equal(t, 6, cfg.MaxTotalOrders)
	assert.Equal(t, ":8080", cfg.StatusAddr)
}

func TestBuildConfigRejectsInvalid(t *testing.T) {
	a := defaultAnswers()
	a.MaxTotalOrders = "1"
	_, err := buildConfig(a)
	require.Error(t, err)

	a = defaultAnswers()
	a.PollInterval = "later"
	_, err = buildConfig(a)
	require.Error(t, err)
}
