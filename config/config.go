// Package config loads the bot configuration from YAML, environment and flags.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vadiminshakov/dipbot/internal/domain"
)

// Supported platforms.
const (
	PlatformSimulate    = "simulate"
	PlatformBinance     = "binance"
	PlatformBybit       = "bybit"
	PlatformHyperliquid = "hyperliquid"
)

const envPrefix = "DIPBOT"

// DefaultSymbols are traded when no symbols are configured.
var DefaultSymbols = []string{"BTC-USDT", "ETH-USDT", "XRP-USDT", "ADA-USDT", "DOT-USDT"}

type Config struct {
	Platform               string
	Symbols                []domain.Pair
	ProfitMargin           decimal.Decimal
	MakerFee               decimal.Decimal
	TakerFee               decimal.Decimal
	SimulatedFeeRate       decimal.Decimal
	LiquidRatio            decimal.Decimal
	InitialBalance         decimal.Decimal
	SymbolWeights          map[string]decimal.Decimal
	PriceHistoryLength     int
	PollPriceInterval      time.Duration
	// MaxTotalOrders caps outstanding orders across all symbols. Buys always leave
	// one slot free for an exit sell, so at most MaxTotalOrders-1 buys are open
	// at once; the minimum accepted value is 2.
	MaxTotalOrders         int
	MaxOpenTradesPerSymbol int
	MaxRetries             int
	RetryDelay             time.Duration
	// ExchangeTimeout bounds each exchange call. Tick price fetches are further
	// bounded by PollPriceInterval.
	ExchangeTimeout        time.Duration
	RequestsPerSecond      float64
	WarmupInterval         string
	StatusAddr             string
	TLSDomain              string
	TLSCacheDir            string
	HyperliquidURL         string
	LogLevel               string
}

// ConfigTmp is the on-disk representation. Decimals are kept as strings.
type ConfigTmp struct {
	Platform               string            `yaml:"platform" mapstructure:"platform"`
	Symbols                []string          `yaml:"symbols" mapstructure:"symbols"`
	ProfitMargin           string            `yaml:"profit_margin" mapstructure:"profit_margin"`
	MakerFee               string            `yaml:"maker_fee" mapstructure:"maker_fee"`
	TakerFee               string            `yaml:"taker_fee" mapstructure:"taker_fee"`
	SimulatedFeeRate       string            `yaml:"simulated_fee_rate" mapstructure:"simulated_fee_rate"`
	LiquidRatio            string            `yaml:"liquid_ratio" mapstructure:"liquid_ratio"`
	InitialBalance         string            `yaml:"initial_balance" mapstructure:"initial_balance"`
	SymbolWeights          map[string]string `yaml:"symbol_weights,omitempty" mapstructure:"symbol_weights"`
	PriceHistoryLength     int               `yaml:"price_history_length" mapstructure:"price_history_length"`
	PollPriceInterval      time.Duration     `yaml:"poll_price_interval" mapstructure:"poll_price_interval"`
	MaxTotalOrders         int               `yaml:"max_total_orders" mapstructure:"max_total_orders"`
	MaxOpenTradesPerSymbol int               `yaml:"max_open_trades_per_symbol" mapstructure:"max_open_trades_per_symbol"`
	MaxRetries             int               `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelay             time.Duration     `yaml:"retry_delay" mapstructure:"retry_delay"`
	ExchangeTimeout        time.Duration     `yaml:"exchange_timeout" mapstructure:"exchange_timeout"`
	RequestsPerSecond      float64           `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	WarmupInterval         string            `yaml:"warmup_interval,omitempty" mapstructure:"warmup_interval"`
	StatusAddr             string            `yaml:"status_addr,omitempty" mapstructure:"status_addr"`
	TLSDomain              string            `yaml:"tls_domain,omitempty" mapstructure:"tls_domain"`
	TLSCacheDir            string            `yaml:"tls_cache_dir,omitempty" mapstructure:"tls_cache_dir"`
	HyperliquidURL         string            `yaml:"hyperliquid_url,omitempty" mapstructure:"hyperliquid_url"`
	LogLevel               string            `yaml:"log_level" mapstructure:"log_level"`
}

// Defaults returns the default on-disk configuration.
func Defaults() ConfigTmp {
	return ConfigTmp{
		Platform:               PlatformSimulate,
		Symbols:                append([]string(nil), DefaultSymbols...),
		ProfitMargin:           "0.01",
		MakerFee:               "0.001",
		TakerFee:               "0.001",
		SimulatedFeeRate:       "0.001",
		LiquidRatio:            "0.5",
		InitialBalance:         "1000",
		SymbolWeights:          map[string]string{},
		PriceHistoryLength:     120,
		PollPriceInterval:      time.Second,
		MaxTotalOrders:         10,
		MaxOpenTradesPerSymbol: 1,
		MaxRetries:             3,
		RetryDelay:             5 * time.Second,
		ExchangeTimeout:        10 * time.Second,
		RequestsPerSecond:      10,
		TLSCacheDir:            "certs",
		HyperliquidURL:         "https://api.hyperliquid.xyz",
		LogLevel:               "info",
	}
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("platform", d.Platform)
	v.SetDefault("symbols", d.Symbols)
	v.SetDefault("profit_margin", d.ProfitMargin)
	v.SetDefault("maker_fee", d.MakerFee)
	v.SetDefault("taker_fee", d.TakerFee)
	v.SetDefault("simulated_fee_rate", d.SimulatedFeeRate)
	v.SetDefault("liquid_ratio", d.LiquidRatio)
	v.SetDefault("initial_balance", d.InitialBalance)
	v.SetDefault("symbol_weights", d.SymbolWeights)
	v.SetDefault("price_history_length", d.PriceHistoryLength)
	v.SetDefault("poll_price_interval", d.PollPriceInterval)
	v.SetDefault("max_total_orders", d.MaxTotalOrders)
	v.SetDefault("max_open_trades_per_symbol", d.MaxOpenTradesPerSymbol)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("retry_delay", d.RetryDelay)
	v.SetDefault("exchange_timeout", d.ExchangeTimeout)
	v.SetDefault("requests_per_second", d.RequestsPerSecond)
	v.SetDefault("warmup_interval", d.WarmupInterval)
	v.SetDefault("status_addr", d.StatusAddr)
	v.SetDefault("tls_domain", d.TLSDomain)
	v.SetDefault("tls_cache_dir", d.TLSCacheDir)
	v.SetDefault("hyperliquid_url", d.HyperliquidURL)
	v.SetDefault("log_level", d.LogLevel)
}

// Load reads the YAML file at path (optional), overlays DIPBOT_* environment
// variables and any changed flags, and validates the result.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "failed to read config %s", path)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return Config{}, err
		}
	}

	var tmp ConfigTmp
	if err := v.Unmarshal(&tmp); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode config")
	}

	return tmp.Parse()
}

// Parse converts and validates the on-disk representation.
func (c ConfigTmp) Parse() (Config, error) {
	cfg := Config{
		Platform:               strings.ToLower(strings.TrimSpace(c.Platform)),
		PriceHistoryLength:     c.PriceHistoryLength,
		PollPriceInterval:      c.PollPriceInterval,
		MaxTotalOrders:         c.MaxTotalOrders,
		MaxOpenTradesPerSymbol: c.MaxOpenTradesPerSymbol,
		MaxRetries:             c.MaxRetries,
		RetryDelay:             c.RetryDelay,
		ExchangeTimeout:        c.ExchangeTimeout,
		RequestsPerSecond:      c.RequestsPerSecond,
		WarmupInterval:         c.WarmupInterval,
		StatusAddr:             c.StatusAddr,
		TLSDomain:              c.TLSDomain,
		TLSCacheDir:            c.TLSCacheDir,
		HyperliquidURL:         c.HyperliquidURL,
		LogLevel:               c.LogLevel,
	}

	symbols := c.Symbols
	if len(symbols) == 0 {
		symbols = DefaultSymbols
	}
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		pair, err := domain.ParsePair(s)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'symbols' param in config: %w", err)
		}
		if pair.To != domain.QuoteCurrency {
			return Config{}, fmt.Errorf("incorrect 'symbols' param in config: %s must be quoted in %s", pair, domain.QuoteCurrency)
		}
		if _, dup := seen[pair.String()]; dup {
			continue
		}
		seen[pair.String()] = struct{}{}
		cfg.Symbols = append(cfg.Symbols, pair)
	}

	decimals := []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"profit_margin", c.ProfitMargin, &cfg.ProfitMargin},
		{"maker_fee", c.MakerFee, &cfg.MakerFee},
		{"taker_fee", c.TakerFee, &cfg.TakerFee},
		{"simulated_fee_rate", c.SimulatedFeeRate, &cfg.SimulatedFeeRate},
		{"liquid_ratio", c.LiquidRatio, &cfg.LiquidRatio},
		{"initial_balance", c.InitialBalance, &cfg.InitialBalance},
	}
	for _, d := range decimals {
		v, err := decimal.NewFromString(strings.TrimSpace(d.value))
		if err != nil {
			return Config{}, fmt.Errorf("incorrect '%s' param in config (must be a decimal), error: %w", d.name, err)
		}
		*d.dst = v
	}

	if len(c.SymbolWeights) > 0 {
		cfg.SymbolWeights = make(map[string]decimal.Decimal, len(c.SymbolWeights))
		for symbol, w := range c.SymbolWeights {
			pair, err := domain.ParsePair(symbol)
			if err != nil {
				return Config{}, fmt.Errorf("incorrect 'symbol_weights' key: %w", err)
			}
			weight, err := decimal.NewFromString(strings.TrimSpace(w))
			if err != nil {
				return Config{}, fmt.Errorf("incorrect weight for %s (must be a decimal), error: %w", symbol, err)
			}
			cfg.SymbolWeights[pair.String()] = weight
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch c.Platform {
	case PlatformSimulate, PlatformBinance, PlatformBybit, PlatformHyperliquid:
	default:
		return fmt.Errorf("unsupported platform %q", c.Platform)
	}

	one := decimal.NewFromInt(1)
	switch {
	case len(c.Symbols) == 0:
		return errors.New("at least one symbol is required")
	case c.ProfitMargin.IsNegative():
		return errors.New("profit_margin must not be negative")
	case c.MakerFee.IsNegative() || c.TakerFee.IsNegative() || c.SimulatedFeeRate.IsNegative():
		return errors.New("fees must not be negative")
	case c.LiquidRatio.IsNegative() || c.LiquidRatio.GreaterThan(one):
		return errors.New("liquid_ratio must be in [0, 1]")
	case c.Platform == PlatformSimulate && !c.InitialBalance.IsPositive():
		return errors.New("initial_balance must be positive")
	case c.PriceHistoryLength < 2:
		return errors.New("price_history_length must be at least 2")
	case c.PollPriceInterval <= 0:
		return errors.New("poll_price_interval must be positive")
	case c.MaxTotalOrders < 2:
		return errors.New("max_total_orders must be at least 2 so an exit sell always fits")
	case c.MaxOpenTradesPerSymbol < 1:
		return errors.New("max_open_trades_per_symbol must be at least 1")
	case c.MaxRetries < 0:
		return errors.New("max_retries must not be negative")
	case c.ExchangeTimeout <= 0:
		return errors.New("exchange_timeout must be positive")
	}

	return nil
}

// SymbolStrings returns the configured pairs as "BASE-QUOTE" strings.
func (c Config) SymbolStrings() []string {
	out := make([]string, 0, len(c.Symbols))
	for _, p := range c.Symbols {
		out = append(out, p.String())
	}
	return out
}

// Credentials are read from the environment only.
type Credentials struct {
	BinanceAPIKey         string
	BinanceAPISecret      string
	BybitAPIKey           string
	BybitAPISecret        string
	HyperliquidPrivateKey string
}

// LoadCredentials reads exchange keys for the platform and fails when they are missing.
func LoadCredentials(platform string) (Credentials, error) {
	creds := Credentials{
		BinanceAPIKey:         os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret:      os.Getenv("BINANCE_API_SECRET"),
		BybitAPIKey:           os.Getenv("BYBIT_API_KEY"),
		BybitAPISecret:        os.Getenv("BYBIT_API_SECRET"),
		HyperliquidPrivateKey: os.Getenv("HYPERLIQUID_PRIVATE_KEY"),
	}

	switch platform {
	case PlatformBinance:
		if creds.BinanceAPIKey == "" || creds.BinanceAPISecret == "" {
			return creds, errors.New("BINANCE_API_KEY and BINANCE_API_SECRET must be set")
		}
	case PlatformBybit:
		if creds.BybitAPIKey == "" || creds.BybitAPISecret == "" {
			return creds, errors.New("BYBIT_API_KEY and BYBIT_API_SECRET must be set")
		}
	case PlatformHyperliquid:
		if creds.HyperliquidPrivateKey == "" {
			return creds, errors.New("HYPERLIQUID_PRIVATE_KEY must be set")
		}
	}

	return creds, nil
}
