package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"platform":      "platform",
	"symbols":       "symbols",
	"poll-interval": "poll_price_interval",
	"status-addr":   "status_addr",
	"log-level":     "log_level",
	"warmup":        "warmup_interval",
}

// RegisterFlags adds the overridable settings to fs. Only flags that are
// explicitly set override file and environment values.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("platform", d.Platform, "trading platform: simulate, binance, bybit or hyperliquid")
	fs.StringSlice("symbols", d.Symbols, "comma separated pairs, example: BTC-USDT,ETH-USDT")
	fs.Duration("poll-interval", d.PollPriceInterval, "poll market price interval")
	fs.String("status-addr", d.StatusAddr, "address of the status server, empty disables it")
	fs.String("log-level", d.LogLevel, "log level: debug or info")
	fs.String("warmup", d.WarmupInterval, "kline interval used to prefill price history, example: 1m")
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return errors.Wrapf(err, "failed to bind flag --%s", name)
		}
	}
	return nil
}
