// Package clients builds authenticated exchange SDK clients for the configured platform.
package clients

import (
	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/dipbot/config"
)

// SimulateClient carries a keyless Binance client used for public market data.
type SimulateClient struct {
	binanceClient *binance.Client
}

// NewSimulateClient creates a client without API keys.
func NewSimulateClient() *SimulateClient {
	return &SimulateClient{binanceClient: binance.NewClient("", "")}
}

// MarketData returns the underlying public Binance client.
func (c *SimulateClient) MarketData() *binance.Client {
	return c.binanceClient
}

// New returns the SDK client for platform: *SimulateClient, *binance.Client,
// *bybit.Client or *HyperliquidClient.
func New(platform string, creds config.Credentials, hyperliquidURL string) (any, error) {
	switch platform {
	case config.PlatformSimulate:
		return NewSimulateClient(), nil
	case config.PlatformBinance:
		return binance.NewClient(creds.BinanceAPIKey, creds.BinanceAPISecret), nil
	case config.PlatformBybit:
		return bybit.NewClient().WithAuth(creds.BybitAPIKey, creds.BybitAPISecret), nil
	case config.PlatformHyperliquid:
		return NewHyperliquidClient(creds.HyperliquidPrivateKey, hyperliquidURL)
	default:
		return nil, errors.Errorf("unsupported platform %q", platform)
	}
}
