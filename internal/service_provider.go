package internal

import (
	"fmt"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/dipbot/config"
	"github.com/vadiminshakov/dipbot/internal/clients"
	"github.com/vadiminshakov/dipbot/internal/services/market/collector"
	"github.com/vadiminshakov/dipbot/internal/services/orders"
	"github.com/vadiminshakov/dipbot/internal/services/pricer"
	"github.com/vadiminshakov/dipbot/internal/services/trader"
)

// serviceProvider builds the platform-specific exchange services.
type serviceProvider interface {
	Trader(cfg config.Config) (trader.Client, error)
	KlineProvider() collector.KlineProvider
}

// newServiceProvider dispatches on the SDK client type returned by clients.New.
func newServiceProvider(client any, l *zap.Logger) (serviceProvider, error) {
	switch c := client.(type) {
	case *binance.Client:
		return &binanceProvider{client: c, l: l}, nil
	case *bybit.Client:
		return &bybitProvider{client: c, market: binance.NewClient("", "")}, nil
	case *clients.SimulateClient:
		return &simulateProvider{client: c, l: l}, nil
	case *clients.HyperliquidClient:
		return &hyperliquidProvider{client: c}, nil
	default:
		return nil, fmt.Errorf("unsupported client type: %T", client)
	}
}

type binanceProvider struct {
	client *binance.Client
	l      *zap.Logger
}

func (p *binanceProvider) Trader(config.Config) (trader.Client, error) {
	return trader.NewBinanceTrader(p.l.Named("binance"), p.client, pricer.NewBinancePricer(p.client)), nil
}
func (p *binanceProvider) KlineProvider() collector.KlineProvider {
	return collector.NewBinanceKlineProvider(p.client)
}

// bybitProvider takes warm-up candles from the public Binance API.
type bybitProvider struct {
	client *bybit.Client
	market *binance.Client
}

func (p *bybitProvider) Trader(config.Config) (trader.Client, error) {
	return trader.NewBybitTrader(p.client, pricer.NewBybitPricer(p.client)), nil
}
func (p *bybitProvider) KlineProvider() collector.KlineProvider {
	return collector.NewBinanceKlineProvider(p.market)
}

type simulateProvider struct {
	client *clients.SimulateClient
	l      *zap.Logger
}

func (p *simulateProvider) Trader(cfg config.Config) (trader.Client, error) {
	source := pricer.NewBinancePricer(p.client.MarketData())
	return trader.NewSimulateTrader(p.l.Named("simulator"), source, cfg.InitialBalance, cfg.SimulatedFeeRate), nil
}
func (p *simulateProvider) KlineProvider() collector.KlineProvider {
	return collector.NewBinanceKlineProvider(p.client.MarketData())
}

type hyperliquidProvider struct {
	client *clients.HyperliquidClient
}

func (p *hyperliquidProvider) Trader(config.Config) (trader.Client, error) {
	return trader.NewHyperliquidTrader(p.client.Exchange(), p.client.AccountAddress(), pricer.NewHyperliquidPricer(p.client.Info()))
}
func (p *hyperliquidProvider) KlineProvider() collector.KlineProvider {
	return collector.NewHyperliquidKlineProvider(p.client.Info())
}

// NewBotForPlatform builds the exchange client for cfg.Platform, throttles it to
// cfg.RequestsPerSecond and wires a Bot around it.
func NewBotForPlatform(l *zap.Logger, cfg config.Config, creds config.Credentials) (*Bot, error) {
	if l == nil {
		l = zap.NewNop()
	}

	client, err := clients.New(cfg.Platform, creds, cfg.HyperliquidURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create exchange client")
	}

	provider, err := newServiceProvider(client, l)
	if err != nil {
		return nil, err
	}

	t, err := provider.Trader(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s trader", cfg.Platform)
	}

	var exchange orders.ExchangeClient = trader.NewRateLimited(t, cfg.RequestsPerSecond, 1)

	return NewBot(l, cfg, exchange, provider.KlineProvider())
}
