package trader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"
	"github.com/vadiminshakov/dipbot/internal/domain"
)

// HyperliquidTrader places GTC limit orders on Hyperliquid spot. The order is
// identified by its client order id.
type HyperliquidTrader struct {
	ex          *hyperliquid.Exchange
	info        *hyperliquid.Info
	accountAddr string
	pricer      Pricer
}

func NewHyperliquidTrader(ex *hyperliquid.Exchange, accountAddr string, pricer Pricer) (*HyperliquidTrader, error) {
	if ex == nil {
		return nil, errors.New("hyperliquid exchange is nil")
	}
	return &HyperliquidTrader{
		ex:          ex,
		info:        ex.Info(),
		accountAddr: accountAddr,
		pricer:      pricer,
	}, nil
}

// cloid converts a free-form id into a Hyperliquid cloid (0x + 32 hex chars).
func cloid(id string) string {
	sum := sha256.Sum256([]byte(id))
	return "0x" + hex.EncodeToString(sum[:16])
}

func (t *HyperliquidTrader) GetTickerPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	return t.pricer.GetPrice(ctx, pair)
}

func (t *HyperliquidTrader) PlaceLimitOrder(ctx context.Context, pair domain.Pair, side domain.Side, price, size decimal.Decimal) (*domain.Fill, error) {
	size = size.RoundFloor(quantityPrecision)
	if !size.IsPositive() {
		return nil, errors.Errorf("order size rounds to zero for %s", pair)
	}

	px, _ := price.Float64()
	sz, _ := size.Float64()
	id := cloid(uuid.NewString())

	_, err := t.ex.Order(ctx, hyperliquid.CreateOrderRequest{
		Coin:          pair.From,
		IsBuy:         side == domain.SideBuy,
		Price:         px,
		Size:          sz,
		ClientOrderID: &id,
		OrderType: hyperliquid.OrderType{
			Limit: &hyperliquid.LimitOrderType{Tif: hyperliquid.TifGtc},
		},
	}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to place hyperliquid %s order", side)
	}

	return &domain.Fill{
		OrderID:   id,
		Price:     price,
		DealSize:  size,
		DealFunds: price.Mul(size),
	}, nil
}

// ListAccountBalances returns spot balances of the account address.
func (t *HyperliquidTrader) ListAccountBalances(ctx context.Context, _ string) ([]domain.Balance, error) {
	st, err := t.info.SpotUserState(ctx, t.accountAddr)
	if err != nil {
		return nil, errors.Wrap(err, "get spot user state")
	}

	balances := make([]domain.Balance, 0, len(st.Balances))
	for _, b := range st.Balances {
		total, err := decimal.NewFromString(b.Total)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s balance", b.Coin)
		}
		currency := strings.ToUpper(b.Coin)
		// spot USDC is the quote asset on hyperliquid
		if currency == "USDC" {
			currency = domain.QuoteCurrency
		}
		balances = append(balances, domain.Balance{Currency: currency, Balance: total})
	}

	return balances, nil
}
