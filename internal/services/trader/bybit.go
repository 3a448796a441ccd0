package trader

import (
	"context"

	"github.com/google/uuid"
	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/dipbot/internal/domain"
)

const bybitUnifiedAccount = "UNIFIED"

// BybitTrader places limit orders on the Bybit V5 spot market. Bybit confirms
// acceptance only, so the fill mirrors the request and carries no fee.
type BybitTrader struct {
	client *bybit.Client
	pricer Pricer
}

func NewBybitTrader(client *bybit.Client, pricer Pricer) *BybitTrader {
	return &BybitTrader{client: client, pricer: pricer}
}

func (t *BybitTrader) GetTickerPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	return t.pricer.GetPrice(ctx, pair)
}

func (t *BybitTrader) PlaceLimitOrder(ctx context.Context, pair domain.Pair, side domain.Side, price, size decimal.Decimal) (*domain.Fill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size = size.RoundFloor(quantityPrecision)
	price = price.RoundFloor(pricePrecision)
	if !size.IsPositive() {
		return nil, errors.Errorf("order size rounds to zero for %s", pair)
	}

	bybitSide := bybit.SideBuy
	if side == domain.SideSell {
		bybitSide = bybit.SideSell
	}
	priceStr := price.String()
	linkID := uuid.NewString()

	resp, err := t.client.V5().Order().CreateOrder(bybit.V5CreateOrderParam{
		Category:    "spot",
		Symbol:      bybit.SymbolV5(pair.Symbol()),
		Side:        bybitSide,
		OrderType:   bybit.OrderTypeLimit,
		Qty:         size.String(),
		Price:       &priceStr,
		OrderLinkID: &linkID,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create bybit %s order", side)
	}

	orderID := resp.Result.OrderID
	if orderID == "" {
		orderID = linkID
	}

	return &domain.Fill{
		OrderID:   orderID,
		Price:     price,
		DealSize:  size,
		DealFunds: price.Mul(size),
	}, nil
}

// ListAccountBalances returns wallet balances of the unified trading account.
func (t *BybitTrader) ListAccountBalances(ctx context.Context, _ string) ([]domain.Balance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := t.client.V5().Account().GetWalletBalance(bybit.AccountTypeV5(bybitUnifiedAccount), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get bybit wallet balance")
	}
	if len(res.Result.List) == 0 {
		return nil, nil
	}

	balances := make([]domain.Balance, 0, len(res.Result.List[0].Coin))
	for _, coin := range res.Result.List[0].Coin {
		amount, err := decimal.NewFromString(coin.WalletBalance)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s balance", coin.Coin)
		}
		balances = append(balances, domain.Balance{Currency: string(coin.Coin), Balance: amount})
	}

	return balances, nil
}
