package trader

import (
	"context"
	"strconv"

	"github.com/adshao/go-binance/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/dipbot/internal/domain"
	"go.uber.org/zap"
)

const (
	binanceClientPrefix = "dipbot-"
	quantityPrecision   = 5
	pricePrecision      = 8
)

// BinanceTrader places GTC limit orders on the Binance spot market.
type BinanceTrader struct {
	client *binance.Client
	pricer Pricer
	l      *zap.Logger
}

func NewBinanceTrader(l *zap.Logger, client *binance.Client, pricer Pricer) *BinanceTrader {
	if l == nil {
		l = zap.NewNop()
	}
	return &BinanceTrader{client: client, pricer: pricer, l: l}
}

func (t *BinanceTrader) GetTickerPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	return t.pricer.GetPrice(ctx, pair)
}

func (t *BinanceTrader) PlaceLimitOrder(ctx context.Context, pair domain.Pair, side domain.Side, price, size decimal.Decimal) (*domain.Fill, error) {
	size = size.RoundFloor(quantityPrecision)
	price = price.RoundFloor(pricePrecision)
	if !size.IsPositive() {
		return nil, errors.Errorf("order size rounds to zero for %s", pair)
	}

	sideType := binance.SideTypeBuy
	if side == domain.SideSell {
		sideType = binance.SideTypeSell
	}

	resp, err := t.client.NewCreateOrderService().Symbol(pair.Symbol()).
		Side(sideType).Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Quantity(size.String()).
		Price(price.String()).
		NewClientOrderID(binanceClientPrefix + uuid.NewString()[:8]).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create binance %s order", side)
	}

	return binanceFill(t.l, resp, pair, side, price, size)
}

// binanceFill converts an order response into a fill. Requested price and size are
// used when nothing has executed yet. A buy commission taken in the base asset
// shrinks the received size; its quote value is reported as the fee, so the quote
// debit still equals what was spent.
func binanceFill(l *zap.Logger, resp *binance.CreateOrderResponse, pair domain.Pair, side domain.Side, price, size decimal.Decimal) (*domain.Fill, error) {
	fill := &domain.Fill{
		OrderID:  strconv.FormatInt(resp.OrderID, 10),
		Price:    price,
		DealSize: size,
	}

	executed, err := parseOptional(resp.ExecutedQuantity)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse executed quantity")
	}
	quote, err := parseOptional(resp.CummulativeQuoteQuantity)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse quote quantity")
	}
	if executed.IsPositive() {
		fill.DealSize = executed
		if quote.IsPositive() {
			fill.DealFunds = quote
			fill.Price = quote.Div(executed)
		}
	}

	baseCommission := decimal.Zero
	for _, f := range resp.Fills {
		if f == nil {
			continue
		}
		commission, err := parseOptional(f.Commission)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse commission")
		}
		switch f.CommissionAsset {
		case pair.To:
			fill.Fee = fill.Fee.Add(commission)
		case pair.From:
			fill.Fee = fill.Fee.Add(commission.Mul(fill.Price))
			baseCommission = baseCommission.Add(commission)
		default:
			if commission.IsPositive() {
				l.Warn("commission paid in a third asset is not recorded",
					zap.String("order_id", fill.OrderID),
					zap.String("pair", pair.String()),
					zap.String("asset", f.CommissionAsset),
					zap.String("commission", commission.String()))
			}
		}
	}

	if side == domain.SideBuy && baseCommission.IsPositive() {
		fill.DealSize = fill.DealSize.Sub(baseCommission)
		if !fill.DealSize.IsPositive() {
			return nil, errors.Errorf("commission %s %s exceeds executed quantity", baseCommission, pair.From)
		}
		if fill.DealFunds.IsZero() {
			fill.DealFunds = fill.Price.Mul(fill.DealSize.Add(baseCommission))
		}
	}

	return fill, nil
}

func parseOptional(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// ListAccountBalances returns free spot balances. Binance has a single spot account,
// so accountType is ignored.
func (t *BinanceTrader) ListAccountBalances(ctx context.Context, _ string) ([]domain.Balance, error) {
	account, err := t.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get binance account balance")
	}

	balances := make([]domain.Balance, 0, len(account.Balances))
	for _, b := range account.Balances {
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s balance", b.Asset)
		}
		if free.IsZero() {
			continue
		}
		balances = append(balances, domain.Balance{Currency: b.Asset, Balance: free})
	}

	return balances, nil
}
