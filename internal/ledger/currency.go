// Package ledger keeps the bot's internal bookkeeping: balances, price snapshots,
// trade history and realized profit, grouped into accounts inside a wallet.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/dipbot/internal/domain"
	"github.com/vadiminshakov/dipbot/pkg/ringbuffer"
)

// PricePoint is a single observed price.
type PricePoint struct {
	Time  time.Time       `json:"time"`
	Price decimal.Decimal `json:"price"`
}

// TradeRecord is a single buy or sell applied to a currency.
type TradeRecord struct {
	Time   time.Time       `json:"time"`
	Amount decimal.Decimal `json:"amount"`
	Price  decimal.Decimal `json:"price"`
}

// History is a copy of a currency's recorded observations.
type History struct {
	PriceHistory []PricePoint  `json:"price_history"`
	BuyHistory   []TradeRecord `json:"buy_history"`
	SellHistory  []TradeRecord `json:"sell_history"`
}

// Currency tracks one asset inside an account.
type Currency struct {
	Symbol       string
	balance      decimal.Decimal
	priceHistory *ringbuffer.Ring[PricePoint]
	buyHistory   []TradeRecord
	sellHistory  []TradeRecord
	currentPrice *decimal.Decimal
}

func newCurrency(symbol string, balance decimal.Decimal, priceHistoryCap int) *Currency {
	return &Currency{
		Symbol:       symbol,
		balance:      balance,
		priceHistory: ringbuffer.New[PricePoint](priceHistoryCap),
	}
}

// Balance returns the current balance.
func (c *Currency) Balance() decimal.Decimal {
	return c.balance
}

// CurrentPrice returns the latest observed price, nil before the first update.
func (c *Currency) CurrentPrice() *decimal.Decimal {
	if c.currentPrice == nil {
		return nil
	}
	p := *c.currentPrice
	return &p
}

func (c *Currency) updatePrice(price decimal.Decimal, ts time.Time) {
	c.priceHistory.Push(PricePoint{Time: ts, Price: price})
	c.currentPrice = &price
}

func (c *Currency) recordTrade(amount, price decimal.Decimal, side domain.Side, ts time.Time) {
	record := TradeRecord{Time: ts, Amount: amount, Price: price}
	switch side {
	case domain.SideBuy:
		c.buyHistory = append(c.buyHistory, record)
		c.balance = c.balance.Add(amount)
	case domain.SideSell:
		c.sellHistory = append(c.sellHistory, record)
		c.balance = c.balance.Sub(amount)
	}
}

func (c *Currency) history() History {
	return History{
		PriceHistory: c.priceHistory.Values(),
		BuyHistory:   append([]TradeRecord(nil), c.buyHistory...),
		SellHistory:  append([]TradeRecord(nil), c.sellHistory...),
	}
}
