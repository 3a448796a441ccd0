package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CurrencySummary is a read-only view of one ledger currency.
type CurrencySummary struct {
	Balance      decimal.Decimal  `json:"balance"`
	CurrentPrice *decimal.Decimal `json:"current_price"`
}

// AccountSummary maps account type to symbol to currency summary.
type AccountSummary map[string]map[string]CurrencySummary

// StatusSnapshot is a point-in-time copy of the bot state.
type StatusSnapshot struct {
	Timestamp         time.Time                  `json:"ts"`
	Prices            map[string]decimal.Decimal `json:"prices"`
	ActiveTrades      map[string]ActiveTrade     `json:"active_trades"`
	Profits           map[string]decimal.Decimal `json:"profits"`
	TotalProfit       decimal.Decimal            `json:"total_profit"`
	CurrentTotalUSDT  decimal.Decimal            `json:"current_total_usdt"`
	TradableUSDT      decimal.Decimal            `json:"tradable_usdt"`
	LiquidUSDT        decimal.Decimal            `json:"liquid_usdt"`
	WalletSummary     AccountSummary             `json:"wallet_summary"`
	TotalTrades       int                        `json:"total_trades"`
	AvgProfitPerTrade decimal.Decimal            `json:"avg_profit_per_trade"`
	ActiveOrders      map[string]int             `json:"active_orders"`
}

// StatusSnapshotRecord bundles a snapshot with its sequence index.
type StatusSnapshotRecord struct {
	Index    uint64         `json:"index"`
	Snapshot StatusSnapshot `json:"snapshot"`
}
