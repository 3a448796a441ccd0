// Package allocation splits the quote balance into a liquid reserve and a tradable part,
// and distributes the tradable part across symbols.
package allocation

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Planner computes per-symbol allocations.
type Planner struct {
	liquidRatio decimal.Decimal
	weights     map[string]decimal.Decimal
}

// New creates a planner. Weights are optional; when set, each must be in [0, 1]
// and their sum must not exceed 1.
func New(liquidRatio decimal.Decimal, weights map[string]decimal.Decimal) (*Planner, error) {
	if liquidRatio.IsNegative() || liquidRatio.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("liquid ratio must be in [0, 1], got %s", liquidRatio)
	}

	sum := decimal.Zero
	copied := make(map[string]decimal.Decimal, len(weights))
	for symbol, w := range weights {
		if w.IsNegative() || w.GreaterThan(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("weight for %s must be in [0, 1], got %s", symbol, w)
		}
		sum = sum.Add(w)
		copied[symbol] = w
	}
	if sum.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("symbol weights sum to %s, must not exceed 1", sum)
	}

	return &Planner{liquidRatio: liquidRatio, weights: copied}, nil
}

// Tradable returns the part of total available for trading.
func (p *Planner) Tradable(total decimal.Decimal) decimal.Decimal {
	return total.Mul(decimal.NewFromInt(1).Sub(p.liquidRatio))
}

// Liquid returns the reserve kept out of trading.
func (p *Planner) Liquid(total decimal.Decimal) decimal.Decimal {
	return total.Mul(p.liquidRatio)
}

// Allocate maps each symbol to tradable * weight(symbol).
func (p *Planner) Allocate(tradable decimal.Decimal, symbols []string) map[string]decimal.Decimal {
	allocations := make(map[string]decimal.Decimal, len(symbols))
	if !tradable.IsPositive() || len(symbols) == 0 {
		return allocations
	}

	equal := decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(len(symbols))))
	for _, symbol := range symbols {
		weight := equal
		if len(p.weights) > 0 {
			weight = p.weights[symbol]
		}
		allocations[symbol] = tradable.Mul(weight)
	}

	return allocations
}

// Weights returns the configured explicit weights in symbol order.
func (p *Planner) Weights() []string {
	out := make([]string, 0, len(p.weights))
	for symbol, w := range p.weights {
		out = append(out, fmt.Sprintf("%s=%s", symbol, w))
	}
	sort.Strings(out)
	return out
}
