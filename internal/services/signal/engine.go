// Package signal buffers recent prices per symbol and emits mean-reversion buy decisions.
package signal

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/dipbot/pkg/ringbuffer"
	"go.uber.org/zap"
)

// Decision is the outcome of evaluating a symbol's buffer against the current price.
type Decision struct {
	Symbol string
	Buy    bool
	// Price is the current price that was evaluated.
	Price decimal.Decimal
	// Reference is the rolling mean used as the buy price reference.
	Reference decimal.Decimal
	StdDev    decimal.Decimal
	Reason    string
}

// Stats describes a symbol's buffer.
type Stats struct {
	Count    int             `json:"count"`
	Capacity int             `json:"capacity"`
	Mean     decimal.Decimal `json:"mean"`
	StdDev   decimal.Decimal `json:"std_dev"`
	Ready    bool            `json:"ready"`
}

// Engine holds a fixed-capacity price ring per symbol. Not safe for concurrent use.
type Engine struct {
	capacity int
	buffers  map[string]*ringbuffer.Ring[decimal.Decimal]
	l        *zap.Logger
}

// NewEngine creates an engine whose rings hold capacity prices.
func NewEngine(l *zap.Logger, capacity int) (*Engine, error) {
	if capacity < 2 {
		return nil, fmt.Errorf("price history length must be at least 2, got %d", capacity)
	}
	if l == nil {
		l = zap.NewNop()
	}

	return &Engine{
		capacity: capacity,
		buffers:  make(map[string]*ringbuffer.Ring[decimal.Decimal]),
		l:        l,
	}, nil
}

func (e *Engine) buffer(symbol string) *ringbuffer.Ring[decimal.Decimal] {
	buf, ok := e.buffers[symbol]
	if !ok {
		buf = ringbuffer.New[decimal.Decimal](e.capacity)
		e.buffers[symbol] = buf
	}
	return buf
}

// Observe appends a price, evicting the oldest when the ring is full.
func (e *Engine) Observe(symbol string, price decimal.Decimal) {
	e.buffer(symbol).Push(price)
}

// Seed appends historical prices, oldest first.
func (e *Engine) Seed(symbol string, prices []decimal.Decimal) {
	buf := e.buffer(symbol)
	for _, p := range prices {
		buf.Push(p)
	}
	e.l.Info("seeded price history",
		zap.String("symbol", symbol),
		zap.Int("seeded", len(prices)),
		zap.Int("buffered", buf.Len()))
}

// Ready reports whether the symbol's ring is full.
func (e *Engine) Ready(symbol string) bool {
	buf, ok := e.buffers[symbol]
	return ok && buf.Full()
}

// Evaluate checks current against the buffered history. The second result is false
// while the ring is not full, in which case no decision is made.
func (e *Engine) Evaluate(symbol string, current decimal.Decimal) (Decision, bool) {
	buf, ok := e.buffers[symbol]
	if !ok || !buf.Full() {
		return Decision{}, false
	}

	mean, stdDev := meanStdDev(buf.Values())
	decision := Decision{
		Symbol:    symbol,
		Price:     current,
		Reference: mean,
		StdDev:    stdDev,
	}

	deviation := mean.Sub(current)
	switch {
	case !current.LessThan(mean):
		decision.Reason = fmt.Sprintf("price %s is not below mean %s", current, mean)
	case !deviation.LessThan(stdDev):
		decision.Reason = fmt.Sprintf("price %s is %s below mean %s, beyond one std dev %s",
			current, deviation, mean, stdDev)
	default:
		decision.Buy = true
		decision.Reason = fmt.Sprintf("price %s dipped %s below mean %s within std dev %s",
			current, deviation, mean, stdDev)
	}

	return decision, true
}

// Stats returns the buffer statistics for a symbol.
func (e *Engine) Stats(symbol string) Stats {
	buf, ok := e.buffers[symbol]
	if !ok {
		return Stats{Capacity: e.capacity}
	}

	stats := Stats{Count: buf.Len(), Capacity: e.capacity, Ready: buf.Full()}
	if buf.Len() > 0 {
		stats.Mean, stats.StdDev = meanStdDev(buf.Values())
	}
	return stats
}

// meanStdDev returns the mean and the sample standard deviation.
func meanStdDev(values []decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	n := len(values)
	if n == 0 {
		return decimal.Zero, decimal.Zero
	}

	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	mean := sum.Div(decimal.NewFromInt(int64(n)))
	if n < 2 {
		return mean, decimal.Zero
	}

	squares := decimal.Zero
	for _, v := range values {
		diff := v.Sub(mean)
		squares = squares.Add(diff.Mul(diff))
	}
	if squares.IsZero() {
		return mean, decimal.Zero
	}

	variance, _ := squares.Div(decimal.NewFromInt(int64(n - 1))).Float64()
	return mean, decimal.NewFromFloat(math.Sqrt(variance))
}
