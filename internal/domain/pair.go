// Package domain defines core data structures used throughout the trading bot.
package domain

import (
	"fmt"
	"strings"
)

// QuoteCurrency is the currency every traded pair is priced in.
const QuoteCurrency = "USDT"

// Pair cryptocurrency trading pair.
type Pair struct {
	// From base currency symbol.
	From string
	// To quote currency symbol.
	To string
}

// ParsePair parses "BTC-USDT" or "BTC_USDT" into a Pair.
func ParsePair(s string) (Pair, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '_' })
	if len(parts) != 2 {
		return Pair{}, fmt.Errorf("invalid pair %q, expected BASE-QUOTE", s)
	}
	return Pair{From: parts[0], To: parts[1]}, nil
}

// String returns the string representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s-%s", p.From, p.To)
}

// Symbol returns the concatenated symbol representation.
func (p Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.From, p.To)
}
