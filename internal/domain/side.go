package domain

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// String returns the string representation of the side.
func (s Side) String() string {
	return string(s)
}

