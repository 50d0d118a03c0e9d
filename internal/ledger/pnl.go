package ledger

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ComputePL returns the absolute and percentage profit of moving from buy to
// current. The percentage is zero when buy is zero.
func ComputePL(buy, current float64) (value, percent float64) {
	b := decimal.NewFromFloat(buy)
	c := decimal.NewFromFloat(current)

	diff := c.Sub(b)
	value, _ = diff.Float64()
	if b.IsZero() {
		return value, 0
	}
	percent, _ = diff.Div(b).Mul(hundred).Float64()
	return value, percent
}
