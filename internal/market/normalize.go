package market

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ChangeFromPrevClose derives the canonical day change pair from a current
// price and the previous close. When the previous close is missing or not
// positive both values are zero rather than a division error.
func ChangeFromPrevClose(current, prevClose decimal.Decimal) (change, changePercent decimal.Decimal) {
	if prevClose.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, decimal.Zero
	}
	change = current.Sub(prevClose)
	changePercent = change.Div(prevClose).Mul(hundred)
	return change, changePercent
}

// ChangeFromPercent converts a stored percentage change back into absolute
// dollars: change = percent/100 * price. This is the single conversion used
// for every cached record so cached and fresh rows rank consistently.
func ChangeFromPercent(percent, price decimal.Decimal) decimal.Decimal {
	return percent.Div(hundred).Mul(price)
}
