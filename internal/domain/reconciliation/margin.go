package reconciliation

import "github.com/shopspring/decimal"

// MarginResult is a contribution margin, or a net-revenue proxy when IsReal is false
type MarginResult struct {
	Value  decimal.Decimal
	IsReal bool
}

// Margin combines gross amount, platform fee, freight and optional cost of goods.
// platformFee and freight are signed: costs are expected already negated.
// A nil or non-positive cogs yields the net-revenue proxy with IsReal=false.
func Margin(gross, platformFee, freight decimal.Decimal, cogs *decimal.Decimal) MarginResult {
	value := gross.Add(platformFee).Add(freight)
	if cogs != nil && cogs.IsPositive() {
		return MarginResult{
			Value:  Round2(value.Sub(*cogs)),
			IsReal: true,
		}
	}
	return MarginResult{
		Value:  Round2(value),
		IsReal: false,
	}
}
