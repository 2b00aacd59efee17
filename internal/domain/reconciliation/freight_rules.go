package reconciliation

import (
	"github.com/shopspring/decimal"
)

// Freight policy constants
var (
	// HighTicketThreshold is the unit price that separates low and high ticket items
	HighTicketThreshold = decimal.NewFromInt(79)
	// SelfServiceLowTicketRate is the flat self-service freight credited below the threshold
	SelfServiceLowTicketRate = decimal.RequireFromString("15.90")
	// SelfServiceHighTicketRate is the flat self-service freight credited at or above the threshold
	SelfServiceHighTicketRate = decimal.RequireFromString("1.59")
	// LegacySentinel is the historical "no rule fired" magnitude still expected by exports
	LegacySentinel = decimal.NewFromInt(999)
)

// FreightRule identifies which row of the freight table produced an adjustment
type FreightRule string

const (
	FreightRuleSelfServiceFlat     FreightRule = "self_service_flat"
	FreightRuleSelfServiceDiscount FreightRule = "self_service_discount"
	FreightRuleEligibleHighTicket  FreightRule = "eligible_high_ticket"
	FreightRuleEligible            FreightRule = "eligible"
	FreightRuleLowTicketExempt     FreightRule = "low_ticket_exempt"
	FreightRuleNone                FreightRule = "no_rule"
)

var freightRuleLabels = map[FreightRule]string{
	FreightRuleSelfServiceFlat:     "Self-service flat rate",
	FreightRuleSelfServiceDiscount: "Self-service discount (base - list)",
	FreightRuleEligibleHighTicket:  "Seller-shipped high ticket charge",
	FreightRuleEligible:            "Seller-shipped list cost charge",
	FreightRuleLowTicketExempt:     "Low ticket, no freight charged",
	FreightRuleNone:                "No rule applies",
}

// Label returns the human label of the rule
func (r FreightRule) Label() string {
	if l, ok := freightRuleLabels[r]; ok {
		return l
	}
	return string(r)
}

// FreightInput holds the normalized inputs of the freight rule table.
// ShipmentCost and ShippingOptionCost are nil when the payload did not carry them.
type FreightInput struct {
	LogisticsType      LogisticsType
	BaseCost           decimal.Decimal
	ListCost           decimal.Decimal
	ShipmentCost       *decimal.Decimal
	ShippingOptionCost *decimal.Decimal
	OrderCost          decimal.Decimal
	Quantity           int
}

// UnitPrice returns OrderCost / Quantity, or false when quantity is not positive
func (in FreightInput) UnitPrice() (decimal.Decimal, bool) {
	if in.Quantity <= 0 {
		return decimal.Zero, false
	}
	return in.OrderCost.Div(decimal.NewFromInt(int64(in.Quantity))), true
}

// Adjustment is the tagged result of the freight rule table.
// Applied is false when no rule fired; Value is then meaningless and callers
// must keep the naive freight cost.
type Adjustment struct {
	Value   decimal.Decimal
	Applied bool
	Rule    FreightRule
	sign    int
}

// NoRuleApplies reports whether the table declined to produce a value
func (a Adjustment) NoRuleApplies() bool {
	return !a.Applied
}

// Label returns the human label of the rule that fired
func (a Adjustment) Label() string {
	return a.Rule.Label()
}

// LegacyValue returns the value in the historical encoding, where the
// magnitude 999 stands for "no rule applies".
func (a Adjustment) LegacyValue() decimal.Decimal {
	if a.Applied {
		return a.Value
	}
	sign := a.sign
	if sign == 0 {
		sign = 1
	}
	return Round2(LegacySentinel.Mul(decimal.NewFromInt(int64(sign))))
}

// IsLegacySentinel reports whether a legacy-encoded value is the 999 marker
func IsLegacySentinel(v decimal.Decimal) bool {
	return v.Abs().Equal(LegacySentinel)
}

// AdjustFreight evaluates the freight rule table. Rows are evaluated in order:
//  1. self_service: flat rate when base and list agree, else base - list (sign +1)
//  2. drop_off, xd_drop_off, fulfillment, cross_docking: list - shipment cost,
//     forced negative above the high ticket threshold, else negated
//  3. any other type below the threshold: zero
//  4. otherwise no rule applies
//
// Every value is rounded to two places.
func AdjustFreight(in FreightInput) Adjustment {
	unitPrice, hasUnitPrice := in.UnitPrice()
	belowThreshold := hasUnitPrice && unitPrice.LessThan(HighTicketThreshold)
	aboveThreshold := hasUnitPrice && unitPrice.GreaterThan(HighTicketThreshold)

	if in.LogisticsType == LogisticsSelfService {
		diff := in.BaseCost.Sub(in.ListCost)
		if Round2(diff).IsZero() {
			rate := SelfServiceHighTicketRate
			if belowThreshold {
				rate = SelfServiceLowTicketRate
			}
			return applied(rate, FreightRuleSelfServiceFlat, 1)
		}
		return applied(diff, FreightRuleSelfServiceDiscount, 1)
	}

	if in.LogisticsType.IsFreightEligible() {
		shipment := decimal.Zero
		if in.ShipmentCost != nil {
			shipment = *in.ShipmentCost
		}
		base := in.ListCost.Sub(shipment)
		if aboveThreshold {
			return applied(base.Abs().Neg(), FreightRuleEligibleHighTicket, -1)
		}
		return applied(base.Neg(), FreightRuleEligible, -1)
	}

	if belowThreshold {
		return applied(decimal.Zero, FreightRuleLowTicketExempt, 1)
	}

	return Adjustment{Rule: FreightRuleNone, sign: 1}
}

func applied(v decimal.Decimal, rule FreightRule, sign int) Adjustment {
	return Adjustment{
		Value:   Round2(v),
		Applied: true,
		Rule:    rule,
		sign:    sign,
	}
}
