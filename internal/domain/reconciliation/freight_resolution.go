package reconciliation

import (
	"github.com/shopspring/decimal"
)

// CostSource names the payload field a freight figure was taken from
type CostSource string

const (
	CostSourceShipment       CostSource = "shipment"
	CostSourceShippingOption CostSource = "shipping_option"
	CostSourceList           CostSource = "list"
	CostSourceBase           CostSource = "base"
	CostSourceOrder          CostSource = "order"
	CostSourceNone           CostSource = "none"
)

// TypeSource names where the logistics type was read from
type TypeSource string

const (
	TypeSourceShipment TypeSource = "shipment"
	TypeSourceOrder    TypeSource = "order"
	TypeSourceNone     TypeSource = "none"
)

// FreightFacts are the raw freight related fields of one order and its shipment
type FreightFacts struct {
	ShipmentLogisticsType string
	OrderLogisticsType    string

	BaseCost           Amount
	ListCost           Amount
	ShippingOptionCost Amount
	ShipmentCost       Amount
	OrderFallbackCost  Amount

	OrderCost decimal.Decimal
	Quantity  int
}

// FreightCandidate is one raw cost figure found in the payload
type FreightCandidate struct {
	Source CostSource
	Value  decimal.Decimal
}

// FreightResolution is the immutable freight outcome of one order
type FreightResolution struct {
	LogisticsType       LogisticsType
	LogisticsTypeSource TypeSource
	Candidates          []FreightCandidate
	FinalCost           decimal.Decimal
	FinalCostSource     CostSource
	Adjustment          Adjustment
}

// EffectiveFreight returns the signed freight used in the margin: the adjusted
// value when a rule fired, otherwise the final cost charged to the seller.
func (r FreightResolution) EffectiveFreight() decimal.Decimal {
	if r.Adjustment.Applied {
		return r.Adjustment.Value
	}
	return Round2(r.FinalCost.Neg())
}

// Candidate returns the candidate taken from the given source
func (r FreightResolution) Candidate(source CostSource) (decimal.Decimal, bool) {
	for _, c := range r.Candidates {
		if c.Source == source {
			return c.Value, true
		}
	}
	return decimal.Zero, false
}

// ResolveFreight collects the cost candidates, picks the authoritative final
// cost and runs the freight rule table.
func ResolveFreight(f FreightFacts) FreightResolution {
	res := FreightResolution{
		LogisticsType:       LogisticsUnknown,
		LogisticsTypeSource: TypeSourceNone,
		FinalCost:           decimal.Zero,
		FinalCostSource:     CostSourceNone,
	}

	switch {
	case f.ShipmentLogisticsType != "":
		res.LogisticsType = NormalizeLogisticsType(f.ShipmentLogisticsType)
		res.LogisticsTypeSource = TypeSourceShipment
	case f.OrderLogisticsType != "":
		res.LogisticsType = NormalizeLogisticsType(f.OrderLogisticsType)
		res.LogisticsTypeSource = TypeSourceOrder
	}

	// Precedence order for the final cost
	ordered := []struct {
		source CostSource
		amount Amount
	}{
		{CostSourceShipment, f.ShipmentCost},
		{CostSourceShippingOption, f.ShippingOptionCost},
		{CostSourceList, f.ListCost},
		{CostSourceBase, f.BaseCost},
		{CostSourceOrder, f.OrderFallbackCost},
	}
	for _, c := range ordered {
		if !c.amount.Valid {
			continue
		}
		res.Candidates = append(res.Candidates, FreightCandidate{Source: c.source, Value: Round2(c.amount.Value)})
		if res.FinalCostSource == CostSourceNone {
			res.FinalCost = Round2(c.amount.Value)
			res.FinalCostSource = c.source
		}
	}

	res.Adjustment = AdjustFreight(FreightInput{
		LogisticsType:      res.LogisticsType,
		BaseCost:           f.BaseCost.OrZero(),
		ListCost:           f.ListCost.OrZero(),
		ShipmentCost:       f.ShipmentCost.Ptr(),
		ShippingOptionCost: f.ShippingOptionCost.Ptr(),
		OrderCost:          f.OrderCost,
		Quantity:           f.Quantity,
	})

	return res
}
