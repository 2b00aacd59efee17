package reconciliation

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestAdjustFreight_Table(t *testing.T) {
	tests := []struct {
		name        string
		input       FreightInput
		wantApplied bool
		wantValue   string
		wantRule    FreightRule
	}{
		{
			name: "self service without discount signal below threshold uses low ticket flat rate",
			input: FreightInput{
				LogisticsType: LogisticsSelfService,
				BaseCost:      dec("100"),
				ListCost:      dec("100"),
				OrderCost:     dec("150"),
				Quantity:      2,
			},
			wantApplied: true,
			wantValue:   "15.90",
			wantRule:    FreightRuleSelfServiceFlat,
		},
		{
			name: "self service without discount signal above threshold uses high ticket flat rate",
			input: FreightInput{
				LogisticsType: LogisticsSelfService,
				BaseCost:      dec("20"),
				ListCost:      dec("20"),
				OrderCost:     dec("200"),
				Quantity:      1,
			},
			wantApplied: true,
			wantValue:   "1.59",
			wantRule:    FreightRuleSelfServiceFlat,
		},
		{
			name: "self service at exactly the threshold uses high ticket flat rate",
			input: FreightInput{
				LogisticsType: LogisticsSelfService,
				BaseCost:      dec("20"),
				ListCost:      dec("20"),
				OrderCost:     dec("79"),
				Quantity:      1,
			},
			wantApplied: true,
			wantValue:   "1.59",
			wantRule:    FreightRuleSelfServiceFlat,
		},
		{
			name: "self service with sub-cent difference is treated as no discount",
			input: FreightInput{
				LogisticsType: LogisticsSelfService,
				BaseCost:      dec("10"),
				ListCost:      dec("10.001"),
				OrderCost:     dec("50"),
				Quantity:      1,
			},
			wantApplied: true,
			wantValue:   "15.90",
			wantRule:    FreightRuleSelfServiceFlat,
		},
		{
			name: "self service with discount uses base minus list",
			input: FreightInput{
				LogisticsType: LogisticsSelfService,
				BaseCost:      dec("20"),
				ListCost:      dec("12.50"),
				OrderCost:     dec("300"),
				Quantity:      1,
			},
			wantApplied: true,
			wantValue:   "7.50",
			wantRule:    FreightRuleSelfServiceDiscount,
		},
		{
			name: "cross docking above threshold with null shipment cost forces negative list cost",
			input: FreightInput{
				LogisticsType: LogisticsCrossDocking,
				BaseCost:      dec("50"),
				ListCost:      dec("71.12"),
				ShipmentCost:  nil,
				OrderCost:     dec("261.70"),
				Quantity:      2,
			},
			wantApplied: true,
			wantValue:   "-71.12",
			wantRule:    FreightRuleEligibleHighTicket,
		},
		{
			name: "drop off above threshold forces negative even when base is negative",
			input: FreightInput{
				LogisticsType: LogisticsDropOff,
				ListCost:      dec("10"),
				ShipmentCost:  decPtr("30"),
				OrderCost:     dec("100"),
				Quantity:      1,
			},
			wantApplied: true,
			wantValue:   "-20.00",
			wantRule:    FreightRuleEligibleHighTicket,
		},
		{
			name: "drop off below threshold negates list minus shipment",
			input: FreightInput{
				LogisticsType: LogisticsDropOff,
				ListCost:      dec("20"),
				ShipmentCost:  decPtr("5"),
				OrderCost:     dec("50"),
				Quantity:      1,
			},
			wantApplied: true,
			wantValue:   "-15.00",
			wantRule:    FreightRuleEligible,
		},
		{
			name: "fulfillment below threshold with shipment above list yields positive value",
			input: FreightInput{
				LogisticsType: LogisticsFulfillment,
				ListCost:      dec("10"),
				ShipmentCost:  decPtr("30"),
				OrderCost:     dec("50"),
				Quantity:      1,
			},
			wantApplied: true,
			wantValue:   "20.00",
			wantRule:    FreightRuleEligible,
		},
		{
			name: "xd drop off without quantity applies the negation branch",
			input: FreightInput{
				LogisticsType: LogisticsXDDropOff,
				ListCost:      dec("18.45"),
				OrderCost:     dec("500"),
				Quantity:      0,
			},
			wantApplied: true,
			wantValue:   "-18.45",
			wantRule:    FreightRuleEligible,
		},
		{
			name: "unknown type below threshold charges nothing",
			input: FreightInput{
				LogisticsType: LogisticsType("default"),
				OrderCost:     dec("50"),
				Quantity:      1,
			},
			wantApplied: true,
			wantValue:   "0.00",
			wantRule:    FreightRuleLowTicketExempt,
		},
		{
			name: "unknown type above threshold fires no rule",
			input: FreightInput{
				LogisticsType: LogisticsType("other_unknown"),
				OrderCost:     dec("200"),
				Quantity:      2,
			},
			wantApplied: false,
			wantRule:    FreightRuleNone,
		},
		{
			name: "unknown type without quantity fires no rule",
			input: FreightInput{
				LogisticsType: LogisticsUnknown,
				OrderCost:     dec("10"),
				Quantity:      0,
			},
			wantApplied: false,
			wantRule:    FreightRuleNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AdjustFreight(tt.input)

			assert.Equal(t, tt.wantApplied, got.Applied)
			assert.Equal(t, tt.wantRule, got.Rule)
			if tt.wantApplied {
				assert.Equal(t, tt.wantValue, got.Value.StringFixed(2))
				assert.False(t, got.NoRuleApplies())
			} else {
				assert.True(t, got.NoRuleApplies())
			}
		})
	}
}

func TestAdjustFreight_LegacySentinel(t *testing.T) {
	got := AdjustFreight(FreightInput{
		LogisticsType: LogisticsType("other_unknown"),
		OrderCost:     dec("200"),
		Quantity:      2,
	})

	assert.True(t, got.NoRuleApplies())
	assert.Equal(t, "999.00", got.LegacyValue().StringFixed(2))
	assert.True(t, IsLegacySentinel(got.LegacyValue()))
	assert.Equal(t, "No rule applies", got.Label())
}

func TestAdjustFreight_LegacyValueOfAppliedRule(t *testing.T) {
	got := AdjustFreight(FreightInput{
		LogisticsType: LogisticsCrossDocking,
		ListCost:      dec("71.12"),
		OrderCost:     dec("261.70"),
		Quantity:      2,
	})

	assert.Equal(t, "-71.12", got.LegacyValue().StringFixed(2))
	assert.False(t, IsLegacySentinel(got.LegacyValue()))
}

func TestAdjustFreight_NoNegativeZero(t *testing.T) {
	got := AdjustFreight(FreightInput{
		LogisticsType: LogisticsDropOff,
		ListCost:      dec("5.001"),
		ShipmentCost:  decPtr("5"),
		OrderCost:     dec("50"),
		Quantity:      1,
	})

	assert.True(t, got.Applied)
	assert.True(t, got.Value.IsZero())
	assert.False(t, got.Value.IsNegative())
	assert.Equal(t, "0", got.Value.String())
}

func TestAdjustFreight_Deterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	types := []LogisticsType{
		LogisticsSelfService, LogisticsDropOff, LogisticsXDDropOff,
		LogisticsFulfillment, LogisticsCrossDocking, LogisticsType("default"), LogisticsUnknown,
	}

	properties.Property("identical inputs produce identical adjustments", prop.ForAll(
		func(typeIdx int, baseCents, listCents, shipCents, orderCents int64, qty int, hasShipment bool) bool {
			in := FreightInput{
				LogisticsType: types[typeIdx],
				BaseCost:      decimal.New(baseCents, -2),
				ListCost:      decimal.New(listCents, -2),
				OrderCost:     decimal.New(orderCents, -2),
				Quantity:      qty,
			}
			if hasShipment {
				s := decimal.New(shipCents, -2)
				in.ShipmentCost = &s
			}

			first := AdjustFreight(in)
			second := AdjustFreight(in)

			return first.Applied == second.Applied &&
				first.Rule == second.Rule &&
				first.Value.Equal(second.Value) &&
				first.LegacyValue().Equal(second.LegacyValue())
		},
		gen.IntRange(0, len(types)-1),
		gen.Int64Range(0, 100000),
		gen.Int64Range(0, 100000),
		gen.Int64Range(0, 100000),
		gen.Int64Range(0, 1000000),
		gen.IntRange(0, 10),
		gen.Bool(),
	))

	properties.Property("applied values are rounded to cents", prop.ForAll(
		func(typeIdx int, baseMilli, listMilli, orderCents int64, qty int) bool {
			got := AdjustFreight(FreightInput{
				LogisticsType: types[typeIdx],
				BaseCost:      decimal.New(baseMilli, -3),
				ListCost:      decimal.New(listMilli, -3),
				OrderCost:     decimal.New(orderCents, -2),
				Quantity:      qty,
			})
			if !got.Applied {
				return true
			}
			return got.Value.Equal(got.Value.Round(2))
		},
		gen.IntRange(0, len(types)-1),
		gen.Int64Range(0, 1000000),
		gen.Int64Range(0, 1000000),
		gen.Int64Range(0, 1000000),
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}

func TestFreightRule_Label(t *testing.T) {
	assert.Equal(t, "Self-service flat rate", FreightRuleSelfServiceFlat.Label())
	assert.Equal(t, "custom", FreightRule("custom").Label())
}
