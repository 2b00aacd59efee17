package ordersync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/domain/reconciliation"
)

// Reconciler turns an enriched order into the record persisted for it.
// Freight and margin go through the shared reconciliation engine.
type Reconciler struct {
	costs  integration.CostOfGoodsLookup
	logger *zap.Logger
}

// NewReconciler creates a reconciler; costs may be nil
func NewReconciler(costs integration.CostOfGoodsLookup, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{costs: costs, logger: logger}
}

// Reconcile builds the record of one order synced at syncedAt
func (r *Reconciler) Reconcile(
	ctx context.Context,
	accountID uuid.UUID,
	eo EnrichedOrder,
	syncedAt time.Time,
) (*integration.ReconciledOrderRecord, error) {
	order := eo.Order
	if order.ID == "" {
		return nil, fmt.Errorf("%w: order without id", integration.ErrInvalidRecord)
	}

	gross := order.TotalAmount.OrZero()
	if !order.TotalAmount.Valid {
		gross = order.PaidAmount.OrZero()
	}
	gross = reconciliation.Round2(gross)
	quantity := order.Quantity()
	item := order.FirstItem()

	facts := reconciliation.FreightFacts{
		OrderLogisticsType: order.LogisticsType,
		OrderFallbackCost:  order.ShippingCost,
		OrderCost:          gross,
		Quantity:           quantity,
	}
	record := &integration.ReconciledOrderRecord{
		AccountID:      accountID,
		OrderID:        order.ID,
		SyncedAt:       syncedAt,
		OrderCreatedAt: order.DateCreated,
		Status:         order.Status,
		BuyerNickname:  order.BuyerNickname,
		GrossAmount:    gross,
		UnitPrice:      unitPrice(item, gross, quantity),
		Quantity:       quantity,
		PlatformFee:    platformFee(order.Items),
		Title:          item.Title,
		SKU:            item.SKU,
		ExposureTier:   item.ListingTypeID,
		ListingKind:    integration.ListingKindTraditional,
		ShipmentID:     order.ShippingID,
		OrderTags:      order.Tags,
	}
	if item.CatalogListing {
		record.ListingKind = integration.ListingKindCatalog
	}

	if s := eo.Shipment; s != nil {
		facts.ShipmentLogisticsType = s.LogisticType
		facts.BaseCost = s.BaseCost
		facts.ListCost = s.ListCost
		facts.ShippingOptionCost = s.ShippingOptionCost
		facts.ShipmentCost = s.ShipmentCost
		record.ShippingMode = s.Mode
		record.ShipmentStatus = s.Status
		record.ShipmentTags = s.Tags
		if s.ID != "" {
			record.ShipmentID = s.ID
		}
	}

	freight := reconciliation.ResolveFreight(facts)
	record.LogisticsType = freight.LogisticsType.String()
	record.LogisticsTypeSource = string(freight.LogisticsTypeSource)
	record.FreightFinalCost = freight.FinalCost
	record.FreightFinalSource = string(freight.FinalCostSource)
	record.FreightAdjusted = freight.Adjustment.Value
	record.FreightRule = string(freight.Adjustment.Rule)
	record.FreightRuleLabel = freight.Adjustment.Label()
	record.FreightRuleApplied = freight.Adjustment.Applied
	record.FreightLegacyAdjust = freight.Adjustment.LegacyValue()
	record.Freight = freight.EffectiveFreight()

	record.CostOfGoods = r.costOfGoods(ctx, accountID, item.SKU, quantity)
	m := reconciliation.Margin(record.GrossAmount, record.PlatformFee, record.Freight, record.CostOfGoods)
	record.Margin = m.Value
	record.IsRealMargin = m.IsReal

	payload, err := rawPayload(eo)
	if err != nil {
		r.logger.Warn("Raw payload not kept", zap.String("order_id", order.ID), zap.Error(err))
	}
	record.RawPayload = payload

	return record, nil
}

// costOfGoods returns unit cost × quantity, or nil when no cost is known.
// Lookup failures degrade to the net revenue proxy.
func (r *Reconciler) costOfGoods(ctx context.Context, accountID uuid.UUID, sku string, quantity int) *decimal.Decimal {
	if r.costs == nil || sku == "" || quantity <= 0 {
		return nil
	}
	unit, ok, err := r.costs.UnitCost(ctx, accountID, sku)
	if err != nil {
		r.logger.Warn("Cost of goods lookup failed",
			zap.String("account_id", accountID.String()),
			zap.String("sku", sku),
			zap.Error(err),
		)
		return nil
	}
	if !ok {
		return nil
	}
	total := reconciliation.Round2(unit.Mul(decimal.NewFromInt(int64(quantity))))
	return &total
}

func unitPrice(item integration.RawOrderItem, gross decimal.Decimal, quantity int) decimal.Decimal {
	if item.UnitPrice.Valid {
		return reconciliation.Round2(item.UnitPrice.Value)
	}
	if quantity > 0 {
		return reconciliation.Round2(gross.Div(decimal.NewFromInt(int64(quantity))))
	}
	return decimal.Zero
}

// platformFee sums sale fee × quantity over all items, negated as a cost
func platformFee(items []integration.RawOrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		if !it.SaleFee.Valid {
			continue
		}
		qty := it.Quantity
		if qty <= 0 {
			qty = 1
		}
		total = total.Add(it.SaleFee.Value.Mul(decimal.NewFromInt(int64(qty))))
	}
	return reconciliation.Round2(total.Neg())
}

func rawPayload(eo EnrichedOrder) (json.RawMessage, error) {
	doc := struct {
		Order    json.RawMessage `json:"order,omitempty"`
		Shipment json.RawMessage `json:"shipment,omitempty"`
	}{
		Order: eo.Order.Raw,
	}
	if eo.Shipment != nil {
		doc.Shipment = eo.Shipment.Raw
	}
	if len(doc.Order) == 0 && len(doc.Shipment) == 0 {
		return nil, nil
	}
	return json.Marshal(doc)
}
