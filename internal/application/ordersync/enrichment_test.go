package ordersync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/domain/reconciliation"
)

func TestEnricher_PreservesInputOrder(t *testing.T) {
	orders := hourlyOrders(20)
	market := newFakeMarketplace(orders...)
	e := NewEnricher(market, nil)

	summaries := make([]integration.RawOrder, len(orders))
	for i, o := range orders {
		summaries[i] = integration.RawOrder{ID: o.ID}
	}

	out := e.Enrich(context.Background(), integration.Credential{}, summaries, nil)
	require.Len(t, out, len(summaries))
	for i, eo := range out {
		assert.Equal(t, summaries[i].ID, eo.Order.ID)
		assert.NoError(t, eo.DetailErr)
		assert.Equal(t, "Item "+eo.Order.ID, eo.Order.FirstItem().Title, "detail merged over summary")
	}
}

func TestEnricher_DetailFailureKeepsSummary(t *testing.T) {
	market := newFakeMarketplace()
	market.detailErr["7"] = fmt.Errorf("%w: status 500", integration.ErrPlatformUnavailable)
	e := NewEnricher(market, nil)

	summary := testOrder("7", testNow, "55.50")
	out := e.Enrich(context.Background(), integration.Credential{}, []integration.RawOrder{summary}, nil)

	require.Len(t, out, 1)
	assert.ErrorIs(t, out[0].DetailErr, integration.ErrPlatformUnavailable)
	assert.Equal(t, "55.50", out[0].Order.TotalAmount.Value.StringFixed(2))
	assert.Nil(t, out[0].Shipment)
}

func TestEnricher_Shipment(t *testing.T) {
	withShipping := testOrder("1", testNow, "100")
	withShipping.ShippingID = "S1"

	market := newFakeMarketplace(withShipping)
	market.shipments["S1"] = integration.RawShipment{
		ID:           "S1",
		LogisticType: "drop_off",
		ListCost:     reconciliation.NewAmount(decimal.RequireFromString("30")),
	}
	e := NewEnricher(market, nil)

	t.Run("summary names the shipment", func(t *testing.T) {
		out := e.Enrich(context.Background(), integration.Credential{}, []integration.RawOrder{withShipping}, nil)
		require.NotNil(t, out[0].Shipment)
		assert.Equal(t, "drop_off", out[0].Shipment.LogisticType)
	})

	t.Run("detail names the shipment", func(t *testing.T) {
		out := e.Enrich(context.Background(), integration.Credential{}, []integration.RawOrder{{ID: "1"}}, nil)
		require.NotNil(t, out[0].Shipment)
		assert.Equal(t, "S1", out[0].Shipment.ID)
	})

	t.Run("shipment failure degrades", func(t *testing.T) {
		missing := testOrder("2", testNow, "100")
		missing.ShippingID = "S404"
		out := e.Enrich(context.Background(), integration.Credential{}, []integration.RawOrder{missing}, nil)
		assert.Nil(t, out[0].Shipment)
		assert.ErrorIs(t, out[0].ShipmentErr, integration.ErrPlatformRequestFailed)
		assert.Equal(t, "2", out[0].Order.ID)
	})
}

func TestRunBudget(t *testing.T) {
	t.Run("nil budget never waits", func(t *testing.T) {
		var b *RunBudget
		assert.NoError(t, b.Wait(context.Background()))
		assert.Zero(t, b.Calls())
	})

	t.Run("counts admitted calls", func(t *testing.T) {
		b := NewRunBudget(0, 0)
		for i := 0; i < 5; i++ {
			require.NoError(t, b.Wait(context.Background()))
		}
		assert.Equal(t, int64(5), b.Calls())
	})

	t.Run("exhausted budget honours cancellation", func(t *testing.T) {
		b := NewRunBudget(0.001, 1)
		require.NoError(t, b.Wait(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.Error(t, b.Wait(ctx))
	})

	t.Run("enrichment shares the budget", func(t *testing.T) {
		orders := hourlyOrders(4)
		b := NewRunBudget(0, 0)
		NewEnricher(newFakeMarketplace(orders...), nil).
			Enrich(context.Background(), integration.Credential{}, orders, b)
		assert.Equal(t, int64(4), b.Calls())
	})
}
