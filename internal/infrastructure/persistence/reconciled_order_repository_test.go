package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/persistence/models"
)

var testAccountID = uuid.MustParse("5f0c7a52-8f1e-4c1b-9a43-2d6c1e0b7a11")

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testRecord(t *testing.T, orderID string) *integration.ReconciledOrderRecord {
	t.Helper()
	cogs := dec("37.50")
	return &integration.ReconciledOrderRecord{
		AccountID:           testAccountID,
		OrderID:             orderID,
		SyncedAt:            time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		OrderCreatedAt:      time.Date(2025, 5, 30, 9, 15, 0, 0, time.UTC),
		Status:              "paid",
		BuyerNickname:       "BUYER01",
		GrossAmount:         dec("100.00"),
		UnitPrice:           dec("100.00"),
		Quantity:            1,
		PlatformFee:         dec("-15.00"),
		Freight:             dec("-12.30"),
		CostOfGoods:         &cogs,
		Margin:              dec("35.20"),
		IsRealMargin:        true,
		Title:               "Ceramic mug",
		SKU:                 "MUG-01",
		ExposureTier:        "gold_special",
		ListingKind:         integration.ListingKindTraditional,
		LogisticsType:       "cross_docking",
		LogisticsTypeSource: "shipment",
		ShippingMode:        "me2",
		ShipmentStatus:      "shipped",
		ShipmentID:          "44001",
		FreightFinalCost:    dec("12.30"),
		FreightFinalSource:  "shipping_option.list_cost",
		FreightAdjusted:     dec("12.30"),
		FreightRule:         "none",
		FreightLegacyAdjust: dec("999.00"),
		OrderTags:           []string{"paid", "delivered"},
		ShipmentTags:        []string{"fulfilled"},
		RawPayload:          json.RawMessage(`{"order":{"id":"` + orderID + `"}}`),
	}
}

func TestGormReconciledOrderRepository_Upsert(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts and reads back every field", func(t *testing.T) {
		repo := NewGormReconciledOrderRepository(newTestDB(t))
		record := testRecord(t, "2000001")

		require.NoError(t, repo.Upsert(ctx, record))

		got, err := repo.FindByOrderID(ctx, testAccountID, "2000001")
		require.NoError(t, err)

		assert.Equal(t, record.OrderID, got.OrderID)
		assert.Equal(t, record.AccountID, got.AccountID)
		assert.True(t, record.OrderCreatedAt.Equal(got.OrderCreatedAt))
		assert.Equal(t, "paid", got.Status)
		assert.True(t, dec("100").Equal(got.GrossAmount))
		assert.True(t, dec("-15").Equal(got.PlatformFee))
		assert.True(t, dec("-12.3").Equal(got.Freight))
		assert.True(t, dec("35.2").Equal(got.Margin))
		require.NotNil(t, got.CostOfGoods)
		assert.True(t, dec("37.5").Equal(*got.CostOfGoods))
		assert.True(t, got.IsRealMargin)
		assert.Equal(t, integration.ListingKindTraditional, got.ListingKind)
		assert.Equal(t, "cross_docking", got.LogisticsType)
		assert.Equal(t, "none", got.FreightRule)
		assert.True(t, dec("999").Equal(got.FreightLegacyAdjust))
		assert.Equal(t, []string{"paid", "delivered"}, got.OrderTags)
		assert.Equal(t, []string{"fulfilled"}, got.ShipmentTags)
		assert.JSONEq(t, `{"order":{"id":"2000001"}}`, string(got.RawPayload))
	})

	t.Run("repeating the upsert keeps one identical row", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormReconciledOrderRepository(db)
		record := testRecord(t, "2000002")

		require.NoError(t, repo.Upsert(ctx, record))
		first, err := repo.FindByOrderID(ctx, testAccountID, "2000002")
		require.NoError(t, err)

		require.NoError(t, repo.Upsert(ctx, record))
		require.NoError(t, repo.Upsert(ctx, record))

		count, err := repo.CountByAccount(ctx, testAccountID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		again, err := repo.FindByOrderID(ctx, testAccountID, "2000002")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	})

	t.Run("re-sync overwrites mutable fields and keeps the first insert id", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormReconciledOrderRepository(db)
		first := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		repo.now = func() time.Time { return first }

		record := testRecord(t, "2000003")
		require.NoError(t, repo.Upsert(ctx, record))

		var before models.ReconciledOrderModel
		require.NoError(t, db.Where("order_id = ?", "2000003").First(&before).Error)

		repo.now = func() time.Time { return first.Add(time.Hour) }
		record.Status = "cancelled"
		record.Margin = dec("-4.10")
		record.CostOfGoods = nil
		record.IsRealMargin = false
		require.NoError(t, repo.Upsert(ctx, record))

		var after models.ReconciledOrderModel
		require.NoError(t, db.Where("order_id = ?", "2000003").First(&after).Error)
		assert.Equal(t, before.ID, after.ID)
		assert.True(t, before.CreatedAt.Equal(after.CreatedAt))
		assert.True(t, after.UpdatedAt.After(before.UpdatedAt))

		got, err := repo.FindByOrderID(ctx, testAccountID, "2000003")
		require.NoError(t, err)
		assert.Equal(t, "cancelled", got.Status)
		assert.True(t, dec("-4.1").Equal(got.Margin))
		assert.Nil(t, got.CostOfGoods)
		assert.False(t, got.IsRealMargin)
	})

	t.Run("same order id under another account is a separate row", func(t *testing.T) {
		repo := NewGormReconciledOrderRepository(newTestDB(t))
		a := testRecord(t, "2000004")
		b := testRecord(t, "2000004")
		b.AccountID = uuid.New()

		require.NoError(t, repo.Upsert(ctx, a))
		require.NoError(t, repo.Upsert(ctx, b))

		countA, err := repo.CountByAccount(ctx, a.AccountID)
		require.NoError(t, err)
		countB, err := repo.CountByAccount(ctx, b.AccountID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), countA)
		assert.Equal(t, int64(1), countB)
	})

	t.Run("record without key is rejected", func(t *testing.T) {
		repo := NewGormReconciledOrderRepository(newTestDB(t))

		err := repo.Upsert(ctx, &integration.ReconciledOrderRecord{AccountID: testAccountID})
		assert.ErrorIs(t, err, integration.ErrInvalidRecord)

		err = repo.Upsert(ctx, nil)
		assert.ErrorIs(t, err, integration.ErrInvalidRecord)
	})

	t.Run("record without raw payload", func(t *testing.T) {
		repo := NewGormReconciledOrderRepository(newTestDB(t))
		record := testRecord(t, "2000005")
		record.RawPayload = nil

		require.NoError(t, repo.Upsert(ctx, record))
		got, err := repo.FindByOrderID(ctx, testAccountID, "2000005")
		require.NoError(t, err)
		assert.Nil(t, got.RawPayload)
	})
}

func TestGormReconciledOrderRepository_OldestOrderDate(t *testing.T) {
	ctx := context.Background()
	repo := NewGormReconciledOrderRepository(newTestDB(t))

	oldest, err := repo.OldestOrderDate(ctx, testAccountID)
	require.NoError(t, err)
	assert.Nil(t, oldest, "no orders stored")

	dates := []time.Time{
		time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
		time.Date(2024, 11, 2, 17, 30, 0, 0, time.UTC),
		time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	for i, d := range dates {
		r := testRecord(t, "old-"+string(rune('a'+i)))
		r.OrderCreatedAt = d
		require.NoError(t, repo.Upsert(ctx, r))
	}

	undated := testRecord(t, "undated")
	undated.OrderCreatedAt = time.Time{}
	require.NoError(t, repo.Upsert(ctx, undated))

	oldest, err = repo.OldestOrderDate(ctx, testAccountID)
	require.NoError(t, err)
	require.NotNil(t, oldest)
	assert.True(t, dates[1].Equal(*oldest), "got %s", oldest)

	other, err := repo.OldestOrderDate(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestGormReconciledOrderRepository_OldestOrderDate_OnlyUndated(t *testing.T) {
	ctx := context.Background()
	repo := NewGormReconciledOrderRepository(newTestDB(t))

	undated := testRecord(t, "undated")
	undated.OrderCreatedAt = time.Time{}
	require.NoError(t, repo.Upsert(ctx, undated))

	oldest, err := repo.OldestOrderDate(ctx, testAccountID)
	require.NoError(t, err)
	assert.Nil(t, oldest)
}

func TestGormReconciledOrderRepository_FindByOrderID_NotFound(t *testing.T) {
	repo := NewGormReconciledOrderRepository(newTestDB(t))

	_, err := repo.FindByOrderID(context.Background(), testAccountID, "missing")
	assert.ErrorIs(t, err, integration.ErrOrderNotFound)
}

func TestGormReconciledOrderRepository_StoreFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("upsert failure is a persistence error", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormReconciledOrderRepository(gormDB)

		mock.ExpectQuery(`INSERT INTO "reconciled_orders"`).
			WillReturnError(errors.New("deadlock detected"))

		err := repo.Upsert(ctx, testRecord(t, "2000009"))
		assert.ErrorIs(t, err, integration.ErrPersistenceFailed)
		assert.Contains(t, err.Error(), "2000009")
	})

	t.Run("count failure is a persistence error", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormReconciledOrderRepository(gormDB)

		mock.ExpectQuery(`SELECT count\(\*\) FROM "reconciled_orders" WHERE account_id = \$1`).
			WithArgs(testAccountID).
			WillReturnError(errors.New("connection reset"))

		_, err := repo.CountByAccount(ctx, testAccountID)
		assert.ErrorIs(t, err, integration.ErrPersistenceFailed)
		assert.Contains(t, err.Error(), "connection reset")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("count returns the stored total", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormReconciledOrderRepository(gormDB)

		mock.ExpectQuery(`SELECT count\(\*\) FROM "reconciled_orders" WHERE account_id = \$1`).
			WithArgs(testAccountID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

		count, err := repo.CountByAccount(ctx, testAccountID)
		require.NoError(t, err)
		assert.Equal(t, int64(42), count)
	})
}
