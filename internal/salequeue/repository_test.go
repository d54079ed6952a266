package salequeue

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/insaansher/sherpos-terminal/pkg/db/models"
	"github.com/insaansher/sherpos-terminal/pkg/enums"
	pkgerrors "github.com/insaansher/sherpos-terminal/pkg/errors"
)

func setupQueueTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS offline_sales (
  local_sale_id TEXT PRIMARY KEY,
  created_at DATETIME NOT NULL,
  items TEXT NOT NULL,
  discount_amount NUMERIC NOT NULL,
  payment_method TEXT NOT NULL,
  payment_received NUMERIC NOT NULL,
  grand_total NUMERIC NOT NULL,
  status TEXT NOT NULL,
  error_message TEXT,
  server_data TEXT
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func newSale(t *testing.T, created time.Time) *models.OfflineSale {
	t.Helper()

	return &models.OfflineSale{
		LocalSaleID: uuid.New(),
		CreatedAt:   created,
		Items: []models.SaleItem{
			{ProductID: uuid.New(), Quantity: 2},
		},
		DiscountAmount:  decimal.Zero,
		PaymentMethod:   enums.PaymentMethodCash,
		PaymentReceived: decimal.RequireFromString("20.00"),
		GrandTotal:      decimal.RequireFromString("18.00"),
	}
}

func TestEnqueueForcesQueuedStatus(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sale := newSale(t, time.Now().UTC())
	sale.Status = enums.SaleStatusSynced
	require.NoError(t, repo.Enqueue(ctx, sale))

	stored, err := repo.Get(ctx, sale.LocalSaleID)
	require.NoError(t, err)
	assert.Equal(t, enums.SaleStatusQueued, stored.Status)
	assert.Len(t, stored.Items, 1)
}

func TestEnqueueRejectsDuplicate(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sale := newSale(t, time.Now().UTC())
	require.NoError(t, repo.Enqueue(ctx, sale))

	dup := newSale(t, time.Now().UTC())
	dup.LocalSaleID = sale.LocalSaleID
	err := repo.Enqueue(ctx, dup)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
}

func TestEnqueueRejectsMissingID(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := NewRepository(db)

	sale := newSale(t, time.Now().UTC())
	sale.LocalSaleID = uuid.Nil
	err := repo.Enqueue(context.Background(), sale)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInternal, pkgerrors.CodeOf(err))
}

func TestListByStatusOldestFirst(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	newer := newSale(t, base.Add(time.Hour))
	older := newSale(t, base)
	require.NoError(t, repo.Enqueue(ctx, newer))
	require.NoError(t, repo.Enqueue(ctx, older))

	sales, err := repo.ListByStatus(ctx, enums.SaleStatusQueued)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, older.LocalSaleID, sales[0].LocalSaleID)
	assert.Equal(t, newer.LocalSaleID, sales[1].LocalSaleID)
}

func TestGetNotFound(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := NewRepository(db)

	_, err := repo.Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestUpdateStatusHappyPath(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sale := newSale(t, time.Now().UTC())
	require.NoError(t, repo.Enqueue(ctx, sale))

	require.NoError(t, repo.UpdateStatus(ctx, sale.LocalSaleID, enums.SaleStatusSyncing, "", nil))

	serverData := &models.SyncedSaleData{
		InvoiceNumber: "INV-2026-001",
		FinalAmount:   decimal.RequireFromString("18.00"),
	}
	require.NoError(t, repo.UpdateStatus(ctx, sale.LocalSaleID, enums.SaleStatusSynced, "", serverData))

	stored, err := repo.Get(ctx, sale.LocalSaleID)
	require.NoError(t, err)
	assert.Equal(t, enums.SaleStatusSynced, stored.Status)
	require.NotNil(t, stored.ServerData)
	assert.Equal(t, "INV-2026-001", stored.ServerData.InvoiceNumber)
	assert.True(t, stored.ServerData.FinalAmount.Equal(serverData.FinalAmount))
}

func TestUpdateStatusFailureKeepsMessage(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sale := newSale(t, time.Now().UTC())
	require.NoError(t, repo.Enqueue(ctx, sale))
	require.NoError(t, repo.UpdateStatus(ctx, sale.LocalSaleID, enums.SaleStatusSyncing, "", nil))
	require.NoError(t, repo.UpdateStatus(ctx, sale.LocalSaleID, enums.SaleStatusFailed, "insufficient stock", nil))

	stored, err := repo.Get(ctx, sale.LocalSaleID)
	require.NoError(t, err)
	assert.Equal(t, enums.SaleStatusFailed, stored.Status)
	assert.Equal(t, "insufficient stock", stored.ErrorMessage)
}

func TestUpdateStatusRetryClearsErrorMessage(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sale := newSale(t, time.Now().UTC())
	require.NoError(t, repo.Enqueue(ctx, sale))
	require.NoError(t, repo.UpdateStatus(ctx, sale.LocalSaleID, enums.SaleStatusSyncing, "", nil))
	require.NoError(t, repo.UpdateStatus(ctx, sale.LocalSaleID, enums.SaleStatusFailed, "network error", nil))

	require.NoError(t, repo.UpdateStatus(ctx, sale.LocalSaleID, enums.SaleStatusSyncing, "", nil))
	stored, err := repo.Get(ctx, sale.LocalSaleID)
	require.NoError(t, err)
	assert.Equal(t, enums.SaleStatusSyncing, stored.Status)
	assert.Empty(t, stored.ErrorMessage)
}

func TestUpdateStatusRejectsIllegalTransition(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sale := newSale(t, time.Now().UTC())
	require.NoError(t, repo.Enqueue(ctx, sale))

	serverData := &models.SyncedSaleData{InvoiceNumber: "INV-1", FinalAmount: decimal.Zero}
	err := repo.UpdateStatus(ctx, sale.LocalSaleID, enums.SaleStatusSynced, "", serverData)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
}

func TestUpdateStatusFieldInvariants(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sale := newSale(t, time.Now().UTC())
	require.NoError(t, repo.Enqueue(ctx, sale))
	require.NoError(t, repo.UpdateStatus(ctx, sale.LocalSaleID, enums.SaleStatusSyncing, "", nil))

	err := repo.UpdateStatus(ctx, sale.LocalSaleID, enums.SaleStatusSynced, "", nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInternal, pkgerrors.CodeOf(err))

	err = repo.UpdateStatus(ctx, sale.LocalSaleID, enums.SaleStatusFailed, "", nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInternal, pkgerrors.CodeOf(err))
}

func TestUpdateStatusMissingRecord(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := NewRepository(db)

	err := repo.UpdateStatus(context.Background(), uuid.New(), enums.SaleStatusSyncing, "", nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestCountByStatus(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Enqueue(ctx, newSale(t, time.Now().UTC())))
	}

	count, err := repo.CountByStatus(ctx, enums.SaleStatusQueued)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	count, err = repo.CountByStatus(ctx, enums.SaleStatusSynced)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPruneSyncedOnlyRemovesOldSynced(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	oldSynced := newSale(t, cutoff.Add(-48*time.Hour))
	recentSynced := newSale(t, cutoff.Add(48*time.Hour))
	oldQueued := newSale(t, cutoff.Add(-48*time.Hour))
	require.NoError(t, repo.Enqueue(ctx, oldSynced))
	require.NoError(t, repo.Enqueue(ctx, recentSynced))
	require.NoError(t, repo.Enqueue(ctx, oldQueued))

	serverData := &models.SyncedSaleData{InvoiceNumber: "INV-1", FinalAmount: decimal.Zero}
	for _, id := range []uuid.UUID{oldSynced.LocalSaleID, recentSynced.LocalSaleID} {
		require.NoError(t, repo.UpdateStatus(ctx, id, enums.SaleStatusSyncing, "", nil))
		require.NoError(t, repo.UpdateStatus(ctx, id, enums.SaleStatusSynced, "", serverData))
	}

	pruned, err := repo.PruneSynced(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	_, err = repo.Get(ctx, oldSynced.LocalSaleID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	remaining, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}
