package salequeue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/insaansher/sherpos-terminal/pkg/db/models"
	"github.com/insaansher/sherpos-terminal/pkg/enums"
	pkgerrors "github.com/insaansher/sherpos-terminal/pkg/errors"
)

// Repository is the durable offline sale queue. Records are created once by
// the checkout dispatcher, mutated only through UpdateStatus, and never
// deleted except by an explicit operator prune of synced history.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Enqueue inserts a new record with status queued. A duplicate LocalSaleID is
// rejected, never overwritten: id generation must guarantee uniqueness, so a
// collision is a bug worth surfacing loudly.
func (r *Repository) Enqueue(ctx context.Context, sale *models.OfflineSale) error {
	if sale == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "nil sale")
	}
	if sale.LocalSaleID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "missing local sale id")
	}
	sale.Status = enums.SaleStatusQueued

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.OfflineSale
		err := tx.Select("local_sale_id").
			First(&existing, "local_sale_id = ?", sale.LocalSaleID).Error
		if err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("sale %s already queued", sale.LocalSaleID))
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(sale).Error
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return typed
		}
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "enqueueing offline sale")
	}
	return nil
}

// ListByStatus returns records in the given status, oldest first, so drains
// submit in deterministic sale order.
func (r *Repository) ListByStatus(ctx context.Context, status enums.SaleStatus) ([]models.OfflineSale, error) {
	var sales []models.OfflineSale
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Order("local_sale_id ASC").
		Find(&sales).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "listing offline sales by status")
	}
	return sales, nil
}

// ListAll returns every record regardless of status, newest first, for the
// operator-facing status surface.
func (r *Repository) ListAll(ctx context.Context) ([]models.OfflineSale, error) {
	var sales []models.OfflineSale
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("local_sale_id ASC").
		Find(&sales).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "listing offline sales")
	}
	return sales, nil
}

// Get loads one record by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.OfflineSale, error) {
	var sale models.OfflineSale
	err := r.db.WithContext(ctx).First(&sale, "local_sale_id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offline sale not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "loading offline sale")
	}
	return &sale, nil
}

// CountByStatus reports the number of records in the given status.
func (r *Repository) CountByStatus(ctx context.Context, status enums.SaleStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OfflineSale{}).
		Where("status = ?", status).
		Count(&count).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "counting offline sales")
	}
	return count, nil
}

// UpdateStatus transitions a record, enforcing the forward-only status
// machine and the field invariants (synced carries server data, failed
// carries an error message). The update is a compare-and-set on the prior
// status so a concurrent drain can never move a record backwards or submit
// it twice.
func (r *Repository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	next enums.SaleStatus,
	errorMessage string,
	serverData *models.SyncedSaleData,
) error {
	if !next.IsValid() {
		return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("invalid status %q", next))
	}
	if next == enums.SaleStatusSynced && (serverData == nil || serverData.InvoiceNumber == "") {
		return pkgerrors.New(pkgerrors.CodeInternal, "synced status requires server data")
	}
	if next == enums.SaleStatusFailed && errorMessage == "" {
		return pkgerrors.New(pkgerrors.CodeInternal, "failed status requires an error message")
	}

	sale, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if !sale.Status.CanTransitionTo(next) {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot transition sale from %s to %s", sale.Status, next))
	}

	result := r.db.WithContext(ctx).
		Model(&models.OfflineSale{}).
		Where("local_sale_id = ? AND status = ?", id, sale.Status).
		Select("status", "error_message", "server_data").
		Updates(models.OfflineSale{
			Status:       next,
			ErrorMessage: errorMessage,
			ServerData:   serverData,
		})
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, result.Error, "updating offline sale status")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("sale %s changed status concurrently", id))
	}
	return nil
}

// PruneSynced deletes synced records created before the cutoff. Pruning is
// operator-triggered only; the core never discards history on its own.
func (r *Repository) PruneSynced(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.SaleStatusSynced, olderThan).
		Delete(&models.OfflineSale{})
	if result.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeStorage, result.Error, "pruning synced sales")
	}
	return result.RowsAffected, nil
}
