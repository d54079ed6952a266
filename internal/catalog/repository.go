package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/insaansher/sherpos-terminal/pkg/db/models"
	pkgerrors "github.com/insaansher/sherpos-terminal/pkg/errors"
)

// Repository persists the terminal's product cache. The cache has
// full-replace semantics: each successful online fetch swaps the entire
// table inside one transaction.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ReplaceAll atomically clears and repopulates the cache. A failed write
// must surface: the prior cache stays intact because the whole swap rolls
// back with the transaction.
func (r *Repository) ReplaceAll(ctx context.Context, products []models.CachedProduct) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.CachedProduct{}).Error; err != nil {
			return err
		}
		if len(products) == 0 {
			return nil
		}
		return tx.Create(&products).Error
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "replacing product cache")
	}
	return nil
}

// List returns cached products, optionally filtered by a case-insensitive
// substring match on name or SKU, or an exact barcode match for scanner
// input. Works fully offline.
func (r *Repository) List(ctx context.Context, filter string) ([]models.CachedProduct, error) {
	query := r.db.WithContext(ctx).Model(&models.CachedProduct{}).Order("name ASC")

	filter = strings.TrimSpace(filter)
	if filter != "" {
		pattern := "%" + strings.ToLower(filter) + "%"
		query = query.Where(
			"lower(name) LIKE ? OR lower(sku) LIKE ? OR barcode = ?",
			pattern, pattern, filter,
		)
	}

	var products []models.CachedProduct
	if err := query.Find(&products).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "listing cached products")
	}
	return products, nil
}

// Find loads one cached product by id.
func (r *Repository) Find(ctx context.Context, id uuid.UUID) (*models.CachedProduct, error) {
	var product models.CachedProduct
	err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not in cache")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "loading cached product")
	}
	return &product, nil
}

// Count reports how many products the cache holds.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CachedProduct{}).Count(&count).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "counting cached products")
	}
	return count, nil
}
