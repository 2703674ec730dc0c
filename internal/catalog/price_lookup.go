package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/marketloop/cartengine/pkg/db/models"
	"github.com/marketloop/cartengine/pkg/enums"
	pkgerrors "github.com/marketloop/cartengine/pkg/errors"
)

// PriceInfo is the read-only variant snapshot returned by the adapter.
type PriceInfo struct {
	VariantID   uuid.UUID
	ProductID   uuid.UUID
	SellerID    uuid.UUID
	CategoryID  uuid.UUID
	TaxCategory enums.TaxCategory
	UnitPrice   decimal.Decimal
}

// PriceLookup is the boundary to the external catalog: current price and
// live availability for a variant.
type PriceLookup interface {
	GetCurrentPrice(ctx context.Context, variantID uuid.UUID) (*PriceInfo, error)
	GetAvailableQuantity(ctx context.Context, variantID uuid.UUID) (int, error)
}

// Repository implements PriceLookup over the variant_stocks table.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// GetCurrentPrice returns the current unit price and classification for a
// variant, or not-found when the variant is absent or inactive.
func (r *Repository) GetCurrentPrice(ctx context.Context, variantID uuid.UUID) (*PriceInfo, error) {
	var row models.VariantStock
	err := r.db.WithContext(ctx).
		Where("variant_id = ? AND active = ?", variantID, true).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant price")
	}
	return &PriceInfo{
		VariantID:   row.VariantID,
		ProductID:   row.ProductID,
		SellerID:    row.SellerID,
		CategoryID:  row.CategoryID,
		TaxCategory: row.TaxCategory,
		UnitPrice:   row.UnitPrice,
	}, nil
}

// GetAvailableQuantity returns stock minus active reservations.
func (r *Repository) GetAvailableQuantity(ctx context.Context, variantID uuid.UUID) (int, error) {
	var row models.VariantStock
	err := r.db.WithContext(ctx).
		Where("variant_id = ?", variantID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant stock")
	}
	available := row.StockQty - row.ReservedQty
	if available < 0 {
		available = 0
	}
	return available, nil
}
