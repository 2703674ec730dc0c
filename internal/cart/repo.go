package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marketloop/cartengine/pkg/db/models"
	"github.com/marketloop/cartengine/pkg/enums"
	pkgerrors "github.com/marketloop/cartengine/pkg/errors"
	"github.com/marketloop/cartengine/pkg/types"
)

// Repository exposes persistence operations for carts and their children.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
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

// Create inserts a new cart.
func (r *Repository) Create(ctx context.Context, cart *models.Cart) error {
	if cart.Status == "" {
		cart.Status = enums.CartStatusActive
	}
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return nil
}

// FindByID loads a cart with its lines and applied promotions.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Promotions").
		Where("id = ?", id).
		First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return &cart, nil
}

// FindActiveByOwner loads the latest active cart for the owner.
func (r *Repository) FindActiveByOwner(ctx context.Context, owner types.OwnerRef) (*models.Cart, error) {
	query := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Promotions").
		Where("status = ?", enums.CartStatusActive)
	if owner.IsUser() {
		query = query.Where("user_id = ?", *owner.UserID)
	} else {
		query = query.Where("session_id = ?", *owner.SessionID)
	}

	var cart models.Cart
	err := query.Order("created_at DESC").First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "active cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active cart")
	}
	return &cart, nil
}

// SaveSnapshot persists the recomputed cart state, guarded by the version the
// writer read. A lost race surfaces as a retryable conflict; the version is
// incremented in the same statement that checks it.
func (r *Repository) SaveSnapshot(ctx context.Context, cart *models.Cart, expectedVersion int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND version = ?", cart.ID, expectedVersion).
		Updates(map[string]any{
			"status":           cart.Status,
			"currency":         cart.Currency,
			"subtotal_amount":  cart.SubtotalAmount,
			"discount_amount":  cart.DiscountAmount,
			"tax_amount":       cart.TaxAmount,
			"shipping_amount":  cart.ShippingAmount,
			"grand_total":      cart.GrandTotal,
			"expires_at":       cart.ExpiresAt,
			"last_activity_at": cart.LastActivityAt,
			"version":          expectedVersion + 1,
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "save cart")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "cart version mismatch")
	}
	cart.Version = expectedVersion + 1

	if err := r.replaceItems(ctx, cart.ID, cart.Items); err != nil {
		return err
	}
	return r.replacePromotions(ctx, cart.ID, cart.Promotions)
}

// UpdateStatus transitions the cart's lifecycle status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.CartStatus) error {
	err := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", id).
		Update("status", status).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart status")
	}
	return nil
}

// FindExpired returns active carts whose expiry has passed.
func (r *Repository) FindExpired(ctx context.Context, now time.Time, limit int) ([]models.Cart, error) {
	var rows []models.Cart
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", enums.CartStatusActive, now).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load expired carts")
	}
	return rows, nil
}

// FindInactiveSince returns active carts with no activity since the cutoff.
func (r *Repository) FindInactiveSince(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error) {
	var rows []models.Cart
	err := r.db.WithContext(ctx).
		Where("status = ? AND last_activity_at <= ?", enums.CartStatusActive, cutoff).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inactive carts")
	}
	return rows, nil
}

// SumActiveQuantityByOwner aggregates the owner's reserved units across all
// active carts, for the hoarding check.
func (r *Repository) SumActiveQuantityByOwner(ctx context.Context, owner types.OwnerRef) (int, error) {
	query := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("carts.status = ? AND cart_items.reservation_id IS NOT NULL", enums.CartStatusActive)
	if owner.IsUser() {
		query = query.Where("carts.user_id = ?", *owner.UserID)
	} else {
		query = query.Where("carts.session_id = ?", *owner.SessionID)
	}

	var total *int
	if err := query.Select("SUM(cart_items.quantity)").Scan(&total).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum reserved quantity")
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (r *Repository) replaceItems(ctx context.Context, cartID uuid.UUID, items []models.CartItem) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart items")
	}
	if len(items) == 0 {
		return nil
	}
	// Re-inserted rows share one created_at; position keeps the insertion
	// order the buy-x-get-y tie-break depends on.
	for i := range items {
		items[i].CartID = cartID
		items[i].Position = i
	}
	if err := tx.Create(&items).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert cart items")
	}
	return nil
}

func (r *Repository) replacePromotions(ctx context.Context, cartID uuid.UUID, rows []models.AppliedPromotion) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("cart_id = ?", cartID).Delete(&models.AppliedPromotion{}).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear applied promotions")
	}
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		rows[i].CartID = cartID
	}
	if err := tx.Create(&rows).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert applied promotions")
	}
	return nil
}
