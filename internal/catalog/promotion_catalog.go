package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marketloop/cartengine/pkg/db/models"
	pkgerrors "github.com/marketloop/cartengine/pkg/errors"
	"github.com/marketloop/cartengine/pkg/types"
)

// PromotionCatalog is the boundary to the external promotion store.
// CheckOwnerEligibility is the opaque owner predicate (first-order rules and
// the like); the default implementation accepts everyone.
type PromotionCatalog interface {
	FindActive(ctx context.Context) ([]models.Promotion, error)
	FindByCode(ctx context.Context, code string) (*models.Promotion, error)
	GetUsageCount(ctx context.Context, promotionID uuid.UUID, userID *uuid.UUID) (int, error)
	CheckOwnerEligibility(ctx context.Context, promo models.Promotion, owner types.OwnerRef) (bool, error)
}

// PromotionRepository implements PromotionCatalog over the promotions table.
type PromotionRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPromotionRepository constructs a promotion catalog adapter.
func NewPromotionRepository(db *gorm.DB) *PromotionRepository {
	return &PromotionRepository{db: db, now: time.Now}
}

// WithTx binds the repository to a transaction.
func (r *PromotionRepository) WithTx(tx *gorm.DB) *PromotionRepository {
	if tx == nil {
		return r
	}
	return &PromotionRepository{db: tx, now: r.now}
}

// FindActive returns auto-applying promotions whose validity window covers
// now. Code-gated promotions are resolved through FindByCode only.
func (r *PromotionRepository) FindActive(ctx context.Context) ([]models.Promotion, error) {
	now := r.now().UTC()
	var rows []models.Promotion
	err := r.db.WithContext(ctx).
		Where("active = ? AND requires_code = ? AND starts_at <= ? AND ends_at >= ?", true, false, now, now).
		Order("priority DESC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active promotions")
	}
	return rows, nil
}

// FindByCode resolves an explicitly supplied promotion code.
func (r *PromotionRepository) FindByCode(ctx context.Context, code string) (*models.Promotion, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promotion code is required")
	}
	var row models.Promotion
	err := r.db.WithContext(ctx).
		Where("upper(code) = ?", normalized).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promotion not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promotion")
	}
	return &row, nil
}

// GetUsageCount returns the global redemption count, or the per-user count
// when userID is provided.
func (r *PromotionRepository) GetUsageCount(ctx context.Context, promotionID uuid.UUID, userID *uuid.UUID) (int, error) {
	query := r.db.WithContext(ctx).
		Model(&models.PromotionUsage{}).
		Where("promotion_id = ?", promotionID)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count promotion usage")
	}
	return int(count), nil
}

// CheckOwnerEligibility is the opaque catalog predicate. The table-backed
// catalog has no owner-specific rules beyond scope, so everyone passes.
func (r *PromotionRepository) CheckOwnerEligibility(ctx context.Context, promo models.Promotion, owner types.OwnerRef) (bool, error) {
	return true, nil
}
