package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marketloop/cartengine/pkg/db/models"
	"github.com/marketloop/cartengine/pkg/enums"
	pkgerrors "github.com/marketloop/cartengine/pkg/errors"
	"github.com/marketloop/cartengine/pkg/outbox/payloads"
	"github.com/marketloop/cartengine/pkg/types"
)

// ConvertToOrder runs a final refresh, hardens the reservations for the
// order, records promotion redemptions, and closes the cart. A cart that is
// already converted returns as-is so checkout retries stay safe.
func (s *service) ConvertToOrder(ctx context.Context, cartID uuid.UUID, owner types.OwnerRef, orderID uuid.UUID) (*models.Cart, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	existing, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CheckOwnership(existing, owner); err != nil {
		return nil, err
	}
	if existing.Status == enums.CartStatusConverted {
		return existing, nil
	}

	cart, err := s.mutate(ctx, cartID, owner, func(ctx context.Context, tx *gorm.DB, cart *models.Cart, mut *mutation) error {
		if len(cart.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cannot convert an empty cart")
		}

		mut.finalize = func(ctx context.Context, tx *gorm.DB, cart *models.Cart) error {
			if unavailable := unavailableVariants(cart); len(unavailable) > 0 {
				return pkgerrors.New(pkgerrors.CodeInsufficient, "cart contains unavailable items").
					WithDetails(map[string]any{"variants": unavailable})
			}
			if err := s.reservations.WithTx(tx).ConvertToHard(ctx, cart.ID, orderID); err != nil {
				return err
			}
			if err := s.recordRedemptions(ctx, tx, cart, orderID); err != nil {
				return err
			}

			cart.Status = enums.CartStatusConverted
			mut.emit(enums.EventCartConverted, enums.AggregateCart, cart.ID, payloads.CartConvertedEvent{
				CartID:  cart.ID,
				OrderID: orderID,
			})
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.log.WithCartID(ctx, cart.ID.String())
	s.log.Info(s.log.WithField(logCtx, "order_id", orderID.String()), "cart converted to order")
	return cart, nil
}

// recordRedemptions writes one usage row per applied promotion so the
// catalog's usage limits count this order.
func (s *service) recordRedemptions(ctx context.Context, tx *gorm.DB, cart *models.Cart, orderID uuid.UUID) error {
	seen := map[uuid.UUID]bool{}
	var rows []models.PromotionUsage
	for _, applied := range cart.Promotions {
		if seen[applied.PromotionID] {
			continue
		}
		seen[applied.PromotionID] = true
		rows = append(rows, models.PromotionUsage{
			ID:          uuid.New(),
			PromotionID: applied.PromotionID,
			UserID:      cart.UserID,
			OrderID:     orderID,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	if err := tx.WithContext(ctx).Create(&rows).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record promotion usage")
	}
	return nil
}

func unavailableVariants(cart *models.Cart) []uuid.UUID {
	var out []uuid.UUID
	for i := range cart.Items {
		if !cart.Items[i].Available {
			out = append(out, cart.Items[i].VariantID)
		}
	}
	return out
}
