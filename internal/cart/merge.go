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

// Merge failure reasons reported per source line.
const (
	MergeFailureCartFull    = "cart_full"
	MergeFailureQuantityCap = "quantity_cap"
	MergeFailureSellerLimit = "seller_limit"
	MergeFailureUnavailable = "variant_unavailable"
)

// MergeLineFailure records one source line that could not be carried over.
type MergeLineFailure struct {
	VariantID uuid.UUID `json:"variantId"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason"`
}

// MergeResult is the outcome of a guest-to-user cart merge. Failures never
// abort the merge; the lines that fit are moved and the rest are reported.
type MergeResult struct {
	Cart     *models.Cart
	Failures []MergeLineFailure
}

// MergeGuestCart folds an anonymous session cart into the user's cart. Lines
// merge by (variant, seller); lines that would breach the cart limits or
// reference a vanished variant are skipped and reported. The source cart is
// marked merged either way.
func (s *service) MergeGuestCart(ctx context.Context, sourceCartID uuid.UUID, sessionOwner, userOwner types.OwnerRef) (*MergeResult, error) {
	if !sessionOwner.IsSession() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merge source must be a session cart")
	}
	if !userOwner.IsUser() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merge target must be a user cart")
	}

	source, err := s.repo.FindByID(ctx, sourceCartID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CheckOwnership(source, sessionOwner); err != nil {
		return nil, err
	}
	if source.Status != enums.CartStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "source cart is not active").
			WithDetails(map[string]any{"status": source.Status})
	}

	target, err := s.GetOrCreate(ctx, userOwner)
	if err != nil {
		return nil, err
	}
	if target.ID == source.ID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot merge a cart into itself")
	}

	var failures []MergeLineFailure
	merged, err := s.mutate(ctx, target.ID, userOwner, func(ctx context.Context, tx *gorm.DB, cart *models.Cart, mut *mutation) error {
		failures = failures[:0]
		for i := range source.Items {
			line := source.Items[i]
			if reason := s.mergeLine(ctx, tx, cart, line); reason != "" {
				failures = append(failures, MergeLineFailure{
					VariantID: line.VariantID,
					Quantity:  line.Quantity,
					Reason:    reason,
				})
			}
		}
		for _, code := range codesFrom(source.Promotions) {
			mut.codes = appendCode(mut.codes, code)
		}

		mut.finalize = func(ctx context.Context, tx *gorm.DB, cart *models.Cart) error {
			if _, err := s.reservations.WithTx(tx).ReleaseForCart(ctx, source.ID); err != nil {
				return err
			}
			if err := s.repo.WithTx(tx).UpdateStatus(ctx, source.ID, enums.CartStatusMerged); err != nil {
				return err
			}
			mut.emit(enums.EventCartMerged, enums.AggregateCart, cart.ID, payloads.CartMergedEvent{
				CartID:      cart.ID,
				SourceCart:  source.ID,
				FailedLines: len(failures),
			})
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.log.WithCartID(ctx, merged.ID.String())
	s.log.Info(s.log.WithField(logCtx, "source_cart_id", source.ID.String()), "guest cart merged")
	return &MergeResult{Cart: merged, Failures: failures}, nil
}

// mergeLine moves one source line into the target cart in memory, returning
// a failure reason when the line cannot fit.
func (s *service) mergeLine(ctx context.Context, tx *gorm.DB, cart *models.Cart, line models.CartItem) string {
	info, err := s.prices.WithTx(tx).GetCurrentPrice(ctx, line.VariantID)
	if err != nil {
		return MergeFailureUnavailable
	}

	for i := range cart.Items {
		item := &cart.Items[i]
		if item.VariantID == line.VariantID && item.SellerID == line.SellerID {
			combined := item.Quantity + line.Quantity
			if s.cfg.MaxQtyPerItem > 0 && combined > s.cfg.MaxQtyPerItem {
				return MergeFailureQuantityCap
			}
			item.Quantity = combined
			return ""
		}
	}

	if s.cfg.MaxItems > 0 && len(cart.Items) >= s.cfg.MaxItems {
		return MergeFailureCartFull
	}
	if s.cfg.MaxQtyPerItem > 0 && line.Quantity > s.cfg.MaxQtyPerItem {
		return MergeFailureQuantityCap
	}
	if s.cfg.MaxSellers > 0 && s.wouldExceedSellers(cart, line.SellerID) {
		return MergeFailureSellerLimit
	}

	cart.Items = append(cart.Items, models.CartItem{
		ID:                 uuid.New(),
		CartID:             cart.ID,
		VariantID:          line.VariantID,
		SellerID:           line.SellerID,
		Quantity:           line.Quantity,
		UnitPrice:          line.UnitPrice,
		CurrentUnitPrice:   info.UnitPrice,
		Available:          true,
		AvailabilityReason: enums.AvailabilityInStock,
	})
	return ""
}

func (s *service) wouldExceedSellers(cart *models.Cart, sellerID uuid.UUID) bool {
	sellers := map[uuid.UUID]bool{sellerID: true}
	for i := range cart.Items {
		sellers[cart.Items[i].SellerID] = true
	}
	return len(sellers) > s.cfg.MaxSellers
}
