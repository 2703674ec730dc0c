package guard

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marketloop/cartengine/pkg/config"
	"github.com/marketloop/cartengine/pkg/db/models"
	"github.com/marketloop/cartengine/pkg/enums"
	pkgerrors "github.com/marketloop/cartengine/pkg/errors"
	"github.com/marketloop/cartengine/pkg/types"
)

// Guard enforces ownership, status, and business-limit checks ahead of every
// cart mutation. Limits are fixed business constants from configuration.
type Guard struct {
	limits config.CartConfig
	now    func() time.Time
}

// NewGuard constructs the integrity guard.
func NewGuard(limits config.CartConfig) *Guard {
	return &Guard{limits: limits, now: time.Now}
}

// CheckOwnership rejects access by anyone but the cart's owner.
func (g *Guard) CheckOwnership(cart *models.Cart, owner types.OwnerRef) error {
	if err := owner.Validate(); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}
	cartOwner := cart.Owner()
	if cartOwner.IsUser() {
		if !owner.IsUser() || *cartOwner.UserID != *owner.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "cart belongs to another owner")
		}
		return nil
	}
	if cartOwner.IsSession() {
		if !owner.IsSession() || *cartOwner.SessionID != *owner.SessionID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "cart belongs to another owner")
		}
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeInternal, "cart has no owner reference")
}

// CheckActive rejects operations on non-active or expired carts.
func (g *Guard) CheckActive(cart *models.Cart) error {
	if cart.Status != enums.CartStatusActive {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("cart is %s", cart.Status)).
			WithDetails(map[string]any{"status": cart.Status.String()})
	}
	if !cart.ExpiresAt.IsZero() && g.now().UTC().After(cart.ExpiresAt) {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart has expired")
	}
	return nil
}

// PreCheck is the pipeline entry gate: ownership plus status.
func (g *Guard) PreCheck(cart *models.Cart, owner types.OwnerRef) error {
	if err := g.CheckOwnership(cart, owner); err != nil {
		return err
	}
	return g.CheckActive(cart)
}

// CheckLimits enforces the business ceilings against the cart state about to
// be persisted.
func (g *Guard) CheckLimits(cart *models.Cart) error {
	if g.limits.MaxItems > 0 && len(cart.Items) > g.limits.MaxItems {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart line limit exceeded").
			WithDetails(map[string]any{"maxItems": g.limits.MaxItems})
	}

	sellers := map[uuid.UUID]struct{}{}
	for i := range cart.Items {
		item := &cart.Items[i]
		if g.limits.MaxQtyPerItem > 0 && item.Quantity > g.limits.MaxQtyPerItem {
			return pkgerrors.New(pkgerrors.CodeValidation, "per-line quantity limit exceeded").
				WithDetails(map[string]any{
					"variantId":     item.VariantID,
					"maxQtyPerItem": g.limits.MaxQtyPerItem,
				})
		}
		sellers[item.SellerID] = struct{}{}
	}
	if g.limits.MaxSellers > 0 && len(sellers) > g.limits.MaxSellers {
		return pkgerrors.New(pkgerrors.CodeValidation, "distinct seller limit exceeded").
			WithDetails(map[string]any{"maxSellers": g.limits.MaxSellers})
	}

	if maxValue := g.limits.MaxValue(); maxValue.IsPositive() && cart.GrandTotal.GreaterThan(maxValue) {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart value limit exceeded").
			WithDetails(map[string]any{"maxValue": maxValue.StringFixed(2)})
	}
	return nil
}
