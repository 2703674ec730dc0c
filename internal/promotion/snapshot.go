package promotion

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketloop/cartengine/pkg/db/models"
	"github.com/marketloop/cartengine/pkg/enums"
	"github.com/marketloop/cartengine/pkg/types"
)

// LineSnapshot is one cart line frozen for a single evaluation pass. Position
// is the insertion order of the line, used as the deterministic tie-break.
type LineSnapshot struct {
	ItemID      uuid.UUID
	VariantID   uuid.UUID
	ProductID   uuid.UUID
	SellerID    uuid.UUID
	CategoryID  uuid.UUID
	TaxCategory enums.TaxCategory
	UnitPrice   decimal.Decimal
	Quantity    int
	Position    int
}

// Total returns unit price times quantity.
func (l LineSnapshot) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartSnapshot is the immutable view of a cart handed to the evaluator and
// the calculators. Building it once per pass keeps the pass idempotent.
type CartSnapshot struct {
	CartID   uuid.UUID
	Owner    types.OwnerRef
	Currency enums.Currency
	Lines    []LineSnapshot
}

// Subtotal sums all line totals.
func (c CartSnapshot) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Lines {
		total = total.Add(line.Total())
	}
	return total
}

// scopeLines returns the lines a promotion can target. Global and user scopes
// cover the whole cart; the remaining scopes match against the allow-list.
func scopeLines(promo models.Promotion, cart CartSnapshot) []LineSnapshot {
	switch promo.Scope {
	case enums.PromotionScopeGlobal, enums.PromotionScopeUser:
		return cart.Lines
	case enums.PromotionScopeCategory:
		return filterLines(cart.Lines, func(l LineSnapshot) bool {
			return promo.ScopeRefs.Contains(l.CategoryID)
		})
	case enums.PromotionScopeProduct:
		return filterLines(cart.Lines, func(l LineSnapshot) bool {
			return promo.ScopeRefs.Contains(l.ProductID)
		})
	case enums.PromotionScopeSeller:
		return filterLines(cart.Lines, func(l LineSnapshot) bool {
			return promo.ScopeRefs.Contains(l.SellerID)
		})
	default:
		return nil
	}
}

func filterLines(lines []LineSnapshot, keep func(LineSnapshot) bool) []LineSnapshot {
	var out []LineSnapshot
	for _, line := range lines {
		if keep(line) {
			out = append(out, line)
		}
	}
	return out
}

func lineIDs(lines []LineSnapshot) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ItemID)
	}
	return ids
}

func linesSubtotal(lines []LineSnapshot) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Total())
	}
	return total
}
