package promotion

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketloop/cartengine/pkg/db/models"
	"github.com/marketloop/cartengine/pkg/enums"
)

// LineDiscount attributes part of a discount to a single cart line.
type LineDiscount struct {
	ItemID uuid.UUID
	Amount decimal.Decimal
}

// DiscountResult is the output of one calculator run: the total amount, the
// lines the promotion targeted, and an optional per-line breakdown. When the
// breakdown is empty the amount is distributed proportionally downstream.
type DiscountResult struct {
	Amount        decimal.Decimal
	EligibleItems []uuid.UUID
	LineBreakdown []LineDiscount
}

// Calculator computes the discount a promotion produces against a snapshot.
// Implementations must be pure: same inputs, same result.
type Calculator interface {
	Calculate(promo models.Promotion, cart CartSnapshot) (DiscountResult, error)
}

// calculators is the static registry mapping discount type to implementation.
var calculators = map[enums.DiscountType]Calculator{
	enums.DiscountTypePercentage: PercentageCalculator{},
	enums.DiscountTypeFixed:      FixedCalculator{},
	enums.DiscountTypeBuyXGetY:   BuyXGetYCalculator{},
}

// CalculatorFor resolves the calculator for a discount type.
func CalculatorFor(discountType enums.DiscountType) (Calculator, bool) {
	calc, ok := calculators[discountType]
	return calc, ok
}

// capDiscount clamps the amount to the promotion's max-discount cap when set.
func capDiscount(amount decimal.Decimal, cap *decimal.Decimal) decimal.Decimal {
	if cap != nil && amount.GreaterThan(*cap) {
		return *cap
	}
	return amount
}
