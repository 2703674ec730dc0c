package promotion

import (
	"github.com/shopspring/decimal"

	"github.com/marketloop/cartengine/pkg/db/models"
)

// FixedCalculator discounts a fixed amount, never exceeding the eligible
// subtotal.
type FixedCalculator struct{}

// Calculate implements Calculator.
func (FixedCalculator) Calculate(promo models.Promotion, cart CartSnapshot) (DiscountResult, error) {
	lines := scopeLines(promo, cart)
	if len(lines) == 0 {
		return DiscountResult{Amount: decimal.Zero}, nil
	}
	subtotal := linesSubtotal(lines)
	amount := promo.Value
	if amount.GreaterThan(subtotal) {
		amount = subtotal
	}
	amount = capDiscount(amount, promo.MaxDiscountAmount)
	return DiscountResult{
		Amount:        amount,
		EligibleItems: lineIDs(lines),
	}, nil
}
