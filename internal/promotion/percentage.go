package promotion

import (
	"github.com/shopspring/decimal"

	"github.com/marketloop/cartengine/pkg/db/models"
)

var oneHundred = decimal.NewFromInt(100)

// PercentageCalculator discounts the eligible subtotal by a percentage,
// capped at the promotion's max-discount amount when one is set.
type PercentageCalculator struct{}

// Calculate implements Calculator.
func (PercentageCalculator) Calculate(promo models.Promotion, cart CartSnapshot) (DiscountResult, error) {
	lines := scopeLines(promo, cart)
	if len(lines) == 0 {
		return DiscountResult{Amount: decimal.Zero}, nil
	}
	subtotal := linesSubtotal(lines)
	amount := subtotal.Mul(promo.Value).Div(oneHundred).Round(2)
	amount = capDiscount(amount, promo.MaxDiscountAmount)
	return DiscountResult{
		Amount:        amount,
		EligibleItems: lineIDs(lines),
	}, nil
}
