package enums

import "fmt"

// PromotionScope restricts which carts a promotion can target.
type PromotionScope string

const (
	PromotionScopeGlobal   PromotionScope = "global"
	PromotionScopeCategory PromotionScope = "category"
	PromotionScopeProduct  PromotionScope = "product"
	PromotionScopeSeller   PromotionScope = "seller"
	PromotionScopeUser     PromotionScope = "user"
)

var validPromotionScopes = []PromotionScope{
	PromotionScopeGlobal,
	PromotionScopeCategory,
	PromotionScopeProduct,
	PromotionScopeSeller,
	PromotionScopeUser,
}

// String implements fmt.Stringer.
func (p PromotionScope) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p PromotionScope) IsValid() bool {
	for _, candidate := range validPromotionScopes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePromotionScope converts raw input into a PromotionScope.
func ParsePromotionScope(value string) (PromotionScope, error) {
	for _, candidate := range validPromotionScopes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid promotion scope %q", value)
}
