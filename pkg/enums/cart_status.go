package enums

import "fmt"

// CartStatus tracks the lifecycle state of a cart.
type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusExpired   CartStatus = "expired"
	CartStatusConverted CartStatus = "converted"
	CartStatusAbandoned CartStatus = "abandoned"
	CartStatusMerged    CartStatus = "merged"
)

var validCartStatuses = []CartStatus{
	CartStatusActive,
	CartStatusExpired,
	CartStatusConverted,
	CartStatusAbandoned,
	CartStatusMerged,
}

// String implements fmt.Stringer.
func (c CartStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CartStatus.
func (c CartStatus) IsValid() bool {
	for _, candidate := range validCartStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status permits no further mutation.
func (c CartStatus) IsTerminal() bool {
	return c != CartStatusActive
}

// ParseCartStatus converts raw input into a CartStatus.
func ParseCartStatus(value string) (CartStatus, error) {
	for _, candidate := range validCartStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart status %q", value)
}
