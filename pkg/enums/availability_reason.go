package enums

// AvailabilityReason explains why a cart line is or is not fulfillable.
type AvailabilityReason string

const (
	AvailabilityInStock     AvailabilityReason = "IN_STOCK"
	AvailabilityOutOfStock  AvailabilityReason = "OUT_OF_STOCK"
	AvailabilityPartial     AvailabilityReason = "PARTIAL_AVAILABILITY"
	AvailabilityUnavailable AvailabilityReason = "UNAVAILABLE"
)

// String implements fmt.Stringer.
func (a AvailabilityReason) String() string {
	return string(a)
}
