package enums

// ReservationRef distinguishes soft (cart) from hard (order) holds.
type ReservationRef string

const (
	ReservationRefCart  ReservationRef = "cart"
	ReservationRefOrder ReservationRef = "order"
)

// String implements fmt.Stringer.
func (r ReservationRef) String() string {
	return string(r)
}
