package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateCart        OutboxAggregateType = "cart"
	AggregateCartItem    OutboxAggregateType = "cart_item"
	AggregateReservation OutboxAggregateType = "reservation"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateCart,
	AggregateCartItem,
	AggregateReservation,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventCartCreated         OutboxEventType = "cart_created"
	EventCartItemAdded       OutboxEventType = "cart_item_added"
	EventCartItemUpdated     OutboxEventType = "cart_item_updated"
	EventCartItemRemoved     OutboxEventType = "cart_item_removed"
	EventCartPromosApplied   OutboxEventType = "cart_promotions_applied"
	EventCartPriceChanged    OutboxEventType = "cart_price_changed"
	EventCartMerged          OutboxEventType = "cart_merged"
	EventCartConverted       OutboxEventType = "cart_converted"
	EventCartExpired         OutboxEventType = "cart_expired"
	EventCartAbandoned       OutboxEventType = "cart_abandoned"
	EventReservationExpired  OutboxEventType = "reservation_expired"
	EventReservationReleased OutboxEventType = "reservation_released"
)

var validEventTypes = []OutboxEventType{
	EventCartCreated,
	EventCartItemAdded,
	EventCartItemUpdated,
	EventCartItemRemoved,
	EventCartPromosApplied,
	EventCartPriceChanged,
	EventCartMerged,
	EventCartConverted,
	EventCartExpired,
	EventCartAbandoned,
	EventReservationExpired,
	EventReservationReleased,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
