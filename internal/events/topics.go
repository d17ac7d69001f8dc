package events

// Topic constants for domain events emitted by the rental engine.
const (
	TopicReservationHeld      = "reservation.held"
	TopicReservationConfirmed = "reservation.confirmed"
	TopicReservationReleased  = "reservation.released"
	TopicReservationExpired   = "reservation.expired"
	TopicOrderPlaced          = "order.placed"
	TopicOrderPickedUp        = "order.picked_up"
	TopicOrderReturned        = "order.returned"
	TopicOrderCancelled       = "order.cancelled"
	TopicLateFeeApplied       = "order.late_fee_applied"
)

// DefaultTopics returns the canonical list of topics consumers may subscribe to.
func DefaultTopics() []string {
	return []string{
		TopicReservationHeld,
		TopicReservationConfirmed,
		TopicReservationReleased,
		TopicReservationExpired,
		TopicOrderPlaced,
		TopicOrderPickedUp,
		TopicOrderReturned,
		TopicOrderCancelled,
		TopicLateFeeApplied,
	}
}
