package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type EventType string

const (
	EventReservationCreated   EventType = "reservation.created"
	EventReservationPaid      EventType = "reservation.paid"
	EventReservationCancelled EventType = "reservation.cancelled"
	EventReservationExpired   EventType = "reservation.expired"
	EventReservationShipped   EventType = "reservation.shipped"
	EventArrivalConfirmed     EventType = "reservation.arrival_confirmed"
	EventRefundExecuted       EventType = "refund.executed"
)

// Event is a committed state change handed to the notification side.
type Event struct {
	Type          EventType `json:"type"`
	ReservationID string    `json:"reservation_id"`
	OfferID       string    `json:"offer_id"`
	BuyerID       string    `json:"buyer_id"`
	Qty           int       `json:"qty"`
	Amount        int64     `json:"amount,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// publish is called after commit; a delivery failure never undoes the
// state change, it is only logged.
func publish(ctx context.Context, pub EventPublisher, logger *zap.Logger, events ...Event) {
	for _, ev := range events {
		if err := pub.Publish(ctx, ev); err != nil {
			logger.Warn("publish event failed",
				zap.String("type", string(ev.Type)),
				zap.String("reservation_id", ev.ReservationID),
				zap.Error(err),
			)
		}
	}
}
