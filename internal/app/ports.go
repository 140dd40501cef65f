package app

import (
	"context"
	"time"

	"github.com/dealmatch/groupbuy/services/api/internal/domain"
)

// OfferRepository is the persistence surface of the inventory ledger.
type OfferRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetOffer(ctx context.Context, offerID string) (domain.Offer, error)
	GetOfferForUpdate(ctx context.Context, offerID string) (domain.Offer, error)
	UpdateOfferCounters(ctx context.Context, offer domain.Offer) error
	SumOpenReservations(ctx context.Context, offerID string) (pending, paid int, err error)
}

type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetDeal(ctx context.Context, dealID string) (domain.Deal, error)
	GetBuyer(ctx context.Context, buyerID string) (domain.Buyer, error)
	GetOffer(ctx context.Context, offerID string) (domain.Offer, error)
	CreateReservation(ctx context.Context, r domain.Reservation) error
	GetReservation(ctx context.Context, reservationID string) (domain.Reservation, error)
	GetReservationForUpdate(ctx context.Context, reservationID string) (domain.Reservation, error)
	UpdateReservation(ctx context.Context, r domain.Reservation) error
	// ListDueForUpdate locks up to limit PENDING reservations with
	// expires_at <= now, skipping rows locked by other transactions.
	ListDueForUpdate(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error)
	// NextExpiry is the soonest expires_at among PENDING reservations.
	NextExpiry(ctx context.Context) (*time.Time, error)
	EnsureSettlement(ctx context.Context, reservationID string) error
}

type RefundRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetOffer(ctx context.Context, offerID string) (domain.Offer, error)
	GetReservation(ctx context.Context, reservationID string) (domain.Reservation, error)
	GetReservationForUpdate(ctx context.Context, reservationID string) (domain.Reservation, error)
	UpdateReservation(ctx context.Context, r domain.Reservation) error
	GetSettlement(ctx context.Context, reservationID string) (*domain.Settlement, error)
	FlagSettlementRecovery(ctx context.Context, reservationID string, amount int64) error
	FindRefundByKey(ctx context.Context, reservationID, key string) (*domain.RefundRecord, error)
	CreateRefund(ctx context.Context, rec domain.RefundRecord) error
}

// PointsLedger books signed point movements. Add with an idempotency key
// that was already booked is a no-op.
type PointsLedger interface {
	Add(ctx context.Context, entry domain.PointEntry) error
}

type PaymentRequest struct {
	IdempotencyKey string
	ReservationID  string
	BuyerID        string
	Amount         int64
}

// PaymentGateway is the opaque pay/refund capability. Both calls must be
// safe to retry with the same idempotency key.
type PaymentGateway interface {
	Charge(ctx context.Context, req PaymentRequest) error
	Refund(ctx context.Context, req PaymentRequest) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

type noopGateway struct{}

func (noopGateway) Charge(context.Context, PaymentRequest) error { return nil }
func (noopGateway) Refund(context.Context, PaymentRequest) error { return nil }

type noopPoints struct{}

func (noopPoints) Add(context.Context, domain.PointEntry) error { return nil }

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, Event) error { return nil }
