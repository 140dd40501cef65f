package domain

import "time"

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationPaid      ReservationStatus = "PAID"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

// Terminal reports whether no further transition is possible.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationCancelled || s == ReservationExpired
}

// Reservation is a buyer's hold against an offer. It becomes an order on
// payment and is never deleted; terminal rows are the historical record.
type Reservation struct {
	ID      string
	DealID  string
	OfferID string
	BuyerID string
	Qty     int
	Status  ReservationStatus

	CreatedAt          time.Time
	ExpiresAt          time.Time
	PaidAt             *time.Time
	CancelledAt        *time.Time
	ExpiredAt          *time.Time
	ShippedAt          *time.Time
	DeliveredAt        *time.Time
	ArrivalConfirmedAt *time.Time

	ShippingCarrier string
	TrackingNumber  string

	// Frozen at payment time.
	AmountGoods    int64
	AmountShipping int64
	AmountTotal    int64

	RefundedQty         int
	RefundedAmountTotal int64
	IsDisputed          bool
}

// UnrefundedQty is the quantity still eligible for refund.
func (r Reservation) UnrefundedQty() int {
	return r.Qty - r.RefundedQty
}

// MarkPaid freezes the money snapshot and moves PENDING to PAID.
func (r *Reservation) MarkPaid(now time.Time, goods, shipping int64) error {
	if r.Status != ReservationPending {
		return ErrInvalidTransition.Withf("cannot pay: status=%s", r.Status)
	}
	if now.After(r.ExpiresAt) {
		return ErrReservationExpired
	}
	if goods < 0 || shipping < 0 {
		return ErrInvalidAmount
	}
	r.AmountGoods = goods
	r.AmountShipping = shipping
	r.AmountTotal = goods + shipping
	r.PaidAt = &now
	r.Status = ReservationPaid
	return nil
}

// Cancel ends an unpaid hold at the owner's request.
func (r *Reservation) Cancel(now time.Time) error {
	if r.Status != ReservationPending {
		return ErrInvalidTransition.Withf("cannot cancel: status=%s", r.Status)
	}
	r.Status = ReservationCancelled
	r.CancelledAt = &now
	return nil
}

// Expire ends an unpaid hold whose deadline has passed.
func (r *Reservation) Expire(now time.Time) error {
	if r.Status != ReservationPending {
		return ErrInvalidTransition.Withf("cannot expire: status=%s", r.Status)
	}
	if r.ExpiresAt.After(now) {
		return ErrInvalidTransition.Withf("cannot expire before %s", r.ExpiresAt.Format(time.RFC3339))
	}
	r.Status = ReservationExpired
	r.ExpiredAt = &now
	return nil
}

// MarkShipped records the shipment once. It reports whether anything
// changed so callers can skip the write on a repeated call.
func (r *Reservation) MarkShipped(now time.Time, carrier, tracking string) (bool, error) {
	if r.Status != ReservationPaid {
		return false, ErrInvalidTransition.Withf("cannot ship: status=%s", r.Status)
	}
	if r.ShippedAt != nil {
		return false, nil
	}
	r.ShippedAt = &now
	r.ShippingCarrier = carrier
	r.TrackingNumber = tracking
	return true, nil
}

// ConfirmArrival records the buyer's arrival confirmation once.
func (r *Reservation) ConfirmArrival(now time.Time) (bool, error) {
	if r.Status != ReservationPaid {
		return false, ErrInvalidTransition.Withf("cannot confirm arrival: status=%s", r.Status)
	}
	if r.ShippedAt == nil {
		return false, ErrNotShipped
	}
	if r.ArrivalConfirmedAt != nil {
		return false, nil
	}
	r.ArrivalConfirmedAt = &now
	if r.DeliveredAt == nil {
		r.DeliveredAt = &now
	}
	return true, nil
}

// ApplyRefund books a refund of qty units worth amount. A refund that
// covers the last unit moves the reservation to CANCELLED.
func (r *Reservation) ApplyRefund(now time.Time, qty int, amount int64) error {
	if r.Status != ReservationPaid {
		return ErrInvalidTransition.Withf("cannot refund: status=%s", r.Status)
	}
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if qty > r.UnrefundedQty() {
		return ErrRefundExceedsQuantity.Withf("refund %d exceeds unrefunded %d", qty, r.UnrefundedQty())
	}
	if amount < 0 || r.RefundedAmountTotal+amount > r.AmountTotal {
		return ErrInvalidAmount.Withf("refund amount %d exceeds remaining %d", amount, r.AmountTotal-r.RefundedAmountTotal)
	}
	r.RefundedQty += qty
	r.RefundedAmountTotal += amount
	if r.RefundedQty == r.Qty {
		r.Status = ReservationCancelled
		r.CancelledAt = &now
	}
	return nil
}
