// Package refund holds the pure refund rules: cooling-state resolution,
// the settlement/fault decision matrix, the shipping refund gate and
// remainder-aware proration. Nothing here touches storage or the clock.
package refund

import (
	"time"

	"github.com/dealmatch/groupbuy/services/api/internal/domain"
)

const DefaultCoolingDays = 14

// ResolveCoolingState derives the shipment phase of a paid reservation.
// The cooling window is measured from arrival confirmation, falling back to
// delivery, and its last instant still counts as within cooling.
func ResolveCoolingState(shippedAt, deliveredAt, arrivalConfirmedAt *time.Time, now time.Time, coolingDays int) domain.CoolingState {
	if shippedAt == nil {
		return domain.CoolingBeforeShipping
	}
	base := arrivalConfirmedAt
	if base == nil {
		base = deliveredAt
	}
	if base == nil {
		return domain.CoolingShippedNotDelivered
	}
	endsAt := base.Add(time.Duration(coolingDays) * 24 * time.Hour)
	if !now.After(endsAt) {
		return domain.CoolingWithin
	}
	return domain.CoolingAfter
}

// ResolveCoolingStateChecked is ResolveCoolingState with input validation.
func ResolveCoolingStateChecked(shippedAt, deliveredAt, arrivalConfirmedAt *time.Time, now time.Time, coolingDays int) (domain.CoolingState, error) {
	if coolingDays < 0 {
		return domain.CoolingUnknown, domain.ErrInvalidConfig.Withf("cooling days must not be negative, got %d", coolingDays)
	}
	return ResolveCoolingState(shippedAt, deliveredAt, arrivalConfirmedAt, now, coolingDays), nil
}

// Phase is a display label combining status and cooling state.
func Phase(r domain.Reservation, now time.Time, coolingDays int) string {
	switch r.Status {
	case domain.ReservationCancelled:
		return "CANCELLED"
	case domain.ReservationExpired:
		return "EXPIRED"
	case domain.ReservationPending:
		if r.ExpiresAt.Before(now) {
			return "PENDING_EXPIRED"
		}
		return "PENDING"
	case domain.ReservationPaid:
		switch ResolveCoolingState(r.ShippedAt, r.DeliveredAt, r.ArrivalConfirmedAt, now, coolingDays) {
		case domain.CoolingBeforeShipping:
			return "PAID_WAIT_SHIP"
		case domain.CoolingShippedNotDelivered:
			return "SHIPPED"
		case domain.CoolingWithin:
			return "DELIVERED_COOLING"
		case domain.CoolingAfter:
			return "DELIVERED_AFTER_COOLING"
		}
		return "PAID"
	}
	return string(r.Status)
}
