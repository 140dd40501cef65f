package domain

import (
	"strings"
	"time"
)

type ShippingMode string

const (
	ShippingIncluded       ShippingMode = "INCLUDED"
	ShippingPerReservation ShippingMode = "PER_RESERVATION"
	ShippingPerQty         ShippingMode = "PER_QTY"
)

// ParseShippingMode normalizes a stored mode. Unknown or empty values fall
// back to INCLUDED, which charges no shipping.
func ParseShippingMode(s string) ShippingMode {
	switch m := ShippingMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case ShippingPerReservation, ShippingPerQty:
		return m
	default:
		return ShippingIncluded
	}
}

// Offer is a seller's proposal against a deal. Its three counters are the
// shared resource every reservation competes for; they are only changed
// through the ledger methods below, under a row lock.
type Offer struct {
	ID            string
	DealID        string
	SellerID      string
	TotalCapacity int
	ReservedQty   int
	SoldQty       int
	UnitPrice     int64

	ShippingMode              ShippingMode
	ShippingFeePerReservation int64
	ShippingFeePerQty         int64

	CreatedAt time.Time
}

// Remaining is total_capacity - sold_qty - reserved_qty.
func (o Offer) Remaining() int {
	return o.TotalCapacity - o.SoldQty - o.ReservedQty
}

// Consistent reports whether the counters satisfy the offer invariant.
func (o Offer) Consistent() bool {
	return o.SoldQty >= 0 && o.ReservedQty >= 0 && o.SoldQty+o.ReservedQty <= o.TotalCapacity
}

// Reserve places a hold of qty units.
func (o *Offer) Reserve(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if remaining := o.Remaining(); remaining < qty {
		return ErrCapacityExceeded.Withf("insufficient capacity: requested %d, remaining %d", qty, remaining)
	}
	o.ReservedQty += qty
	return nil
}

// CommitSale converts qty held units into sold units.
func (o *Offer) CommitSale(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if o.ReservedQty < qty {
		return ErrInventoryInconsistent.Withf("commit %d exceeds reserved %d", qty, o.ReservedQty)
	}
	o.ReservedQty -= qty
	o.SoldQty += qty
	return nil
}

// Release returns qty held units to the pool.
func (o *Offer) Release(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if o.ReservedQty < qty {
		return ErrInventoryInconsistent.Withf("release %d exceeds reserved %d", qty, o.ReservedQty)
	}
	o.ReservedQty -= qty
	return nil
}

// RollbackSale returns qty sold units to the pool after a refund.
func (o *Offer) RollbackSale(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if o.SoldQty < qty {
		return ErrInventoryInconsistent.Withf("rollback %d exceeds sold %d", qty, o.SoldQty)
	}
	o.SoldQty -= qty
	return nil
}

// ShippingFee is the order-level shipping charge for qty units under the
// offer's shipping terms.
func (o Offer) ShippingFee(qty int) int64 {
	if qty <= 0 {
		return 0
	}
	switch o.ShippingMode {
	case ShippingPerReservation:
		return max(0, o.ShippingFeePerReservation)
	case ShippingPerQty:
		return max(0, o.ShippingFeePerQty*int64(qty))
	default:
		return 0
	}
}
