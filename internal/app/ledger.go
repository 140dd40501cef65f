package app

import (
	"context"
	"fmt"

	"github.com/dealmatch/groupbuy/services/api/internal/domain"
)

// InventoryLedger serializes counter changes per offer. Every operation
// locks the offer row; inside an outer transaction it joins that
// transaction, so the counter change commits with the caller's writes.
type InventoryLedger struct {
	repo OfferRepository
}

func NewInventoryLedger(repo OfferRepository) *InventoryLedger {
	return &InventoryLedger{repo: repo}
}

func (l *InventoryLedger) Remaining(ctx context.Context, offerID string) (int, error) {
	offer, err := l.repo.GetOffer(ctx, offerID)
	if err != nil {
		return 0, err
	}
	return offer.Remaining(), nil
}

func (l *InventoryLedger) Reserve(ctx context.Context, offerID string, qty int) (domain.Offer, error) {
	return l.apply(ctx, offerID, func(o *domain.Offer) error { return o.Reserve(qty) })
}

func (l *InventoryLedger) CommitSale(ctx context.Context, offerID string, qty int) (domain.Offer, error) {
	return l.apply(ctx, offerID, func(o *domain.Offer) error { return o.CommitSale(qty) })
}

func (l *InventoryLedger) Release(ctx context.Context, offerID string, qty int) (domain.Offer, error) {
	return l.apply(ctx, offerID, func(o *domain.Offer) error { return o.Release(qty) })
}

func (l *InventoryLedger) RollbackSale(ctx context.Context, offerID string, qty int) (domain.Offer, error) {
	return l.apply(ctx, offerID, func(o *domain.Offer) error { return o.RollbackSale(qty) })
}

func (l *InventoryLedger) apply(ctx context.Context, offerID string, op func(*domain.Offer) error) (domain.Offer, error) {
	var result domain.Offer
	err := l.repo.WithTx(ctx, func(txCtx context.Context) error {
		offer, err := l.repo.GetOfferForUpdate(txCtx, offerID)
		if err != nil {
			return err
		}
		if err := op(&offer); err != nil {
			return err
		}
		if !offer.Consistent() {
			return domain.ErrInventoryInconsistent.Withf("offer %s: sold=%d reserved=%d capacity=%d",
				offer.ID, offer.SoldQty, offer.ReservedQty, offer.TotalCapacity)
		}
		if err := l.repo.UpdateOfferCounters(txCtx, offer); err != nil {
			return err
		}
		result = offer
		return nil
	})
	if err != nil {
		return domain.Offer{}, err
	}
	return result, nil
}

type InventorySnapshot struct {
	OfferID       string `json:"offer_id"`
	TotalCapacity int    `json:"total_capacity"`
	ReservedQty   int    `json:"reserved_qty"`
	SoldQty       int    `json:"sold_qty"`
	Remaining     int    `json:"remaining"`
}

func (l *InventoryLedger) Snapshot(ctx context.Context, offerID string) (InventorySnapshot, error) {
	offer, err := l.repo.GetOffer(ctx, offerID)
	if err != nil {
		return InventorySnapshot{}, err
	}
	return snapshotOf(offer), nil
}

func snapshotOf(o domain.Offer) InventorySnapshot {
	return InventorySnapshot{
		OfferID:       o.ID,
		TotalCapacity: o.TotalCapacity,
		ReservedQty:   o.ReservedQty,
		SoldQty:       o.SoldQty,
		Remaining:     o.Remaining(),
	}
}

// InventoryAudit compares the stored counters with the quantities of the
// reservations that should be backing them.
type InventoryAudit struct {
	InventorySnapshot
	PendingQty int      `json:"pending_qty"`
	PaidQty    int      `json:"paid_qty"`
	OK         bool     `json:"ok"`
	Hints      []string `json:"hints,omitempty"`
}

// Audit is read-only; it reports drift and never repairs it.
func (l *InventoryLedger) Audit(ctx context.Context, offerID string) (InventoryAudit, error) {
	offer, err := l.repo.GetOffer(ctx, offerID)
	if err != nil {
		return InventoryAudit{}, err
	}
	pending, paid, err := l.repo.SumOpenReservations(ctx, offerID)
	if err != nil {
		return InventoryAudit{}, fmt.Errorf("sum reservations: %w", err)
	}

	a := InventoryAudit{InventorySnapshot: snapshotOf(offer), PendingQty: pending, PaidQty: paid}
	if offer.ReservedQty != pending {
		a.Hints = append(a.Hints, fmt.Sprintf("reserved_qty=%d but pending reservations hold %d", offer.ReservedQty, pending))
	}
	if offer.SoldQty != paid {
		a.Hints = append(a.Hints, fmt.Sprintf("sold_qty=%d but paid unrefunded quantity is %d", offer.SoldQty, paid))
	}
	if !offer.Consistent() {
		a.Hints = append(a.Hints, "counters violate 0 <= sold+reserved <= capacity")
	}
	a.OK = len(a.Hints) == 0
	return a, nil
}
