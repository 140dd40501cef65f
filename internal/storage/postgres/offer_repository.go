package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dealmatch/groupbuy/services/api/internal/domain"
)

type OfferRepository struct {
	db
}

func NewOfferRepository(pool *pgxpool.Pool) *OfferRepository {
	return &OfferRepository{db: db{pool: pool}}
}

const offerColumns = `id, deal_id, seller_id, total_capacity, reserved_qty, sold_qty, unit_price,
shipping_mode, shipping_fee_per_reservation, shipping_fee_per_qty, created_at`

func scanOffer(row pgx.Row) (domain.Offer, error) {
	var (
		o    domain.Offer
		mode string
	)
	err := row.Scan(&o.ID, &o.DealID, &o.SellerID, &o.TotalCapacity, &o.ReservedQty, &o.SoldQty, &o.UnitPrice,
		&mode, &o.ShippingFeePerReservation, &o.ShippingFeePerQty, &o.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Offer{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Offer{}, domain.ErrOfferNotFound
		}
		return domain.Offer{}, fmt.Errorf("get offer: %w", err)
	}
	o.ShippingMode = domain.ParseShippingMode(mode)
	return o, nil
}

func (r *OfferRepository) GetOffer(ctx context.Context, offerID string) (domain.Offer, error) {
	return scanOffer(r.queryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, offerID))
}

// GetOfferForUpdate locks the offer row until the transaction ends; every
// counter change on the offer goes through this lock.
func (r *OfferRepository) GetOfferForUpdate(ctx context.Context, offerID string) (domain.Offer, error) {
	return scanOffer(r.queryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1 FOR UPDATE`, offerID))
}

func (r *OfferRepository) UpdateOfferCounters(ctx context.Context, offer domain.Offer) error {
	const stmt = `UPDATE offers SET reserved_qty = $2, sold_qty = $3 WHERE id = $1`
	tag, err := r.exec(ctx, stmt, offer.ID, offer.ReservedQty, offer.SoldQty)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrInventoryInconsistent
		}
		return fmt.Errorf("update offer counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOfferNotFound
	}
	return nil
}

// SumOpenReservations returns the quantities that should back reserved_qty
// (PENDING) and sold_qty (PAID, net of refunds).
func (r *OfferRepository) SumOpenReservations(ctx context.Context, offerID string) (int, int, error) {
	const query = `
SELECT
	COALESCE(SUM(qty) FILTER (WHERE status = 'PENDING'), 0),
	COALESCE(SUM(qty - refunded_qty) FILTER (WHERE status = 'PAID'), 0)
FROM reservations
WHERE offer_id = $1`

	var pending, paid int
	if err := r.queryRow(ctx, query, offerID).Scan(&pending, &paid); err != nil {
		if isInvalidUUID(err) {
			return 0, 0, domain.ErrInvalidID
		}
		return 0, 0, fmt.Errorf("sum open reservations: %w", err)
	}
	return pending, paid, nil
}
