package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dealmatch/groupbuy/services/api/internal/domain"
)

type ReservationRepository struct {
	db
	offers *OfferRepository
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{
		db:     db{pool: pool},
		offers: NewOfferRepository(pool),
	}
}

func (r *ReservationRepository) GetDeal(ctx context.Context, dealID string) (domain.Deal, error) {
	const query = `SELECT id, host_buyer_id, product_name, desired_qty, created_at FROM deals WHERE id = $1`
	var d domain.Deal
	err := r.queryRow(ctx, query, dealID).Scan(&d.ID, &d.HostBuyerID, &d.ProductName, &d.DesiredQty, &d.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Deal{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Deal{}, domain.ErrDealNotFound
		}
		return domain.Deal{}, fmt.Errorf("get deal: %w", err)
	}
	return d, nil
}

func (r *ReservationRepository) GetBuyer(ctx context.Context, buyerID string) (domain.Buyer, error) {
	var b domain.Buyer
	err := r.queryRow(ctx, `SELECT id, name FROM buyers WHERE id = $1`, buyerID).Scan(&b.ID, &b.Name)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Buyer{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Buyer{}, domain.ErrBuyerNotFound
		}
		return domain.Buyer{}, fmt.Errorf("get buyer: %w", err)
	}
	return b, nil
}

func (r *ReservationRepository) GetOffer(ctx context.Context, offerID string) (domain.Offer, error) {
	return r.offers.GetOffer(ctx, offerID)
}

const reservationColumns = `id, deal_id, offer_id, buyer_id, qty, status,
created_at, expires_at, paid_at, cancelled_at, expired_at, shipped_at, delivered_at, arrival_confirmed_at,
shipping_carrier, tracking_number, amount_goods, amount_shipping, amount_total,
refunded_qty, refunded_amount_total, is_disputed`

func scanReservation(row pgx.Row) (domain.Reservation, error) {
	var res domain.Reservation
	err := row.Scan(
		&res.ID, &res.DealID, &res.OfferID, &res.BuyerID, &res.Qty, &res.Status,
		&res.CreatedAt, &res.ExpiresAt, &res.PaidAt, &res.CancelledAt, &res.ExpiredAt,
		&res.ShippedAt, &res.DeliveredAt, &res.ArrivalConfirmedAt,
		&res.ShippingCarrier, &res.TrackingNumber, &res.AmountGoods, &res.AmountShipping, &res.AmountTotal,
		&res.RefundedQty, &res.RefundedAmountTotal, &res.IsDisputed,
	)
	return res, err
}

func (r *ReservationRepository) getReservation(ctx context.Context, query, reservationID string) (domain.Reservation, error) {
	res, err := scanReservation(r.queryRow(ctx, query, reservationID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Reservation{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

func (r *ReservationRepository) GetReservation(ctx context.Context, reservationID string) (domain.Reservation, error) {
	return r.getReservation(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, reservationID)
}

func (r *ReservationRepository) GetReservationForUpdate(ctx context.Context, reservationID string) (domain.Reservation, error) {
	return r.getReservation(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE`, reservationID)
}

func (r *ReservationRepository) CreateReservation(ctx context.Context, res domain.Reservation) error {
	const stmt = `
INSERT INTO reservations (id, deal_id, offer_id, buyer_id, qty, status, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.exec(ctx, stmt,
		res.ID,
		res.DealID,
		res.OfferID,
		res.BuyerID,
		res.Qty,
		res.Status,
		res.CreatedAt,
		res.ExpiresAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrOfferNotFound
		}
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

// UpdateReservation writes every mutable column and bumps the row version.
func (r *ReservationRepository) UpdateReservation(ctx context.Context, res domain.Reservation) error {
	const stmt = `
UPDATE reservations SET
	status = $2,
	paid_at = $3,
	cancelled_at = $4,
	expired_at = $5,
	shipped_at = $6,
	delivered_at = $7,
	arrival_confirmed_at = $8,
	shipping_carrier = $9,
	tracking_number = $10,
	amount_goods = $11,
	amount_shipping = $12,
	amount_total = $13,
	refunded_qty = $14,
	refunded_amount_total = $15,
	is_disputed = $16,
	version = version + 1
WHERE id = $1`

	tag, err := r.exec(ctx, stmt,
		res.ID,
		res.Status,
		res.PaidAt,
		res.CancelledAt,
		res.ExpiredAt,
		res.ShippedAt,
		res.DeliveredAt,
		res.ArrivalConfirmedAt,
		res.ShippingCarrier,
		res.TrackingNumber,
		res.AmountGoods,
		res.AmountShipping,
		res.AmountTotal,
		res.RefundedQty,
		res.RefundedAmountTotal,
		res.IsDisputed,
	)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrRefundExceedsQuantity
		}
		return fmt.Errorf("update reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReservationNotFound
	}
	return nil
}

// ListDueForUpdate skips rows another transaction holds, so the sweeper
// never waits on a request that is paying or cancelling the same hold.
func (r *ReservationRepository) ListDueForUpdate(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
FROM reservations
WHERE status = 'PENDING' AND expires_at <= $1
ORDER BY expires_at ASC
LIMIT $2
FOR UPDATE SKIP LOCKED`

	rows, err := r.query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due reservations: %w", err)
	}
	defer rows.Close()

	var due []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		due = append(due, res)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate reservations: %w", rows.Err())
	}
	return due, nil
}

func (r *ReservationRepository) NextExpiry(ctx context.Context) (*time.Time, error) {
	const query = `SELECT MIN(expires_at) FROM reservations WHERE status = 'PENDING'`
	var next *time.Time
	if err := r.queryRow(ctx, query).Scan(&next); err != nil {
		return nil, fmt.Errorf("next expiry: %w", err)
	}
	return next, nil
}

func (r *ReservationRepository) EnsureSettlement(ctx context.Context, reservationID string) error {
	const stmt = `
INSERT INTO settlements (reservation_id, state)
VALUES ($1, 'NOT_SETTLED')
ON CONFLICT (reservation_id) DO NOTHING`
	if _, err := r.exec(ctx, stmt, reservationID); err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("ensure settlement: %w", err)
	}
	return nil
}
