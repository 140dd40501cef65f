package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dealmatch/groupbuy/services/api/internal/domain"
)

type AdminRepository struct {
	db
}

func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{db: db{pool: pool}}
}

func (r *AdminRepository) CreateBuyer(ctx context.Context, buyer domain.Buyer) error {
	if _, err := r.exec(ctx, `INSERT INTO buyers (id, name) VALUES ($1, $2)`, buyer.ID, buyer.Name); err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create buyer: %w", err)
	}
	return nil
}

func (r *AdminRepository) CreateSeller(ctx context.Context, seller domain.Seller) error {
	if _, err := r.exec(ctx, `INSERT INTO sellers (id, name) VALUES ($1, $2)`, seller.ID, seller.Name); err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create seller: %w", err)
	}
	return nil
}

func (r *AdminRepository) CreateDeal(ctx context.Context, deal domain.Deal) error {
	const stmt = `
INSERT INTO deals (id, host_buyer_id, product_name, desired_qty, created_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.exec(ctx, stmt, deal.ID, deal.HostBuyerID, deal.ProductName, deal.DesiredQty, deal.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrBuyerNotFound
		}
		return fmt.Errorf("create deal: %w", err)
	}
	return nil
}

func (r *AdminRepository) CreateOffer(ctx context.Context, offer domain.Offer) error {
	const stmt = `
INSERT INTO offers (id, deal_id, seller_id, total_capacity, reserved_qty, sold_qty, unit_price,
	shipping_mode, shipping_fee_per_reservation, shipping_fee_per_qty, created_at)
VALUES ($1, $2, $3, $4, 0, 0, $5, $6, $7, $8, $9)`
	_, err := r.exec(ctx, stmt,
		offer.ID,
		offer.DealID,
		offer.SellerID,
		offer.TotalCapacity,
		offer.UnitPrice,
		offer.ShippingMode,
		offer.ShippingFeePerReservation,
		offer.ShippingFeePerQty,
		offer.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrDealNotFound.Withf("deal or seller not found")
		}
		return fmt.Errorf("create offer: %w", err)
	}
	return nil
}

func (r *AdminRepository) ListOffersByDeal(ctx context.Context, dealID string) ([]domain.Offer, error) {
	const existsQuery = `SELECT EXISTS (SELECT 1 FROM deals WHERE id = $1)`
	var exists bool
	if err := r.queryRow(ctx, existsQuery, dealID).Scan(&exists); err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("check deal: %w", err)
	}
	if !exists {
		return nil, domain.ErrDealNotFound
	}

	rows, err := r.query(ctx, `SELECT `+offerColumns+` FROM offers WHERE deal_id = $1 ORDER BY created_at ASC`, dealID)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	var offers []domain.Offer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		offers = append(offers, offer)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate offers: %w", rows.Err())
	}
	return offers, nil
}

// MarkSettled records payout of a paid reservation to its seller.
func (r *AdminRepository) MarkSettled(ctx context.Context, reservationID string) error {
	const stmt = `
INSERT INTO settlements (reservation_id, state, settled_at)
VALUES ($1, 'SETTLED_TO_SELLER', NOW())
ON CONFLICT (reservation_id) DO UPDATE SET
	state = 'SETTLED_TO_SELLER',
	settled_at = COALESCE(settlements.settled_at, NOW()),
	updated_at = NOW()`
	if _, err := r.exec(ctx, stmt, reservationID); err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrReservationNotFound
		}
		return fmt.Errorf("mark settled: %w", err)
	}
	return nil
}
