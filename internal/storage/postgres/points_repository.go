package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dealmatch/groupbuy/services/api/internal/domain"
)

// PointsRepository is the point ledger. Entries are append-only and keyed
// by a unique idempotency key.
type PointsRepository struct {
	db
}

func NewPointsRepository(pool *pgxpool.Pool) *PointsRepository {
	return &PointsRepository{db: db{pool: pool}}
}

// Add books e unless its idempotency key was already booked.
func (r *PointsRepository) Add(ctx context.Context, e domain.PointEntry) error {
	const stmt = `
INSERT INTO point_transactions (id, user_type, user_id, amount, reason, idempotency_key, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (idempotency_key) DO NOTHING`
	_, err := r.exec(ctx, stmt, e.ID, e.UserType, e.UserID, e.Amount, e.Reason, e.IdempotencyKey, e.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("add points: %w", err)
	}
	return nil
}

func (r *PointsRepository) Balance(ctx context.Context, userType domain.UserType, userID string) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM point_transactions WHERE user_type = $1 AND user_id = $2`
	var total int64
	if err := r.queryRow(ctx, query, userType, userID).Scan(&total); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("point balance: %w", err)
	}
	return total, nil
}
