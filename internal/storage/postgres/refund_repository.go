package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dealmatch/groupbuy/services/api/internal/domain"
)

// RefundRepository adds settlement and refund records to the reservation
// queries.
type RefundRepository struct {
	*ReservationRepository
}

func NewRefundRepository(pool *pgxpool.Pool) *RefundRepository {
	return &RefundRepository{ReservationRepository: NewReservationRepository(pool)}
}

func (r *RefundRepository) GetSettlement(ctx context.Context, reservationID string) (*domain.Settlement, error) {
	const query = `
SELECT reservation_id, state, settled_at, recovery_required, recovery_amount
FROM settlements
WHERE reservation_id = $1`

	var (
		s     domain.Settlement
		state string
	)
	err := r.queryRow(ctx, query, reservationID).Scan(&s.ReservationID, &state, &s.SettledAt, &s.RecoveryRequired, &s.RecoveryAmount)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get settlement: %w", err)
	}
	s.State = domain.ParseSettlementState(state)
	return &s, nil
}

// FlagSettlementRecovery marks amount as owed back by the seller. It
// accumulates across partial refunds.
func (r *RefundRepository) FlagSettlementRecovery(ctx context.Context, reservationID string, amount int64) error {
	const stmt = `
INSERT INTO settlements (reservation_id, state, recovery_required, recovery_amount)
VALUES ($1, 'NOT_SETTLED', TRUE, $2)
ON CONFLICT (reservation_id) DO UPDATE SET
	recovery_required = TRUE,
	recovery_amount = settlements.recovery_amount + EXCLUDED.recovery_amount,
	updated_at = NOW()`
	if _, err := r.exec(ctx, stmt, reservationID, amount); err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("flag settlement recovery: %w", err)
	}
	return nil
}

func (r *RefundRepository) FindRefundByKey(ctx context.Context, reservationID, key string) (*domain.RefundRecord, error) {
	const query = `
SELECT id, reservation_id, idempotency_key, actor, fault_party, refund_trigger, cooling_state, settlement_state,
	quantity_refund, amount_goods, amount_shipping, amount_total, use_pg_refund, recovery_from_seller, note, created_at
FROM refunds
WHERE reservation_id = $1 AND idempotency_key = $2`

	var rec domain.RefundRecord
	err := r.queryRow(ctx, query, reservationID, key).Scan(
		&rec.ID, &rec.ReservationID, &rec.IdempotencyKey, &rec.Actor, &rec.FaultParty, &rec.Trigger,
		&rec.CoolingState, &rec.SettlementState, &rec.QuantityRefund, &rec.AmountGoods, &rec.AmountShipping,
		&rec.AmountTotal, &rec.UsePGRefund, &rec.RecoveryFromSeller, &rec.Note, &rec.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find refund by key: %w", err)
	}
	return &rec, nil
}

func (r *RefundRepository) CreateRefund(ctx context.Context, rec domain.RefundRecord) error {
	const stmt = `
INSERT INTO refunds (id, reservation_id, idempotency_key, actor, fault_party, refund_trigger, cooling_state,
	settlement_state, quantity_refund, amount_goods, amount_shipping, amount_total, use_pg_refund,
	recovery_from_seller, note, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.exec(ctx, stmt,
		rec.ID,
		rec.ReservationID,
		rec.IdempotencyKey,
		rec.Actor,
		rec.FaultParty,
		rec.Trigger,
		rec.CoolingState,
		rec.SettlementState,
		rec.QuantityRefund,
		rec.AmountGoods,
		rec.AmountShipping,
		rec.AmountTotal,
		rec.UsePGRefund,
		rec.RecoveryFromSeller,
		rec.Note,
		rec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrIdempotencyConflict
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create refund: %w", err)
	}
	return nil
}
