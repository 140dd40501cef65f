// Package payment holds the sandbox gateway used when no real payment
// provider is configured.
package payment

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/dealmatch/groupbuy/services/api/internal/app"
	"github.com/dealmatch/groupbuy/services/api/internal/domain"
)

// Sandbox accepts every charge and refund, remembering idempotency keys so
// a retried call is acknowledged without being applied twice.
type Sandbox struct {
	logger *zap.Logger

	mu   sync.Mutex
	seen map[string]int64
}

func NewSandbox(logger *zap.Logger) *Sandbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sandbox{logger: logger, seen: make(map[string]int64)}
}

func (s *Sandbox) Charge(ctx context.Context, req app.PaymentRequest) error {
	return s.apply("charge", req)
}

func (s *Sandbox) Refund(ctx context.Context, req app.PaymentRequest) error {
	return s.apply("refund", req)
}

func (s *Sandbox) apply(op string, req app.PaymentRequest) error {
	if req.IdempotencyKey == "" {
		return domain.ErrIdempotencyKeyRequired
	}
	if req.Amount < 0 {
		return domain.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if amount, ok := s.seen[req.IdempotencyKey]; ok {
		if amount != req.Amount {
			return domain.ErrIdempotencyConflict.Withf("%s key %s reused with a different amount", op, req.IdempotencyKey)
		}
		s.logger.Debug("sandbox replay", zap.String("op", op), zap.String("key", req.IdempotencyKey))
		return nil
	}
	s.seen[req.IdempotencyKey] = req.Amount
	s.logger.Info("sandbox payment",
		zap.String("op", op),
		zap.String("key", req.IdempotencyKey),
		zap.String("reservation_id", req.ReservationID),
		zap.Int64("amount", req.Amount),
	)
	return nil
}
