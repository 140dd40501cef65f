package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dealmatch/groupbuy/services/api/internal/clock"
	"github.com/dealmatch/groupbuy/services/api/internal/domain"
	"github.com/dealmatch/groupbuy/services/api/internal/refund"
)

const tracerName = "github.com/dealmatch/groupbuy/services/api/internal/app"

type RefundService struct {
	repo   RefundRepository
	ledger *InventoryLedger
	clock  clock.Clock

	gateway PaymentGateway
	points  PointsLedger
	events  EventPublisher
	logger  *zap.Logger
	tracer  trace.Tracer

	coolingDays        int
	rates              refund.FeeRates
	buyerPointsPerQty  int64
	sellerPointsPerQty int64
}

type RefundServiceOption func(*RefundService)

func WithRefundCoolingDays(days int) RefundServiceOption {
	return func(s *RefundService) {
		if days >= 0 {
			s.coolingDays = days
		}
	}
}

func WithFeeRates(r refund.FeeRates) RefundServiceOption {
	return func(s *RefundService) { s.rates = r }
}

// WithRefundPointRates must match the rates used when awarding points on
// payment so a full refund reverses exactly what was awarded.
func WithRefundPointRates(buyerPerQty, sellerPerQty int64) RefundServiceOption {
	return func(s *RefundService) {
		if buyerPerQty >= 0 {
			s.buyerPointsPerQty = buyerPerQty
		}
		if sellerPerQty >= 0 {
			s.sellerPointsPerQty = sellerPerQty
		}
	}
}

func WithRefundGateway(g PaymentGateway) RefundServiceOption {
	return func(s *RefundService) {
		if g != nil {
			s.gateway = g
		}
	}
}

func WithRefundPoints(p PointsLedger) RefundServiceOption {
	return func(s *RefundService) {
		if p != nil {
			s.points = p
		}
	}
}

func WithRefundPublisher(p EventPublisher) RefundServiceOption {
	return func(s *RefundService) {
		if p != nil {
			s.events = p
		}
	}
}

func WithRefundLogger(l *zap.Logger) RefundServiceOption {
	return func(s *RefundService) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewRefundService(repo RefundRepository, ledger *InventoryLedger, clk clock.Clock, opts ...RefundServiceOption) *RefundService {
	svc := &RefundService{
		repo:               repo,
		ledger:             ledger,
		clock:              clk,
		gateway:            noopGateway{},
		points:             noopPoints{},
		events:             noopPublisher{},
		logger:             zap.NewNop(),
		tracer:             otel.Tracer(tracerName),
		coolingDays:        refund.DefaultCoolingDays,
		buyerPointsPerQty:  defaultBuyerPointsPerQty,
		sellerPointsPerQty: defaultSellerPointsPerQty,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type RefundInput struct {
	ReservationID string
	Actor         domain.Actor
	// QuantityRefund of zero refunds every unit not yet refunded.
	QuantityRefund int
	// IdempotencyKey is required by Execute and ignored by Preview.
	IdempotencyKey string
}

// RefundPreview is what Execute would do against the current state.
type RefundPreview struct {
	Reservation domain.Reservation
	refund.Quote
}

// Preview computes a refund without writing anything.
func (s *RefundService) Preview(ctx context.Context, in RefundInput) (RefundPreview, error) {
	ctx, span := s.tracer.Start(ctx, "RefundService.Preview", trace.WithAttributes(
		attribute.String("reservation.id", in.ReservationID),
		attribute.String("refund.actor", string(in.Actor)),
	))
	defer span.End()

	r, err := s.repo.GetReservation(ctx, in.ReservationID)
	if err != nil {
		return RefundPreview{}, spanError(span, err)
	}
	q, err := s.quote(ctx, r, in)
	if err != nil {
		return RefundPreview{}, spanError(span, err)
	}
	span.SetAttributes(attribute.Int64("refund.amount_total", q.AmountTotal))
	return RefundPreview{Reservation: r, Quote: q}, nil
}

type RefundResult struct {
	Reservation domain.Reservation
	Refund      domain.RefundRecord
	// Replayed is true when the idempotency key had already been executed.
	Replayed bool
}

// Execute applies a refund atomically. A retry with the same idempotency
// key and quantity returns the current reservation without side effects.
func (s *RefundService) Execute(ctx context.Context, in RefundInput) (RefundResult, error) {
	if in.IdempotencyKey == "" {
		return RefundResult{}, domain.ErrIdempotencyKeyRequired
	}
	ctx, span := s.tracer.Start(ctx, "RefundService.Execute", trace.WithAttributes(
		attribute.String("reservation.id", in.ReservationID),
		attribute.String("refund.actor", string(in.Actor)),
		attribute.String("refund.idempotency_key", in.IdempotencyKey),
	))
	defer span.End()

	now := s.clock.Now()
	var result RefundResult

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		r, err := s.repo.GetReservationForUpdate(txCtx, in.ReservationID)
		if err != nil {
			return err
		}
		if replay, err := s.replay(txCtx, r, in); err != nil || replay != nil {
			if replay != nil {
				result = *replay
			}
			return err
		}

		q, err := s.quote(txCtx, r, in)
		if err != nil {
			return err
		}
		c, d := q.Context, q.Decision

		rec := domain.RefundRecord{
			ID:                 refundID(r.ID, in.IdempotencyKey),
			ReservationID:      r.ID,
			IdempotencyKey:     in.IdempotencyKey,
			Actor:              in.Actor,
			FaultParty:         c.FaultParty,
			Trigger:            c.Trigger,
			CoolingState:       c.CoolingState,
			SettlementState:    c.SettlementState,
			QuantityRefund:     c.QuantityRefund,
			AmountGoods:        q.AmountGoods,
			AmountShipping:     q.AmountShipping,
			AmountTotal:        q.AmountTotal,
			UsePGRefund:        d.UsePGRefund,
			RecoveryFromSeller: d.SettlementRecoveryFromSeller,
			Note:               d.Note,
			CreatedAt:          now,
		}
		if err := s.repo.CreateRefund(txCtx, rec); err != nil {
			return err
		}
		if _, err := s.ledger.RollbackSale(txCtx, r.OfferID, c.QuantityRefund); err != nil {
			return err
		}
		if err := r.ApplyRefund(now, c.QuantityRefund, q.AmountTotal); err != nil {
			return err
		}
		if err := s.repo.UpdateReservation(txCtx, r); err != nil {
			return err
		}
		if err := s.reversePoints(txCtx, rec, c, d, now); err != nil {
			return err
		}

		if d.NeedSettlementRecovery {
			if err := s.repo.FlagSettlementRecovery(txCtx, r.ID, q.Plan.SettlementRecoveryAmount); err != nil {
				return err
			}
		}
		if d.UsePGRefund && q.Plan.PGRefundAmount > 0 {
			if err := s.gateway.Refund(txCtx, PaymentRequest{
				IdempotencyKey: "refund:" + rec.ID,
				ReservationID:  r.ID,
				BuyerID:        r.BuyerID,
				Amount:         q.Plan.PGRefundAmount,
			}); err != nil {
				return paymentError(err)
			}
		}

		result = RefundResult{Reservation: r, Refund: rec}
		return nil
	})
	if err != nil {
		return RefundResult{}, spanError(span, err)
	}

	span.SetAttributes(
		attribute.Bool("refund.replayed", result.Replayed),
		attribute.Int64("refund.amount_total", result.Refund.AmountTotal),
	)
	if !result.Replayed {
		ev := eventOf(EventRefundExecuted, result.Reservation, now)
		ev.Qty = result.Refund.QuantityRefund
		ev.Amount = result.Refund.AmountTotal
		publish(ctx, s.events, s.logger, ev)
		s.logger.Info("refund executed",
			zap.String("reservation_id", result.Reservation.ID),
			zap.String("refund_id", result.Refund.ID),
			zap.Int("qty", result.Refund.QuantityRefund),
			zap.Int64("amount", result.Refund.AmountTotal),
			zap.String("note", result.Refund.Note),
		)
	}
	return result, nil
}

// replay returns the stored outcome when the key was already executed on
// this reservation. The caller holds the reservation lock, so a
// concurrent retry with the same key waits and then lands here.
func (s *RefundService) replay(ctx context.Context, r domain.Reservation, in RefundInput) (*RefundResult, error) {
	existing, err := s.repo.FindRefundByKey(ctx, r.ID, in.IdempotencyKey)
	if err != nil || existing == nil {
		return nil, err
	}
	if in.QuantityRefund != 0 && existing.QuantityRefund != in.QuantityRefund {
		return nil, domain.ErrIdempotencyConflict.Withf("key %q already refunded %d units", in.IdempotencyKey, existing.QuantityRefund)
	}
	if !sameActor(existing.Actor, in.Actor) {
		return nil, domain.ErrIdempotencyConflict.Withf("key %q already used by actor %s", in.IdempotencyKey, existing.Actor)
	}
	return &RefundResult{Reservation: r, Refund: *existing, Replayed: true}, nil
}

func sameActor(a, b domain.Actor) bool {
	fa, ta, errA := a.Attribution()
	fb, tb, errB := b.Attribution()
	return errA == nil && errB == nil && fa == fb && ta == tb
}

func (s *RefundService) quote(ctx context.Context, r domain.Reservation, in RefundInput) (refund.Quote, error) {
	offer, err := s.repo.GetOffer(ctx, r.OfferID)
	if err != nil {
		return refund.Quote{}, err
	}
	settlement, err := s.settlementState(ctx, r)
	if err != nil {
		return refund.Quote{}, err
	}
	return refund.Compute(refund.Input{
		Reservation:    r,
		SellerID:       offer.SellerID,
		Actor:          in.Actor,
		QuantityRefund: in.QuantityRefund,
		Settlement:     settlement,
		Now:            s.clock.Now(),
		CoolingDays:    s.coolingDays,
		Rates:          s.rates,
	})
}

// settlementState treats a paid reservation without a settlement row as
// not yet settled.
func (s *RefundService) settlementState(ctx context.Context, r domain.Reservation) (domain.SettlementState, error) {
	st, err := s.repo.GetSettlement(ctx, r.ID)
	if err != nil {
		return "", fmt.Errorf("get settlement: %w", err)
	}
	if st == nil {
		return domain.SettlementNotSettled, nil
	}
	return st.State, nil
}

func (s *RefundService) reversePoints(ctx context.Context, rec domain.RefundRecord, c refund.Context, d refund.Decision, now time.Time) error {
	qty := int64(c.QuantityRefund)
	var entries []domain.PointEntry
	if d.RevokeBuyerPoints {
		entries = append(entries, domain.PointEntry{
			UserType:       domain.UserBuyer,
			UserID:         c.BuyerID,
			Amount:         -s.buyerPointsPerQty * qty,
			IdempotencyKey: "pt:refund:buyer:" + rec.ID,
		})
	}
	if d.RevokeSellerPoints {
		entries = append(entries, domain.PointEntry{
			UserType:       domain.UserSeller,
			UserID:         c.SellerID,
			Amount:         -s.sellerPointsPerQty * qty,
			IdempotencyKey: "pt:refund:seller:" + rec.ID,
		})
	}
	for _, e := range entries {
		if e.Amount == 0 || e.UserID == "" {
			continue
		}
		e.ID = newID()
		e.Reason = "refund " + string(c.Trigger) + " qty=" + strconv.Itoa(c.QuantityRefund)
		e.CreatedAt = now
		if err := s.points.Add(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	var de *domain.Error
	if !errors.As(err, &de) {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
