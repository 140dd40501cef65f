package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dealmatch/groupbuy/services/api/internal/clock"
	"github.com/dealmatch/groupbuy/services/api/internal/domain"
	"github.com/dealmatch/groupbuy/services/api/internal/refund"
)

const (
	defaultHoldTTL            = 5 * time.Minute
	defaultBuyerPointsPerQty  = 20
	defaultSellerPointsPerQty = 30
	sweepBatchSize            = 200
)

type ReservationService struct {
	repo     ReservationRepository
	ledger   *InventoryLedger
	clock    clock.Clock
	worktime *clock.WorkingTime

	gateway PaymentGateway
	points  PointsLedger
	events  EventPublisher
	logger  *zap.Logger
	wake    func()

	holdTTL            time.Duration
	coolingDays        int
	buyerPointsPerQty  int64
	sellerPointsPerQty int64
}

func NewReservationService(repo ReservationRepository, ledger *InventoryLedger, clk clock.Clock, wt *clock.WorkingTime, opts ...ReservationServiceOption) *ReservationService {
	svc := &ReservationService{
		repo:               repo,
		ledger:             ledger,
		clock:              clk,
		worktime:           wt,
		gateway:            noopGateway{},
		points:             noopPoints{},
		events:             noopPublisher{},
		logger:             zap.NewNop(),
		wake:               func() {},
		holdTTL:            defaultHoldTTL,
		coolingDays:        refund.DefaultCoolingDays,
		buyerPointsPerQty:  defaultBuyerPointsPerQty,
		sellerPointsPerQty: defaultSellerPointsPerQty,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type ReservationServiceOption func(*ReservationService)

// WithHoldTTL overrides the default working-time hold for new reservations.
func WithHoldTTL(d time.Duration) ReservationServiceOption {
	return func(s *ReservationService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

func WithCoolingDays(days int) ReservationServiceOption {
	return func(s *ReservationService) {
		if days >= 0 {
			s.coolingDays = days
		}
	}
}

// WithPointRates sets the points awarded per paid unit. Negative values
// are ignored.
func WithPointRates(buyerPerQty, sellerPerQty int64) ReservationServiceOption {
	return func(s *ReservationService) {
		if buyerPerQty >= 0 {
			s.buyerPointsPerQty = buyerPerQty
		}
		if sellerPerQty >= 0 {
			s.sellerPointsPerQty = sellerPerQty
		}
	}
}

func WithPaymentGateway(g PaymentGateway) ReservationServiceOption {
	return func(s *ReservationService) {
		if g != nil {
			s.gateway = g
		}
	}
}

func WithPointsLedger(p PointsLedger) ReservationServiceOption {
	return func(s *ReservationService) {
		if p != nil {
			s.points = p
		}
	}
}

func WithEventPublisher(p EventPublisher) ReservationServiceOption {
	return func(s *ReservationService) {
		if p != nil {
			s.events = p
		}
	}
}

func WithLogger(l *zap.Logger) ReservationServiceOption {
	return func(s *ReservationService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithExpiryNotifier registers a callback run after a new hold commits,
// typically ExpirySweeper.Wake.
func WithExpiryNotifier(fn func()) ReservationServiceOption {
	return func(s *ReservationService) {
		if fn != nil {
			s.wake = fn
		}
	}
}

type CreateReservationInput struct {
	DealID  string
	OfferID string
	BuyerID string
	Qty     int
	// HoldMinutes overrides the default hold when positive.
	HoldMinutes int
}

func (s *ReservationService) Create(ctx context.Context, in CreateReservationInput) (domain.Reservation, error) {
	if in.Qty <= 0 {
		return domain.Reservation{}, domain.ErrInvalidQuantity
	}
	if in.HoldMinutes < 0 {
		return domain.Reservation{}, domain.ErrInvalidQuantity.Withf("hold minutes must not be negative")
	}
	hold := s.holdTTL
	if in.HoldMinutes > 0 {
		hold = time.Duration(in.HoldMinutes) * time.Minute
	}

	now := s.clock.Now()
	var result domain.Reservation

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.GetDeal(txCtx, in.DealID); err != nil {
			return err
		}
		if _, err := s.repo.GetBuyer(txCtx, in.BuyerID); err != nil {
			return err
		}
		offer, err := s.repo.GetOffer(txCtx, in.OfferID)
		if err != nil {
			return err
		}
		if offer.DealID != in.DealID {
			return domain.ErrOfferNotFound.Withf("offer %s does not belong to deal %s", in.OfferID, in.DealID)
		}
		if _, err := s.ledger.Reserve(txCtx, in.OfferID, in.Qty); err != nil {
			return err
		}

		r := domain.Reservation{
			ID:        newID(),
			DealID:    in.DealID,
			OfferID:   in.OfferID,
			BuyerID:   in.BuyerID,
			Qty:       in.Qty,
			Status:    domain.ReservationPending,
			CreatedAt: now,
			ExpiresAt: s.worktime.AddWorkingDuration(now, hold),
		}
		if err := s.repo.CreateReservation(txCtx, r); err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	s.wake()
	publish(ctx, s.events, s.logger, eventOf(EventReservationCreated, result, now))
	return result, nil
}

// Pay charges the buyer and converts the hold into a sale. The gateway is
// called last inside the transaction so a declined charge leaves nothing
// behind; its idempotency key makes a retry after a lost commit safe.
func (s *ReservationService) Pay(ctx context.Context, reservationID, buyerID string) (domain.Reservation, error) {
	now := s.clock.Now()
	var result domain.Reservation

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		r, err := s.repo.GetReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}
		if r.BuyerID != buyerID {
			return domain.ErrNotOwner
		}
		offer, err := s.repo.GetOffer(txCtx, r.OfferID)
		if err != nil {
			return err
		}
		goods := offer.UnitPrice * int64(r.Qty)
		if err := r.MarkPaid(now, goods, offer.ShippingFee(r.Qty)); err != nil {
			return err
		}
		if _, err := s.ledger.CommitSale(txCtx, r.OfferID, r.Qty); err != nil {
			return err
		}
		if err := s.repo.UpdateReservation(txCtx, r); err != nil {
			return err
		}
		if err := s.repo.EnsureSettlement(txCtx, r.ID); err != nil {
			return err
		}
		if err := s.awardPoints(txCtx, r, offer.SellerID, now); err != nil {
			return err
		}
		if err := s.gateway.Charge(txCtx, PaymentRequest{
			IdempotencyKey: "pay:" + r.ID,
			ReservationID:  r.ID,
			BuyerID:        r.BuyerID,
			Amount:         r.AmountTotal,
		}); err != nil {
			return paymentError(err)
		}
		result = r
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	ev := eventOf(EventReservationPaid, result, now)
	ev.Amount = result.AmountTotal
	publish(ctx, s.events, s.logger, ev)
	return result, nil
}

func (s *ReservationService) awardPoints(ctx context.Context, r domain.Reservation, sellerID string, now time.Time) error {
	entries := []domain.PointEntry{
		{UserType: domain.UserBuyer, UserID: r.BuyerID, Amount: s.buyerPointsPerQty * int64(r.Qty), IdempotencyKey: "pt:paid:buyer:" + r.ID},
		{UserType: domain.UserSeller, UserID: sellerID, Amount: s.sellerPointsPerQty * int64(r.Qty), IdempotencyKey: "pt:paid:seller:" + r.ID},
	}
	for _, e := range entries {
		if e.Amount == 0 || e.UserID == "" {
			continue
		}
		e.ID = newID()
		e.Reason = "reservation paid"
		e.CreatedAt = now
		if err := s.points.Add(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Cancel ends a PENDING hold. An empty buyerID skips the owner check.
func (s *ReservationService) Cancel(ctx context.Context, reservationID, buyerID string) (domain.Reservation, error) {
	now := s.clock.Now()
	var result domain.Reservation

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		r, err := s.repo.GetReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}
		if buyerID != "" && r.BuyerID != buyerID {
			return domain.ErrNotOwner
		}
		if err := r.Cancel(now); err != nil {
			return err
		}
		if _, err := s.ledger.Release(txCtx, r.OfferID, r.Qty); err != nil {
			return err
		}
		if err := s.repo.UpdateReservation(txCtx, r); err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	publish(ctx, s.events, s.logger, eventOf(EventReservationCancelled, result, now))
	return result, nil
}

type MarkShippedInput struct {
	ReservationID  string
	SellerID       string
	Carrier        string
	TrackingNumber string
}

func (s *ReservationService) MarkShipped(ctx context.Context, in MarkShippedInput) (domain.Reservation, error) {
	now := s.clock.Now()
	var (
		result  domain.Reservation
		changed bool
	)

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		r, err := s.repo.GetReservationForUpdate(txCtx, in.ReservationID)
		if err != nil {
			return err
		}
		offer, err := s.repo.GetOffer(txCtx, r.OfferID)
		if err != nil {
			return err
		}
		if offer.SellerID != in.SellerID {
			return domain.ErrNotOwner.Withf("offer %s is not owned by seller %s", offer.ID, in.SellerID)
		}
		changed, err = r.MarkShipped(now, in.Carrier, in.TrackingNumber)
		if err != nil {
			return err
		}
		if changed {
			if err := s.repo.UpdateReservation(txCtx, r); err != nil {
				return err
			}
		}
		result = r
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	if changed {
		publish(ctx, s.events, s.logger, eventOf(EventReservationShipped, result, now))
	}
	return result, nil
}

func (s *ReservationService) ConfirmArrival(ctx context.Context, reservationID, buyerID string) (domain.Reservation, error) {
	now := s.clock.Now()
	var (
		result  domain.Reservation
		changed bool
	)

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		r, err := s.repo.GetReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}
		if r.BuyerID != buyerID {
			return domain.ErrNotOwner
		}
		changed, err = r.ConfirmArrival(now)
		if err != nil {
			return err
		}
		if changed {
			if err := s.repo.UpdateReservation(txCtx, r); err != nil {
				return err
			}
		}
		result = r
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	if changed {
		publish(ctx, s.events, s.logger, eventOf(EventArrivalConfirmed, result, now))
	}
	return result, nil
}

// ExpireDue moves every PENDING reservation whose deadline has passed to
// EXPIRED and releases its hold. Rows already terminal are never
// selected, so repeated calls expire nothing new.
func (s *ReservationService) ExpireDue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	total := 0
	for {
		var expired []domain.Reservation
		err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
			due, err := s.repo.ListDueForUpdate(txCtx, now, sweepBatchSize)
			if err != nil {
				return err
			}
			for _, r := range due {
				if err := r.Expire(now); err != nil {
					return err
				}
				if _, err := s.ledger.Release(txCtx, r.OfferID, r.Qty); err != nil {
					return err
				}
				if err := s.repo.UpdateReservation(txCtx, r); err != nil {
					return err
				}
				expired = append(expired, r)
			}
			return nil
		})
		if err != nil {
			return total, err
		}

		total += len(expired)
		for _, r := range expired {
			publish(ctx, s.events, s.logger, eventOf(EventReservationExpired, r, now))
		}
		if len(expired) < sweepBatchSize {
			return total, nil
		}
	}
}

// NextExpiry reports the soonest pending deadline, or nil if none.
func (s *ReservationService) NextExpiry(ctx context.Context) (*time.Time, error) {
	return s.repo.NextExpiry(ctx)
}

func (s *ReservationService) Get(ctx context.Context, reservationID string) (domain.Reservation, error) {
	return s.repo.GetReservation(ctx, reservationID)
}

// Phase is the display phase of r at the current time.
func (s *ReservationService) Phase(r domain.Reservation) string {
	return refund.Phase(r, s.clock.Now(), s.coolingDays)
}

func eventOf(t EventType, r domain.Reservation, now time.Time) Event {
	return Event{
		Type:          t,
		ReservationID: r.ID,
		OfferID:       r.OfferID,
		BuyerID:       r.BuyerID,
		Qty:           r.Qty,
		OccurredAt:    now,
	}
}

// paymentError keeps domain errors from the gateway as they are and maps
// anything else to a declined payment.
func paymentError(err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.ErrPaymentDeclined.Withf("payment declined: %v", err)
}
