package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/dealmatch/groupbuy/services/api/internal/domain"
)

// RefundScenarioSuite walks one reservation from hold to full refund
// across two partial refunds in different cooling states.
type RefundScenarioSuite struct {
	suite.Suite
	f   *fixture
	ctx context.Context
	res domain.Reservation
}

func TestRefundScenarioSuite(t *testing.T) {
	suite.Run(t, new(RefundScenarioSuite))
}

func (s *RefundScenarioSuite) SetupTest() {
	s.f = newFixture(s.T(), 10)
	s.ctx = context.Background()

	r, err := s.f.reserve.Create(s.ctx, CreateReservationInput{DealID: testDeal, OfferID: testOffer, BuyerID: testBuyer, Qty: 3})
	s.Require().NoError(err)
	r, err = s.f.reserve.Pay(s.ctx, r.ID, testBuyer)
	s.Require().NoError(err)
	s.Require().Equal(int64(30000), r.AmountTotal)
	s.Require().Equal(int64(3000), r.AmountShipping)
	s.res = r
}

func (s *RefundScenarioSuite) TestPartialRefundsSumToShipping() {
	first, err := s.f.refunds.Execute(s.ctx, RefundInput{
		ReservationID:  s.res.ID,
		Actor:          domain.ActorBuyerCancel,
		QuantityRefund: 1,
		IdempotencyKey: "first",
	})
	s.Require().NoError(err)
	s.Equal(domain.CoolingBeforeShipping, first.Refund.CoolingState)
	s.Equal(int64(1000), first.Refund.AmountShipping)
	s.Equal(domain.ReservationPaid, first.Reservation.Status)

	_, err = s.f.reserve.MarkShipped(s.ctx, MarkShippedInput{ReservationID: s.res.ID, SellerID: testSeller})
	s.Require().NoError(err)
	s.f.clock.Advance(24 * time.Hour)
	_, err = s.f.reserve.ConfirmArrival(s.ctx, s.res.ID, testBuyer)
	s.Require().NoError(err)
	s.f.clock.Advance(24 * time.Hour)

	second, err := s.f.refunds.Execute(s.ctx, RefundInput{
		ReservationID:  s.res.ID,
		Actor:          domain.ActorSellerCancel,
		QuantityRefund: 2,
		IdempotencyKey: "second",
	})
	s.Require().NoError(err)
	s.Equal(domain.CoolingWithin, second.Refund.CoolingState)
	s.Equal(int64(2000), second.Refund.AmountShipping)

	s.Equal(s.res.AmountShipping, first.Refund.AmountShipping+second.Refund.AmountShipping)
	s.Equal(s.res.AmountTotal, second.Reservation.RefundedAmountTotal)
	s.Equal(domain.ReservationCancelled, second.Reservation.Status)
	s.Equal(0, s.f.store.offer(s.T(), testOffer).SoldQty)
	s.Contains(s.f.events.types(), EventRefundExecuted)
}

func (s *RefundScenarioSuite) TestBuyerCancelAfterShipmentDropsShipping() {
	_, err := s.f.reserve.MarkShipped(s.ctx, MarkShippedInput{ReservationID: s.res.ID, SellerID: testSeller})
	s.Require().NoError(err)

	preview, err := s.f.refunds.Preview(s.ctx, RefundInput{ReservationID: s.res.ID, Actor: domain.ActorBuyerCancel})
	s.Require().NoError(err)
	s.Equal(domain.CoolingShippedNotDelivered, preview.Context.CoolingState)
	s.False(preview.ShippingAllowed)
	s.Equal(int64(0), preview.AmountShipping)
	s.Equal(int64(27000), preview.AmountTotal)
	s.Equal(3, preview.Context.QuantityRefund)
}

func (s *RefundScenarioSuite) TestDisputeAfterCoolingRefundsShipping() {
	_, err := s.f.reserve.MarkShipped(s.ctx, MarkShippedInput{ReservationID: s.res.ID, SellerID: testSeller})
	s.Require().NoError(err)
	_, err = s.f.reserve.ConfirmArrival(s.ctx, s.res.ID, testBuyer)
	s.Require().NoError(err)
	s.f.clock.Advance(8 * 24 * time.Hour)

	buyer, err := s.f.refunds.Preview(s.ctx, RefundInput{ReservationID: s.res.ID, Actor: domain.ActorBuyerCancel, QuantityRefund: 1})
	s.Require().NoError(err)
	s.Equal(domain.CoolingAfter, buyer.Context.CoolingState)
	s.Equal(int64(0), buyer.AmountShipping)

	dispute, err := s.f.refunds.Preview(s.ctx, RefundInput{ReservationID: s.res.ID, Actor: domain.ActorDisputeResolve, QuantityRefund: 1})
	s.Require().NoError(err)
	s.Equal(int64(1000), dispute.AmountShipping)
	s.Equal(domain.FaultSystem, *dispute.Decision.PGFeeBurden)
}
