package refund

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dealmatch/groupbuy/services/api/internal/domain"
)

// FeeRates are fractions of the refunded amount, e.g. 0.033 for 3.3%.
type FeeRates struct {
	PG       decimal.Decimal
	Platform decimal.Decimal
}

// FinancialPlan turns a decision into concrete money movements.
type FinancialPlan struct {
	PGShouldRefund bool
	PGRefundAmount int64
	PGFeeAmount    int64
	PGFeeChargeTo  *domain.FaultParty

	PlatformFeeAmount   int64
	PlatformFeeChargeTo *domain.FaultParty

	SettlementRecoveryAmount     int64
	SettlementRecoveryFromSeller bool
}

// BuildFinancialPlan prices a decision for amount. Fees are rounded down
// to whole currency units.
func BuildFinancialPlan(d Decision, amount int64, rates FeeRates) FinancialPlan {
	base := decimal.NewFromInt(amount)
	p := FinancialPlan{
		PGShouldRefund:               d.UsePGRefund,
		PGFeeAmount:                  base.Mul(rates.PG).Floor().IntPart(),
		PGFeeChargeTo:                d.PGFeeBurden,
		PlatformFeeAmount:            base.Mul(rates.Platform).Floor().IntPart(),
		PlatformFeeChargeTo:          d.PlatformFeeBurden,
		SettlementRecoveryFromSeller: d.SettlementRecoveryFromSeller,
	}
	if d.UsePGRefund {
		p.PGRefundAmount = amount
	}
	if d.NeedSettlementRecovery && d.SettlementRecoveryFromSeller {
		p.SettlementRecoveryAmount = amount
	}
	return p
}

// Input is the state a quote is computed from. QuantityRefund of zero
// means every unit not yet refunded.
type Input struct {
	Reservation    domain.Reservation
	SellerID       string
	Actor          domain.Actor
	QuantityRefund int
	Settlement     domain.SettlementState
	Now            time.Time
	CoolingDays    int
	Rates          FeeRates
}

// Quote is the full outcome of a refund computation.
type Quote struct {
	Context         Context
	Decision        Decision
	ShippingAllowed bool
	AmountGoods     int64
	AmountShipping  int64
	AmountTotal     int64
	Plan            FinancialPlan
}

// Compute runs cooling resolution, the policy matrix, the shipping gate
// and proration. Preview and execution both call it, so identical state
// yields identical amounts.
func Compute(in Input) (Quote, error) {
	r := in.Reservation
	if r.Status != domain.ReservationPaid {
		return Quote{}, domain.ErrInvalidTransition.Withf("cannot refund: status=%s", r.Status)
	}
	fault, trigger, err := in.Actor.Attribution()
	if err != nil {
		return Quote{}, err
	}

	qty := in.QuantityRefund
	if qty == 0 {
		qty = r.UnrefundedQty()
	}
	if qty <= 0 {
		return Quote{}, domain.ErrInvalidQuantity
	}
	if qty > r.UnrefundedQty() {
		return Quote{}, domain.ErrRefundExceedsQuantity.Withf("refund %d exceeds unrefunded %d", qty, r.UnrefundedQty())
	}

	cooling, err := ResolveCoolingStateChecked(r.ShippedAt, r.DeliveredAt, r.ArrivalConfirmedAt, in.Now, in.CoolingDays)
	if err != nil {
		return Quote{}, err
	}

	ctx := Context{
		ReservationID:   r.ID,
		DealID:          r.DealID,
		OfferID:         r.OfferID,
		BuyerID:         r.BuyerID,
		SellerID:        in.SellerID,
		FaultParty:      fault,
		Trigger:         trigger,
		CoolingState:    cooling,
		SettlementState: in.Settlement,
		QuantityTotal:   r.Qty,
		QuantityRefund:  qty,
		AmountGoods:     r.AmountGoods,
		AmountShipping:  r.AmountShipping,
		AmountTotal:     r.AmountTotal,
	}
	decision := Decide(ctx)

	goods, err := Prorate(r.AmountGoods, r.Qty, qty, r.RefundedQty)
	if err != nil {
		return Quote{}, err
	}
	allowed := ShippingRefundAllowed(cooling, trigger)
	var shipping int64
	if allowed {
		shipping, err = Prorate(r.AmountShipping, r.Qty, qty, r.RefundedQty)
		if err != nil {
			return Quote{}, err
		}
	}

	total := goods + shipping
	return Quote{
		Context:         ctx,
		Decision:        decision,
		ShippingAllowed: allowed,
		AmountGoods:     goods,
		AmountShipping:  shipping,
		AmountTotal:     total,
		Plan:            BuildFinancialPlan(decision, total, in.Rates),
	}, nil
}
