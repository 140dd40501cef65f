package refund

import "github.com/dealmatch/groupbuy/services/api/internal/domain"

// Context is everything the policy needs to judge one refund request. It
// is rebuilt on every call and never stored.
type Context struct {
	ReservationID string
	DealID        string
	OfferID       string
	BuyerID       string
	SellerID      string

	FaultParty      domain.FaultParty
	Trigger         domain.RefundTrigger
	CoolingState    domain.CoolingState
	SettlementState domain.SettlementState

	QuantityTotal  int
	QuantityRefund int
	AmountGoods    int64
	AmountShipping int64
	AmountTotal    int64
}

// Decision says how a refund is paid out and who carries the fees. A nil
// burden means nobody is charged.
type Decision struct {
	UsePGRefund       bool
	PGFeeBurden       *domain.FaultParty
	PlatformFeeBurden *domain.FaultParty

	RevokeBuyerPoints  bool
	RevokeSellerPoints bool

	NeedSettlementRecovery       bool
	SettlementRecoveryFromSeller bool

	Note string
}

// Decide evaluates the settlement × fault-party matrix. It is a pure
// function of the context's axes.
func Decide(ctx Context) Decision {
	d := Decision{
		RevokeBuyerPoints:  true,
		RevokeSellerPoints: true,
	}

	switch ctx.SettlementState {
	case domain.SettlementNotSettled:
		d.UsePGRefund = true
		burden := feeBurden(ctx.FaultParty)
		d.PGFeeBurden, d.PlatformFeeBurden = burden, burden
		switch *burden {
		case domain.FaultBuyer:
			d.Note = "not settled, buyer fault: PG and platform fees charged to buyer"
		case domain.FaultSeller:
			d.Note = "not settled, seller fault: PG and platform fees charged to seller"
		default:
			d.Note = "not settled, system or dispute: fees follow platform policy"
		}

	case domain.SettlementSettledToSeller:
		d.NeedSettlementRecovery = true
		d.SettlementRecoveryFromSeller = true
		burden := feeBurden(ctx.FaultParty)
		d.PGFeeBurden, d.PlatformFeeBurden = burden, burden
		switch *burden {
		case domain.FaultBuyer:
			d.Note = "settled, buyer fault: recover payout from seller, fees charged to buyer"
		case domain.FaultSeller:
			d.Note = "settled, seller fault: recover payout from seller, fees charged to seller"
		default:
			d.Note = "settled, system or dispute: recover payout from seller, fees follow platform policy"
		}

	default:
		d.UsePGRefund = true
		system := domain.FaultSystem
		d.PGFeeBurden, d.PlatformFeeBurden = &system, &system
		d.Note = "settlement state unknown: conservative PG refund, fees charged to system"
	}

	if ctx.CoolingState == domain.CoolingAfter {
		d.Note += "; after cooling: tag as dispute case"
	}
	return d
}

// feeBurden maps a fault party to the party carrying fees. Disputes are
// carried by the system until resolved.
func feeBurden(p domain.FaultParty) *domain.FaultParty {
	out := domain.FaultSystem
	switch p {
	case domain.FaultBuyer, domain.FaultSeller:
		out = p
	}
	return &out
}

// ShippingRefundAllowed gates whether shipping participates in a refund at
// all. It is combined with the prorated amount: false forces zero.
func ShippingRefundAllowed(cooling domain.CoolingState, trigger domain.RefundTrigger) bool {
	switch cooling {
	case domain.CoolingBeforeShipping:
		return true
	case domain.CoolingShippedNotDelivered, domain.CoolingWithin:
		return trigger != domain.TriggerBuyerCancel
	case domain.CoolingAfter:
		return trigger == domain.TriggerDisputeResolve
	default:
		return false
	}
}
