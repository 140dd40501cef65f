package domain

import (
	"strings"
	"time"
)

type FaultParty string

const (
	FaultBuyer   FaultParty = "BUYER"
	FaultSeller  FaultParty = "SELLER"
	FaultSystem  FaultParty = "SYSTEM"
	FaultDispute FaultParty = "DISPUTE"
)

type RefundTrigger string

const (
	TriggerBuyerCancel    RefundTrigger = "BUYER_CANCEL"
	TriggerSellerCancel   RefundTrigger = "SELLER_CANCEL"
	TriggerAdminForce     RefundTrigger = "ADMIN_FORCE"
	TriggerSystemError    RefundTrigger = "SYSTEM_ERROR"
	TriggerDisputeResolve RefundTrigger = "DISPUTE_RESOLVE"
)

// CoolingState is the shipment/refund phase of a paid reservation.
type CoolingState string

const (
	CoolingBeforeShipping      CoolingState = "BEFORE_SHIPPING"
	CoolingShippedNotDelivered CoolingState = "SHIPPED_NOT_DELIVERED"
	CoolingWithin              CoolingState = "WITHIN_COOLING"
	CoolingAfter               CoolingState = "AFTER_COOLING"
	CoolingUnknown             CoolingState = "UNKNOWN"
)

type SettlementState string

const (
	SettlementNotSettled      SettlementState = "NOT_SETTLED"
	SettlementSettledToSeller SettlementState = "SETTLED_TO_SELLER"
	SettlementUnknown         SettlementState = "UNKNOWN"
)

// ParseSettlementState maps a stored value to a state; anything that
// cannot be interpreted is UNKNOWN.
func ParseSettlementState(s string) SettlementState {
	switch st := SettlementState(strings.ToUpper(strings.TrimSpace(s))); st {
	case SettlementNotSettled, SettlementSettledToSeller:
		return st
	default:
		return SettlementUnknown
	}
}

// Actor is the caller-facing reason for a refund.
type Actor string

const (
	ActorBuyerCancel    Actor = "buyer_cancel"
	ActorSellerCancel   Actor = "seller_cancel"
	ActorAdminForce     Actor = "admin_force"
	ActorSystemError    Actor = "system_error"
	ActorDisputeResolve Actor = "dispute_resolve"
)

// Attribution resolves an actor to the fault party and trigger that the
// refund policy is evaluated against.
func (a Actor) Attribution() (FaultParty, RefundTrigger, error) {
	switch Actor(strings.ToLower(strings.TrimSpace(string(a)))) {
	case ActorBuyerCancel:
		return FaultBuyer, TriggerBuyerCancel, nil
	case ActorSellerCancel:
		return FaultSeller, TriggerSellerCancel, nil
	case ActorAdminForce:
		return FaultSystem, TriggerAdminForce, nil
	case ActorSystemError:
		return FaultSystem, TriggerSystemError, nil
	case ActorDisputeResolve:
		return FaultDispute, TriggerDisputeResolve, nil
	default:
		return "", "", ErrInvalidActor.Withf("unknown refund actor %q", string(a))
	}
}

// Settlement tracks payout of a paid reservation to its seller.
type Settlement struct {
	ReservationID    string
	State            SettlementState
	SettledAt        *time.Time
	RecoveryRequired bool
	RecoveryAmount   int64
}

// RefundRecord is the durable trace of one executed refund. The pair
// (ReservationID, IdempotencyKey) is unique.
type RefundRecord struct {
	ID                 string
	ReservationID      string
	IdempotencyKey     string
	Actor              Actor
	FaultParty         FaultParty
	Trigger            RefundTrigger
	CoolingState       CoolingState
	SettlementState    SettlementState
	QuantityRefund     int
	AmountGoods        int64
	AmountShipping     int64
	AmountTotal        int64
	UsePGRefund        bool
	RecoveryFromSeller bool
	Note               string
	CreatedAt          time.Time
}

type UserType string

const (
	UserBuyer  UserType = "buyer"
	UserSeller UserType = "seller"
)

// PointEntry is one signed movement on a user's point balance.
type PointEntry struct {
	ID             string
	UserType       UserType
	UserID         string
	Amount         int64
	Reason         string
	IdempotencyKey string
	CreatedAt      time.Time
}
