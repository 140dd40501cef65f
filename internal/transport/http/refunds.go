package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dealmatch/groupbuy/services/api/internal/app"
	"github.com/dealmatch/groupbuy/services/api/internal/domain"
	"github.com/dealmatch/groupbuy/services/api/internal/refund"
)

const idempotencyHeader = "Idempotency-Key"

// RefundService is the minimal interface needed for refund endpoints.
type RefundService interface {
	Preview(ctx context.Context, in app.RefundInput) (app.RefundPreview, error)
	Execute(ctx context.Context, in app.RefundInput) (app.RefundResult, error)
}

// HandleRefundPreview returns an HTTP handler for
// POST /reservations/{id}/refund/preview. Nothing is written.
func HandleRefundPreview(svc RefundService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}

		var req refundRequest
		if err := decodeBody(r, &req, false); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.Actor == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "actor is required")
			return
		}

		p, err := svc.Preview(r.Context(), app.RefundInput{
			ReservationID:  r.PathValue("id"),
			Actor:          domain.Actor(req.Actor),
			QuantityRefund: req.Quantity,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toQuoteResponse(p.Quote))
	}
}

// HandleRefundExecute returns an HTTP handler for POST /reservations/{id}/refund.
// A first execution answers 201; a replay of the same key answers 200.
func HandleRefundExecute(svc RefundService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}

		key := r.Header.Get(idempotencyHeader)
		if key == "" {
			writeError(w, http.StatusBadRequest, domain.ErrIdempotencyKeyRequired.Code, domain.ErrIdempotencyKeyRequired.Error())
			return
		}

		var req refundRequest
		if err := decodeBody(r, &req, false); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.Actor == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "actor is required")
			return
		}

		res, err := svc.Execute(r.Context(), app.RefundInput{
			ReservationID:  r.PathValue("id"),
			Actor:          domain.Actor(req.Actor),
			QuantityRefund: req.Quantity,
			IdempotencyKey: key,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		status := http.StatusCreated
		if res.Replayed {
			status = http.StatusOK
		}
		writeJSON(w, status, refundResultResponse{
			Refund:              toRefundRecordResponse(res.Refund),
			ReservationStatus:   string(res.Reservation.Status),
			RefundedQty:         res.Reservation.RefundedQty,
			RefundedAmountTotal: res.Reservation.RefundedAmountTotal,
			Replayed:            res.Replayed,
		})
	}
}

type refundRequest struct {
	Actor    string `json:"actor"`
	Quantity int    `json:"quantity,omitempty"`
}

type quoteResponse struct {
	FaultParty      string `json:"fault_party"`
	Trigger         string `json:"trigger"`
	CoolingState    string `json:"cooling_state"`
	SettlementState string `json:"settlement_state"`
	QuantityRefund  int    `json:"quantity_refund"`
	ShippingAllowed bool   `json:"shipping_refund_allowed"`
	AmountGoods     int64  `json:"amount_goods"`
	AmountShipping  int64  `json:"amount_shipping"`
	AmountTotal     int64  `json:"amount_total"`
	Note            string `json:"note"`

	RevokeBuyerPoints  bool `json:"revoke_buyer_points"`
	RevokeSellerPoints bool `json:"revoke_seller_points"`

	Plan planResponse `json:"plan"`
}

type planResponse struct {
	PGShouldRefund               bool    `json:"pg_should_refund"`
	PGRefundAmount               int64   `json:"pg_refund_amount"`
	PGFeeAmount                  int64   `json:"pg_fee_amount"`
	PGFeeChargeTo                *string `json:"pg_fee_charge_to"`
	PlatformFeeAmount            int64   `json:"platform_fee_amount"`
	PlatformFeeChargeTo          *string `json:"platform_fee_charge_to"`
	SettlementRecoveryAmount     int64   `json:"settlement_recovery_amount"`
	SettlementRecoveryFromSeller bool    `json:"settlement_recovery_from_seller"`
}

func toQuoteResponse(q refund.Quote) quoteResponse {
	return quoteResponse{
		FaultParty:         string(q.Context.FaultParty),
		Trigger:            string(q.Context.Trigger),
		CoolingState:       string(q.Context.CoolingState),
		SettlementState:    string(q.Context.SettlementState),
		QuantityRefund:     q.Context.QuantityRefund,
		ShippingAllowed:    q.ShippingAllowed,
		AmountGoods:        q.AmountGoods,
		AmountShipping:     q.AmountShipping,
		AmountTotal:        q.AmountTotal,
		Note:               q.Decision.Note,
		RevokeBuyerPoints:  q.Decision.RevokeBuyerPoints,
		RevokeSellerPoints: q.Decision.RevokeSellerPoints,
		Plan: planResponse{
			PGShouldRefund:               q.Plan.PGShouldRefund,
			PGRefundAmount:               q.Plan.PGRefundAmount,
			PGFeeAmount:                  q.Plan.PGFeeAmount,
			PGFeeChargeTo:                partyString(q.Plan.PGFeeChargeTo),
			PlatformFeeAmount:            q.Plan.PlatformFeeAmount,
			PlatformFeeChargeTo:          partyString(q.Plan.PlatformFeeChargeTo),
			SettlementRecoveryAmount:     q.Plan.SettlementRecoveryAmount,
			SettlementRecoveryFromSeller: q.Plan.SettlementRecoveryFromSeller,
		},
	}
}

func partyString(p *domain.FaultParty) *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}

type refundRecordResponse struct {
	ID                 string    `json:"id"`
	ReservationID      string    `json:"reservation_id"`
	IdempotencyKey     string    `json:"idempotency_key"`
	Actor              string    `json:"actor"`
	FaultParty         string    `json:"fault_party"`
	Trigger            string    `json:"trigger"`
	CoolingState       string    `json:"cooling_state"`
	SettlementState    string    `json:"settlement_state"`
	QuantityRefund     int       `json:"quantity_refund"`
	AmountGoods        int64     `json:"amount_goods"`
	AmountShipping     int64     `json:"amount_shipping"`
	AmountTotal        int64     `json:"amount_total"`
	UsePGRefund        bool      `json:"use_pg_refund"`
	RecoveryFromSeller bool      `json:"recovery_from_seller"`
	Note               string    `json:"note"`
	CreatedAt          time.Time `json:"created_at"`
}

func toRefundRecordResponse(rec domain.RefundRecord) refundRecordResponse {
	return refundRecordResponse{
		ID:                 rec.ID,
		ReservationID:      rec.ReservationID,
		IdempotencyKey:     rec.IdempotencyKey,
		Actor:              string(rec.Actor),
		FaultParty:         string(rec.FaultParty),
		Trigger:            string(rec.Trigger),
		CoolingState:       string(rec.CoolingState),
		SettlementState:    string(rec.SettlementState),
		QuantityRefund:     rec.QuantityRefund,
		AmountGoods:        rec.AmountGoods,
		AmountShipping:     rec.AmountShipping,
		AmountTotal:        rec.AmountTotal,
		UsePGRefund:        rec.UsePGRefund,
		RecoveryFromSeller: rec.RecoveryFromSeller,
		Note:               rec.Note,
		CreatedAt:          rec.CreatedAt,
	}
}

type refundResultResponse struct {
	Refund              refundRecordResponse `json:"refund"`
	ReservationStatus   string               `json:"reservation_status"`
	RefundedQty         int                  `json:"refunded_qty"`
	RefundedAmountTotal int64                `json:"refunded_amount_total"`
	Replayed            bool                 `json:"replayed"`
}
