package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dealmatch/groupbuy/services/api/internal/app"
	"github.com/dealmatch/groupbuy/services/api/internal/domain"
)

// ReservationService is the minimal interface needed for reservation endpoints.
type ReservationService interface {
	Create(ctx context.Context, in app.CreateReservationInput) (domain.Reservation, error)
	Get(ctx context.Context, reservationID string) (domain.Reservation, error)
	Pay(ctx context.Context, reservationID, buyerID string) (domain.Reservation, error)
	Cancel(ctx context.Context, reservationID, buyerID string) (domain.Reservation, error)
	MarkShipped(ctx context.Context, in app.MarkShippedInput) (domain.Reservation, error)
	ConfirmArrival(ctx context.Context, reservationID, buyerID string) (domain.Reservation, error)
	Phase(r domain.Reservation) string
}

// HandleCreateReservation returns an HTTP handler for POST /reservations.
func HandleCreateReservation(svc ReservationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}

		var req createReservationRequest
		if err := decodeBody(r, &req, false); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.DealID == "" || req.OfferID == "" || req.BuyerID == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "deal_id, offer_id and buyer_id are required")
			return
		}

		res, err := svc.Create(r.Context(), app.CreateReservationInput{
			DealID:      req.DealID,
			OfferID:     req.OfferID,
			BuyerID:     req.BuyerID,
			Qty:         req.Qty,
			HoldMinutes: req.HoldMinutes,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toReservationResponse(res, svc.Phase(res)))
	}
}

// HandleGetReservation returns an HTTP handler for GET /reservations/{id}.
func HandleGetReservation(svc ReservationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		res, err := svc.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toReservationResponse(res, svc.Phase(res)))
	}
}

func HandlePayReservation(svc ReservationService) http.HandlerFunc {
	return handleBuyerAction(svc, svc.Pay, false)
}

// HandleCancelReservation accepts an empty body for operator cancels,
// which skip the ownership check.
func HandleCancelReservation(svc ReservationService) http.HandlerFunc {
	return handleBuyerAction(svc, svc.Cancel, true)
}

func HandleConfirmArrival(svc ReservationService) http.HandlerFunc {
	return handleBuyerAction(svc, svc.ConfirmArrival, false)
}

func handleBuyerAction(svc ReservationService, action func(ctx context.Context, reservationID, buyerID string) (domain.Reservation, error), allowAnonymous bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}

		var req buyerActionRequest
		if err := decodeBody(r, &req, allowAnonymous); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.BuyerID == "" && !allowAnonymous {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "buyer_id is required")
			return
		}

		res, err := action(r.Context(), r.PathValue("id"), req.BuyerID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toReservationResponse(res, svc.Phase(res)))
	}
}

// HandleShipReservation returns an HTTP handler for POST /reservations/{id}/ship.
func HandleShipReservation(svc ReservationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}

		var req shipRequest
		if err := decodeBody(r, &req, false); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.SellerID == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "seller_id is required")
			return
		}

		res, err := svc.MarkShipped(r.Context(), app.MarkShippedInput{
			ReservationID:  r.PathValue("id"),
			SellerID:       req.SellerID,
			Carrier:        req.Carrier,
			TrackingNumber: req.TrackingNumber,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toReservationResponse(res, svc.Phase(res)))
	}
}

type createReservationRequest struct {
	DealID      string `json:"deal_id"`
	OfferID     string `json:"offer_id"`
	BuyerID     string `json:"buyer_id"`
	Qty         int    `json:"qty"`
	HoldMinutes int    `json:"hold_minutes,omitempty"`
}

type buyerActionRequest struct {
	BuyerID string `json:"buyer_id"`
}

type shipRequest struct {
	SellerID       string `json:"seller_id"`
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
}

type reservationResponse struct {
	ID      string `json:"id"`
	DealID  string `json:"deal_id"`
	OfferID string `json:"offer_id"`
	BuyerID string `json:"buyer_id"`
	Qty     int    `json:"qty"`
	Status  string `json:"status"`
	Phase   string `json:"phase"`

	CreatedAt          time.Time  `json:"created_at"`
	ExpiresAt          time.Time  `json:"expires_at"`
	PaidAt             *time.Time `json:"paid_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	ExpiredAt          *time.Time `json:"expired_at,omitempty"`
	ShippedAt          *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt        *time.Time `json:"delivered_at,omitempty"`
	ArrivalConfirmedAt *time.Time `json:"arrival_confirmed_at,omitempty"`

	ShippingCarrier string `json:"shipping_carrier,omitempty"`
	TrackingNumber  string `json:"tracking_number,omitempty"`

	AmountGoods         int64 `json:"amount_goods"`
	AmountShipping      int64 `json:"amount_shipping"`
	AmountTotal         int64 `json:"amount_total"`
	RefundedQty         int   `json:"refunded_qty"`
	RefundedAmountTotal int64 `json:"refunded_amount_total"`
	IsDisputed          bool  `json:"is_disputed"`
}

func toReservationResponse(r domain.Reservation, phase string) reservationResponse {
	return reservationResponse{
		ID:                  r.ID,
		DealID:              r.DealID,
		OfferID:             r.OfferID,
		BuyerID:             r.BuyerID,
		Qty:                 r.Qty,
		Status:              string(r.Status),
		Phase:               phase,
		CreatedAt:           r.CreatedAt,
		ExpiresAt:           r.ExpiresAt,
		PaidAt:              r.PaidAt,
		CancelledAt:         r.CancelledAt,
		ExpiredAt:           r.ExpiredAt,
		ShippedAt:           r.ShippedAt,
		DeliveredAt:         r.DeliveredAt,
		ArrivalConfirmedAt:  r.ArrivalConfirmedAt,
		ShippingCarrier:     r.ShippingCarrier,
		TrackingNumber:      r.TrackingNumber,
		AmountGoods:         r.AmountGoods,
		AmountShipping:      r.AmountShipping,
		AmountTotal:         r.AmountTotal,
		RefundedQty:         r.RefundedQty,
		RefundedAmountTotal: r.RefundedAmountTotal,
		IsDisputed:          r.IsDisputed,
	}
}
