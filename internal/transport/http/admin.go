package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/dealmatch/groupbuy/services/api/internal/app"
	"github.com/dealmatch/groupbuy/services/api/internal/clock"
	"github.com/dealmatch/groupbuy/services/api/internal/domain"
)

// AdminService is the minimal interface needed for admin endpoints.
type AdminService interface {
	CreateBuyer(ctx context.Context, name string) (domain.Buyer, error)
	CreateSeller(ctx context.Context, name string) (domain.Seller, error)
	CreateDeal(ctx context.Context, in app.CreateDealInput) (domain.Deal, error)
	CreateOffer(ctx context.Context, in app.CreateOfferInput) (domain.Offer, error)
	ListOffers(ctx context.Context, dealID string) ([]domain.Offer, error)
	MarkSettled(ctx context.Context, reservationID string) error
	AddHoliday(ctx context.Context, date, name string) (clock.Holiday, error)
	RemoveHoliday(ctx context.Context, date string) error
	ListHolidays(ctx context.Context, year int) ([]clock.Holiday, error)
}

// HandleAdminBuyers returns an HTTP handler for POST /admin/buyers.
func HandleAdminBuyers(svc AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var req nameRequest
		if err := decodeBody(r, &req, false); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		buyer, err := svc.CreateBuyer(r.Context(), req.Name)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, partyResponse{ID: buyer.ID, Name: buyer.Name})
	}
}

// HandleAdminSellers returns an HTTP handler for POST /admin/sellers.
func HandleAdminSellers(svc AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var req nameRequest
		if err := decodeBody(r, &req, false); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		seller, err := svc.CreateSeller(r.Context(), req.Name)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, partyResponse{ID: seller.ID, Name: seller.Name})
	}
}

// HandleAdminDeals returns an HTTP handler for POST /admin/deals.
func HandleAdminDeals(svc AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var req createDealRequest
		if err := decodeBody(r, &req, false); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		deal, err := svc.CreateDeal(r.Context(), app.CreateDealInput{
			HostBuyerID: req.HostBuyerID,
			ProductName: req.ProductName,
			DesiredQty:  req.DesiredQty,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, dealResponse{
			ID:          deal.ID,
			HostBuyerID: deal.HostBuyerID,
			ProductName: deal.ProductName,
			DesiredQty:  deal.DesiredQty,
			CreatedAt:   deal.CreatedAt,
		})
	}
}

// HandleAdminOffers returns an HTTP handler for offer creation/listing
// under /admin/deals/{id}/offers.
func HandleAdminOffers(svc AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dealID := r.PathValue("id")

		switch r.Method {
		case http.MethodGet:
			offers, err := svc.ListOffers(r.Context(), dealID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			resp := make([]offerResponse, 0, len(offers))
			for _, offer := range offers {
				resp = append(resp, toOfferResponse(offer))
			}
			writeJSON(w, http.StatusOK, resp)
		case http.MethodPost:
			var req createOfferRequest
			if err := decodeBody(r, &req, false); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}
			offer, err := svc.CreateOffer(r.Context(), app.CreateOfferInput{
				DealID:                    dealID,
				SellerID:                  req.SellerID,
				TotalCapacity:             req.TotalCapacity,
				UnitPrice:                 req.UnitPrice,
				ShippingMode:              req.ShippingMode,
				ShippingFeePerReservation: req.ShippingFeePerReservation,
				ShippingFeePerQty:         req.ShippingFeePerQty,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, toOfferResponse(offer))
		default:
			writeMethodNotAllowed(w)
		}
	}
}

// HandleAdminSettle returns an HTTP handler for POST /admin/reservations/{id}/settle.
func HandleAdminSettle(svc AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		if err := svc.MarkSettled(r.Context(), r.PathValue("id")); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleAdminHolidays returns an HTTP handler for GET/POST /admin/holidays.
// GET takes ?year=, defaulting to the current year.
func HandleAdminHolidays(svc AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			year := time.Now().Year()
			if v := r.URL.Query().Get("year"); v != "" {
				parsed, err := strconv.Atoi(v)
				if err != nil {
					writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid year")
					return
				}
				year = parsed
			}
			holidays, err := svc.ListHolidays(r.Context(), year)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			resp := make([]holidayResponse, 0, len(holidays))
			for _, h := range holidays {
				resp = append(resp, holidayResponse{Date: h.Date.String(), Name: h.Name})
			}
			writeJSON(w, http.StatusOK, resp)
		case http.MethodPost:
			var req holidayRequest
			if err := decodeBody(r, &req, false); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}
			if req.Date == "" {
				writeError(w, http.StatusBadRequest, codeMissingRequiredField, "date is required")
				return
			}
			h, err := svc.AddHoliday(r.Context(), req.Date, req.Name)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, holidayResponse{Date: h.Date.String(), Name: h.Name})
		default:
			writeMethodNotAllowed(w)
		}
	}
}

// HandleAdminHoliday returns an HTTP handler for DELETE /admin/holidays/{date}.
func HandleAdminHoliday(svc AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			writeMethodNotAllowed(w)
			return
		}
		if err := svc.RemoveHoliday(r.Context(), r.PathValue("date")); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type nameRequest struct {
	Name string `json:"name"`
}

type partyResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type createDealRequest struct {
	HostBuyerID string `json:"host_buyer_id"`
	ProductName string `json:"product_name"`
	DesiredQty  int    `json:"desired_qty"`
}

type dealResponse struct {
	ID          string    `json:"id"`
	HostBuyerID string    `json:"host_buyer_id"`
	ProductName string    `json:"product_name"`
	DesiredQty  int       `json:"desired_qty"`
	CreatedAt   time.Time `json:"created_at"`
}

type createOfferRequest struct {
	SellerID                  string `json:"seller_id"`
	TotalCapacity             int    `json:"total_capacity"`
	UnitPrice                 int64  `json:"unit_price"`
	ShippingMode              string `json:"shipping_mode"`
	ShippingFeePerReservation int64  `json:"shipping_fee_per_reservation"`
	ShippingFeePerQty         int64  `json:"shipping_fee_per_qty"`
}

type offerResponse struct {
	ID                        string    `json:"id"`
	DealID                    string    `json:"deal_id"`
	SellerID                  string    `json:"seller_id"`
	TotalCapacity             int       `json:"total_capacity"`
	ReservedQty               int       `json:"reserved_qty"`
	SoldQty                   int       `json:"sold_qty"`
	Remaining                 int       `json:"remaining"`
	UnitPrice                 int64     `json:"unit_price"`
	ShippingMode              string    `json:"shipping_mode"`
	ShippingFeePerReservation int64     `json:"shipping_fee_per_reservation"`
	ShippingFeePerQty         int64     `json:"shipping_fee_per_qty"`
	CreatedAt                 time.Time `json:"created_at"`
}

func toOfferResponse(o domain.Offer) offerResponse {
	return offerResponse{
		ID:                        o.ID,
		DealID:                    o.DealID,
		SellerID:                  o.SellerID,
		TotalCapacity:             o.TotalCapacity,
		ReservedQty:               o.ReservedQty,
		SoldQty:                   o.SoldQty,
		Remaining:                 o.Remaining(),
		UnitPrice:                 o.UnitPrice,
		ShippingMode:              string(o.ShippingMode),
		ShippingFeePerReservation: o.ShippingFeePerReservation,
		ShippingFeePerQty:         o.ShippingFeePerQty,
		CreatedAt:                 o.CreatedAt,
	}
}

type holidayRequest struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

type holidayResponse struct {
	Date string `json:"date"`
	Name string `json:"name"`
}
