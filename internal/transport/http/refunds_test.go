package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dealmatch/groupbuy/services/api/internal/domain"
)

func TestHandleRefundPreview(t *testing.T) {
	t.Parallel()

	f := newFakes()
	req := httptest.NewRequest(http.MethodPost, "/reservations/res-1/refund/preview", strings.NewReader(`{"actor":"buyer_cancel","quantity":1}`))
	rec := httptest.NewRecorder()
	f.router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var resp quoteResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AmountTotal != 10000 || resp.CoolingState != "BEFORE_SHIPPING" || !resp.Plan.PGShouldRefund {
		t.Fatalf("unexpected preview %+v", resp)
	}
	if resp.Plan.PGFeeChargeTo == nil || *resp.Plan.PGFeeChargeTo != "BUYER" || resp.Plan.PlatformFeeChargeTo != nil {
		t.Fatalf("unexpected fee burdens %+v", resp.Plan)
	}
	if f.refunds.last.ReservationID != "res-1" || f.refunds.last.Actor != domain.ActorBuyerCancel || f.refunds.last.QuantityRefund != 1 {
		t.Fatalf("unexpected input %+v", f.refunds.last)
	}
}

func TestHandleRefundExecute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		key            string
		body           string
		replayed       bool
		serviceErr     error
		expectedStatus int
		expectedCode   string
	}{
		{name: "created", key: "k1", body: `{"actor":"seller_cancel"}`, expectedStatus: http.StatusCreated},
		{name: "replayed", key: "k1", body: `{"actor":"seller_cancel"}`, replayed: true, expectedStatus: http.StatusOK},
		{name: "missing key", body: `{"actor":"seller_cancel"}`, expectedStatus: http.StatusBadRequest, expectedCode: "idempotency_key_required"},
		{name: "missing actor", key: "k1", body: `{}`, expectedStatus: http.StatusBadRequest, expectedCode: codeMissingRequiredField},
		{name: "unknown actor", key: "k1", body: `{"actor":"chargeback"}`, serviceErr: domain.ErrInvalidActor, expectedStatus: http.StatusBadRequest, expectedCode: "invalid_actor"},
		{name: "conflict", key: "k1", body: `{"actor":"seller_cancel","quantity":2}`, serviceErr: domain.ErrIdempotencyConflict, expectedStatus: http.StatusConflict, expectedCode: "idempotency_conflict"},
		{name: "exceeds", key: "k2", body: `{"actor":"seller_cancel","quantity":9}`, serviceErr: domain.ErrRefundExceedsQuantity, expectedStatus: http.StatusConflict, expectedCode: "refund_exceeds_quantity"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFakes()
			f.refunds.err = tt.serviceErr
			f.refunds.replayed = tt.replayed

			req := httptest.NewRequest(http.MethodPost, "/reservations/res-1/refund", strings.NewReader(tt.body))
			if tt.key != "" {
				req.Header.Set(idempotencyHeader, tt.key)
			}
			rec := httptest.NewRecorder()
			f.router().ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedCode != "" {
				var resp errorResponse
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if resp.Code != tt.expectedCode {
					t.Fatalf("expected code %s, got %s", tt.expectedCode, resp.Code)
				}
				return
			}

			var resp refundResultResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Refund.IdempotencyKey != tt.key || resp.Replayed != tt.replayed || resp.RefundedAmountTotal != 10000 {
				t.Fatalf("unexpected result %+v", resp)
			}
		})
	}
}
