package http

import (
	"context"
	"net/http"

	"github.com/dealmatch/groupbuy/services/api/internal/app"
)

// InventoryReader is the minimal interface needed for inventory endpoints.
type InventoryReader interface {
	Snapshot(ctx context.Context, offerID string) (app.InventorySnapshot, error)
	Audit(ctx context.Context, offerID string) (app.InventoryAudit, error)
}

// HandleInventory returns an HTTP handler for GET /offers/{id}/inventory.
func HandleInventory(svc InventoryReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		snap, err := svc.Snapshot(r.Context(), r.PathValue("id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// HandleInventoryAudit returns an HTTP handler for GET /offers/{id}/inventory/audit.
// Drift is reported in the body; the status stays 200.
func HandleInventoryAudit(svc InventoryReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		audit, err := svc.Audit(r.Context(), r.PathValue("id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, audit)
	}
}

// Sweeper runs one expiry pass on demand.
type Sweeper interface {
	SweepOnce(ctx context.Context) (int, error)
}

// HandleSweep returns an HTTP handler for POST /admin/sweep.
func HandleSweep(svc Sweeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		n, err := svc.SweepOnce(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sweepResponse{Expired: n})
	}
}

type sweepResponse struct {
	Expired int `json:"expired"`
}
