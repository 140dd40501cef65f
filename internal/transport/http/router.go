package http

import "net/http"

// Services groups what the router dispatches to.
type Services struct {
	Reservations ReservationService
	Refunds      RefundService
	Inventory    InventoryReader
	Sweeper      Sweeper
	Admin        AdminService
	// Health is pinged by /health; nil reports liveness only.
	Health Pinger
}

// NewRouter wires every endpoint. Unknown paths get a JSON 404.
func NewRouter(s Services) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/health", HandleHealth(s.Health))

	mux.Handle("/reservations", HandleCreateReservation(s.Reservations))
	mux.Handle("/reservations/{id}", HandleGetReservation(s.Reservations))
	mux.Handle("/reservations/{id}/pay", HandlePayReservation(s.Reservations))
	mux.Handle("/reservations/{id}/cancel", HandleCancelReservation(s.Reservations))
	mux.Handle("/reservations/{id}/ship", HandleShipReservation(s.Reservations))
	mux.Handle("/reservations/{id}/arrival", HandleConfirmArrival(s.Reservations))
	mux.Handle("/reservations/{id}/refund", HandleRefundExecute(s.Refunds))
	mux.Handle("/reservations/{id}/refund/preview", HandleRefundPreview(s.Refunds))

	mux.Handle("/offers/{id}/inventory", HandleInventory(s.Inventory))
	mux.Handle("/offers/{id}/inventory/audit", HandleInventoryAudit(s.Inventory))

	mux.Handle("/admin/sweep", HandleSweep(s.Sweeper))
	mux.Handle("/admin/buyers", HandleAdminBuyers(s.Admin))
	mux.Handle("/admin/sellers", HandleAdminSellers(s.Admin))
	mux.Handle("/admin/deals", HandleAdminDeals(s.Admin))
	mux.Handle("/admin/deals/{id}/offers", HandleAdminOffers(s.Admin))
	mux.Handle("/admin/reservations/{id}/settle", HandleAdminSettle(s.Admin))
	mux.Handle("/admin/holidays", HandleAdminHolidays(s.Admin))
	mux.Handle("/admin/holidays/{date}", HandleAdminHoliday(s.Admin))

	mux.Handle("/", NotFoundHandler())
	return mux
}
