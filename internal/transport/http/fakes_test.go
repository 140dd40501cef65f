package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dealmatch/groupbuy/services/api/internal/app"
	"github.com/dealmatch/groupbuy/services/api/internal/clock"
	"github.com/dealmatch/groupbuy/services/api/internal/domain"
	"github.com/dealmatch/groupbuy/services/api/internal/refund"
)

var testNow = time.Date(2025, 3, 3, 1, 0, 0, 0, time.UTC)

type fakeReservations struct {
	err      error
	lastID   string
	lastUser string
	created  app.CreateReservationInput
	shipped  app.MarkShippedInput
}

func (f *fakeReservations) result(id string) (domain.Reservation, error) {
	if f.err != nil {
		return domain.Reservation{}, f.err
	}
	return domain.Reservation{
		ID:        id,
		DealID:    "deal-1",
		OfferID:   "offer-1",
		BuyerID:   "buyer-1",
		Qty:       3,
		Status:    domain.ReservationPending,
		CreatedAt: testNow,
		ExpiresAt: testNow.Add(5 * time.Minute),
	}, nil
}

func (f *fakeReservations) Create(_ context.Context, in app.CreateReservationInput) (domain.Reservation, error) {
	f.created = in
	return f.result("res-1")
}

func (f *fakeReservations) Get(_ context.Context, id string) (domain.Reservation, error) {
	f.lastID = id
	return f.result(id)
}

func (f *fakeReservations) Pay(_ context.Context, id, buyerID string) (domain.Reservation, error) {
	f.lastID, f.lastUser = id, buyerID
	return f.result(id)
}

func (f *fakeReservations) Cancel(_ context.Context, id, buyerID string) (domain.Reservation, error) {
	f.lastID, f.lastUser = id, buyerID
	return f.result(id)
}

func (f *fakeReservations) MarkShipped(_ context.Context, in app.MarkShippedInput) (domain.Reservation, error) {
	f.shipped = in
	return f.result(in.ReservationID)
}

func (f *fakeReservations) ConfirmArrival(_ context.Context, id, buyerID string) (domain.Reservation, error) {
	f.lastID, f.lastUser = id, buyerID
	return f.result(id)
}

func (f *fakeReservations) Phase(domain.Reservation) string { return "PENDING_ACTIVE" }

type fakeRefunds struct {
	err      error
	replayed bool
	last     app.RefundInput
}

func (f *fakeRefunds) Preview(_ context.Context, in app.RefundInput) (app.RefundPreview, error) {
	f.last = in
	if f.err != nil {
		return app.RefundPreview{}, f.err
	}
	burden := domain.FaultBuyer
	return app.RefundPreview{Quote: refund.Quote{
		Context: refund.Context{
			FaultParty:      domain.FaultBuyer,
			Trigger:         domain.TriggerBuyerCancel,
			CoolingState:    domain.CoolingBeforeShipping,
			SettlementState: domain.SettlementNotSettled,
			QuantityRefund:  1,
		},
		Decision:        refund.Decision{UsePGRefund: true, Note: "pg refund"},
		ShippingAllowed: true,
		AmountGoods:     9000,
		AmountShipping:  1000,
		AmountTotal:     10000,
		Plan:            refund.FinancialPlan{PGShouldRefund: true, PGRefundAmount: 10000, PGFeeChargeTo: &burden},
	}}, nil
}

func (f *fakeRefunds) Execute(_ context.Context, in app.RefundInput) (app.RefundResult, error) {
	f.last = in
	if f.err != nil {
		return app.RefundResult{}, f.err
	}
	return app.RefundResult{
		Reservation: domain.Reservation{ID: in.ReservationID, Status: domain.ReservationPaid, RefundedQty: 1, RefundedAmountTotal: 10000},
		Refund:      domain.RefundRecord{ID: "refund-1", ReservationID: in.ReservationID, IdempotencyKey: in.IdempotencyKey, AmountTotal: 10000},
		Replayed:    f.replayed,
	}, nil
}

type fakeInventory struct {
	err error
}

func (f *fakeInventory) Snapshot(_ context.Context, offerID string) (app.InventorySnapshot, error) {
	if f.err != nil {
		return app.InventorySnapshot{}, f.err
	}
	return app.InventorySnapshot{OfferID: offerID, TotalCapacity: 10, ReservedQty: 3, SoldQty: 2, Remaining: 5}, nil
}

func (f *fakeInventory) Audit(ctx context.Context, offerID string) (app.InventoryAudit, error) {
	snap, err := f.Snapshot(ctx, offerID)
	if err != nil {
		return app.InventoryAudit{}, err
	}
	return app.InventoryAudit{InventorySnapshot: snap, PendingQty: 3, PaidQty: 1, Hints: []string{"sold_qty 2 differs from paid 1"}}, nil
}

type fakeSweeper struct {
	n   int
	err error
}

func (f *fakeSweeper) SweepOnce(context.Context) (int, error) { return f.n, f.err }

type fakeAdmin struct {
	err      error
	holidays []clock.Holiday
	settled  string
	removed  string
	offerIn  app.CreateOfferInput
}

func (f *fakeAdmin) CreateBuyer(_ context.Context, name string) (domain.Buyer, error) {
	if name == "" {
		return domain.Buyer{}, domain.Validation("name_required", "name required")
	}
	return domain.Buyer{ID: "buyer-1", Name: name}, f.err
}

func (f *fakeAdmin) CreateSeller(_ context.Context, name string) (domain.Seller, error) {
	return domain.Seller{ID: "seller-1", Name: name}, f.err
}

func (f *fakeAdmin) CreateDeal(_ context.Context, in app.CreateDealInput) (domain.Deal, error) {
	return domain.Deal{ID: "deal-1", HostBuyerID: in.HostBuyerID, ProductName: in.ProductName, DesiredQty: in.DesiredQty, CreatedAt: testNow}, f.err
}

func (f *fakeAdmin) CreateOffer(_ context.Context, in app.CreateOfferInput) (domain.Offer, error) {
	f.offerIn = in
	if f.err != nil {
		return domain.Offer{}, f.err
	}
	return domain.Offer{ID: "offer-1", DealID: in.DealID, SellerID: in.SellerID, TotalCapacity: in.TotalCapacity, UnitPrice: in.UnitPrice, ShippingMode: domain.ShippingMode(in.ShippingMode)}, nil
}

func (f *fakeAdmin) ListOffers(_ context.Context, dealID string) ([]domain.Offer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Offer{{ID: "offer-1", DealID: dealID, TotalCapacity: 10, ReservedQty: 4}}, nil
}

func (f *fakeAdmin) MarkSettled(_ context.Context, id string) error {
	f.settled = id
	return f.err
}

func (f *fakeAdmin) AddHoliday(_ context.Context, date, name string) (clock.Holiday, error) {
	d, err := clock.ParseDate(date)
	if err != nil {
		return clock.Holiday{}, err
	}
	return clock.Holiday{Date: d, Name: name}, f.err
}

func (f *fakeAdmin) RemoveHoliday(_ context.Context, date string) error {
	f.removed = date
	return f.err
}

func (f *fakeAdmin) ListHolidays(context.Context, int) ([]clock.Holiday, error) {
	return f.holidays, f.err
}

type fakes struct {
	reservations *fakeReservations
	refunds      *fakeRefunds
	inventory    *fakeInventory
	sweeper      *fakeSweeper
	admin        *fakeAdmin
}

func newFakes() fakes {
	return fakes{
		reservations: &fakeReservations{},
		refunds:      &fakeRefunds{},
		inventory:    &fakeInventory{},
		sweeper:      &fakeSweeper{},
		admin:        &fakeAdmin{},
	}
}

func (f fakes) router() http.Handler {
	return NewRouter(Services{
		Reservations: f.reservations,
		Refunds:      f.refunds,
		Inventory:    f.inventory,
		Sweeper:      f.sweeper,
		Admin:        f.admin,
	})
}
