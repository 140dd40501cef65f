package app

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dealmatch/groupbuy/services/api/internal/clock"
	"github.com/dealmatch/groupbuy/services/api/internal/domain"
)

type fakeTxKey struct{}

// fakeStore is an in-memory store. WithTx holds a single mutex for the
// whole transaction and restores a snapshot on error, which gives the
// same serialization and atomicity the row locks give in Postgres.
type fakeStore struct {
	mu sync.Mutex

	deals        map[string]domain.Deal
	buyers       map[string]domain.Buyer
	sellers      map[string]domain.Seller
	offers       map[string]domain.Offer
	reservations map[string]domain.Reservation
	settlements  map[string]domain.Settlement
	refunds      []domain.RefundRecord
	points       []domain.PointEntry

	// failCommits makes the next n transactions fail after fn succeeds,
	// as a dropped connection at COMMIT would.
	failCommits int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		deals:        map[string]domain.Deal{},
		buyers:       map[string]domain.Buyer{},
		sellers:      map[string]domain.Seller{},
		offers:       map[string]domain.Offer{},
		reservations: map[string]domain.Reservation{},
		settlements:  map[string]domain.Settlement{},
	}
}

type fakeSnapshot struct {
	offers       map[string]domain.Offer
	reservations map[string]domain.Reservation
	settlements  map[string]domain.Settlement
	refunds      []domain.RefundRecord
	points       []domain.PointEntry
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(fakeTxKey{}) != nil {
		return fn(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := fakeSnapshot{
		offers:       maps.Clone(f.offers),
		reservations: maps.Clone(f.reservations),
		settlements:  maps.Clone(f.settlements),
		refunds:      slices.Clone(f.refunds),
		points:       slices.Clone(f.points),
	}
	err := fn(context.WithValue(ctx, fakeTxKey{}, true))
	if err == nil && f.failCommits > 0 {
		f.failCommits--
		err = errors.New("commit: connection reset")
	}
	if err != nil {
		f.offers = snap.offers
		f.reservations = snap.reservations
		f.settlements = snap.settlements
		f.refunds = snap.refunds
		f.points = snap.points
		return err
	}
	return nil
}

// guard locks for calls made outside a transaction.
func (f *fakeStore) guard(ctx context.Context) func() {
	if ctx.Value(fakeTxKey{}) != nil {
		return func() {}
	}
	f.mu.Lock()
	return f.mu.Unlock
}

func (f *fakeStore) GetDeal(ctx context.Context, dealID string) (domain.Deal, error) {
	defer f.guard(ctx)()
	d, ok := f.deals[dealID]
	if !ok {
		return domain.Deal{}, domain.ErrDealNotFound
	}
	return d, nil
}

func (f *fakeStore) GetBuyer(ctx context.Context, buyerID string) (domain.Buyer, error) {
	defer f.guard(ctx)()
	b, ok := f.buyers[buyerID]
	if !ok {
		return domain.Buyer{}, domain.ErrBuyerNotFound
	}
	return b, nil
}

func (f *fakeStore) GetOffer(ctx context.Context, offerID string) (domain.Offer, error) {
	defer f.guard(ctx)()
	o, ok := f.offers[offerID]
	if !ok {
		return domain.Offer{}, domain.ErrOfferNotFound
	}
	return o, nil
}

func (f *fakeStore) GetOfferForUpdate(ctx context.Context, offerID string) (domain.Offer, error) {
	return f.GetOffer(ctx, offerID)
}

func (f *fakeStore) UpdateOfferCounters(ctx context.Context, offer domain.Offer) error {
	defer f.guard(ctx)()
	f.offers[offer.ID] = offer
	return nil
}

func (f *fakeStore) SumOpenReservations(ctx context.Context, offerID string) (int, int, error) {
	defer f.guard(ctx)()
	pending, paid := 0, 0
	for _, r := range f.reservations {
		if r.OfferID != offerID {
			continue
		}
		switch r.Status {
		case domain.ReservationPending:
			pending += r.Qty
		case domain.ReservationPaid:
			paid += r.UnrefundedQty()
		}
	}
	return pending, paid, nil
}

func (f *fakeStore) CreateReservation(ctx context.Context, r domain.Reservation) error {
	defer f.guard(ctx)()
	f.reservations[r.ID] = r
	return nil
}

func (f *fakeStore) GetReservation(ctx context.Context, reservationID string) (domain.Reservation, error) {
	defer f.guard(ctx)()
	r, ok := f.reservations[reservationID]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return r, nil
}

func (f *fakeStore) GetReservationForUpdate(ctx context.Context, reservationID string) (domain.Reservation, error) {
	return f.GetReservation(ctx, reservationID)
}

func (f *fakeStore) UpdateReservation(ctx context.Context, r domain.Reservation) error {
	defer f.guard(ctx)()
	if _, ok := f.reservations[r.ID]; !ok {
		return domain.ErrReservationNotFound
	}
	f.reservations[r.ID] = r
	return nil
}

func (f *fakeStore) ListDueForUpdate(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	defer f.guard(ctx)()
	var due []domain.Reservation
	for _, r := range f.reservations {
		if r.Status == domain.ReservationPending && !r.ExpiresAt.After(now) {
			due = append(due, r)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ExpiresAt.Before(due[j].ExpiresAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (f *fakeStore) NextExpiry(ctx context.Context) (*time.Time, error) {
	defer f.guard(ctx)()
	var next *time.Time
	for _, r := range f.reservations {
		if r.Status != domain.ReservationPending {
			continue
		}
		if next == nil || r.ExpiresAt.Before(*next) {
			at := r.ExpiresAt
			next = &at
		}
	}
	return next, nil
}

func (f *fakeStore) EnsureSettlement(ctx context.Context, reservationID string) error {
	defer f.guard(ctx)()
	if _, ok := f.settlements[reservationID]; !ok {
		f.settlements[reservationID] = domain.Settlement{ReservationID: reservationID, State: domain.SettlementNotSettled}
	}
	return nil
}

func (f *fakeStore) GetSettlement(ctx context.Context, reservationID string) (*domain.Settlement, error) {
	defer f.guard(ctx)()
	s, ok := f.settlements[reservationID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeStore) FlagSettlementRecovery(ctx context.Context, reservationID string, amount int64) error {
	defer f.guard(ctx)()
	s := f.settlements[reservationID]
	s.ReservationID = reservationID
	if s.State == "" {
		s.State = domain.SettlementNotSettled
	}
	s.RecoveryRequired = true
	s.RecoveryAmount += amount
	f.settlements[reservationID] = s
	return nil
}

func (f *fakeStore) FindRefundByKey(ctx context.Context, reservationID, key string) (*domain.RefundRecord, error) {
	defer f.guard(ctx)()
	for _, rec := range f.refunds {
		if rec.ReservationID == reservationID && rec.IdempotencyKey == key {
			rec := rec
			return &rec, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateRefund(ctx context.Context, rec domain.RefundRecord) error {
	defer f.guard(ctx)()
	for _, existing := range f.refunds {
		if existing.ReservationID == rec.ReservationID && existing.IdempotencyKey == rec.IdempotencyKey {
			return domain.ErrIdempotencyConflict
		}
	}
	f.refunds = append(f.refunds, rec)
	return nil
}

func (f *fakeStore) Add(ctx context.Context, e domain.PointEntry) error {
	defer f.guard(ctx)()
	for _, existing := range f.points {
		if existing.IdempotencyKey == e.IdempotencyKey {
			return nil
		}
	}
	f.points = append(f.points, e)
	return nil
}

func (f *fakeStore) pointBalance(userID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, e := range f.points {
		if e.UserID == userID {
			total += e.Amount
		}
	}
	return total
}

func (f *fakeStore) offer(t *testing.T, id string) domain.Offer {
	t.Helper()
	o, err := f.GetOffer(context.Background(), id)
	if err != nil {
		t.Fatalf("get offer %s: %v", id, err)
	}
	return o
}

func (f *fakeStore) reservation(t *testing.T, id string) domain.Reservation {
	t.Helper()
	r, err := f.GetReservation(context.Background(), id)
	if err != nil {
		t.Fatalf("get reservation %s: %v", id, err)
	}
	return r
}

type fakeGateway struct {
	mu        sync.Mutex
	charges   []PaymentRequest
	refunds   []PaymentRequest
	chargeErr error
	refundErr error
}

func (g *fakeGateway) Charge(_ context.Context, req PaymentRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.chargeErr != nil {
		return g.chargeErr
	}
	g.charges = append(g.charges, req)
	return nil
}

func (g *fakeGateway) Refund(_ context.Context, req PaymentRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return g.refundErr
	}
	g.refunds = append(g.refunds, req)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *fakePublisher) Publish(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// fixture wires both services over one fakeStore seeded with a deal whose
// offer sells at 9000 per unit with 3000 shipping per reservation.
type fixture struct {
	store    *fakeStore
	gateway  *fakeGateway
	events   *fakePublisher
	clock    *clock.Manual
	ledger   *InventoryLedger
	reserve  *ReservationService
	refunds  *RefundService
	wakeups  int
	wakeLock sync.Mutex
}

const (
	testDeal    = "deal-1"
	testOffer   = "offer-1"
	testBuyer   = "buyer-1"
	otherBuyer  = "buyer-2"
	testSeller  = "seller-1"
	otherSeller = "seller-2"
)

// mondayMorning is 10:00 KST on a working Monday.
var mondayMorning = time.Date(2025, 3, 3, 1, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()

	store := newFakeStore()
	store.deals[testDeal] = domain.Deal{ID: testDeal, HostBuyerID: testBuyer, ProductName: "kettle", DesiredQty: 10}
	store.buyers[testBuyer] = domain.Buyer{ID: testBuyer, Name: "alice"}
	store.buyers[otherBuyer] = domain.Buyer{ID: otherBuyer, Name: "bob"}
	store.sellers[testSeller] = domain.Seller{ID: testSeller, Name: "acme"}
	store.offers[testOffer] = domain.Offer{
		ID:                        testOffer,
		DealID:                    testDeal,
		SellerID:                  testSeller,
		TotalCapacity:             capacity,
		UnitPrice:                 9000,
		ShippingMode:              domain.ShippingPerReservation,
		ShippingFeePerReservation: 3000,
	}

	wt, err := clock.NewWorkingTime(clock.WorkingHours{
		Location: time.FixedZone("KST", 9*60*60),
		Start:    9 * time.Hour,
		End:      18 * time.Hour,
		Weekend:  []time.Weekday{time.Saturday, time.Sunday},
	})
	if err != nil {
		t.Fatalf("working time: %v", err)
	}

	f := &fixture{
		store:   store,
		gateway: &fakeGateway{},
		events:  &fakePublisher{},
		clock:   clock.NewManual(mondayMorning),
	}
	f.ledger = NewInventoryLedger(store)
	f.reserve = NewReservationService(store, f.ledger, f.clock, wt,
		WithPaymentGateway(f.gateway),
		WithPointsLedger(store),
		WithEventPublisher(f.events),
		WithCoolingDays(7),
		WithExpiryNotifier(func() {
			f.wakeLock.Lock()
			f.wakeups++
			f.wakeLock.Unlock()
		}),
	)
	f.refunds = NewRefundService(store, f.ledger, f.clock,
		WithRefundGateway(f.gateway),
		WithRefundPoints(store),
		WithRefundPublisher(f.events),
		WithRefundCoolingDays(7),
	)
	return f
}

// paid creates and pays a reservation of qty units for testBuyer.
func (f *fixture) paid(t *testing.T, qty int) domain.Reservation {
	t.Helper()
	ctx := context.Background()
	r, err := f.reserve.Create(ctx, CreateReservationInput{DealID: testDeal, OfferID: testOffer, BuyerID: testBuyer, Qty: qty})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	r, err = f.reserve.Pay(ctx, r.ID, testBuyer)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	return r
}
