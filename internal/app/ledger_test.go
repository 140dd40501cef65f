package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dealmatch/groupbuy/services/api/internal/domain"
)

func TestInventoryLedger_ConcurrentReserveNeverOvercommits(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	ctx := context.Background()

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Reserve(ctx, testOffer, 3)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrCapacityExceeded):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 3 || rejected != callers-3 {
		t.Fatalf("expected 3 winners and %d rejections, got %d/%d", callers-3, succeeded, rejected)
	}
	offer := f.store.offer(t, testOffer)
	if offer.ReservedQty != 9 || offer.Remaining() != 1 {
		t.Fatalf("unexpected counters %+v", offer)
	}
}

func TestInventoryLedger_Transitions(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 5)
	ctx := context.Background()

	if _, err := f.ledger.Reserve(ctx, testOffer, 4); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := f.ledger.CommitSale(ctx, testOffer, 3); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := f.ledger.Release(ctx, testOffer, 1); err != nil {
		t.Fatalf("release: %v", err)
	}
	offer, err := f.ledger.RollbackSale(ctx, testOffer, 2)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if offer.ReservedQty != 0 || offer.SoldQty != 1 || offer.Remaining() != 4 {
		t.Fatalf("unexpected counters %+v", offer)
	}

	tests := []struct {
		name string
		op   func() error
		want error
	}{
		{"release more than reserved", func() error { _, err := f.ledger.Release(ctx, testOffer, 1); return err }, domain.ErrInventoryInconsistent},
		{"commit more than reserved", func() error { _, err := f.ledger.CommitSale(ctx, testOffer, 1); return err }, domain.ErrInventoryInconsistent},
		{"rollback more than sold", func() error { _, err := f.ledger.RollbackSale(ctx, testOffer, 2); return err }, domain.ErrInventoryInconsistent},
		{"reserve beyond capacity", func() error { _, err := f.ledger.Reserve(ctx, testOffer, 5); return err }, domain.ErrCapacityExceeded},
		{"zero quantity", func() error { _, err := f.ledger.Reserve(ctx, testOffer, 0); return err }, domain.ErrInvalidQuantity},
		{"unknown offer", func() error { _, err := f.ledger.Reserve(ctx, "missing", 1); return err }, domain.ErrOfferNotFound},
	}
	for _, tt := range tests {
		if err := tt.op(); !errors.Is(err, tt.want) {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}

	after := f.store.offer(t, testOffer)
	if after != offer {
		t.Fatalf("failed operations changed counters: %+v", after)
	}
}

func TestInventoryLedger_Audit(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	ctx := context.Background()
	f.paid(t, 3)

	audit, err := f.ledger.Audit(ctx, testOffer)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if !audit.OK || audit.PaidQty != 3 || audit.SoldQty != 3 {
		t.Fatalf("expected clean audit, got %+v", audit)
	}

	f.store.mu.Lock()
	o := f.store.offers[testOffer]
	o.ReservedQty = 2
	f.store.offers[testOffer] = o
	f.store.mu.Unlock()

	audit, err = f.ledger.Audit(ctx, testOffer)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if audit.OK || len(audit.Hints) != 1 {
		t.Fatalf("expected one drift hint, got %+v", audit)
	}

	snap, err := f.ledger.Snapshot(ctx, testOffer)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Remaining != 5 {
		t.Fatalf("expected remaining 5, got %d", snap.Remaining)
	}
}
