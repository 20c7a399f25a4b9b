package commission

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stanleyndaba/clario-detection-engine/model"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type fakeStore struct {
	matches       []model.ReimbursementMatch
	invoiced      []string
	insertedInvs  []model.CommissionInvoice
	nextNumber    int64
}

func (f *fakeStore) ConfirmedMatchesForPeriod(ctx context.Context, sellerID, billingPeriod string) ([]model.ReimbursementMatch, error) {
	var out []model.ReimbursementMatch
	for _, m := range f.matches {
		if m.SellerID == sellerID && m.BillingPeriod == billingPeriod && m.Status == model.MatchConfirmed {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkMatchesInvoiced(ctx context.Context, matchIDs []string) error {
	f.invoiced = append(f.invoiced, matchIDs...)
	for i := range f.matches {
		for _, id := range matchIDs {
			if f.matches[i].ID == id {
				f.matches[i].Status = model.MatchInvoiced
			}
		}
	}
	return nil
}

func (f *fakeStore) InsertInvoice(ctx context.Context, inv model.CommissionInvoice) error {
	f.insertedInvs = append(f.insertedInvs, inv)
	return nil
}

func (f *fakeStore) NextInvoiceNumber(ctx context.Context, sellerID string) (int64, error) {
	f.nextNumber++
	return f.nextNumber, nil
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		matches: []model.ReimbursementMatch{
			{ID: "m1", SellerID: "s1", BillingPeriod: "2026-01", ReimbursedAmount: decimal.NewFromInt(100), Status: model.MatchConfirmed},
			{ID: "m2", SellerID: "s1", BillingPeriod: "2026-01", ReimbursedAmount: decimal.NewFromInt(50), Status: model.MatchConfirmed},
			{ID: "m3", SellerID: "s1", BillingPeriod: "2026-01", ReimbursedAmount: decimal.NewFromInt(25), Status: model.MatchConfirmed},
		},
	}
}

func TestGenerateInvoiceSumsConfirmedMatches(t *testing.T) {
	store := newFakeStore()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	eng := New(store, 0.20, 24*time.Hour).WithClock(fixedClock(now))

	inv, err := eng.GenerateInvoice(context.Background(), "s1", "2026-01")
	if err != nil {
		t.Fatalf("generate invoice failed: %v", err)
	}
	if !inv.GrossAmount.Equal(decimal.NewFromInt(175)) {
		t.Errorf("expected gross 175, got %s", inv.GrossAmount)
	}
	if !inv.CommissionAmount.Equal(decimal.NewFromInt(35)) {
		t.Errorf("expected commission 35 (20%% of 175), got %s", inv.CommissionAmount)
	}
	if inv.Status != model.InvoiceDisputable {
		t.Errorf("expected disputable status pending the dispute window, got %s", inv.Status)
	}
	if len(store.invoiced) != 0 {
		t.Fatalf("expected no matches marked invoiced at generation time, got %v", store.invoiced)
	}
}

// TestRecomputeAfterDisputeStillSeesFullMatchSet is the regression test
// for the bug where MarkMatchesInvoiced ran at generation time: a
// disputed invoice's Recompute re-queries ConfirmedMatchesForPeriod,
// which only returns matches still in "confirmed" status. If
// generation had already flipped them to "invoiced", recompute would
// see zero matches and produce a zero-amount invoice regardless of
// which line was actually disputed.
func TestRecomputeAfterDisputeStillSeesFullMatchSet(t *testing.T) {
	store := newFakeStore()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	eng := New(store, 0.20, 24*time.Hour).WithClock(fixedClock(now))

	inv, err := eng.GenerateInvoice(context.Background(), "s1", "2026-01")
	if err != nil {
		t.Fatalf("generate invoice failed: %v", err)
	}

	recomputed, err := eng.Recompute(context.Background(), inv, []string{"m2"})
	if err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	if !recomputed.GrossAmount.Equal(decimal.NewFromInt(125)) {
		t.Errorf("expected gross 125 (175 minus disputed m2's 50) excluding the disputed match, got %s", recomputed.GrossAmount)
	}
	if !recomputed.CommissionAmount.Equal(decimal.NewFromInt(25)) {
		t.Errorf("expected commission 25 (20%% of 125), got %s", recomputed.CommissionAmount)
	}
	if recomputed.Status != model.InvoiceRecomputed {
		t.Errorf("expected recomputed status, got %s", recomputed.Status)
	}
	if len(recomputed.MatchIDs) != 3 {
		t.Errorf("expected all 3 original matches still listed on the invoice, got %d", len(recomputed.MatchIDs))
	}
}

func TestFinalizeRejectsBeforeDisputeWindowElapses(t *testing.T) {
	store := newFakeStore()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	eng := New(store, 0.20, 24*time.Hour).WithClock(fixedClock(now))

	inv, err := eng.GenerateInvoice(context.Background(), "s1", "2026-01")
	if err != nil {
		t.Fatalf("generate invoice failed: %v", err)
	}

	if _, err := eng.Finalize(context.Background(), inv); err == nil {
		t.Fatal("expected finalize to reject before the dispute window elapses")
	}
}

// TestFinalizeMarksOnlyNonDisputedMatchesInvoiced is the regression
// test for the timing fix itself: matches are marked invoiced at
// Finalize, not at GenerateInvoice, and only the non-disputed subset
// is marked.
func TestFinalizeMarksOnlyNonDisputedMatchesInvoiced(t *testing.T) {
	store := newFakeStore()
	genTime := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	eng := New(store, 0.20, 24*time.Hour).WithClock(fixedClock(genTime))

	inv, err := eng.GenerateInvoice(context.Background(), "s1", "2026-01")
	if err != nil {
		t.Fatalf("generate invoice failed: %v", err)
	}

	recomputed, err := eng.Recompute(context.Background(), inv, []string{"m2"})
	if err != nil {
		t.Fatalf("recompute failed: %v", err)
	}

	if len(store.invoiced) != 0 {
		t.Fatalf("expected no matches marked invoiced until finalize, got %v", store.invoiced)
	}

	afterWindow := genTime.Add(25 * time.Hour)
	eng.WithClock(fixedClock(afterWindow))

	finalized, err := eng.Finalize(context.Background(), recomputed)
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if finalized.Status != model.InvoiceFinalized {
		t.Errorf("expected finalized status, got %s", finalized.Status)
	}

	if len(store.invoiced) != 2 {
		t.Fatalf("expected exactly 2 non-disputed matches marked invoiced, got %v", store.invoiced)
	}
	for _, id := range store.invoiced {
		if id == "m2" {
			t.Error("expected disputed match m2 to never be marked invoiced")
		}
	}
}
