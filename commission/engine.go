// Package commission implements the Commission/Invoice Engine:
// per-billing-period, per-seller invoices generated from confirmed
// reimbursement matches, with a dispute window that opens at
// generation and must elapse before an invoice can be finalized, and
// exclude-and-recompute semantics, per spec.md §4.G.
package commission

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stanleyndaba/clario-detection-engine/model"
	"github.com/stanleyndaba/clario-detection-engine/observability"
)

// Store is the persistence dependency the Commission Engine needs.
// Implemented by store.Store.
type Store interface {
	ConfirmedMatchesForPeriod(ctx context.Context, sellerID, billingPeriod string) ([]model.ReimbursementMatch, error)
	MarkMatchesInvoiced(ctx context.Context, matchIDs []string) error
	InsertInvoice(ctx context.Context, inv model.CommissionInvoice) error
	NextInvoiceNumber(ctx context.Context, sellerID string) (int64, error)
}

// Engine is the Commission/Invoice Engine.
type Engine struct {
	store         Store
	rate          decimal.Decimal
	disputeWindow time.Duration
	numbers       *numberer
	clock         func() time.Time
	metrics       *observability.Metrics
}

// WithMetrics attaches a Prometheus collector set. Optional: passing
// nil skips instrumentation entirely.
func (e *Engine) WithMetrics(m *observability.Metrics) *Engine {
	e.metrics = m
	return e
}

// New builds an Engine at the given flat commission rate (e.g. 0.20
// for 20%) and dispute window duration.
func New(store Store, rate float64, disputeWindow time.Duration) *Engine {
	return &Engine{
		store:         store,
		rate:          decimal.NewFromFloat(rate),
		disputeWindow: disputeWindow,
		numbers:       newNumberer(),
		clock:         time.Now,
	}
}

// WithClock overrides the engine's time source, for tests.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// GenerateInvoice implements generateInvoice(seller_id, billing_period)
// -> CommissionInvoice from spec.md §4.G: sums every confirmed,
// not-yet-invoiced match for the period, computes commission at the
// configured rate, and opens a DisputeWindow-long dispute window
// before the invoice can be treated as final.
func (e *Engine) GenerateInvoice(ctx context.Context, sellerID, billingPeriod string) (model.CommissionInvoice, error) {
	matches, err := e.store.ConfirmedMatchesForPeriod(ctx, sellerID, billingPeriod)
	if err != nil {
		return model.CommissionInvoice{}, err
	}
	if len(matches) == 0 {
		return model.CommissionInvoice{}, model.NewDomainError(model.ErrValidation, "no confirmed matches for period", nil)
	}

	return e.buildInvoice(ctx, sellerID, billingPeriod, matches, nil)
}

func (e *Engine) buildInvoice(ctx context.Context, sellerID, billingPeriod string, matches []model.ReimbursementMatch, disputed []string) (model.CommissionInvoice, error) {
	disputedSet := make(map[string]bool, len(disputed))
	for _, id := range disputed {
		disputedSet[id] = true
	}

	gross := decimal.Zero
	matchIDs := make([]string, 0, len(matches))
	for _, m := range matches {
		matchIDs = append(matchIDs, m.ID)
		if disputedSet[m.ID] {
			continue
		}
		gross = gross.Add(m.ReimbursedAmount)
	}

	number, err := e.nextInvoiceNumber(ctx, sellerID)
	if err != nil {
		return model.CommissionInvoice{}, err
	}

	now := e.clock()
	inv := model.CommissionInvoice{
		ID:                  uuid.NewString(),
		SellerID:            sellerID,
		InvoiceNumber:       number,
		BillingPeriod:       billingPeriod,
		Rate:                e.rate,
		GrossAmount:         gross,
		CommissionAmount:    gross.Mul(e.rate).Round(2),
		MatchIDs:            matchIDs,
		DisputedMatchIDs:    disputed,
		Status:              model.InvoiceDisputable,
		CreatedAt:           now,
		DisputeWindowEndsAt: now.Add(e.disputeWindow),
	}

	if err := e.store.InsertInvoice(ctx, inv); err != nil {
		return model.CommissionInvoice{}, err
	}

	if e.metrics != nil {
		e.metrics.InvoicesGenerated.WithLabelValues(string(inv.Status)).Inc()
	}

	return inv, nil
}

// nextInvoiceNumber seeds the in-process numberer from the database's
// last-known number on first use per seller, then hands out the next
// value — guarding against two concurrent invoice generations
// (GenerateInvoice or Recompute) in one process
// racing past the database round trip, per the grounding note on
// store.Store.NextInvoiceNumber.
func (e *Engine) nextInvoiceNumber(ctx context.Context, sellerID string) (int64, error) {
	dbNext, err := e.store.NextInvoiceNumber(ctx, sellerID)
	if err != nil {
		return 0, err
	}
	e.numbers.seed(sellerID, dbNext-1)
	return e.numbers.next(sellerID), nil
}

// Finalize implements finalize(invoice) from spec.md §4.G: once the
// dispute window has elapsed, the invoice is immutable and its
// non-disputed matches are marked invoiced (IDs listed in
// DisputedMatchIDs are left as they are) — not
// at generation time, so a Recompute during the dispute window still
// sees the full confirmed set when it re-queries
// ConfirmedMatchesForPeriod. Disputing within the window is handled
// by Recompute.
func (e *Engine) Finalize(ctx context.Context, inv model.CommissionInvoice) (model.CommissionInvoice, error) {
	if e.clock().Before(inv.DisputeWindowEndsAt) {
		return inv, model.NewDomainError(model.ErrValidation, "dispute window has not elapsed", nil)
	}

	disputedSet := make(map[string]bool, len(inv.DisputedMatchIDs))
	for _, id := range inv.DisputedMatchIDs {
		disputedSet[id] = true
	}
	invoiced := make([]string, 0, len(inv.MatchIDs))
	for _, id := range inv.MatchIDs {
		if !disputedSet[id] {
			invoiced = append(invoiced, id)
		}
	}
	if err := e.store.MarkMatchesInvoiced(ctx, invoiced); err != nil {
		return inv, err
	}

	inv.Status = model.InvoiceFinalized
	return inv, nil
}

// Recompute implements recompute(invoice, disputed_match_ids) from
// spec.md §4.G: regenerates the invoice excluding disputed lines from
// the commission base, within the dispute window only.
func (e *Engine) Recompute(ctx context.Context, inv model.CommissionInvoice, disputedMatchIDs []string) (model.CommissionInvoice, error) {
	if e.clock().After(inv.DisputeWindowEndsAt) {
		return inv, model.NewDomainError(model.ErrValidation, "dispute window has elapsed", nil)
	}

	matches, err := e.store.ConfirmedMatchesForPeriod(ctx, inv.SellerID, inv.BillingPeriod)
	if err != nil {
		return inv, err
	}

	recomputed, err := e.buildInvoice(ctx, inv.SellerID, inv.BillingPeriod, matches, disputedMatchIDs)
	if err != nil {
		return inv, err
	}
	recomputed.Status = model.InvoiceRecomputed
	return recomputed, nil
}
