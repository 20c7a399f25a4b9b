// Package store is the thin repository layer over the six tables the
// detection engine owns (detection_jobs, detection_results,
// detection_thresholds, detection_whitelist, reimbursement_matches,
// margin_invoices), per spec.md §6. It is grounded on
// jordigilh-kubernaut's pgx/v5 usage — the only Postgres driver the
// pack wires — chosen over database/sql's generic driver interface
// for native context.Context support matching this service's
// suspension-point model (spec.md §5).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stanleyndaba/clario-detection-engine/model"
)

// uniqueViolationCode is the Postgres error code for a unique constraint
// violation (23505), used to detect the idempotent-replay case on
// detection_results inserts per spec.md §7's StorageError handling.
const uniqueViolationCode = "23505"

// Store is the repository over every table this engine owns.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return New(pool), nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- detection_jobs --------------------------------------------------

// InsertJob persists a newly enqueued DetectionJob. A second insert
// for the same (user_id, sync_id) is a no-op via ON CONFLICT, so a
// replayed enqueue of one sync does not create a duplicate row.
func (s *Store) InsertJob(ctx context.Context, job model.DetectionJob) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO detection_jobs
			(id, seller_id, sync_id, user_id, store_id, status, priority, attempts, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, sync_id) DO NOTHING`,
		job.ID, job.SellerID, job.SyncID, job.UserID, job.StoreID,
		job.Status, job.Priority, job.Attempts, job.LastError, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return model.NewDomainError(model.ErrStorage, "insert detection_job", err)
	}
	return nil
}

// UpdateJobStatus persists a lifecycle transition the queue has
// already applied in-process (status, attempts, last_error and
// updated_at), so the durable row can mirror in-memory state.
func (s *Store) UpdateJobStatus(ctx context.Context, job model.DetectionJob) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE detection_jobs
		SET status = $2, attempts = $3, last_error = $4, updated_at = $5
		WHERE id = $1`,
		job.ID, job.Status, job.Attempts, job.LastError, job.UpdatedAt,
	)
	if err != nil {
		return model.NewDomainError(model.ErrStorage, "update detection_job", err)
	}
	return nil
}

// --- detection_results -------------------------------------------------

// InsertAnomaly persists a finalized anomaly. A duplicate
// (seller_id, sync_id, anomaly_type, dedupe_hash) is a no-op per
// spec.md §7's idempotent-replay rule, not an error.
func (s *Store) InsertAnomaly(ctx context.Context, a model.Anomaly) error {
	evidence, err := json.Marshal(a.Evidence)
	if err != nil {
		return model.NewDomainError(model.ErrValidation, "marshal anomaly evidence", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO detection_results
			(seller_id, sync_id, anomaly_type, dedupe_hash, severity, score, summary,
			 evidence, related_event_ids, estimated_value, discovery_date, deadline_date,
			 days_remaining, expired, alert_sent, status, filing_recommendation, blob_url)
		VALUES
			($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		ON CONFLICT (seller_id, sync_id, anomaly_type, dedupe_hash) DO NOTHING`,
		a.SellerID, a.SyncID, a.RuleType, a.DedupeHash, a.Severity, a.Score, a.Summary,
		evidence, a.RelatedEventIDs, a.EstimatedValue, a.DiscoveryDate, a.DeadlineDate,
		a.DaysRemaining, a.Expired, a.AlertSent, a.Status, a.FilingRecommendation, a.BlobURL,
	)
	if isUniqueViolation(err) {
		return nil
	}
	if err != nil {
		return model.NewDomainError(model.ErrStorage, "insert detection_result", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// PendingForSeller implements the AnomalyRepository interface
// policywindow.Tracker depends on.
func (s *Store) PendingForSeller(ctx context.Context, sellerID string) ([]model.ClaimWindowStatus, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT dedupe_hash, seller_id, anomaly_type, discovery_date
		FROM detection_results
		WHERE seller_id = $1 AND status = 'pending'`, sellerID)
	if err != nil {
		return nil, model.NewDomainError(model.ErrStorage, "query pending anomalies", err)
	}
	defer rows.Close()

	var out []model.ClaimWindowStatus
	for rows.Next() {
		var claimID, sellerID, ruleType string
		var discoveryDate time.Time
		if err := rows.Scan(&claimID, &sellerID, &ruleType, &discoveryDate); err != nil {
			return nil, model.NewDomainError(model.ErrStorage, "scan pending anomaly", err)
		}
		out = append(out, model.ClaimWindowStatus{
			ClaimID:  claimID,
			SellerID: sellerID,
			PolicyWindow: model.PolicyWindow{
				ClaimType:     ruleTypeToClaimType(model.RuleType(ruleType)),
				DiscoveryDate: discoveryDate,
			},
		})
	}
	return out, rows.Err()
}

func (s *Store) MarkAlerted(ctx context.Context, dedupeHashes []string) error {
	_, err := s.pool.Exec(ctx, `UPDATE detection_results SET alert_sent = true WHERE dedupe_hash = ANY($1)`, dedupeHashes)
	if err != nil {
		return model.NewDomainError(model.ErrStorage, "mark alerted", err)
	}
	return nil
}

func (s *Store) MarkExpired(ctx context.Context, dedupeHashes []string) error {
	_, err := s.pool.Exec(ctx, `UPDATE detection_results SET status = 'expired' WHERE dedupe_hash = ANY($1)`, dedupeHashes)
	if err != nil {
		return model.NewDomainError(model.ErrStorage, "mark expired", err)
	}
	return nil
}

// ruleTypeToClaimType maps a detector's RuleType to the ClaimType the
// Policy-Window Tracker has per-type configuration for. Rules that
// don't correspond 1:1 to a policy claim type fall back to "general".
func ruleTypeToClaimType(rt model.RuleType) model.ClaimType {
	switch rt {
	case model.RuleLostUnits:
		return model.ClaimLostInventory
	case model.RuleDamagedStock, model.RuleDamagedInventory:
		return model.ClaimDamagedInventory
	case model.RuleOverchargedFees:
		return model.ClaimFeeOvercharge
	case model.RuleWarehouseTransfer:
		return model.ClaimRemovalOrder
	case model.RuleSLABreach:
		return model.ClaimAtoZ
	default:
		return model.ClaimGeneral
	}
}

// --- detection_thresholds / detection_whitelist -------------------------

// ActiveThresholds implements rulecontext.Loader: global plus
// seller-specific active thresholds.
func (s *Store) ActiveThresholds(ctx context.Context, sellerID string) ([]model.Threshold, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT rule_type, seller_id, operator, value, active
		FROM detection_thresholds
		WHERE active = true AND (seller_id IS NULL OR seller_id = $1)`, sellerID)
	if err != nil {
		return nil, model.NewDomainError(model.ErrStorage, "query thresholds", err)
	}
	defer rows.Close()

	var out []model.Threshold
	for rows.Next() {
		var t model.Threshold
		var sellerIDCol *string
		if err := rows.Scan(&t.RuleType, &sellerIDCol, &t.Operator, &t.Value, &t.Active); err != nil {
			return nil, model.NewDomainError(model.ErrStorage, "scan threshold", err)
		}
		t.SellerID = sellerIDCol
		out = append(out, t)
	}
	return out, rows.Err()
}

// ActiveWhitelist implements rulecontext.Loader.
func (s *Store) ActiveWhitelist(ctx context.Context, sellerID string) ([]model.WhitelistItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seller_id, scope, value, active
		FROM detection_whitelist
		WHERE active = true AND seller_id = $1`, sellerID)
	if err != nil {
		return nil, model.NewDomainError(model.ErrStorage, "query whitelist", err)
	}
	defer rows.Close()

	var out []model.WhitelistItem
	for rows.Next() {
		var w model.WhitelistItem
		if err := rows.Scan(&w.SellerID, &w.Scope, &w.Value, &w.Active); err != nil {
			return nil, model.NewDomainError(model.ErrStorage, "scan whitelist item", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// --- reimbursement_matches / margin_invoices ----------------------------

// InsertReimbursementMatch persists a confirmed match for the
// Commission/Invoice Engine to consume.
func (s *Store) InsertReimbursementMatch(ctx context.Context, m model.ReimbursementMatch) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reimbursement_matches
			(id, seller_id, anomaly_dedupe_hash, order_id, reimbursed_amount, reimbursed_at, billing_period, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO NOTHING`,
		m.ID, m.SellerID, m.AnomalyDedupeHash, m.OrderID, m.ReimbursedAmount, m.ReimbursedAt, m.BillingPeriod, m.Status,
	)
	if err != nil {
		return model.NewDomainError(model.ErrStorage, "insert reimbursement_match", err)
	}
	return nil
}

// ConfirmedMatchesForPeriod returns confirmed (not yet invoiced)
// matches for a seller/billing period, used by the Commission Engine.
func (s *Store) ConfirmedMatchesForPeriod(ctx context.Context, sellerID, billingPeriod string) ([]model.ReimbursementMatch, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, seller_id, anomaly_dedupe_hash, order_id, reimbursed_amount, reimbursed_at, billing_period, status
		FROM reimbursement_matches
		WHERE seller_id = $1 AND billing_period = $2 AND status = 'confirmed'`, sellerID, billingPeriod)
	if err != nil {
		return nil, model.NewDomainError(model.ErrStorage, "query reimbursement_matches", err)
	}
	defer rows.Close()

	var out []model.ReimbursementMatch
	for rows.Next() {
		var m model.ReimbursementMatch
		if err := rows.Scan(&m.ID, &m.SellerID, &m.AnomalyDedupeHash, &m.OrderID, &m.ReimbursedAmount, &m.ReimbursedAt, &m.BillingPeriod, &m.Status); err != nil {
			return nil, model.NewDomainError(model.ErrStorage, "scan reimbursement_match", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkMatchesInvoiced flips the given matches to invoiced, on
// successful CommissionInvoice finalization.
func (s *Store) MarkMatchesInvoiced(ctx context.Context, matchIDs []string) error {
	_, err := s.pool.Exec(ctx, `UPDATE reimbursement_matches SET status = 'invoiced' WHERE id = ANY($1)`, matchIDs)
	if err != nil {
		return model.NewDomainError(model.ErrStorage, "mark matches invoiced", err)
	}
	return nil
}

// InsertInvoice persists a generated CommissionInvoice.
func (s *Store) InsertInvoice(ctx context.Context, inv model.CommissionInvoice) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO margin_invoices
			(id, seller_id, invoice_number, billing_period, rate, gross_amount, commission_amount,
			 match_ids, disputed_match_ids, status, created_at, dispute_window_ends_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		inv.ID, inv.SellerID, inv.InvoiceNumber, inv.BillingPeriod, inv.Rate, inv.GrossAmount, inv.CommissionAmount,
		inv.MatchIDs, inv.DisputedMatchIDs, inv.Status, inv.CreatedAt, inv.DisputeWindowEndsAt,
	)
	if err != nil {
		return model.NewDomainError(model.ErrStorage, "insert margin_invoice", err)
	}
	return nil
}

// NextInvoiceNumber returns the next monotonic invoice number for a
// seller, computed from the max already persisted. The commission
// package additionally guards this with an in-process per-seller
// counter (the numberer type in commission/numberer.go) so concurrent
// invoice generations within one process never race past the
// database round-trip.
func (s *Store) NextInvoiceNumber(ctx context.Context, sellerID string) (int64, error) {
	var max int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(invoice_number), 0) FROM margin_invoices WHERE seller_id = $1`, sellerID,
	).Scan(&max)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, model.NewDomainError(model.ErrStorage, "query max invoice_number", err)
	}
	return max + 1, nil
}
