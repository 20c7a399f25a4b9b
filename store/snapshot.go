package store

import (
	"context"
	"time"

	"github.com/stanleyndaba/clario-detection-engine/ingestadapter"
	"github.com/stanleyndaba/clario-detection-engine/model"
)

// LoadSnapshot reads the upstream ingestion tables (inventory_snapshots,
// settlements, dispute_cases, financial_events, inventory_transfers)
// this engine does not own, per spec.md §6, and
// assembles the raw-row Snapshot the ingestadapter translates into
// model.RuleInput. Read-only: this engine never writes to these
// tables.
func (s *Store) LoadSnapshot(ctx context.Context, sellerID, syncID string) (ingestadapter.Snapshot, error) {
	snap := ingestadapter.Snapshot{SellerID: sellerID, SyncID: syncID}

	var err error
	if snap.Inventory, err = s.loadInventory(ctx, sellerID, syncID); err != nil {
		return snap, err
	}
	if snap.DamagedStock, err = s.loadDamagedStock(ctx, sellerID, syncID); err != nil {
		return snap, err
	}
	if snap.Fees, err = s.loadFees(ctx, sellerID, syncID); err != nil {
		return snap, err
	}
	if snap.ClosedCases, err = s.loadClosedCases(ctx, sellerID); err != nil {
		return snap, err
	}
	if snap.LedgerEvents, err = s.loadLedgerEvents(ctx, sellerID); err != nil {
		return snap, err
	}
	if snap.CaseTimelines, err = s.loadCaseTimelines(ctx, sellerID); err != nil {
		return snap, err
	}
	if snap.Transfers, err = s.loadTransfers(ctx, sellerID); err != nil {
		return snap, err
	}
	return snap, nil
}

func (s *Store) loadInventory(ctx context.Context, sellerID, syncID string) ([]ingestadapter.InventoryRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sku, asin, vendor, units_lost, unit_value, total_units, total_value
		FROM inventory_snapshots
		WHERE seller_id = $1 AND sync_id = $2`, sellerID, syncID)
	if err != nil {
		return nil, model.NewDomainError(model.ErrTransientExternal, "load inventory snapshot", err)
	}
	defer rows.Close()

	var out []ingestadapter.InventoryRow
	for rows.Next() {
		var r ingestadapter.InventoryRow
		if err := rows.Scan(&r.SKU, &r.ASIN, &r.Vendor, &r.Units, &r.Value, &r.TotalUnits, &r.TotalValue); err != nil {
			return nil, model.NewDomainError(model.ErrTransientExternal, "scan inventory row", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) loadDamagedStock(ctx context.Context, sellerID, syncID string) ([]ingestadapter.DamagedStockRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sku, asin, vendor, damage_type, damage_reason, units, unit_value,
		       total_inventory, total_inventory_value
		FROM inventory_snapshots
		WHERE seller_id = $1 AND sync_id = $2 AND damage_type IS NOT NULL`, sellerID, syncID)
	if err != nil {
		return nil, model.NewDomainError(model.ErrTransientExternal, "load damaged stock snapshot", err)
	}
	defer rows.Close()

	var out []ingestadapter.DamagedStockRow
	for rows.Next() {
		var r ingestadapter.DamagedStockRow
		if err := rows.Scan(&r.SKU, &r.ASIN, &r.Vendor, &r.DamageType, &r.DamageReason, &r.Units, &r.Value,
			&r.TotalInventory, &r.TotalInventoryValue); err != nil {
			return nil, model.NewDomainError(model.ErrTransientExternal, "scan damaged stock row", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) loadFees(ctx context.Context, sellerID, syncID string) ([]ingestadapter.FeeRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sku, asin, vendor, fee_type, actual_fee, expected_fee, related_event_id
		FROM settlements
		WHERE seller_id = $1 AND sync_id = $2`, sellerID, syncID)
	if err != nil {
		return nil, model.NewDomainError(model.ErrTransientExternal, "load settlements", err)
	}
	defer rows.Close()

	var out []ingestadapter.FeeRow
	for rows.Next() {
		var r ingestadapter.FeeRow
		if err := rows.Scan(&r.SKU, &r.ASIN, &r.Vendor, &r.FeeType, &r.ActualFee, &r.ExpectedFee, &r.RelatedEventID); err != nil {
			return nil, model.NewDomainError(model.ErrTransientExternal, "scan fee row", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) loadClosedCases(ctx context.Context, sellerID string) ([]ingestadapter.ClosedCaseRow, error) {
	cutoff := time.Now().AddDate(0, 0, -180)
	rows, err := s.pool.Query(ctx, `
		SELECT case_id, order_id, status, estimated_value, approved_amount, closed_at
		FROM dispute_cases
		WHERE seller_id = $1 AND status IN ('closed', 'resolved', 'denied') AND closed_at >= $2`,
		sellerID, cutoff)
	if err != nil {
		return nil, model.NewDomainError(model.ErrTransientExternal, "load closed dispute_cases", err)
	}
	defer rows.Close()

	var out []ingestadapter.ClosedCaseRow
	for rows.Next() {
		var r ingestadapter.ClosedCaseRow
		if err := rows.Scan(&r.CaseID, &r.OrderID, &r.Status, &r.EstimatedValue, &r.ApprovedAmount, &r.ClosedAt); err != nil {
			return nil, model.NewDomainError(model.ErrTransientExternal, "scan closed case row", err)
		}
		reimbRows, err := s.pool.Query(ctx, `
			SELECT order_id FROM financial_events
			WHERE seller_id = $1 AND event_type = 'reimbursement' AND (order_id = $2 OR case_id = $3)`,
			sellerID, r.OrderID, r.CaseID)
		if err != nil {
			return nil, model.NewDomainError(model.ErrTransientExternal, "load case reimbursements", err)
		}
		for reimbRows.Next() {
			var orderID string
			if err := reimbRows.Scan(&orderID); err != nil {
				reimbRows.Close()
				return nil, model.NewDomainError(model.ErrTransientExternal, "scan case reimbursement", err)
			}
			r.ReimbursementOrderIDs = append(r.ReimbursementOrderIDs, orderID)
		}
		reimbRows.Close()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) loadLedgerEvents(ctx context.Context, sellerID string) ([]ingestadapter.LedgerRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT fnsku, event_type, reason_code, quantity, unit_value, event_date, related_event_id
		FROM financial_events
		WHERE seller_id = $1 AND event_type IN ('disposal', 'reimbursement', 'removal')`, sellerID)
	if err != nil {
		return nil, model.NewDomainError(model.ErrTransientExternal, "load financial_events", err)
	}
	defer rows.Close()

	var out []ingestadapter.LedgerRow
	for rows.Next() {
		var r ingestadapter.LedgerRow
		if err := rows.Scan(&r.FNSKU, &r.EventType, &r.ReasonCode, &r.Quantity, &r.UnitValue, &r.EventDate, &r.RelatedEventID); err != nil {
			return nil, model.NewDomainError(model.ErrTransientExternal, "scan ledger row", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) loadCaseTimelines(ctx context.Context, sellerID string) ([]ingestadapter.CaseTimelineRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT case_id, case_type, created_at, first_response_at, investigation_started_at,
		       investigation_completed_at, decision_at, resolved_at, claim_amount,
		       reimbursement_amount, currency, seller_caused_delay, prior_same_type_breaches
		FROM dispute_cases
		WHERE seller_id = $1`, sellerID)
	if err != nil {
		return nil, model.NewDomainError(model.ErrTransientExternal, "load case timelines", err)
	}
	defer rows.Close()

	var out []ingestadapter.CaseTimelineRow
	for rows.Next() {
		var r ingestadapter.CaseTimelineRow
		if err := rows.Scan(&r.CaseID, &r.CaseType, &r.CreatedAt, &r.FirstResponseAt, &r.InvestigationStartedAt,
			&r.InvestigationCompletedAt, &r.DecisionAt, &r.ResolvedAt, &r.ClaimAmount,
			&r.ReimbursementAmount, &r.Currency, &r.SellerCausedDelay, &r.PriorSameTypeBreaches); err != nil {
			return nil, model.NewDomainError(model.ErrTransientExternal, "scan case timeline row", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) loadTransfers(ctx context.Context, sellerID string) ([]ingestadapter.TransferRow, error) {
	cutoff := time.Now().AddDate(0, 0, -90)
	rows, err := s.pool.Query(ctx, `
		SELECT transfer_id, origin_fc, destination_fc, quantity_shipped, quantity_missing,
		       loss_value, status, shipped_at, days_in_transit
		FROM inventory_transfers
		WHERE seller_id = $1 AND shipped_at >= $2`, sellerID, cutoff)
	if err != nil {
		return nil, model.NewDomainError(model.ErrTransientExternal, "load inventory_transfers", err)
	}
	defer rows.Close()

	var out []ingestadapter.TransferRow
	for rows.Next() {
		var r ingestadapter.TransferRow
		if err := rows.Scan(&r.TransferID, &r.OriginFC, &r.DestinationFC, &r.QuantityShipped, &r.QuantityMissing,
			&r.LossValue, &r.Status, &r.ShippedAt, &r.DaysInTransit); err != nil {
			return nil, model.NewDomainError(model.ErrTransientExternal, "scan transfer row", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
