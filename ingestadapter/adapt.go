package ingestadapter

import (
	"time"

	"github.com/stanleyndaba/clario-detection-engine/model"
)

// Adapt translates one upstream Snapshot into the closed
// model.RuleInput sum type, stamping snapshotTime as the "now"
// reference every time-windowed rule computes against (per
// model.RuleInput's determinism contract: snapshot time is supplied
// here, never read via time.Now() inside a rule body).
func Adapt(snap Snapshot, snapshotTime time.Time) model.RuleInput {
	return model.RuleInput{
		SellerID:     snap.SellerID,
		SyncID:       snap.SyncID,
		SnapshotTime: snapshotTime,

		Inventory:     adaptInventory(snap.Inventory),
		DamagedStock:  adaptDamagedStock(snap.DamagedStock),
		Fees:          adaptFees(snap.Fees),
		ClosedCases:   adaptClosedCases(snap.ClosedCases),
		LedgerEvents:  adaptLedger(snap.LedgerEvents),
		CaseTimelines: adaptCaseTimelines(snap.CaseTimelines),
		Transfers:     adaptTransfers(snap.Transfers),
	}
}

func adaptInventory(rows []InventoryRow) []model.InventoryItem {
	out := make([]model.InventoryItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.InventoryItem{
			SKU: r.SKU, ASIN: r.ASIN, Vendor: r.Vendor,
			Units: r.Units, Value: r.Value,
			TotalUnits: r.TotalUnits, TotalValue: r.TotalValue,
		})
	}
	return out
}

func adaptDamagedStock(rows []DamagedStockRow) []model.DamagedItem {
	out := make([]model.DamagedItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.DamagedItem{
			SKU: r.SKU, ASIN: r.ASIN, Vendor: r.Vendor,
			DamageType: r.DamageType, DamageReason: r.DamageReason,
			Units: r.Units, Value: r.Value,
			TotalInventory: r.TotalInventory, TotalInventoryValue: r.TotalInventoryValue,
		})
	}
	return out
}

func adaptFees(rows []FeeRow) []model.FeeItem {
	out := make([]model.FeeItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.FeeItem{
			SKU: r.SKU, ASIN: r.ASIN, Vendor: r.Vendor,
			FeeType: r.FeeType, ActualFee: r.ActualFee, ExpectedFee: r.ExpectedFee,
			RelatedEventID: r.RelatedEventID,
		})
	}
	return out
}

func adaptClosedCases(rows []ClosedCaseRow) []model.ClosedCase {
	out := make([]model.ClosedCase, 0, len(rows))
	for _, r := range rows {
		byOrder := make(map[string]bool, len(r.ReimbursementOrderIDs))
		for _, id := range r.ReimbursementOrderIDs {
			byOrder[id] = true
		}
		out = append(out, model.ClosedCase{
			CaseID: r.CaseID, OrderID: r.OrderID, Status: r.Status,
			EstimatedValue: r.EstimatedValue, ApprovedAmount: r.ApprovedAmount,
			ClosedAt:                r.ClosedAt,
			ReimbursementsByOrderID: byOrder,
		})
	}
	return out
}

func adaptLedger(rows []LedgerRow) []model.LedgerEvent {
	out := make([]model.LedgerEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.LedgerEvent{
			FNSKU: r.FNSKU, EventType: r.EventType, ReasonCode: r.ReasonCode,
			Quantity: r.Quantity, UnitValue: r.UnitValue, EventDate: r.EventDate,
			RelatedEventID: r.RelatedEventID,
		})
	}
	return out
}

func adaptCaseTimelines(rows []CaseTimelineRow) []model.CaseTimeline {
	out := make([]model.CaseTimeline, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.CaseTimeline{
			CaseID: r.CaseID, CaseType: r.CaseType, CreatedAt: r.CreatedAt,
			FirstResponseAt:          r.FirstResponseAt,
			InvestigationStartedAt:   r.InvestigationStartedAt,
			InvestigationCompletedAt: r.InvestigationCompletedAt,
			DecisionAt:               r.DecisionAt,
			ResolvedAt:               r.ResolvedAt,
			ClaimAmount:              r.ClaimAmount,
			ReimbursementAmount:      r.ReimbursementAmount,
			Currency:                 r.Currency,
			SellerCausedDelay:        r.SellerCausedDelay,
			PriorSameTypeBreaches:    r.PriorSameTypeBreaches,
		})
	}
	return out
}

func adaptTransfers(rows []TransferRow) []model.TransferRecord {
	out := make([]model.TransferRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.TransferRecord{
			TransferID: r.TransferID, OriginFC: r.OriginFC, DestinationFC: r.DestinationFC,
			QuantityShipped: r.QuantityShipped, QuantityMissing: r.QuantityMissing,
			LossValue: r.LossValue, Status: r.Status, ShippedAt: r.ShippedAt,
			DaysInTransit: r.DaysInTransit,
		})
	}
	return out
}
