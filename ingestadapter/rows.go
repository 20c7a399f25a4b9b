// Package ingestadapter is the explicit adapter layer spec.md §9
// calls for: it translates upstream ingestion rows (orders,
// shipments, returns, settlements, financial_events,
// inventory_transfers, dispute_cases — read-only per spec.md §6's
// ingestion-collaborator boundary) into the closed model.RuleInput
// sum type, so that rules never see untyped maps. It has no I/O of
// its own: the orchestrator fetches raw rows via a SnapshotLoader and
// hands them to Adapt.
package ingestadapter

import "time"

// InventoryRow is one upstream inventory position row.
type InventoryRow struct {
	SKU, ASIN, Vendor    string
	Units                int
	Value                float64
	TotalUnits           int
	TotalValue           float64
}

// DamagedStockRow is one upstream warehouse-damage report row.
type DamagedStockRow struct {
	SKU, ASIN, Vendor                string
	DamageType, DamageReason         string
	Units                            int
	Value                            float64
	TotalInventory                   int
	TotalInventoryValue              float64
}

// FeeRow is one upstream settlement fee-assessment row.
type FeeRow struct {
	SKU, ASIN, Vendor             string
	FeeType                       string
	ActualFee, ExpectedFee        float64
	RelatedEventID                string
}

// ClosedCaseRow is one upstream dispute_cases row already in a
// terminal status.
type ClosedCaseRow struct {
	CaseID, OrderID, Status         string
	EstimatedValue, ApprovedAmount  float64
	ClosedAt                       time.Time
	ReimbursementOrderIDs          []string // financial_events rows matched by order_id
}

// LedgerRow is one upstream financial_events ledger row.
type LedgerRow struct {
	FNSKU, EventType, ReasonCode string
	Quantity                    int
	UnitValue                   float64
	EventDate                   time.Time
	RelatedEventID               string
}

// CaseTimelineRow is one upstream dispute_cases row with full
// lifecycle timestamps, used by the SLA breach detector.
type CaseTimelineRow struct {
	CaseID, CaseType                                     string
	CreatedAt                                            time.Time
	FirstResponseAt, InvestigationStartedAt               *time.Time
	InvestigationCompletedAt, DecisionAt, ResolvedAt      *time.Time
	ClaimAmount, ReimbursementAmount                      float64
	Currency                                              string
	SellerCausedDelay                                     bool
	PriorSameTypeBreaches                                 int
}

// TransferRow is one upstream inventory_transfers row.
type TransferRow struct {
	TransferID, OriginFC, DestinationFC string
	QuantityShipped, QuantityMissing   int
	LossValue                          float64
	Status                             string
	ShippedAt                          time.Time
	DaysInTransit                      int
}

// Snapshot bundles every upstream row family the orchestrator loaded
// for one (seller_id, sync_id) pass. SnapshotLoader (implemented by
// store/ against the read-only ingestion tables) produces this.
type Snapshot struct {
	SellerID string
	SyncID   string

	Inventory     []InventoryRow
	DamagedStock  []DamagedStockRow
	Fees          []FeeRow
	ClosedCases   []ClosedCaseRow
	LedgerEvents  []LedgerRow
	CaseTimelines []CaseTimelineRow
	Transfers     []TransferRow
}
