package model

import "time"

// InventoryItem is one line of a seller's current inventory position,
// used by LostUnitsRule.
type InventoryItem struct {
	SKU    string
	ASIN   string
	Vendor string
	Units  int
	Value  float64

	TotalUnits int
	TotalValue float64
}

// DamagedItem is one line of reported warehouse damage, used by
// DamagedStockRule.
type DamagedItem struct {
	SKU          string
	ASIN         string
	Vendor       string
	DamageType   string
	DamageReason string
	Units        int
	Value        float64

	TotalInventory      int
	TotalInventoryValue float64
}

// FeeItem is one assessed marketplace fee, used by OverchargedFeesRule.
type FeeItem struct {
	SKU           string
	ASIN          string
	Vendor        string
	FeeType       string
	ActualFee     float64
	ExpectedFee   float64
	RelatedEventID string
}

// ClosedCase is a resolved/denied/closed dispute case, used by
// ClosedCaseAuditor.
type ClosedCase struct {
	CaseID         string
	OrderID        string
	Status         string // closed|resolved|denied
	EstimatedValue float64
	ApprovedAmount float64
	ClosedAt       time.Time
	ReimbursementsByOrderID map[string]bool
}

// LedgerEvent is a financial-events ledger row (disposal/removal/
// reimbursement), used by DamagedInventoryDetector.
type LedgerEvent struct {
	FNSKU          string
	EventType      string // disposal|reimbursement|removal
	ReasonCode     string // E, M, Q, K, H, ...
	Quantity       int
	UnitValue      float64
	EventDate      time.Time
	RelatedEventID string
}

// CaseTimeline is the full lifecycle timestamps of one dispute case,
// used by SLABreachDetector.
type CaseTimeline struct {
	CaseID                   string
	CaseType                 string
	CreatedAt                time.Time
	FirstResponseAt          *time.Time
	InvestigationStartedAt   *time.Time
	InvestigationCompletedAt *time.Time
	DecisionAt               *time.Time
	ResolvedAt               *time.Time
	ClaimAmount              float64
	ReimbursementAmount      float64
	Currency                 string
	SellerCausedDelay        bool
	PriorSameTypeBreaches    int
}

// TransferRecord is one inter-warehouse inventory transfer, used by
// WarehouseTransferLossDetector.
type TransferRecord struct {
	TransferID      string
	OriginFC        string
	DestinationFC   string
	QuantityShipped int
	QuantityMissing int
	LossValue       float64
	Status          string // in_transit|completed|lost
	ShippedAt       time.Time
	DaysInTransit   int
}

// RuleInput is the closed sum type every rule consumes. One RuleInput
// carries every payload family loaded for the sync, and each rule
// reads only the slices it needs; the adapter layer (see
// ingestadapter/) is responsible for translating upstream rows into
// this shape so that rules never see untyped maps, per spec.md §9.
type RuleInput struct {
	SellerID string
	SyncID   string

	// SnapshotTime is the "now" reference every time-windowed rule
	// (closed-case lookback, reopen windows, damaged-inventory age,
	// transfer age) computes against. It is supplied by the adapter
	// layer at snapshot time rather than read via time.Now() inside a
	// rule body, so that two applications of a rule over
	// byte-equivalent input (SnapshotTime included) are guaranteed to
	// produce identical output per the determinism invariant (spec §8).
	SnapshotTime time.Time

	Inventory     []InventoryItem
	DamagedStock  []DamagedItem
	Fees          []FeeItem
	ClosedCases   []ClosedCase
	LedgerEvents  []LedgerEvent
	CaseTimelines []CaseTimeline
	Transfers     []TransferRecord
}

// ThresholdOperator is the comparison applied by a Threshold row.
type ThresholdOperator string

const (
	OpLT  ThresholdOperator = "LT"
	OpLTE ThresholdOperator = "LTE"
	OpGT  ThresholdOperator = "GT"
	OpGTE ThresholdOperator = "GTE"
	OpEQ  ThresholdOperator = "EQ"
)

// Threshold is an admin-governed trigger condition for a rule.
// A nil SellerID means the threshold applies globally; a seller-
// specific threshold overrides the global one for the same rule type.
type Threshold struct {
	RuleType RuleType
	SellerID *string
	Operator ThresholdOperator
	Value    float64
	Active   bool
}

// AppliesToSeller reports whether this threshold is eligible for the
// given seller (global, or matching seller-specific).
func (t Threshold) AppliesToSeller(sellerID string) bool {
	return t.SellerID == nil || *t.SellerID == sellerID
}

// WhitelistScope is the dimension a WhitelistItem exempts.
type WhitelistScope string

const (
	ScopeSKU        WhitelistScope = "SKU"
	ScopeASIN       WhitelistScope = "ASIN"
	ScopeVendor     WhitelistScope = "VENDOR"
	ScopeMarketplace WhitelistScope = "MARKETPLACE"
)

// WhitelistItem exempts a (scope, value) pair for a seller from
// triggering anomalies.
type WhitelistItem struct {
	SellerID string
	Scope    WhitelistScope
	Value    string
	Active   bool
}

// RuleContext bundles the thresholds and whitelist entries a rule
// consults. Both are pre-filtered to "active" by the loader, but
// rules still check Active defensively per spec §9 invariant
// ("Inactive entries never apply").
type RuleContext struct {
	Thresholds []Threshold
	Whitelist  []WhitelistItem
}
