package model

import "time"

// ClaimType is the closed set of claim categories the Policy-Window
// Tracker has per-type configuration for.
type ClaimType string

const (
	ClaimLostInventory    ClaimType = "lost_inventory"
	ClaimDamagedInventory ClaimType = "damaged_inventory"
	ClaimInboundShipment  ClaimType = "inbound_shipment"
	ClaimFeeOvercharge    ClaimType = "fee_overcharge"
	ClaimCustomerReturn   ClaimType = "customer_return"
	ClaimRemovalOrder     ClaimType = "removal_order"
	ClaimAtoZ             ClaimType = "atoz_claim"
	ClaimChargeback       ClaimType = "chargeback"
	ClaimGeneral          ClaimType = "general"
)

// FilingRecommendation is the PolicyWindow's filing urgency verdict.
type FilingRecommendation string

const (
	FileNow     FilingRecommendation = "file_now"
	FileSoon    FilingRecommendation = "file_soon"
	SafeToWait  FilingRecommendation = "safe_to_wait"
	FileExpired FilingRecommendation = "expired"
)

// AlertLevel is the urgency signal attached to a claim's deadline.
type AlertLevel string

const (
	AlertNone     AlertLevel = "none"
	AlertInfo     AlertLevel = "info"
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// PolicyWindow is the deadline computation result for one claim.
type PolicyWindow struct {
	ClaimType              ClaimType
	DiscoveryDate          time.Time
	DeadlineDate           time.Time
	DaysRemaining          int
	BusinessDaysRemaining  int
	IsExpired              bool
	IsUrgent               bool
	IsSafe                 bool
	GracePeriodDays        int
	FilingRecommendation   FilingRecommendation
	ShouldFileBy           time.Time
	AlertLevel             AlertLevel
	AlertMessage           string
}

// ClaimWindowStatus is the result of statusFor — a PolicyWindow bound
// to a specific claim/seller identity.
type ClaimWindowStatus struct {
	ClaimID  string
	SellerID string
	PolicyWindow
}

// ExpiringClaims is the four-bucket partition checkExpiringClaims
// returns.
type ExpiringClaims struct {
	Urgent       []ClaimWindowStatus
	ExpiringSoon []ClaimWindowStatus
	Expired      []ClaimWindowStatus
	Safe         []ClaimWindowStatus
}

// PolicyConfig is one row of the per-claim-type configuration table.
type PolicyConfig struct {
	ClaimType           ClaimType
	StandardDays        int
	GracePeriodDays     int
	BusinessDaysOnly    bool
	UrgentThresholdDays int
	SafeThresholdDays   int
}
