package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchStatus is a ReimbursementMatch's billing lifecycle state.
type MatchStatus string

const (
	MatchConfirmed MatchStatus = "confirmed"
	MatchInvoiced  MatchStatus = "invoiced"
	MatchDisputed  MatchStatus = "disputed"
)

// ReimbursementMatch ties a confirmed anomaly/claim to the
// marketplace reimbursement event that paid it out.
type ReimbursementMatch struct {
	ID               string
	SellerID         string
	AnomalyDedupeHash string
	OrderID          string
	ReimbursedAmount decimal.Decimal
	ReimbursedAt     time.Time
	BillingPeriod    string // "YYYY-MM"
	Status           MatchStatus
}

// InvoiceStatus is a CommissionInvoice's lifecycle state.
type InvoiceStatus string

const (
	InvoiceOpen       InvoiceStatus = "open"
	InvoiceDisputable InvoiceStatus = "disputable"
	InvoiceFinalized  InvoiceStatus = "finalized"
	InvoiceRecomputed InvoiceStatus = "recomputed"
)

// CommissionInvoice is a per-seller, per-billing-period commission
// invoice generated from confirmed ReimbursementMatch rows.
type CommissionInvoice struct {
	ID              string
	SellerID        string
	InvoiceNumber   int64
	BillingPeriod   string
	Rate            decimal.Decimal
	GrossAmount     decimal.Decimal
	CommissionAmount decimal.Decimal
	MatchIDs        []string
	DisputedMatchIDs []string
	Status          InvoiceStatus
	CreatedAt       time.Time
	DisputeWindowEndsAt time.Time
}
