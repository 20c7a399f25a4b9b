package rules

import (
	"testing"
	"time"

	"github.com/stanleyndaba/clario-detection-engine/model"
)

func TestDamagedInventoryUnreimbursed(t *testing.T) {
	damagedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := damagedAt.Add(60 * 24 * time.Hour)
	input := model.RuleInput{
		SellerID:     "seller-1",
		SnapshotTime: now,
		LedgerEvents: []model.LedgerEvent{
			{FNSKU: "X001", EventType: "disposal", ReasonCode: "M", Quantity: 10, UnitValue: 20, EventDate: damagedAt},
		},
	}

	out := (DamagedInventoryDetector{}).Apply(input, model.RuleContext{})
	if len(out) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(out))
	}
	a := out[0]
	if a.Score != 0.95 {
		t.Errorf("expected confidence 0.95, got %f", a.Score)
	}
	if a.Evidence["anomaly_type"] != "damaged_inbound" {
		t.Errorf("expected anomaly_type damaged_inbound for reason M, got %v", a.Evidence["anomaly_type"])
	}
	if a.EstimatedValue != 200 {
		t.Errorf("expected total_value 200 (10 units * $20), got %f", a.EstimatedValue)
	}
}

func TestDamagedInventoryMatchedReimbursementSuppressed(t *testing.T) {
	damagedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reimbursedAt := damagedAt.Add(20 * 24 * time.Hour)
	now := damagedAt.Add(60 * 24 * time.Hour)
	input := model.RuleInput{
		SellerID:     "seller-1",
		SnapshotTime: now,
		LedgerEvents: []model.LedgerEvent{
			{FNSKU: "X001", EventType: "disposal", ReasonCode: "K", Quantity: 10, UnitValue: 20, EventDate: damagedAt},
			{FNSKU: "X001", EventType: "reimbursement", Quantity: 9, EventDate: reimbursedAt},
		},
	}

	out := (DamagedInventoryDetector{}).Apply(input, model.RuleContext{})
	if len(out) != 0 {
		t.Fatalf("expected matched reimbursement (within 45d, qty +/-1) to suppress the anomaly, got %d", len(out))
	}
}

func TestDamagedInventoryUnknownUnitValueFallsBackTo15(t *testing.T) {
	damagedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := damagedAt.Add(50 * 24 * time.Hour)
	input := model.RuleInput{
		SellerID:     "seller-1",
		SnapshotTime: now,
		LedgerEvents: []model.LedgerEvent{
			{FNSKU: "X002", EventType: "disposal", ReasonCode: "E", Quantity: 2, UnitValue: 0, EventDate: damagedAt},
		},
	}
	out := (DamagedInventoryDetector{}).Apply(input, model.RuleContext{})
	if len(out) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(out))
	}
	if out[0].EstimatedValue != 30 {
		t.Errorf("expected total_value 30 (2 units * fallback $15), got %f", out[0].EstimatedValue)
	}
}

func TestDamagedInventoryBelowMinValueSkipped(t *testing.T) {
	damagedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := damagedAt.Add(50 * 24 * time.Hour)
	input := model.RuleInput{
		SellerID:     "seller-1",
		SnapshotTime: now,
		LedgerEvents: []model.LedgerEvent{
			{FNSKU: "X003", EventType: "disposal", ReasonCode: "Q", Quantity: 1, UnitValue: 2, EventDate: damagedAt},
		},
	}
	out := (DamagedInventoryDetector{}).Apply(input, model.RuleContext{})
	if len(out) != 0 {
		t.Errorf("expected total_value < $5 to be skipped, got %d anomalies", len(out))
	}
}
