package rules

import (
	"testing"
	"time"

	"github.com/stanleyndaba/clario-detection-engine/model"
)

// Scenario 5 from spec.md §8: closed-case underpayment.
func TestClosedCaseUnderpayment(t *testing.T) {
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	input := model.RuleInput{
		SellerID:     "seller-1",
		SnapshotTime: now,
		ClosedCases: []model.ClosedCase{
			{
				CaseID:         "case-1",
				OrderID:        "order-1",
				Status:         "closed",
				EstimatedValue: 200,
				ApprovedAmount: 100,
				ClosedAt:       now.Add(-10 * 24 * time.Hour),
			},
		},
	}

	out := (ClosedCaseAuditor{}).Apply(input, model.RuleContext{})
	var found *model.Anomaly
	for i := range out {
		if out[i].Evidence["audit_type"] == "underpayment" {
			found = &out[i]
		}
	}
	if found == nil {
		t.Fatalf("expected an underpayment anomaly, got %d anomalies", len(out))
	}
	if found.Evidence["gap"].(float64) != 100 {
		t.Errorf("expected gap 100, got %v", found.Evidence["gap"])
	}
	if found.Evidence["gap_pct"].(float64) != 50 {
		t.Errorf("expected gap_pct 50, got %v", found.Evidence["gap_pct"])
	}
	if found.Severity != model.SeverityHigh {
		t.Errorf("expected severity high, got %s", found.Severity)
	}
	reopen, _ := found.Evidence["reopen_recommended"].(bool)
	if !reopen {
		t.Error("expected reopen_recommended true (closed 10d ago, within 90d window, value >= 50)")
	}
}

func TestClosedCaseAuditorSkipsOldCases(t *testing.T) {
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	input := model.RuleInput{
		SellerID:     "seller-1",
		SnapshotTime: now,
		ClosedCases: []model.ClosedCase{
			{
				CaseID:         "case-old",
				Status:         "closed",
				EstimatedValue: 200,
				ApprovedAmount: 0,
				ClosedAt:       now.Add(-200 * 24 * time.Hour),
			},
		},
	}
	out := (ClosedCaseAuditor{}).Apply(input, model.RuleContext{})
	if len(out) != 0 {
		t.Errorf("expected cases older than 180 days to be excluded, got %d anomalies", len(out))
	}
}

func TestClosedCaseMissingFollowThrough(t *testing.T) {
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	input := model.RuleInput{
		SellerID:     "seller-1",
		SnapshotTime: now,
		ClosedCases: []model.ClosedCase{
			{
				CaseID:                  "case-2",
				OrderID:                 "order-2",
				Status:                  "resolved",
				EstimatedValue:          300,
				ApprovedAmount:          300,
				ClosedAt:                now.Add(-20 * 24 * time.Hour),
				ReimbursementsByOrderID: map[string]bool{},
			},
		},
	}
	out := (ClosedCaseAuditor{}).Apply(input, model.RuleContext{})
	var found bool
	for _, a := range out {
		if a.Evidence["audit_type"] == "missing_follow_through" {
			found = true
		}
	}
	if !found {
		t.Error("expected missing_follow_through anomaly when no reimbursement recorded for the order")
	}
}
