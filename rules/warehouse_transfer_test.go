package rules

import (
	"testing"
	"time"

	"github.com/stanleyndaba/clario-detection-engine/model"
)

func TestWarehouseTransferPartialLoss(t *testing.T) {
	shipped := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	input := model.RuleInput{
		SellerID:     "seller-1",
		SnapshotTime: shipped.Add(5 * 24 * time.Hour),
		Transfers: []model.TransferRecord{
			{TransferID: "t1", OriginFC: "FC1", DestinationFC: "FC2", QuantityShipped: 100, QuantityMissing: 10, LossValue: 50, Status: "completed", ShippedAt: shipped},
		},
	}
	out := (WarehouseTransferLossDetector{}).Apply(input, model.RuleContext{})
	if len(out) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(out))
	}
	if out[0].Evidence["anomaly_type"] != "partial_loss" {
		t.Errorf("expected partial_loss, got %v", out[0].Evidence["anomaly_type"])
	}
}

func TestWarehouseTransferTotalLoss(t *testing.T) {
	shipped := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	input := model.RuleInput{
		SellerID:     "seller-1",
		SnapshotTime: shipped.Add(5 * 24 * time.Hour),
		Transfers: []model.TransferRecord{
			{TransferID: "t2", OriginFC: "FC1", DestinationFC: "FC2", QuantityShipped: 50, QuantityMissing: 50, LossValue: 300, Status: "completed", ShippedAt: shipped},
		},
	}
	out := (WarehouseTransferLossDetector{}).Apply(input, model.RuleContext{})
	if len(out) != 1 || out[0].Evidence["anomaly_type"] != "total_loss" {
		t.Fatalf("expected total_loss anomaly, got %+v", out)
	}
}

func TestWarehouseTransferLossBelowMinSkipped(t *testing.T) {
	shipped := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	input := model.RuleInput{
		SellerID:     "seller-1",
		SnapshotTime: shipped.Add(5 * 24 * time.Hour),
		Transfers: []model.TransferRecord{
			{TransferID: "t3", QuantityShipped: 10, QuantityMissing: 1, LossValue: 5, Status: "completed", ShippedAt: shipped},
		},
	}
	out := (WarehouseTransferLossDetector{}).Apply(input, model.RuleContext{})
	if len(out) != 0 {
		t.Errorf("expected loss_value < $10 to be skipped, got %d anomalies", len(out))
	}
}

func TestWarehouseTransferExcessiveDelay(t *testing.T) {
	shipped := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	input := model.RuleInput{
		SellerID:     "seller-1",
		SnapshotTime: shipped.Add(20 * 24 * time.Hour),
		Transfers: []model.TransferRecord{
			{TransferID: "t4", OriginFC: "FC1", DestinationFC: "FC2", Status: "in_transit", ShippedAt: shipped, DaysInTransit: 20},
		},
	}
	out := (WarehouseTransferLossDetector{}).Apply(input, model.RuleContext{})
	if len(out) != 1 {
		t.Fatalf("expected 1 excessive_delay anomaly, got %d", len(out))
	}
	if out[0].Severity != model.SeverityHigh {
		t.Errorf("expected high severity at 20 days in transit, got %s", out[0].Severity)
	}
}

func TestWarehouseTransferExcessiveDelayCritical(t *testing.T) {
	shipped := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	input := model.RuleInput{
		SellerID:     "seller-1",
		SnapshotTime: shipped.Add(40 * 24 * time.Hour),
		Transfers: []model.TransferRecord{
			{TransferID: "t5", OriginFC: "FC1", DestinationFC: "FC2", Status: "in_transit", ShippedAt: shipped, DaysInTransit: 35},
		},
	}
	out := (WarehouseTransferLossDetector{}).Apply(input, model.RuleContext{})
	if len(out) != 1 || out[0].Severity != model.SeverityCritical {
		t.Fatalf("expected critical severity above 30 days in transit, got %+v", out)
	}
}

func TestWarehouseTransferOutsideLookbackExcluded(t *testing.T) {
	shipped := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	input := model.RuleInput{
		SellerID:     "seller-1",
		SnapshotTime: shipped.Add(100 * 24 * time.Hour),
		Transfers: []model.TransferRecord{
			{TransferID: "t6", QuantityShipped: 10, QuantityMissing: 10, LossValue: 100, Status: "completed", ShippedAt: shipped},
		},
	}
	out := (WarehouseTransferLossDetector{}).Apply(input, model.RuleContext{})
	if len(out) != 0 {
		t.Errorf("expected transfers older than 90 days to be excluded, got %d anomalies", len(out))
	}
}
