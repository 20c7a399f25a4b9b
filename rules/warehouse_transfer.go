package rules

import (
	"fmt"
	"time"

	"github.com/stanleyndaba/clario-detection-engine/model"
)

// WarehouseTransferLossDetector scans inter-fulfillment-center
// transfers from the last 90 days for quantity loss and excessive
// transit delay. Priority MEDIUM — same tier as DamagedStockRule,
// since a transfer loss is itself a form of inventory damage.
type WarehouseTransferLossDetector struct{}

func (WarehouseTransferLossDetector) RuleType() model.RuleType { return model.RuleWarehouseTransfer }
func (WarehouseTransferLossDetector) Priority() model.Priority { return model.PriorityMedium }

const transferLookback = 90 * 24 * time.Hour
const minTransferLossValue = 10.0
const excessiveDelayDays = 14
const criticalDelayDays = 30

func (WarehouseTransferLossDetector) Apply(input model.RuleInput, ctx model.RuleContext) []model.Anomaly {
	var out []model.Anomaly
	now := input.SnapshotTime

	for _, t := range input.Transfers {
		if now.Sub(t.ShippedAt) > transferLookback {
			continue
		}

		if t.QuantityMissing > 0 && t.LossValue >= minTransferLossValue {
			anomalyType := "partial_loss"
			if t.QuantityShipped > 0 && t.QuantityMissing >= t.QuantityShipped {
				anomalyType = "total_loss"
			}
			dedupe := GenerateDedupeHash(input.SellerID, model.RuleWarehouseTransfer, t.TransferID, anomalyType)

			out = append(out, model.Anomaly{
				SellerID:       input.SellerID,
				SyncID:         input.SyncID,
				DedupeHash:     dedupe,
				RuleType:       model.RuleWarehouseTransfer,
				Severity:       transferLossSeverity(t.LossValue),
				Score:          model.Clamp(t.LossValue/1000, 0.5, 0.9),
				Summary:        fmt.Sprintf("Warehouse transfer %s: %d units missing of %d shipped (%s → %s), loss $%.2f", t.TransferID, t.QuantityMissing, t.QuantityShipped, t.OriginFC, t.DestinationFC, t.LossValue),
				EstimatedValue: t.LossValue,
				Status:         model.AnomalyPending,
				Evidence: map[string]any{
					"anomaly_type":     anomalyType,
					"transfer_id":      t.TransferID,
					"origin_fc":        t.OriginFC,
					"destination_fc":   t.DestinationFC,
					"quantity_shipped": t.QuantityShipped,
					"quantity_missing": t.QuantityMissing,
					"loss_value":       t.LossValue,
				},
			})
		}

		if t.DaysInTransit > excessiveDelayDays && t.Status == "in_transit" {
			severity := model.SeverityHigh
			if t.DaysInTransit > criticalDelayDays {
				severity = model.SeverityCritical
			}
			dedupe := GenerateDedupeHash(input.SellerID, model.RuleWarehouseTransfer, t.TransferID, "excessive_delay")

			out = append(out, model.Anomaly{
				SellerID:       input.SellerID,
				SyncID:         input.SyncID,
				DedupeHash:     dedupe,
				RuleType:       model.RuleWarehouseTransfer,
				Severity:       severity,
				Score:          model.Clamp(float64(t.DaysInTransit)/40, 0.5, 0.9),
				Summary:        fmt.Sprintf("Warehouse transfer %s stuck in transit %d days (%s → %s)", t.TransferID, t.DaysInTransit, t.OriginFC, t.DestinationFC),
				EstimatedValue: t.LossValue,
				Status:         model.AnomalyPending,
				Evidence: map[string]any{
					"anomaly_type":    "excessive_delay",
					"transfer_id":     t.TransferID,
					"origin_fc":       t.OriginFC,
					"destination_fc":  t.DestinationFC,
					"days_in_transit": t.DaysInTransit,
					"status":          t.Status,
				},
			})
		}
	}

	return out
}

func transferLossSeverity(lossValue float64) model.Severity {
	switch {
	case lossValue >= 2000:
		return model.SeverityCritical
	case lossValue >= 500:
		return model.SeverityHigh
	case lossValue >= 100:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}
