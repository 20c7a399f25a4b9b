package rules

import (
	"fmt"
	"time"

	"github.com/stanleyndaba/clario-detection-engine/model"
)

// DamagedInventoryDetector (internally "Broken Goods Hunter" in the
// detector's own evidence summary, per spec.md §4.C) finds
// Amazon-at-fault damaged-disposition ledger events at least 45 days
// old with no matching reimbursement. Priority HIGH — the same tier
// as LostUnitsRule, since it is financially equivalent to a lost-units
// finding, just sourced from the ledger rather than a fresh inventory
// snapshot.
type DamagedInventoryDetector struct{}

func (DamagedInventoryDetector) RuleType() model.RuleType { return model.RuleDamagedInventory }
func (DamagedInventoryDetector) Priority() model.Priority { return model.PriorityHigh }

// damagedReasonCodes are the Amazon-at-fault disposal reason codes
// this detector watches, per spec.md §4.C.
var damagedReasonCodes = map[string]bool{
	"E": true, "M": true, "Q": true, "K": true, "H": true,
}

const damagedInventoryAge = 45 * 24 * time.Hour
const fallbackUnitValue = 15.0
const minReportableValue = 5.0

func (DamagedInventoryDetector) Apply(input model.RuleInput, ctx model.RuleContext) []model.Anomaly {
	var out []model.Anomaly
	now := input.SnapshotTime

	for _, dmg := range input.LedgerEvents {
		if dmg.EventType != "disposal" || !damagedReasonCodes[dmg.ReasonCode] {
			continue
		}
		if now.Sub(dmg.EventDate) < damagedInventoryAge {
			continue
		}
		if AnyWhitelisted(ctx.Whitelist, [2]string{string(model.ScopeSKU), dmg.FNSKU}) {
			continue
		}
		if hasMatchingReimbursement(dmg, input.LedgerEvents) {
			continue
		}

		unitValue := dmg.UnitValue
		if unitValue == 0 {
			unitValue = fallbackUnitValue
		}
		totalValue := float64(dmg.Quantity) * unitValue
		if totalValue < minReportableValue {
			continue
		}

		anomalyType := damagedAnomalyType(dmg.ReasonCode)
		dedupe := GenerateDedupeHash(input.SellerID, model.RuleDamagedInventory,
			dmg.FNSKU, dmg.ReasonCode, fmt.Sprintf("%d", dmg.Quantity))

		out = append(out, model.Anomaly{
			SellerID:       input.SellerID,
			SyncID:         input.SyncID,
			DedupeHash:     dedupe,
			RuleType:       model.RuleDamagedInventory,
			Severity:       model.SeverityHigh,
			Score:          0.95,
			Summary:        fmt.Sprintf("Broken Goods Hunter: unreimbursed damaged disposal of %d units (%s), reason %s, worth $%.2f", dmg.Quantity, dmg.FNSKU, dmg.ReasonCode, totalValue),
			EstimatedValue: totalValue,
			Status:         model.AnomalyPending,
			Evidence: map[string]any{
				"anomaly_type": anomalyType,
				"fnsku":        dmg.FNSKU,
				"reason_code":  dmg.ReasonCode,
				"quantity":     dmg.Quantity,
				"unit_value":   unitValue,
				"total_value":  totalValue,
				"confidence":   0.95,
			},
		})
	}

	return out
}

func damagedAnomalyType(reasonCode string) string {
	switch reasonCode {
	case "M":
		return "damaged_inbound"
	case "K":
		return "damaged_removal"
	default:
		return "damaged_warehouse"
	}
}

func hasMatchingReimbursement(dmg model.LedgerEvent, events []model.LedgerEvent) bool {
	for _, e := range events {
		if e.EventType != "reimbursement" || e.FNSKU != dmg.FNSKU {
			continue
		}
		if e.EventDate.Before(dmg.EventDate) {
			continue
		}
		if e.EventDate.Sub(dmg.EventDate) > damagedInventoryAge {
			continue
		}
		diff := e.Quantity - dmg.Quantity
		if diff < 0 {
			diff = -diff
		}
		if diff <= 1 {
			return true
		}
	}
	return false
}
