package rules

import (
	"fmt"

	"github.com/stanleyndaba/clario-detection-engine/model"
)

// LostUnitsRule flags inventory items reported lost by the
// marketplace that are not whitelisted and cross either a
// percentage-of-total or an absolute-value threshold. Priority HIGH
// per spec.md §4.C.
type LostUnitsRule struct{}

func (LostUnitsRule) RuleType() model.RuleType { return model.RuleLostUnits }
func (LostUnitsRule) Priority() model.Priority { return model.PriorityHigh }

func (LostUnitsRule) Apply(input model.RuleInput, ctx model.RuleContext) []model.Anomaly {
	var out []model.Anomaly

	for _, item := range input.Inventory {
		if item.TotalUnits == 0 {
			// Guards divide-by-zero; zero total-units never triggers.
			continue
		}
		if AnyWhitelisted(ctx.Whitelist,
			[2]string{string(model.ScopeSKU), item.SKU},
			[2]string{string(model.ScopeASIN), item.ASIN},
			[2]string{string(model.ScopeVendor), item.Vendor},
		) {
			continue
		}

		lostPct := float64(item.Units) / float64(item.TotalUnits)
		lostValue := item.Value

		pctTriggers := CheckThresholds(model.RuleLostUnits, input.SellerID, lostPct, ctx.Thresholds)
		valueTriggers := CheckThresholds(model.RuleLostUnits, input.SellerID, lostValue, ctx.Thresholds)
		if !pctTriggers && !valueTriggers {
			continue
		}

		valueRatio := 0.0
		if item.TotalValue > 0 {
			valueRatio = lostValue / item.TotalValue
		}
		score := model.Clamp(lostPct*10+valueRatio, 0.5, 0.9)

		dedupe := GenerateDedupeHash(input.SellerID, model.RuleLostUnits,
			item.SKU, item.ASIN, fmt.Sprintf("%d", item.Units), fmt.Sprintf("%.2f", lostValue), item.Vendor)

		out = append(out, model.Anomaly{
			SellerID:       input.SellerID,
			SyncID:         input.SyncID,
			DedupeHash:     dedupe,
			RuleType:       model.RuleLostUnits,
			Severity:       CalculateSeverity(score),
			Score:          score,
			Summary:        fmt.Sprintf("Lost units detected: %d units (%s) worth $%.2f", item.Units, item.SKU, lostValue),
			EstimatedValue: lostValue,
			Status:         model.AnomalyPending,
			Evidence: map[string]any{
				"sku":          item.SKU,
				"asin":         item.ASIN,
				"vendor":       item.Vendor,
				"units":        item.Units,
				"value":        lostValue,
				"lost_pct":     lostPct,
				"total_units":  item.TotalUnits,
				"total_value":  item.TotalValue,
			},
		})
	}

	return out
}
