package rules

import (
	"fmt"

	"github.com/stanleyndaba/clario-detection-engine/model"
)

// DamagedStockRule flags warehouse-damaged inventory lines. Whitelist
// checks are damageType-independent: a matching SKU/ASIN/VENDOR
// exempts the line regardless of damage type. Priority MEDIUM per
// spec.md §4.C.
type DamagedStockRule struct{}

func (DamagedStockRule) RuleType() model.RuleType { return model.RuleDamagedStock }
func (DamagedStockRule) Priority() model.Priority { return model.PriorityMedium }

func (DamagedStockRule) Apply(input model.RuleInput, ctx model.RuleContext) []model.Anomaly {
	var out []model.Anomaly

	for _, item := range input.DamagedStock {
		if AnyWhitelisted(ctx.Whitelist,
			[2]string{string(model.ScopeSKU), item.SKU},
			[2]string{string(model.ScopeASIN), item.ASIN},
			[2]string{string(model.ScopeVendor), item.Vendor},
		) {
			continue
		}

		unitsTriggers := CheckThresholds(model.RuleDamagedStock, input.SellerID, float64(item.Units), ctx.Thresholds)
		valueTriggers := CheckThresholds(model.RuleDamagedStock, input.SellerID, item.Value, ctx.Thresholds)
		if !unitsTriggers && !valueTriggers {
			continue
		}

		unitsRatio, valueRatio := 0.0, 0.0
		if item.TotalInventory > 0 {
			unitsRatio = float64(item.Units) / float64(item.TotalInventory)
		}
		if item.TotalInventoryValue > 0 {
			valueRatio = item.Value / item.TotalInventoryValue
		}
		score := model.Clamp(unitsRatio+valueRatio, 0.5, 0.9)

		dedupe := GenerateDedupeHash(input.SellerID, model.RuleDamagedStock,
			item.SKU, item.ASIN, item.DamageType, fmt.Sprintf("%d", item.Units), fmt.Sprintf("%.2f", item.Value))

		out = append(out, model.Anomaly{
			SellerID:       input.SellerID,
			SyncID:         input.SyncID,
			DedupeHash:     dedupe,
			RuleType:       model.RuleDamagedStock,
			Severity:       CalculateSeverity(score),
			Score:          score,
			Summary:        fmt.Sprintf("Damaged stock detected: %d units (%s) worth $%.2f — %s", item.Units, item.SKU, item.Value, item.DamageType),
			EstimatedValue: item.Value,
			Status:         model.AnomalyPending,
			Evidence: map[string]any{
				"sku":            item.SKU,
				"asin":           item.ASIN,
				"vendor":         item.Vendor,
				"damage_type":    item.DamageType,
				"damage_reason":  item.DamageReason,
				"units":          item.Units,
				"value":          item.Value,
			},
		})
	}

	return out
}
