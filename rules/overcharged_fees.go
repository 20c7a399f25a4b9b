package rules

import (
	"fmt"

	"github.com/stanleyndaba/clario-detection-engine/model"
)

// OverchargedFeesRule compares actual vs. expected marketplace fees
// and fires when the overcharge crosses a configured threshold.
// Priority HIGH per spec.md §4.C.
type OverchargedFeesRule struct{}

func (OverchargedFeesRule) RuleType() model.RuleType { return model.RuleOverchargedFees }
func (OverchargedFeesRule) Priority() model.Priority { return model.PriorityHigh }

func (OverchargedFeesRule) Apply(input model.RuleInput, ctx model.RuleContext) []model.Anomaly {
	var out []model.Anomaly

	for _, fee := range input.Fees {
		if AnyWhitelisted(ctx.Whitelist,
			[2]string{string(model.ScopeSKU), fee.SKU},
			[2]string{string(model.ScopeASIN), fee.ASIN},
			[2]string{string(model.ScopeVendor), fee.Vendor},
		) {
			continue
		}

		overcharge := fee.ActualFee - fee.ExpectedFee
		if overcharge <= 0 {
			continue
		}
		if !CheckThresholds(model.RuleOverchargedFees, input.SellerID, overcharge, ctx.Thresholds) {
			continue
		}

		ratio := 1.0
		if fee.ExpectedFee > 0 {
			ratio = overcharge / fee.ExpectedFee
		}
		score := model.Clamp(0.5+ratio, 0.5, 0.9)

		dedupe := GenerateDedupeHash(input.SellerID, model.RuleOverchargedFees,
			fee.SKU, fee.ASIN, fee.FeeType, fmt.Sprintf("%.2f", overcharge))

		out = append(out, model.Anomaly{
			SellerID:        input.SellerID,
			SyncID:          input.SyncID,
			DedupeHash:      dedupe,
			RuleType:        model.RuleOverchargedFees,
			Severity:        CalculateSeverity(score),
			Score:           score,
			Summary:         fmt.Sprintf("Fee overcharge detected: %s charged $%.2f, expected $%.2f", fee.FeeType, fee.ActualFee, fee.ExpectedFee),
			EstimatedValue:  overcharge,
			RelatedEventIDs: nonEmpty(fee.RelatedEventID),
			Status:          model.AnomalyPending,
			Evidence: map[string]any{
				"sku":          fee.SKU,
				"asin":         fee.ASIN,
				"vendor":       fee.Vendor,
				"fee_type":     fee.FeeType,
				"actual_fee":   fee.ActualFee,
				"expected_fee": fee.ExpectedFee,
				"overcharge":   overcharge,
			},
		})
	}

	return out
}

func nonEmpty(ids ...string) []string {
	var out []string
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
