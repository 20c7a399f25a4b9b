package rules

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/stanleyndaba/clario-detection-engine/model"
)

// IsWhitelisted reports whether an active whitelist entry matches the
// given scope and value for the seller whose entries are in
// whitelist. Per spec.md §4.C.
func IsWhitelisted(scope model.WhitelistScope, value string, whitelist []model.WhitelistItem) bool {
	for _, w := range whitelist {
		if !w.Active {
			continue
		}
		if w.Scope == scope && w.Value == value {
			return true
		}
	}
	return false
}

// AnyWhitelisted checks multiple (scope, value) pairs in one call —
// used by rules that whitelist-check SKU, ASIN, and vendor together.
func AnyWhitelisted(whitelist []model.WhitelistItem, pairs ...[2]string) bool {
	for _, p := range pairs {
		scope, value := model.WhitelistScope(p[0]), p[1]
		if value == "" {
			continue
		}
		if IsWhitelisted(scope, value, whitelist) {
			return true
		}
	}
	return false
}

// thresholdsFor filters to thresholds applicable to this rule type and
// seller (seller-specific overrides global; inactive entries never
// apply), per spec.md §3's RuleContext invariant.
func thresholdsFor(ruleType model.RuleType, sellerID string, thresholds []model.Threshold) []model.Threshold {
	var sellerSpecific, global []model.Threshold
	for _, t := range thresholds {
		if !t.Active || t.RuleType != ruleType {
			continue
		}
		if t.SellerID != nil {
			if *t.SellerID == sellerID {
				sellerSpecific = append(sellerSpecific, t)
			}
			continue
		}
		global = append(global, t)
	}
	if len(sellerSpecific) > 0 {
		return sellerSpecific
	}
	return global
}

// CheckThresholds returns true iff the trigger condition fires for at
// least one threshold applicable to ruleType/sellerID. Rules define
// operator polarity per metric: for LT operators "triggers" means
// value is NOT below the threshold (it crossed upward) and for LTE
// that value is above it; GT triggers when value is above and GTE
// when value is at/above; EQ triggers on exact match. Rules
// consult multiple thresholds (e.g. percentage-of-total AND
// absolute-value) and trigger when any applies.
func CheckThresholds(ruleType model.RuleType, sellerID string, value float64, thresholds []model.Threshold) bool {
	applicable := thresholdsFor(ruleType, sellerID, thresholds)
	for _, t := range applicable {
		if thresholdTriggers(value, t) {
			return true
		}
	}
	return false
}

func thresholdTriggers(value float64, t model.Threshold) bool {
	switch t.Operator {
	case model.OpLT:
		return value >= t.Value
	case model.OpLTE:
		return value > t.Value
	case model.OpGT:
		return value > t.Value
	case model.OpGTE:
		return value >= t.Value
	case model.OpEQ:
		return value == t.Value
	default:
		return false
	}
}

// CalculateSeverity implements calculate_severity per spec.md §4.C —
// a thin alias over model.SeverityFromScore kept in this package so
// rule files read as self-contained per the teacher's convention of
// colocating helpers with their call sites.
func CalculateSeverity(score float64) model.Severity {
	return model.SeverityFromScore(score)
}

// GenerateDedupeHash implements generate_dedupe_hash per spec.md
// §4.B/§4.C: SHA-256 of the canonical serialization of
// (seller_id, rule_type, core_fields), truncated to 16 hex chars.
// core_fields values are serialized in the exact order passed so that
// callers control the stable identity tuple per rule.
func GenerateDedupeHash(sellerID string, ruleType model.RuleType, coreFields ...string) string {
	h := sha256.New()
	h.Write([]byte(sellerID))
	h.Write([]byte{0})
	h.Write([]byte(ruleType))
	for _, f := range coreFields {
		h.Write([]byte{0})
		h.Write([]byte(f))
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)[:16]
}
