package rules

import (
	"strings"
	"testing"
	"time"

	"github.com/stanleyndaba/clario-detection-engine/model"
)

func TestDefaultRegistryOrder(t *testing.T) {
	reg := DefaultRegistry()
	want := []model.RuleType{
		model.RuleLostUnits,
		model.RuleDamagedStock,
		model.RuleOverchargedFees,
		model.RuleClosedCaseAudit,
		model.RuleDamagedInventory,
		model.RuleSLABreach,
		model.RuleWarehouseTransfer,
	}
	rules := reg.Rules()
	if len(rules) != len(want) {
		t.Fatalf("expected %d rules, got %d", len(want), len(rules))
	}
	for i, r := range rules {
		if r.RuleType() != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], r.RuleType())
		}
	}
}

func lostUnitsHappyPathInput() (model.RuleInput, model.RuleContext) {
	input := model.RuleInput{
		SellerID:     "seller-1",
		SyncID:       "sync-1",
		SnapshotTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Inventory: []model.InventoryItem{
			{SKU: "SKU001", ASIN: "B001234567", Vendor: "Vendor A", Units: 10, Value: 50.0, TotalUnits: 100, TotalValue: 1000},
		},
	}
	ctx := model.RuleContext{
		Thresholds: []model.Threshold{
			{RuleType: model.RuleLostUnits, Operator: model.OpLT, Value: 0.01, Active: true},
			{RuleType: model.RuleLostUnits, Operator: model.OpLT, Value: 5.0, Active: true},
		},
	}
	return input, ctx
}

// Scenario 1 from spec.md §8: LostUnits happy path.
func TestLostUnitsHappyPath(t *testing.T) {
	input, ctx := lostUnitsHappyPathInput()
	out := (LostUnitsRule{}).Apply(input, ctx)

	if len(out) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(out))
	}
	a := out[0]
	if a.RuleType != model.RuleLostUnits {
		t.Errorf("expected rule_type LOST_UNITS, got %s", a.RuleType)
	}
	if a.Score <= 0.5 {
		t.Errorf("expected score > 0.5, got %f", a.Score)
	}
	if !strings.HasPrefix(a.Summary, "Lost units detected: 10 units (SKU001) worth $50") {
		t.Errorf("unexpected summary: %s", a.Summary)
	}
	if a.DedupeHash == "" {
		t.Error("expected non-empty dedupe hash")
	}
}

// Scenario 2 from spec.md §8: whitelist bypass.
func TestLostUnitsWhitelistBypass(t *testing.T) {
	input, ctx := lostUnitsHappyPathInput()
	ctx.Whitelist = []model.WhitelistItem{
		{SellerID: input.SellerID, Scope: model.ScopeSKU, Value: "SKU001", Active: true},
	}

	out := (LostUnitsRule{}).Apply(input, ctx)
	if len(out) != 0 {
		t.Fatalf("expected empty anomaly list, got %d", len(out))
	}
}

// Scenario 3 from spec.md §8: dedupe stability.
func TestLostUnitsDedupeStability(t *testing.T) {
	input, ctx := lostUnitsHappyPathInput()
	rule := LostUnitsRule{}

	first := rule.Apply(input, ctx)
	second := rule.Apply(input, ctx)
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected 1 anomaly per run, got %d and %d", len(first), len(second))
	}
	if first[0].DedupeHash != second[0].DedupeHash {
		t.Errorf("expected stable dedupe hash across identical runs, got %s vs %s", first[0].DedupeHash, second[0].DedupeHash)
	}

	changed := input
	changed.Inventory = []model.InventoryItem{input.Inventory[0]}
	changed.Inventory[0].SKU = "SKU002"
	third := rule.Apply(changed, ctx)
	if len(third) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(third))
	}
	if third[0].DedupeHash == first[0].DedupeHash {
		t.Error("expected different dedupe hash after changing sku")
	}
}

func TestApplyAllIsDeterministic(t *testing.T) {
	reg := DefaultRegistry()
	input, ctx := lostUnitsHappyPathInput()

	first := reg.ApplyAll(input, ctx)
	second := reg.ApplyAll(input, ctx)
	if len(first) != len(second) {
		t.Fatalf("non-deterministic anomaly count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].DedupeHash != second[i].DedupeHash {
			t.Errorf("non-deterministic dedupe hash at index %d", i)
		}
	}
}

func TestCheckThresholdsPolarity(t *testing.T) {
	thresholds := []model.Threshold{
		{RuleType: model.RuleLostUnits, Operator: model.OpLT, Value: 10, Active: true},
	}
	if CheckThresholds(model.RuleLostUnits, "s1", 9.99, thresholds) {
		t.Error("expected no trigger below LT threshold")
	}
	if !CheckThresholds(model.RuleLostUnits, "s1", 10, thresholds) {
		t.Error("expected trigger at LT threshold boundary (crosses upward)")
	}
}

func TestThresholdsSellerOverridesGlobal(t *testing.T) {
	sellerID := "seller-42"
	thresholds := []model.Threshold{
		{RuleType: model.RuleLostUnits, Operator: model.OpGT, Value: 1000, Active: true},
		{RuleType: model.RuleLostUnits, SellerID: &sellerID, Operator: model.OpGT, Value: 1, Active: true},
	}
	if !CheckThresholds(model.RuleLostUnits, sellerID, 5, thresholds) {
		t.Error("expected seller-specific threshold to override global")
	}
	if CheckThresholds(model.RuleLostUnits, "other-seller", 5, thresholds) {
		t.Error("expected global threshold (1000) to apply to other sellers, not triggered at 5")
	}
}

func TestInactiveThresholdNeverApplies(t *testing.T) {
	thresholds := []model.Threshold{
		{RuleType: model.RuleLostUnits, Operator: model.OpGT, Value: 0, Active: false},
	}
	if CheckThresholds(model.RuleLostUnits, "s1", 999, thresholds) {
		t.Error("expected inactive threshold to never trigger")
	}
}
