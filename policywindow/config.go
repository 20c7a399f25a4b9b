package policywindow

import "github.com/stanleyndaba/clario-detection-engine/model"

// defaultConfigs is the per-claim-type policy table from spec.md
// §4.A. Urgent/safe threshold days are not given explicit figures in
// the source numbers (only "per-type" is stated) — see DESIGN.md's
// Open Question resolution for the values chosen here.
var defaultConfigs = map[model.ClaimType]model.PolicyConfig{
	model.ClaimLostInventory: {
		ClaimType: model.ClaimLostInventory, StandardDays: 60, GracePeriodDays: 3,
		BusinessDaysOnly: false, UrgentThresholdDays: 7, SafeThresholdDays: 14,
	},
	model.ClaimDamagedInventory: {
		ClaimType: model.ClaimDamagedInventory, StandardDays: 60, GracePeriodDays: 3,
		BusinessDaysOnly: false, UrgentThresholdDays: 7, SafeThresholdDays: 14,
	},
	model.ClaimInboundShipment: {
		ClaimType: model.ClaimInboundShipment, StandardDays: 270, GracePeriodDays: 7,
		BusinessDaysOnly: false, UrgentThresholdDays: 14, SafeThresholdDays: 30,
	},
	model.ClaimFeeOvercharge: {
		ClaimType: model.ClaimFeeOvercharge, StandardDays: 90, GracePeriodDays: 5,
		BusinessDaysOnly: false, UrgentThresholdDays: 10, SafeThresholdDays: 21,
	},
	model.ClaimCustomerReturn: {
		ClaimType: model.ClaimCustomerReturn, StandardDays: 45, GracePeriodDays: 2,
		BusinessDaysOnly: false, UrgentThresholdDays: 5, SafeThresholdDays: 10,
	},
	model.ClaimRemovalOrder: {
		ClaimType: model.ClaimRemovalOrder, StandardDays: 90, GracePeriodDays: 5,
		BusinessDaysOnly: false, UrgentThresholdDays: 10, SafeThresholdDays: 21,
	},
	model.ClaimAtoZ: {
		ClaimType: model.ClaimAtoZ, StandardDays: 7, GracePeriodDays: 0,
		BusinessDaysOnly: true, UrgentThresholdDays: 1, SafeThresholdDays: 3,
	},
	model.ClaimChargeback: {
		ClaimType: model.ClaimChargeback, StandardDays: 15, GracePeriodDays: 1,
		BusinessDaysOnly: true, UrgentThresholdDays: 3, SafeThresholdDays: 7,
	},
	model.ClaimGeneral: {
		ClaimType: model.ClaimGeneral, StandardDays: 60, GracePeriodDays: 3,
		BusinessDaysOnly: false, UrgentThresholdDays: 7, SafeThresholdDays: 14,
	},
}

func configFor(claimType model.ClaimType) model.PolicyConfig {
	if cfg, ok := defaultConfigs[claimType]; ok {
		return cfg
	}
	return defaultConfigs[model.ClaimGeneral]
}
