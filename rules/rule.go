// Package rules implements the Rule Engine: a fixed-order registry of
// independent, pure detectors over the closed model.RuleInput sum
// type. Per spec.md §4.C/§9, a rule is (apply, rule_type, priority);
// shared whitelist/threshold/severity/hash utilities are injected via
// plain function calls rather than inheritance.
package rules

import "github.com/stanleyndaba/clario-detection-engine/model"

// Rule is the contract every detector implements. Apply must be a
// pure function of (input, context): no I/O, no mutation of input,
// and byte-equivalent inputs must produce byte-equivalent output in
// the same order (the determinism invariant, spec.md §8).
type Rule interface {
	RuleType() model.RuleType
	Priority() model.Priority
	Apply(input model.RuleInput, ctx model.RuleContext) []model.Anomaly
}

// Registry is a fixed-order list of rules, built once at process
// start. It is never a global singleton read from inside a rule body
// — callers (the orchestrator) own the instance and pass it down
// explicitly, per spec.md §9's "no module-global state" directive.
type Registry struct {
	rules []Rule
}

// NewRegistry returns a Registry over the given rules, preserving
// call order. Anomaly persistence and SSE emission order mirror this
// registration order, per spec.md §5.
func NewRegistry(rules ...Rule) *Registry {
	return &Registry{rules: rules}
}

// DefaultRegistry returns the registry wired with every rule this
// engine ships, in the fixed order spec.md §4.C lists them.
func DefaultRegistry() *Registry {
	return NewRegistry(
		&LostUnitsRule{},
		&DamagedStockRule{},
		&OverchargedFeesRule{},
		&ClosedCaseAuditor{},
		&DamagedInventoryDetector{},
		&SLABreachDetector{},
		&WarehouseTransferLossDetector{},
	)
}

// Rules returns the registered rules in fixed order.
func (r *Registry) Rules() []Rule {
	return r.rules
}

// ApplyAll runs every registered rule against the same input/context
// and concatenates their anomalies in registration order. Each rule
// is independently recoverable by the caller (see orchestrator) —
// this method itself does not catch panics, since rules are
// guaranteed pure and panic-free by contract; the orchestrator adds
// the recover() boundary required by the RuleBug error kind.
func (r *Registry) ApplyAll(input model.RuleInput, ctx model.RuleContext) []model.Anomaly {
	var out []model.Anomaly
	for _, rule := range r.rules {
		out = append(out, rule.Apply(input, ctx)...)
	}
	return out
}
