package rules

import (
	"github.com/fhirlint/bundlecheck/pkg/predicate"
	"github.com/fhirlint/bundlecheck/pkg/verror"
)

// checkCustomFHIRPath evaluates params["expression"] — a predicate-grammar
// expression (Equals/Exists/Empty/And/Or, no negation or arithmetic) —
// against the value field_path resolved to, treating the extracted value as
// the evaluation root for the expression's own sub-paths. A malformed
// expression is a load-time concern, not a per-instance one: LoadRules
// never runs Parse, so an expression that fails to parse here silently
// produces no finding, matching the predicate package's "parse failure is
// a silent cannot-evaluate signal" contract.
func checkCustomFHIRPath(value any, pointer string, entryIndex int, rule Rule, result *verror.Result) {
	src, ok := rule.Params["expression"].(string)
	if !ok {
		return
	}
	expr, ok := predicate.Parse(src)
	if !ok {
		return
	}
	if predicate.Evaluate(expr, value) {
		return
	}
	emit(result, verror.SourceBusiness, rule, pointer, entryIndex, verror.Details{
		"expression": src,
	})
}
