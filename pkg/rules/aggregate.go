package rules

import (
	"fmt"

	"github.com/fhirlint/bundlecheck/pkg/pathnav"
	"github.com/fhirlint/bundlecheck/pkg/verror"
)

// evaluateAggregate runs a cross-entry check over every entry indices
// selects: either a count of how many carry a present field_path value
// (mode "count"), or a duplicate-value scan across the field_path values
// they carry (mode "dedupe"). Generalizes the bdl-7 fullUrl-uniqueness
// check from a hardcoded Bundle invariant into a data-driven rule.
func evaluateAggregate(raw []byte, entries []any, rule Rule, indices []int, result *verror.Result) {
	mode, _ := rule.Params["mode"].(string)
	switch mode {
	case "count":
		evaluateAggregateCount(raw, rule, indices, result)
	case "dedupe":
		evaluateAggregateDedupe(raw, rule, indices, result)
	}
}

func evaluateAggregateCount(raw []byte, rule Rule, indices []int, result *verror.Result) {
	expected, ok := intParam(rule.Params, "expectedCount")
	if !ok {
		return
	}
	count := 0
	for _, idx := range indices {
		value, _, found := pathnav.ResolveValue(raw, rule.FieldPath, &idx)
		if found && !isAbsent(value) {
			count++
		}
	}
	if count == expected {
		return
	}
	result.Add(errorBuilder.Build(verror.SourceBusiness, rule.Severity, rule.ErrorCode,
		verror.WithPath(rule.FieldPath),
		verror.WithRuleID(rule.ID),
		verror.WithDetails(verror.Details{
			"expected_count": expected, "actual_count": count,
		}),
	))
}

func evaluateAggregateDedupe(raw []byte, rule Rule, indices []int, result *verror.Result) {
	seen := make(map[string]int, len(indices))
	for _, idx := range indices {
		value, pointer, found := pathnav.ResolveValue(raw, rule.FieldPath, &idx)
		if !found || isAbsent(value) {
			continue
		}
		key := fmt.Sprintf("%v", value)
		if firstIdx, dup := seen[key]; dup {
			emit(result, verror.SourceBusiness, rule, pointer, idx, verror.Details{
				"value": value, "duplicate_of_entry": firstIdx,
			})
			continue
		}
		seen[key] = idx
	}
}
