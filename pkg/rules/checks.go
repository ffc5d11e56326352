package rules

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/fhirlint/bundlecheck/pkg/verror"
)

// checkRequired is the one rule type that cares about extraction failure
// itself: field_path must resolve to a present value. A missing field, a
// null or an empty array is reported with details.isMissing; an empty or
// all-whitespace string is reported with details.isAllEmpty.
func checkRequired(found bool, value any, pointer string, entryIndex int, rule Rule, result *verror.Result) {
	missing := !found || value == nil
	allEmpty := false
	switch t := value.(type) {
	case []any:
		missing = missing || len(t) == 0
	case string:
		allEmpty = strings.TrimSpace(t) == ""
	}
	if !missing && !allEmpty {
		return
	}
	emit(result, verror.SourceBusiness, rule, pointer, entryIndex, verror.Details{
		"isMissing": missing, "isAllEmpty": allEmpty,
	})
}

func isAbsent(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	default:
		return false
	}
}

// checkFixedValue compares the extracted value against params["value"] by
// deep equality, the same subset of semantics the structural validator
// uses for schema-level fixed[x] constraints.
func checkFixedValue(value any, pointer string, entryIndex int, rule Rule, result *verror.Result) {
	want, ok := rule.Params["value"]
	if !ok {
		return
	}
	if reflect.DeepEqual(normalizeNumber(value), normalizeNumber(want)) {
		return
	}
	emit(result, verror.SourceBusiness, rule, pointer, entryIndex, verror.Details{
		"expected": want,
		"actual":   value,
	})
}

// checkAllowedValues enforces params["values"] as a closed membership set.
func checkAllowedValues(value any, pointer string, entryIndex int, rule Rule, result *verror.Result) {
	allowed, ok := rule.Params["values"].([]any)
	if !ok {
		return
	}
	for _, candidate := range allowed {
		if reflect.DeepEqual(normalizeNumber(value), normalizeNumber(candidate)) {
			return
		}
	}
	emit(result, verror.SourceBusiness, rule, pointer, entryIndex, verror.Details{
		"actual": value,
	})
}

// checkRegex matches a string-typed extracted value against params["pattern"].
// Non-string values are not this rule's concern and are silently skipped,
// mirroring the structural validator's "only grammar-check the type you
// understand" stance. A pattern that fails to compile is reported as
// RULE_CONFIGURATION_INVALID instead of the rule's own error_code.
func checkRegex(value any, pointer string, entryIndex int, rule Rule, result *verror.Result) {
	s, ok := value.(string)
	if !ok {
		return
	}
	pattern, ok := rule.Params["pattern"].(string)
	if !ok {
		return
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		result.Add(errorBuilder.Build(verror.SourceBusiness, verror.SeverityError, "RULE_CONFIGURATION_INVALID",
			verror.WithPath(rule.FieldPath),
			verror.WithJSONPointer(pointer),
			verror.WithRuleID(rule.ID),
			verror.WithEntryIndex(entryIndex),
			verror.WithDetails(verror.Details{"pattern": pattern}),
		))
		return
	}
	if re.MatchString(s) {
		return
	}
	emit(result, verror.SourceBusiness, rule, pointer, entryIndex, verror.Details{
		"pattern": pattern,
		"actual":  s,
	})
}

// checkArrayLength enforces params["min"]/params["max"] (either may be
// absent) against an array-typed extracted value. The two bounds can fail
// independently; the variant distinguishes which bound tripped since a
// single rule's error_code covers both directions.
func checkArrayLength(value any, pointer string, entryIndex int, rule Rule, result *verror.Result) {
	arr, ok := value.([]any)
	if !ok {
		return
	}
	n := len(arr)

	if min, ok := intParam(rule.Params, "min"); ok && n < min {
		emit(result, verror.SourceBusiness, rule, pointer, entryIndex, verror.Details{
			"variant": "too_short", "min": min, "actual": n,
		})
	}
	if max, ok := intParam(rule.Params, "max"); ok && n > max {
		emit(result, verror.SourceBusiness, rule, pointer, entryIndex, verror.Details{
			"variant": "too_long", "max": max, "actual": n,
		})
	}
}

func intParam(params map[string]any, key string) (int, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return t, true
	case float64:
		return int(t), true
	default:
		return 0, false
	}
}

// normalizeNumber widens int-family literals to float64 so a rule authored
// with a JSON-decoded param (always float64) compares equal to a Go literal
// used in tests or a programmatically-built rule set.
func normalizeNumber(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return v
	}
}
