package rules

import (
	"fmt"

	"github.com/fhirlint/bundlecheck/pkg/pathnav"
	"github.com/fhirlint/bundlecheck/pkg/verror"
)

// Engine evaluates a loaded rule set against a decoded bundle.
type Engine struct{}

// New returns a ready-to-use Engine. The engine carries no state of its own;
// every call to Evaluate is independent.
func New() *Engine { return &Engine{} }

// Evaluate runs every rule against raw (the original bundle bytes, which
// pathnav navigates) and decoded (the same bundle, already unmarshalled,
// used to enumerate entries for selection, to supply the whole resource for
// a rule with an empty field_path, and to look up Reference targets). Rules
// are independent and
// non-short-circuiting: one rule's failure never prevents another from
// running.
func (e *Engine) Evaluate(raw []byte, decoded map[string]any, ruleSet []Rule) *verror.Result {
	result := verror.NewResult()
	entries, _ := decoded["entry"].([]any)

	for _, rule := range ruleSet {
		indices := matchingEntryIndices(entries, rule)
		if rule.Type == TypeAggregate {
			evaluateAggregate(raw, entries, rule, indices, result)
			continue
		}
		for _, idx := range indices {
			e.evaluateInstance(raw, entries, idx, rule, result)
		}
	}
	return result
}

// resourceRoot returns the resource object at entries[entryIndex] itself,
// for rules (CustomFHIRPath, chiefly) whose field_path is empty and whose
// expression is meant to be evaluated against the whole resource rather
// than one of its fields.
func resourceRoot(entries []any, entryIndex int) (any, string, bool) {
	if entryIndex < 0 || entryIndex >= len(entries) {
		return nil, "", false
	}
	entry, ok := entries[entryIndex].(map[string]any)
	if !ok {
		return nil, "", false
	}
	resource, ok := entry["resource"].(map[string]any)
	if !ok {
		return nil, "", false
	}
	return resource, fmt.Sprintf("/entry/%d/resource", entryIndex), true
}

// matchingEntryIndices selects the bundle entry indices a rule applies to:
// first by resource type (a rule with no ResourceType matches every entry),
// then narrowed by InstanceScope.
func matchingEntryIndices(entries []any, rule Rule) []int {
	var out []int
	for i, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		resource, _ := entry["resource"].(map[string]any)
		if rule.ResourceType != "" {
			rt, _ := resource["resourceType"].(string)
			if rt != rule.ResourceType {
				continue
			}
		}
		if !rule.InstanceScope.includes(i) {
			continue
		}
		out = append(out, i)
	}
	return out
}

// evaluateInstance runs rule against one selected entry: extract the field
// value via pathnav, then dispatch to the type-specific check. Extraction
// failure is itself meaningful — Required treats a missing field as the
// violation it's checking for, every other rule type treats it as nothing
// to evaluate (the field simply isn't present, which is not this rule's
// concern unless the rule is the one asking for presence).
func (e *Engine) evaluateInstance(raw []byte, entries []any, entryIndex int, rule Rule, result *verror.Result) {
	var value any
	var pointer string
	var found bool

	if rule.FieldPath == "" {
		value, pointer, found = resourceRoot(entries, entryIndex)
	} else {
		value, pointer, found = pathnav.ResolveValue(raw, rule.FieldPath, &entryIndex)
	}

	if rule.Type == TypeRequired {
		checkRequired(found, value, pointer, entryIndex, rule, result)
		return
	}

	if !found {
		return
	}

	switch rule.Type {
	case TypeFixedValue:
		checkFixedValue(value, pointer, entryIndex, rule, result)
	case TypeAllowedValues:
		checkAllowedValues(value, pointer, entryIndex, rule, result)
	case TypeRegex:
		checkRegex(value, pointer, entryIndex, rule, result)
	case TypeArrayLength:
		checkArrayLength(value, pointer, entryIndex, rule, result)
	case TypeReference:
		checkReference(entries, value, pointer, entryIndex, rule, result)
	case TypeCustomFHIRPath:
		checkCustomFHIRPath(value, pointer, entryIndex, rule, result)
	case TypeQuestionAnswer:
		checkQuestionAnswer(value, pointer, entryIndex, rule, result)
	}
}

// errorBuilder is the single ErrorBuilder (§4.8) instance every rule check
// in this package funnels its findings through, replacing the ad hoc
// struct literal construction the engine used before.
var errorBuilder = verror.NewBuilder()

// emit builds and appends one ValidationError from the rule's own severity
// and error_code, the coordinates evaluateInstance resolved, and an optional
// details bag describing the specific failure.
func emit(result *verror.Result, source verror.Source, rule Rule, pointer string, entryIndex int, details verror.Details) {
	result.Add(errorBuilder.Build(source, rule.Severity, rule.ErrorCode,
		verror.WithPath(rule.FieldPath),
		verror.WithJSONPointer(pointer),
		verror.WithRuleID(rule.ID),
		verror.WithEntryIndex(entryIndex),
		verror.WithDetails(details),
	))
}
