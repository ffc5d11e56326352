// Package rules implements the data-driven RuleEngine: a set of author
// configured Rule records, each selecting entries by resource type and
// instance scope, extracting a field value via pkg/pathnav, and evaluating
// it against the rule's type-specific body.
package rules

import (
	"errors"

	"github.com/fhirlint/bundlecheck/pkg/verror"
)

var (
	errUserHintTooLong        = errors.New("user_hint exceeds 60 unicode scalar values")
	errUserHintTerminalPeriod = errors.New("user_hint must not end in a single '.'")
	errUserHintInteriorPeriod = errors.New("user_hint must not contain an interior '.'")
)

// Type is the closed set of rule bodies the engine understands.
type Type string

const (
	TypeRequired       Type = "Required"
	TypeFixedValue     Type = "FixedValue"
	TypeAllowedValues  Type = "AllowedValues"
	TypeRegex          Type = "Regex"
	TypeArrayLength    Type = "ArrayLength"
	TypeReference      Type = "Reference"
	TypeCustomFHIRPath Type = "CustomFHIRPath"
	TypeQuestionAnswer Type = "QuestionAnswer"
	TypeAggregate      Type = "Aggregate"
)

// InstanceScope selects which entries of ResourceType a rule applies to:
// every matching instance, or a specific indexed subset.
type InstanceScope struct {
	All     bool
	Indices []int
}

// AllInstances is the scope selecting every matching entry.
func AllInstances() InstanceScope { return InstanceScope{All: true} }

// SomeInstances selects only the given entry indices (still filtered by
// ResourceType first).
func SomeInstances(indices ...int) InstanceScope { return InstanceScope{Indices: indices} }

func (s InstanceScope) includes(entryIndex int) bool {
	if s.All {
		return true
	}
	for _, i := range s.Indices {
		if i == entryIndex {
			return true
		}
	}
	return false
}

// Rule is one author-configured check. ErrorCode is mandatory: a rule
// lacking one is rejected at load time by LoadRules, never reaches the
// engine. Params carries the rule-type-specific body, keyed the way each
// check function documents.
type Rule struct {
	ID            string
	Type          Type
	ResourceType  string
	FieldPath     string
	InstanceScope InstanceScope
	Severity      verror.Severity
	ErrorCode     string
	UserHint      string
	Params        map[string]any
}

// LoadRules validates a batch of rule definitions against the data model's
// invariants (§3): error_code mandatory, user_hint shape, type drawn from
// the closed set. Returns the first validation failure as an error; the
// pipeline treats any such failure as InvalidRuleSet and aborts the whole
// request rather than silently dropping the offending rule.
func LoadRules(candidates []Rule) ([]Rule, error) {
	for i := range candidates {
		if err := validateRule(candidates[i]); err != nil {
			return nil, err
		}
	}
	return candidates, nil
}

func validateRule(r Rule) error {
	if r.ErrorCode == "" {
		return &InvalidRuleSetError{RuleID: r.ID, Reason: "error_code is required"}
	}
	if !isKnownType(r.Type) {
		return &InvalidRuleSetError{RuleID: r.ID, Reason: "unknown rule type " + string(r.Type)}
	}
	if err := validateUserHint(r.UserHint); err != nil {
		return &InvalidRuleSetError{RuleID: r.ID, Reason: err.Error()}
	}
	return nil
}

func isKnownType(t Type) bool {
	switch t {
	case TypeRequired, TypeFixedValue, TypeAllowedValues, TypeRegex, TypeArrayLength,
		TypeReference, TypeCustomFHIRPath, TypeQuestionAnswer, TypeAggregate:
		return true
	default:
		return false
	}
}

// validateUserHint enforces the ≤60-Unicode-scalar-value limit and the
// no-interior-terminal-period rule (a trailing "..." is permitted).
func validateUserHint(hint string) error {
	if hint == "" {
		return nil
	}
	runes := []rune(hint)
	if len(runes) > 60 {
		return errUserHintTooLong
	}
	trimmed := hint
	if len(runes) >= 3 && string(runes[len(runes)-3:]) == "..." {
		trimmed = string(runes[:len(runes)-3])
	} else if runes[len(runes)-1] == '.' {
		return errUserHintTerminalPeriod
	}
	for _, r := range trimmed {
		if r == '.' {
			return errUserHintInteriorPeriod
		}
	}
	return nil
}

// InvalidRuleSetError reports a rule definition that violates the data
// model's invariants. The pipeline maps this to the InvalidRuleSet
// response (§4.10 step 3) rather than any per-entry validation error.
type InvalidRuleSetError struct {
	RuleID string
	Reason string
}

func (e *InvalidRuleSetError) Error() string {
	return "invalid rule " + e.RuleID + ": " + e.Reason
}
