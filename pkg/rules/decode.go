package rules

import (
	"encoding/json"
	"fmt"

	"github.com/fhirlint/bundlecheck/pkg/verror"
)

// wireRuleSet mirrors the §6 external rule set format: a version/fhir_version
// envelope around an array of author-authored rule definitions.
type wireRuleSet struct {
	Version     string     `json:"version"`
	FHIRVersion string     `json:"fhir_version"`
	Rules       []wireRule `json:"rules"`
}

type wireRule struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	ResourceType  string          `json:"resource_type"`
	FieldPath     string          `json:"field_path"`
	InstanceScope json.RawMessage `json:"instance_scope"`
	Severity      string          `json:"severity"`
	ErrorCode     string          `json:"error_code"`
	UserHint      string          `json:"user_hint"`
	Params        map[string]any  `json:"params"`
}

// DecodeRuleSet parses the wire rule set format into Rule values ready to
// pass to LoadRules. It only enforces JSON shape; LoadRules enforces the
// data model's own invariants (mandatory error_code, known type, user_hint
// shape) afterward.
func DecodeRuleSet(data []byte) ([]Rule, error) {
	var wire wireRuleSet
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode rule set: %w", err)
	}

	out := make([]Rule, 0, len(wire.Rules))
	for _, wr := range wire.Rules {
		scope, err := decodeInstanceScope(wr.InstanceScope)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", wr.ID, err)
		}
		out = append(out, Rule{
			ID:            wr.ID,
			Type:          Type(wr.Type),
			ResourceType:  wr.ResourceType,
			FieldPath:     wr.FieldPath,
			InstanceScope: scope,
			Severity:      verror.Severity(wr.Severity),
			ErrorCode:     wr.ErrorCode,
			UserHint:      wr.UserHint,
			Params:        wr.Params,
		})
	}
	return out, nil
}

// decodeInstanceScope accepts either the literal string "all" or an object
// {"indices": [...]}, per §6's `instance_scope` union. An absent field
// defaults to "all", the common case for a rule that applies to every
// matching entry.
func decodeInstanceScope(raw json.RawMessage) (InstanceScope, error) {
	if len(raw) == 0 {
		return AllInstances(), nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "all" || asString == "" {
			return AllInstances(), nil
		}
		return InstanceScope{}, fmt.Errorf("instance_scope: unrecognized string %q", asString)
	}

	var asObject struct {
		Indices []int `json:"indices"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil {
		return SomeInstances(asObject.Indices...), nil
	}

	return InstanceScope{}, fmt.Errorf("instance_scope: cannot parse %s", raw)
}
