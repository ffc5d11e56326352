package structural

import (
	"encoding/json"
	"reflect"

	"github.com/fhirlint/bundlecheck/pkg/schema"
	"github.com/fhirlint/bundlecheck/pkg/verror"
)

// validateFixedPattern checks an element's value against its schema's
// fixed[x] (exact match required) or pattern[x] (subset match required)
// constraint, when the schema declares one. Absent of either, this is a
// no-op: most elements carry neither.
func (v *Validator) validateFixedPattern(node *schema.Node, val any, cur cursor, result *verror.Result) {
	if len(node.Fixed) > 0 {
		var want any
		if err := json.Unmarshal(node.Fixed, &want); err == nil && !reflect.DeepEqual(val, want) {
			result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, "FHIR_FIXED_VALUE_MISMATCH",
				verror.WithResourceType(cur.resourceType),
				verror.WithPath(cur.path), verror.WithJSONPointer(cur.pointer),
				verror.WithEntryIndex(cur.entryIndex),
				verror.WithDetails(verror.Details{"expected": want, "actual": val}),
			))
		}
	}

	if len(node.Pattern) > 0 {
		var want any
		if err := json.Unmarshal(node.Pattern, &want); err == nil && !matchesPattern(want, val) {
			result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, "FHIR_PATTERN_MISMATCH",
				verror.WithResourceType(cur.resourceType),
				verror.WithPath(cur.path), verror.WithJSONPointer(cur.pointer),
				verror.WithEntryIndex(cur.entryIndex),
				verror.WithDetails(verror.Details{"pattern": want, "actual": val}),
			))
		}
	}
}

// matchesPattern reports whether actual contains at least the fields (and
// values) pattern specifies. Unlike fixed[x], extra fields in actual that
// pattern doesn't mention are permitted — this is a subset match, applied
// recursively for object-typed patterns. An array-typed pattern matches when
// every pattern element matches some element of actual, in any order.
func matchesPattern(pattern, actual any) bool {
	if patternArr, isArr := pattern.([]any); isArr {
		actualArr, ok := actual.([]any)
		if !ok {
			return false
		}
	next:
		for _, wantElem := range patternArr {
			for _, gotElem := range actualArr {
				if matchesPattern(wantElem, gotElem) {
					continue next
				}
			}
			return false
		}
		return true
	}
	patternObj, ok := pattern.(map[string]any)
	if !ok {
		return reflect.DeepEqual(pattern, actual)
	}
	actualObj, ok := actual.(map[string]any)
	if !ok {
		return false
	}
	for key, wantVal := range patternObj {
		gotVal, present := actualObj[key]
		if !present || !matchesPattern(wantVal, gotVal) {
			return false
		}
	}
	return true
}

// validateSlicing checks only slice membership, and only for a closed
// slicing: every element of arr must carry at least one of the slicing's
// discriminator paths (the value found there is not compared, and per-slice
// min/max are not applied). An element carrying none of them is reported
// under the same code as any other cardinality violation
// since it is, semantically, "this array contains an element its slicing
// doesn't account for". Ordering and the openAtEnd rule variant are not
// enforced — see the design ledger's Open Question decision on slicing.
func (v *Validator) validateSlicing(node *schema.Node, arr []any, cur cursor, result *verror.Result) {
	if node.Slicing == nil || len(node.Slicing.Discriminators) == 0 {
		return
	}
	if node.Slicing.Rules != "closed" {
		return
	}
	for i, elem := range arr {
		obj, ok := elem.(map[string]any)
		if !ok {
			continue
		}
		if !matchesAnyDiscriminator(node.Slicing.Discriminators, obj) {
			result.Add(eb.Build(verror.SourceStructure, verror.SeverityError, "ARRAY_LENGTH_OUT_OF_RANGE",
				verror.WithResourceType(cur.resourceType),
				verror.WithPath(cur.index(i).path), verror.WithJSONPointer(cur.index(i).pointer),
				verror.WithEntryIndex(cur.entryIndex),
				verror.WithDetails(verror.Details{"reason": "element does not match any closed slice discriminator"}),
			))
		}
	}
}

func matchesAnyDiscriminator(discs []schema.Discriminator, obj map[string]any) bool {
	for _, d := range discs {
		if _, present := navigateDot(obj, d.Path); present {
			return true
		}
	}
	return false
}

// navigateDot resolves a simple dotted field path against a decoded JSON
// object, with no predicate or array-index support — discriminator paths
// are always plain field chains.
func navigateDot(obj map[string]any, path string) (any, bool) {
	cur := any(obj)
	for _, seg := range splitDotted(path) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		val, present := m[seg]
		if !present {
			return nil, false
		}
		cur = val
	}
	return cur, true
}

func splitDotted(path string) []string {
	var segs []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			segs = append(segs, path[start:i])
			start = i + 1
		}
	}
	segs = append(segs, path[start:])
	return segs
}
