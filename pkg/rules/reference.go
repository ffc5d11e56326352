package rules

import (
	"strings"

	"github.com/fhirlint/bundlecheck/pkg/verror"
)

// checkReference resolves a FHIR Reference element's target against the
// bundle's own entries and, when params["targetTypes"] is set, checks the
// resolved resource's type against that allow-list. Structural format
// checks (well-formed reference string shape) already happen in
// pkg/structural; this rule is purely about cross-entry resolvability.
func checkReference(entries []any, value any, pointer string, entryIndex int, rule Rule, result *verror.Result) {
	obj, ok := value.(map[string]any)
	if !ok {
		return
	}
	refStr, _ := obj["reference"].(string)
	if refStr == "" {
		return
	}

	target, found := resolveReferenceTarget(entries, refStr)
	if !found {
		emit(result, verror.SourceReference, rule, pointer, entryIndex, verror.Details{
			"variant": "not_found", "reference": refStr,
		})
		return
	}

	allowed, ok := rule.Params["targetTypes"].([]any)
	if !ok || len(allowed) == 0 {
		return
	}
	resourceType, _ := target["resourceType"].(string)
	for _, t := range allowed {
		if s, ok := t.(string); ok && s == resourceType {
			return
		}
	}
	emit(result, verror.SourceReference, rule, pointer, entryIndex, verror.Details{
		"variant": "type_mismatch", "reference": refStr, "actual_type": resourceType,
	})
}

// resolveReferenceTarget finds the entry resource a reference string names:
// a urn:uuid full URL match, or a relative "ResourceType/id" match. A
// contained reference ("#id") has no cross-entry target and is treated as
// unresolved here — it resolves within the owning resource's own contained
// array, which this cross-entry rule does not inspect.
func resolveReferenceTarget(entries []any, refStr string) (map[string]any, bool) {
	if strings.HasPrefix(refStr, "#") {
		return nil, false
	}
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if fullURL, _ := entry["fullUrl"].(string); fullURL != "" && fullURL == refStr {
			if resource, ok := entry["resource"].(map[string]any); ok {
				return resource, true
			}
		}
		resource, ok := entry["resource"].(map[string]any)
		if !ok {
			continue
		}
		rt, _ := resource["resourceType"].(string)
		id, _ := resource["id"].(string)
		if rt != "" && id != "" && rt+"/"+id == refStr {
			return resource, true
		}
	}
	return nil, false
}
