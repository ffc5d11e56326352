// Package pathnav resolves FHIR dotted paths — optionally carrying
// where(...) predicates and bracketed array indices — into RFC-6901 JSON
// Pointers against a raw bundle. Navigation never parses the bundle into a
// Go object graph; it walks the original bytes with jsonparser so a
// structurally broken sibling element never prevents navigating to an
// unrelated pointer.
package pathnav

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"

	"github.com/fhirlint/bundlecheck/pkg/predicate"
)

// Resolve walks path against bundle and returns the RFC-6901 JSON Pointer
// it names, or ok=false if any segment can't be resolved. entryIndex, when
// non-nil, binds "Bundle.entry[entryIndex].resource" as the starting node
// regardless of what the first path segment names; when nil and the first
// segment names a resource type, the first matching entry is used.
func Resolve(bundle []byte, path string, entryIndex *int) (pointer string, ok bool) {
	_, ptr, ok := resolveKeys(bundle, path, entryIndex)
	return ptr, ok
}

// ResolveValue walks path exactly as Resolve does, but also decodes and
// returns the JSON value found there — the shape the rule engine needs to
// evaluate a rule body against. A raw JSON scalar decodes to nil/bool/
// float64/string; objects and arrays decode to map[string]any/[]any, the
// same convention the structural walk uses.
func ResolveValue(bundle []byte, path string, entryIndex *int) (value any, pointer string, ok bool) {
	keys, ptr, ok := resolveKeys(bundle, path, entryIndex)
	if !ok {
		return nil, "", false
	}
	raw, dataType, _, err := jsonparser.Get(bundle, keys...)
	if err != nil {
		return nil, "", false
	}
	switch dataType {
	case jsonparser.String:
		s, _ := jsonparser.ParseString(raw)
		return s, ptr, true
	case jsonparser.Null:
		return nil, ptr, true
	default:
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, "", false
		}
		return decoded, ptr, true
	}
}

func resolveKeys(bundle []byte, path string, entryIndex *int) (keys []string, pointer string, ok bool) {
	segments := splitSegments(path)
	if len(segments) == 0 {
		return nil, "", false
	}

	var ptr strings.Builder

	if entryIndex != nil {
		idx := strconv.Itoa(*entryIndex)
		keys = append(keys, "entry", "["+idx+"]", "resource")
		ptr.WriteString("/entry/" + idx + "/resource")
		// A bound entryIndex still arrives with a conventional
		// "ResourceType.field..." path (the convention every rule and
		// caller in this module uses); strip the redundant resource-type
		// segment the same way the scanning branch below does, rather
		// than looking for a literal field named after the resource type.
		if looksLikeResourceType(segments[0]) {
			segments = segments[1:]
		}
	} else if looksLikeResourceType(segments[0]) {
		idx, found := findEntryByResourceType(bundle, segments[0])
		if !found {
			return nil, "", false
		}
		idxStr := strconv.Itoa(idx)
		keys = append(keys, "entry", "["+idxStr+"]", "resource")
		ptr.WriteString("/entry/" + idxStr + "/resource")
		segments = segments[1:]
	}

	for _, seg := range segments {
		if strings.HasPrefix(seg, "where(") && strings.HasSuffix(seg, ")") {
			predSrc := seg[len("where(") : len(seg)-1]
			idx, found := resolveWhere(bundle, keys, predSrc)
			if !found {
				return nil, "", false
			}
			idxStr := strconv.Itoa(idx)
			keys = append(keys, "["+idxStr+"]")
			ptr.WriteString("/" + idxStr)
			continue
		}

		name, index, hasIndex := splitIndex(seg)
		if name == "" {
			return nil, "", false
		}
		keys = append(keys, name)
		ptr.WriteString("/" + escapePointerToken(name))
		if hasIndex {
			keys = append(keys, "["+strconv.Itoa(index)+"]")
			ptr.WriteString("/" + strconv.Itoa(index))
		}
	}

	if _, _, _, err := jsonparser.Get(bundle, keys...); err != nil {
		return nil, "", false
	}
	return keys, ptr.String(), true
}

// looksLikeResourceType reports whether seg starts with an uppercase ASCII
// letter, the FHIR convention for resource type names.
func looksLikeResourceType(seg string) bool {
	name, _, _ := splitIndex(seg)
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}

func findEntryByResourceType(bundle []byte, resourceType string) (int, bool) {
	idx := -1
	found := false
	i := 0
	_, _ = jsonparser.ArrayEach(bundle, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if found || dataType != jsonparser.Object {
			i++
			return
		}
		rt, err := jsonparser.GetString(value, "resource", "resourceType")
		if err == nil && rt == resourceType {
			idx = i
			found = true
		}
		i++
	}, "entry")
	return idx, found
}

// resolveWhere filters the array at keys by predSrc, returning the index of
// the first matching element.
func resolveWhere(bundle []byte, keys []string, predSrc string) (int, bool) {
	expr, ok := predicate.Parse(predSrc)
	if !ok {
		return 0, false
	}

	arrayVal, dataType, _, err := jsonparser.Get(bundle, keys...)
	if err != nil || dataType != jsonparser.Array {
		return 0, false
	}

	matchIdx := -1
	i := 0
	_, _ = jsonparser.ArrayEach(arrayVal, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if matchIdx != -1 || dataType != jsonparser.Object {
			i++
			return
		}
		var decoded any
		if err := json.Unmarshal(value, &decoded); err == nil && predicate.Evaluate(expr, decoded) {
			matchIdx = i
		}
		i++
	})
	if matchIdx == -1 {
		return 0, false
	}
	return matchIdx, true
}

// splitSegments splits a dotted path on top-level '.' characters, treating
// the contents of a where(...) call as one opaque segment even though the
// predicate inside may itself contain dots.
func splitSegments(path string) []string {
	var segments []string
	depth := 0
	start := 0
	for i := 0; i < len(path); i++ {
		switch path[i] {
		case '(':
			depth++
		case ')':
			depth--
		case '.':
			if depth == 0 {
				segments = append(segments, path[start:i])
				start = i + 1
			}
		}
	}
	segments = append(segments, path[start:])
	return segments
}

// splitIndex splits "name[3]" into ("name", 3, true), or returns
// (seg, 0, false) when seg carries no bracketed index.
func splitIndex(seg string) (name string, index int, hasIndex bool) {
	open := strings.IndexByte(seg, '[')
	if open < 0 || !strings.HasSuffix(seg, "]") {
		return seg, 0, false
	}
	n, err := strconv.Atoi(seg[open+1 : len(seg)-1])
	if err != nil {
		return "", 0, false
	}
	return seg[:open], n, true
}

func escapePointerToken(tok string) string {
	tok = strings.ReplaceAll(tok, "~", "~0")
	tok = strings.ReplaceAll(tok, "/", "~1")
	return tok
}
