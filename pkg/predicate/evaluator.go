package predicate

import "strings"

// Evaluate runs expr against node, a decoded JSON value (map[string]any,
// []any, or a scalar — whatever encoding/json produced). It never panics:
// a path that can't be navigated simply fails its check.
func Evaluate(expr Expr, node any) bool {
	switch e := expr.(type) {
	case Equals:
		v, ok := navigate(node, e.Path)
		if !ok {
			return false
		}
		s, ok := v.(string)
		return ok && s == e.Literal
	case Exists:
		v, ok := navigate(node, e.Path)
		return ok && v != nil
	case Empty:
		return isEmpty(node, e.Path)
	case And:
		return Evaluate(e.Left, node) && Evaluate(e.Right, node)
	case Or:
		return Evaluate(e.Left, node) || Evaluate(e.Right, node)
	default:
		return false
	}
}

// navigate walks path segment by segment. When the current value is a
// non-empty array, the first element is chosen before descending further —
// first-match semantics, matching the rest of this validator's navigation.
func navigate(node any, path string) (any, bool) {
	cur := node
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return nil, false
		}
		if arr, ok := cur.([]any); ok {
			if len(arr) == 0 {
				return nil, false
			}
			cur = arr[0]
		}
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func isEmpty(node any, path string) bool {
	v, ok := navigate(node, path)
	if !ok || v == nil {
		return true
	}
	switch val := v.(type) {
	case []any:
		return len(val) == 0
	case string:
		return val == ""
	default:
		return false
	}
}
