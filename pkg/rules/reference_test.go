package rules

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEntries(t *testing.T, s string) []any {
	t.Helper()
	var entries []any
	require.NoError(t, json.Unmarshal([]byte(s), &entries))
	return entries
}

const refEntries = `[
  {"fullUrl": "urn:uuid:1", "resource": {"resourceType": "Patient", "id": "p1"}},
  {"fullUrl": "urn:uuid:2", "resource": {"resourceType": "Group", "id": "g1"}}
]`

func TestCheckReference_ResolvesByFullURL(t *testing.T) {
	entries := decodeEntries(t, refEntries)
	result := newResult()
	rule := Rule{ID: "r", ErrorCode: "REFERENCE_NOT_FOUND"}
	checkReference(entries, map[string]any{"reference": "urn:uuid:1"}, "/p", 0, rule, result)
	assert.Empty(t, result.Errors)
}

func TestCheckReference_ResolvesByRelativeReference(t *testing.T) {
	entries := decodeEntries(t, refEntries)
	result := newResult()
	rule := Rule{ID: "r", ErrorCode: "REFERENCE_NOT_FOUND"}
	checkReference(entries, map[string]any{"reference": "Patient/p1"}, "/p", 0, rule, result)
	assert.Empty(t, result.Errors)
}

func TestCheckReference_NotFoundEmits(t *testing.T) {
	entries := decodeEntries(t, refEntries)
	result := newResult()
	rule := Rule{ID: "r", ErrorCode: "REFERENCE_NOT_FOUND"}
	checkReference(entries, map[string]any{"reference": "Patient/ghost"}, "/p", 0, rule, result)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "not_found", result.Errors[0].Details["variant"])
}

func TestCheckReference_TargetTypeMismatchEmits(t *testing.T) {
	entries := decodeEntries(t, refEntries)
	result := newResult()
	rule := Rule{ID: "r", ErrorCode: "REFERENCE_TARGET_TYPE_MISMATCH", Params: map[string]any{"targetTypes": []any{"Patient"}}}
	checkReference(entries, map[string]any{"reference": "Group/g1"}, "/p", 0, rule, result)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "type_mismatch", result.Errors[0].Details["variant"])
}

func TestCheckReference_ContainedReferenceUnresolved(t *testing.T) {
	entries := decodeEntries(t, refEntries)
	result := newResult()
	rule := Rule{ID: "r", ErrorCode: "REFERENCE_NOT_FOUND"}
	checkReference(entries, map[string]any{"reference": "#contained1"}, "/p", 0, rule, result)
	require.Len(t, result.Errors, 1)
}
