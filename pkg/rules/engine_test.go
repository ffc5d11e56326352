package rules

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fhirlint/bundlecheck/pkg/verror"
)

const testBundle = `{
  "resourceType": "Bundle",
  "type": "collection",
  "entry": [
    {
      "fullUrl": "urn:uuid:1",
      "resource": {
        "resourceType": "Patient",
        "id": "p1",
        "gender": "female",
        "identifier": [{"system": "urn:oid:1.2", "value": "A1"}],
        "name": [{"given": ["Jane"], "family": "Doe"}]
      }
    },
    {
      "fullUrl": "urn:uuid:2",
      "resource": {
        "resourceType": "Patient",
        "id": "p2",
        "identifier": [{"system": "urn:oid:1.2", "value": "A1"}]
      }
    },
    {
      "fullUrl": "urn:uuid:3",
      "resource": {
        "resourceType": "Observation",
        "id": "o1",
        "subject": {"reference": "Patient/p1"},
        "component": [{"valueString": "hi"}, {"valueString": "there"}]
      }
    },
    {
      "fullUrl": "urn:uuid:4",
      "resource": {
        "resourceType": "Observation",
        "id": "o2",
        "subject": {"reference": "Patient/missing"}
      }
    }
  ]
}`

func decodeBundle(t *testing.T) map[string]any {
	t.Helper()
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(testBundle), &decoded))
	return decoded
}

func findCode(t *testing.T, result *verror.Result, code string) []verror.ValidationError {
	t.Helper()
	var out []verror.ValidationError
	for _, e := range result.Errors {
		if e.ErrorCode == code {
			out = append(out, e)
		}
	}
	return out
}

func TestEvaluate_RequiredMissingField(t *testing.T) {
	rule := Rule{
		ID: "r1", Type: TypeRequired, ResourceType: "Patient",
		FieldPath: "Patient.gender", InstanceScope: AllInstances(),
		Severity: verror.SeverityError, ErrorCode: "FIELD_REQUIRED",
	}
	result := New().Evaluate([]byte(testBundle), decodeBundle(t), []Rule{rule})

	found := findCode(t, result, "FIELD_REQUIRED")
	require.Len(t, found, 1)
	require.NotNil(t, found[0].EntryIndex)
	require.Equal(t, 1, *found[0].EntryIndex)
}

func TestEvaluate_AllowedValuesViolation(t *testing.T) {
	rule := Rule{
		ID: "r1", Type: TypeAllowedValues, ResourceType: "Patient",
		FieldPath: "Patient.gender", InstanceScope: AllInstances(),
		Severity: verror.SeverityError, ErrorCode: "VALUE_NOT_ALLOWED",
		Params: map[string]any{"values": []any{"male", "other"}},
	}
	result := New().Evaluate([]byte(testBundle), decodeBundle(t), []Rule{rule})
	require.Len(t, findCode(t, result, "VALUE_NOT_ALLOWED"), 1)
}

func TestEvaluate_ArrayLengthTooLong(t *testing.T) {
	rule := Rule{
		ID: "r1", Type: TypeArrayLength, ResourceType: "Observation",
		FieldPath: "Observation.component", InstanceScope: AllInstances(),
		Severity: verror.SeverityWarning, ErrorCode: "ARRAY_TOO_LONG",
		Params: map[string]any{"max": 1},
	}
	result := New().Evaluate([]byte(testBundle), decodeBundle(t), []Rule{rule})
	found := findCode(t, result, "ARRAY_TOO_LONG")
	require.Len(t, found, 1)
	require.Equal(t, "too_long", found[0].Details["variant"])
}

func TestEvaluate_ReferenceNotFound(t *testing.T) {
	rule := Rule{
		ID: "r1", Type: TypeReference, ResourceType: "Observation",
		FieldPath: "Observation.subject", InstanceScope: AllInstances(),
		Severity: verror.SeverityError, ErrorCode: "REFERENCE_NOT_FOUND",
	}
	result := New().Evaluate([]byte(testBundle), decodeBundle(t), []Rule{rule})
	found := findCode(t, result, "REFERENCE_NOT_FOUND")
	require.Len(t, found, 1)
	require.NotNil(t, found[0].EntryIndex)
	require.Equal(t, 3, *found[0].EntryIndex)
}

func TestEvaluate_ReferenceTypeMismatch(t *testing.T) {
	rule := Rule{
		ID: "r1", Type: TypeReference, ResourceType: "Observation",
		FieldPath: "Observation.subject", InstanceScope: SomeInstances(2),
		Severity: verror.SeverityError, ErrorCode: "REFERENCE_TARGET_TYPE_MISMATCH",
		Params: map[string]any{"targetTypes": []any{"Group"}},
	}
	result := New().Evaluate([]byte(testBundle), decodeBundle(t), []Rule{rule})
	require.Len(t, findCode(t, result, "REFERENCE_TARGET_TYPE_MISMATCH"), 1)
}

func TestEvaluate_AggregateCountMismatch(t *testing.T) {
	rule := Rule{
		ID: "r1", Type: TypeAggregate, ResourceType: "Patient",
		FieldPath: "Patient.gender", InstanceScope: AllInstances(),
		Severity: verror.SeverityWarning, ErrorCode: "AGGREGATE_COUNT_MISMATCH",
		Params: map[string]any{"mode": "count", "expectedCount": 2},
	}
	result := New().Evaluate([]byte(testBundle), decodeBundle(t), []Rule{rule})
	require.Len(t, findCode(t, result, "AGGREGATE_COUNT_MISMATCH"), 1)
}

func TestEvaluate_AggregateDuplicateValue(t *testing.T) {
	rule := Rule{
		ID: "r1", Type: TypeAggregate, ResourceType: "Patient",
		FieldPath: "Patient.identifier[0].value", InstanceScope: AllInstances(),
		Severity: verror.SeverityError, ErrorCode: "AGGREGATE_DUPLICATE_VALUE",
		Params: map[string]any{"mode": "dedupe"},
	}
	result := New().Evaluate([]byte(testBundle), decodeBundle(t), []Rule{rule})
	found := findCode(t, result, "AGGREGATE_DUPLICATE_VALUE")
	require.Len(t, found, 1)
	require.Equal(t, 1, *found[0].EntryIndex)
}

func TestEvaluate_CustomFHIRPathViolation(t *testing.T) {
	rule := Rule{
		ID: "r1", Type: TypeCustomFHIRPath, ResourceType: "Patient",
		FieldPath: "", InstanceScope: SomeInstances(1),
		Severity: verror.SeverityWarning, ErrorCode: "FHIRPATH_EXPRESSION_FAILED",
		Params: map[string]any{"expression": "name.exists()"},
	}
	result := New().Evaluate([]byte(testBundle), decodeBundle(t), []Rule{rule})
	require.Len(t, findCode(t, result, "FHIRPATH_EXPRESSION_FAILED"), 1)
}

func TestEvaluate_NoMatchingEntriesProducesNoFindings(t *testing.T) {
	rule := Rule{
		ID: "r1", Type: TypeRequired, ResourceType: "Encounter",
		FieldPath: "Encounter.status", InstanceScope: AllInstances(),
		Severity: verror.SeverityError, ErrorCode: "FIELD_REQUIRED",
	}
	result := New().Evaluate([]byte(testBundle), decodeBundle(t), []Rule{rule})
	require.Empty(t, result.Errors)
}
