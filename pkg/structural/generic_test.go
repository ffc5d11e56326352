package structural

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirlint/bundlecheck/pkg/enumindex"
	"github.com/fhirlint/bundlecheck/pkg/schema"
	"github.com/fhirlint/bundlecheck/pkg/verror"
)

func decodeMap(t *testing.T, js string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(js), &m))
	return m
}

func newGenericValidator() *Validator {
	return New(schema.NewRegistry("4.0.1"), enumindex.New(), "4.0.1", true)
}

func assertHasCode(t *testing.T, result *verror.Result, code string) {
	t.Helper()
	for _, e := range result.Errors {
		if e.ErrorCode == code {
			return
		}
	}
	t.Fatalf("expected error code %q, got: %+v", code, result.Errors)
}

func TestWalkGeneric_ExtensionMissingURL(t *testing.T) {
	v := newGenericValidator()
	obj := decodeMap(t, `{"extension": [{"valueString": "hi"}]}`)

	result := verror.NewResult()
	v.walkGeneric(obj, cursor{path: "Patient", pointer: "/entry/0/resource", resourceType: "Patient"}, result)

	assertHasCode(t, result, "FHIR_EXTENSION_MISSING_URL")
}

func TestWalkGeneric_ExtensionValueAndNestedMutuallyExclusive(t *testing.T) {
	v := newGenericValidator()
	obj := decodeMap(t, `{"extension": [{"url": "http://example.com/ext", "valueString": "hi", "extension": [{"url": "http://example.com/nested", "valueString": "x"}]}]}`)

	result := verror.NewResult()
	v.walkGeneric(obj, cursor{path: "Patient", pointer: "/entry/0/resource", resourceType: "Patient"}, result)

	assertHasCode(t, result, "FHIR_EXTENSION_INVALID_SHAPE")
}

func TestWalkGeneric_ExtensionValidShapeNoErrors(t *testing.T) {
	v := newGenericValidator()
	obj := decodeMap(t, `{"extension": [{"url": "http://example.com/ext", "valueString": "hi"}]}`)

	result := verror.NewResult()
	v.walkGeneric(obj, cursor{path: "Patient", pointer: "/entry/0/resource", resourceType: "Patient"}, result)

	assert.Empty(t, result.Errors)
}

func TestWalkGeneric_ReferenceInvalidFormat(t *testing.T) {
	v := newGenericValidator()
	obj := decodeMap(t, `{"subject": {"reference": "not a reference"}}`)

	result := verror.NewResult()
	v.walkGeneric(obj, cursor{path: "Observation", pointer: "/entry/0/resource", resourceType: "Observation"}, result)

	assertHasCode(t, result, "FHIR_INVALID_REFERENCE_FORMAT")
}

func TestWalkGeneric_ReferenceValidFormats(t *testing.T) {
	v := newGenericValidator()
	for _, ref := range []string{
		"Patient/123",
		"http://example.com/fhir/Patient/123",
		"urn:uuid:12345678-1234-1234-1234-123456789012",
		"#contained1",
	} {
		obj := decodeMap(t, `{"subject": {"reference": "`+ref+`"}}`)
		result := verror.NewResult()
		v.walkGeneric(obj, cursor{path: "Observation", pointer: "/entry/0/resource", resourceType: "Observation"}, result)
		assert.Empty(t, result.Errors, "reference %q should be well formed", ref)
	}
}

func TestWalkGeneric_ReferenceAndIdentifierMutuallyExclusive(t *testing.T) {
	v := newGenericValidator()
	obj := decodeMap(t, `{"subject": {"reference": "Patient/123", "identifier": {"system": "x", "value": "y"}}}`)

	result := verror.NewResult()
	v.walkGeneric(obj, cursor{path: "Observation", pointer: "/entry/0/resource", resourceType: "Observation"}, result)

	assertHasCode(t, result, "FHIR_REFERENCE_INVALID_COMBINATION")
}
