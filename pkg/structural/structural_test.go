package structural

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirlint/bundlecheck/pkg/enumindex"
	"github.com/fhirlint/bundlecheck/pkg/schema"
)

const patientSD = `{
  "resourceType": "StructureDefinition",
  "type": "Patient",
  "snapshot": {
    "element": [
      { "id": "Patient", "path": "Patient", "min": 0, "max": "1" },
      { "id": "Patient.id", "path": "Patient.id", "min": 0, "max": "1", "type": [{"code": "id"}] },
      { "id": "Patient.gender", "path": "Patient.gender", "min": 0, "max": "1",
        "type": [{"code": "code"}],
        "binding": {"strength": "required", "valueSet": "http://hl7.org/fhir/ValueSet/administrative-gender"} },
      { "id": "Patient.birthDate", "path": "Patient.birthDate", "min": 1, "max": "1", "type": [{"code": "date"}] },
      { "id": "Patient.name", "path": "Patient.name", "min": 0, "max": "*", "type": [{"code": "HumanName"}] },
      { "id": "Patient.name.given", "path": "Patient.name.given", "min": 0, "max": "*", "type": [{"code": "string"}] },
      { "id": "Patient.name.family", "path": "Patient.name.family", "min": 0, "max": "1", "type": [{"code": "string"}] }
    ]
  }
}`

const observationSD = `{
  "resourceType": "StructureDefinition",
  "type": "Observation",
  "snapshot": {
    "element": [
      { "id": "Observation", "path": "Observation", "min": 0, "max": "1" },
      { "id": "Observation.status", "path": "Observation.status", "min": 1, "max": "1", "type": [{"code": "code"}] },
      { "id": "Observation.value[x]", "path": "Observation.value[x]", "min": 0, "max": "1",
        "type": [{"code": "string"}, {"code": "Quantity"}, {"code": "boolean"}] }
    ]
  }
}`

func newTestCatalog(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry("4.0.1")
	_, err := reg.LoadFromJSON([]byte(patientSD))
	require.NoError(t, err)
	_, err = reg.LoadFromJSON([]byte(observationSD))
	require.NoError(t, err)
	return reg
}

func decode(t *testing.T, js string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(js), &m))
	return m
}

func TestValidateResource_MissingRequiredField(t *testing.T) {
	cat := newTestCatalog(t)
	v := New(cat, enumindex.New(), "4.0.1", true)

	bundle := decode(t, `{
	  "resourceType": "Bundle", "type": "collection",
	  "entry": [{"resource": {"resourceType": "Patient", "id": "p1"}}]
	}`)

	result := v.ValidateBundle(bundle)
	var found bool
	for _, e := range result.Errors {
		if e.ErrorCode == "REQUIRED_FIELD_MISSING" && e.JSONPointer == "/entry/0/resource/birthDate" {
			found = true
		}
	}
	assert.True(t, found, "expected REQUIRED_FIELD_MISSING for missing birthDate, got: %+v", result.Errors)
}

func TestValidateResource_InvalidID(t *testing.T) {
	cat := newTestCatalog(t)
	v := New(cat, enumindex.New(), "4.0.1", true)

	bundle := decode(t, `{
	  "resourceType": "Bundle", "type": "collection",
	  "entry": [{"resource": {"resourceType": "Patient", "id": "not a valid id!", "birthDate": "1990-01-01"}}]
	}`)

	result := v.ValidateBundle(bundle)
	var found bool
	for _, e := range result.Errors {
		if e.ErrorCode == "FHIR_INVALID_ID_FORMAT" {
			found = true
		}
	}
	assert.True(t, found, "expected FHIR_INVALID_ID_FORMAT, got: %+v", result.Errors)
}

func TestValidateResource_EnumViolation(t *testing.T) {
	cat := newTestCatalog(t)
	idx := enumindex.New()
	idx.Register("4.0.1", "Patient", "gender", []string{"male", "female", "other", "unknown"}, "required")
	v := New(cat, idx, "4.0.1", true)

	bundle := decode(t, `{
	  "resourceType": "Bundle", "type": "collection",
	  "entry": [{"resource": {"resourceType": "Patient", "id": "p1", "birthDate": "1990-01-01", "gender": "martian"}}]
	}`)

	result := v.ValidateBundle(bundle)
	var found bool
	for _, e := range result.Errors {
		if e.ErrorCode == "INVALID_ENUM_VALUE" {
			found = true
			assert.Equal(t, "required", e.Details["binding_strength"])
		}
	}
	assert.True(t, found, "expected INVALID_ENUM_VALUE, got: %+v", result.Errors)
}

func TestValidateResource_ChoiceTypeExclusivity(t *testing.T) {
	cat := newTestCatalog(t)
	v := New(cat, enumindex.New(), "4.0.1", true)

	bundle := decode(t, `{
	  "resourceType": "Bundle", "type": "collection",
	  "entry": [{"resource": {
	    "resourceType": "Observation", "id": "o1", "status": "final",
	    "valueString": "hi", "valueBoolean": true
	  }}]
	}`)

	result := v.ValidateBundle(bundle)
	var found bool
	for _, e := range result.Errors {
		if e.ErrorCode == "FHIR_MULTIPLE_VALUE_X" {
			found = true
		}
	}
	assert.True(t, found, "expected FHIR_MULTIPLE_VALUE_X, got: %+v", result.Errors)
}

func TestValidateResource_NoSpuriousErrorsOnValidResource(t *testing.T) {
	cat := newTestCatalog(t)
	idx := enumindex.New()
	idx.Register("4.0.1", "Patient", "gender", []string{"male", "female", "other", "unknown"}, "required")
	v := New(cat, idx, "4.0.1", true)

	bundle := decode(t, `{
	  "resourceType": "Bundle", "type": "collection",
	  "entry": [{"resource": {
	    "resourceType": "Patient", "id": "p1", "birthDate": "1990-01-01", "gender": "male",
	    "name": [{"given": ["Jane"], "family": "Doe"}]
	  }}]
	}`)

	result := v.ValidateBundle(bundle)
	assert.Empty(t, result.Errors)
}
