package bundlecheck

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirlint/bundlecheck/pkg/enumindex"
	"github.com/fhirlint/bundlecheck/pkg/schema"
)

func TestEngine_Validate_CleanBundle(t *testing.T) {
	catalog := schema.NewRegistry("R4")
	_, err := catalog.LoadFromJSON([]byte(`{
		"resourceType": "StructureDefinition",
		"type": "Patient",
		"kind": "resource",
		"snapshot": { "element": [
			{ "id": "Patient", "path": "Patient", "min": 0, "max": "1" }
		]}
	}`))
	require.NoError(t, err)

	engine := New(catalog, enumindex.New(), WithEngineVersion("1.2.3"))

	resp, err := engine.Validate(context.Background(), Request{
		BundleJSON:  []byte(`{"resourceType": "Bundle", "type": "collection", "entry": []}`),
		FHIRVersion: "R4",
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Errors)
	assert.Equal(t, "1.2.3", resp.Metadata.EngineVersion)
	assert.Equal(t, "2.0", resp.Metadata.APIVersion)
}

func TestEngine_Validate_InvalidBundleJSON(t *testing.T) {
	engine := New(schema.NewRegistry("R4"), enumindex.New())
	resp, err := engine.Validate(context.Background(), Request{
		BundleJSON:  []byte(`not json`),
		FHIRVersion: "R4",
	})
	require.NoError(t, err)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "INVALID_JSON", resp.Errors[0].ErrorCode)
}
