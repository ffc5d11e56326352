package rules

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRules_RejectsMissingErrorCode(t *testing.T) {
	_, err := LoadRules([]Rule{{ID: "r1", Type: TypeRequired, FieldPath: "Patient.id"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error_code is required")

	var invalidErr *InvalidRuleSetError
	assert.ErrorAs(t, err, &invalidErr)
}

func TestLoadRules_RejectsUnknownType(t *testing.T) {
	_, err := LoadRules([]Rule{{ID: "r1", Type: "Bogus", ErrorCode: "X"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown rule type")
}

func TestLoadRules_RejectsOverlongUserHint(t *testing.T) {
	hint := strings.Repeat("a", 61)
	_, err := LoadRules([]Rule{{ID: "r1", Type: TypeRequired, ErrorCode: "X", UserHint: hint}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "60")
}

func TestLoadRules_RejectsTerminalPeriodUnlessEllipsis(t *testing.T) {
	_, err := LoadRules([]Rule{{ID: "r1", Type: TypeRequired, ErrorCode: "X", UserHint: "missing field."}})
	require.Error(t, err)

	valid, err := LoadRules([]Rule{{ID: "r1", Type: TypeRequired, ErrorCode: "X", UserHint: "value truncated..."}})
	require.NoError(t, err)
	assert.Len(t, valid, 1)
}

func TestLoadRules_RejectsInteriorPeriod(t *testing.T) {
	_, err := LoadRules([]Rule{{ID: "r1", Type: TypeRequired, ErrorCode: "X", UserHint: "e.g. invalid"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interior")
}

func TestLoadRules_AcceptsWellFormedRule(t *testing.T) {
	valid, err := LoadRules([]Rule{{
		ID: "r1", Type: TypeRequired, ResourceType: "Patient",
		FieldPath: "Patient.birthDate", InstanceScope: AllInstances(),
		Severity: "error", ErrorCode: "FIELD_REQUIRED",
	}})
	require.NoError(t, err)
	assert.Len(t, valid, 1)
}

func TestInstanceScope_Includes(t *testing.T) {
	assert.True(t, AllInstances().includes(7))
	scope := SomeInstances(1, 3)
	assert.True(t, scope.includes(1))
	assert.False(t, scope.includes(2))
}
