package enumindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryIndex_AllowedValuesAndBindingStrength(t *testing.T) {
	idx := New()
	idx.Register("R4", "Patient", "gender", []string{"male", "female", "other", "unknown"}, "required")

	values, ok := idx.AllowedValues("R4", "Patient", "gender")
	assert.True(t, ok)
	assert.Equal(t, []string{"male", "female", "other", "unknown"}, values)

	strength, ok := idx.BindingStrength("R4", "Patient", "gender")
	assert.True(t, ok)
	assert.Equal(t, "required", strength)

	_, ok = idx.AllowedValues("R4", "Patient", "maritalStatus")
	assert.False(t, ok)
}

func TestContains(t *testing.T) {
	idx := New()
	idx.Register("R4", "Patient", "gender", []string{"male", "female"}, "required")

	member, indexed := Contains(idx, "R4", "Patient", "gender", "male")
	assert.True(t, indexed)
	assert.True(t, member)

	member, indexed = Contains(idx, "R4", "Patient", "gender", "bogus")
	assert.True(t, indexed)
	assert.False(t, member)

	_, indexed = Contains(idx, "R4", "Patient", "maritalStatus", "M")
	assert.False(t, indexed)
}
