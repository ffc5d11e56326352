package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Equals(t *testing.T) {
	e, ok := Parse("system='http://loinc.org'")
	require.True(t, ok)
	assert.Equal(t, Equals{Path: "system", Literal: "http://loinc.org"}, e)
}

func TestParse_ExistsAndEmpty(t *testing.T) {
	e, ok := Parse("code.coding.exists()")
	require.True(t, ok)
	assert.Equal(t, Exists{Path: "code.coding"}, e)

	e, ok = Parse("telecom.empty()")
	require.True(t, ok)
	assert.Equal(t, Empty{Path: "telecom"}, e)
}

func TestParse_AndOr(t *testing.T) {
	e, ok := Parse("system='s1' and code='c1'")
	require.True(t, ok)
	and, ok := e.(And)
	require.True(t, ok)
	assert.Equal(t, Equals{Path: "system", Literal: "s1"}, and.Left)
	assert.Equal(t, Equals{Path: "code", Literal: "c1"}, and.Right)

	e, ok = Parse("a.exists() or b.empty()")
	require.True(t, ok)
	or, ok := e.(Or)
	require.True(t, ok)
	assert.Equal(t, Exists{Path: "a"}, or.Left)
	assert.Equal(t, Empty{Path: "b"}, or.Right)
}

func TestParse_Grouping(t *testing.T) {
	e, ok := Parse("(a='1' or b='2') and c.exists()")
	require.True(t, ok)
	and, ok := e.(And)
	require.True(t, ok)
	_, ok = and.Left.(Or)
	assert.True(t, ok)
	assert.Equal(t, Exists{Path: "c"}, and.Right)
}

func TestParse_FailsGracefully(t *testing.T) {
	cases := []string{
		"",
		"system=",
		"system='unterminated",
		"and system='x'",
		"system='x' andextra",
		"system='x' garbage",
		"(system='x'",
	}
	for _, c := range cases {
		_, ok := Parse(c)
		assert.False(t, ok, "expected parse failure for %q", c)
	}
}

func TestParse_KeywordBoundary(t *testing.T) {
	// "android" must not be split as "and" + "roid"
	_, ok := Parse("android.exists()")
	assert.True(t, ok)
}
