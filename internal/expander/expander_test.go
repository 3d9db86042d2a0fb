package expander

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEmptyQuery(t *testing.T) {
	e := New(8)
	assert.Nil(t, e.Expand(""))
	assert.Nil(t, e.Expand("   "))
}

func TestExpandOriginalFirst(t *testing.T) {
	e := New(8)
	out := e.Expand("How do I validate my product idea?")
	require.NotEmpty(t, out)
	assert.Equal(t, "How do I validate my product idea?", out[0])
}

func TestExpandCapRespected(t *testing.T) {
	e := New(3)
	out := e.Expand("How do I validate my product idea and find early customers?")
	assert.LessOrEqual(t, len(out), 3)
}

func TestExpandDeduplicatesCaseInsensitively(t *testing.T) {
	e := New(8)
	out := e.Expand("pricing strategy")
	seen := map[string]struct{}{}
	for _, q := range out {
		key := strings.ToLower(q)
		_, dup := seen[key]
		assert.False(t, dup, "duplicate expansion %q", q)
		seen[key] = struct{}{}
	}
}

func TestExpandSimpleQueryVariants(t *testing.T) {
	e := New(8)
	out := e.Expand("pricing strategy")
	// No synonym term matches and the concept extraction is a no-op, so the
	// set is exactly: original, domain-context, case study, real world.
	assert.Equal(t, []string{
		"pricing strategy",
		"startup pricing strategy",
		"pricing strategy case study",
		"pricing strategy real world example",
	}, out)
}

func TestExpandInjectsSynonym(t *testing.T) {
	e := New(8)
	out := e.Expand("how should founders validate demand?")
	found := false
	for _, q := range out {
		if strings.Contains(q, "validate test") {
			found = true
		}
	}
	assert.True(t, found, "expected synonym variant in %v", out)
}

func TestExpandDecomposesConjunction(t *testing.T) {
	e := New(8)
	out := e.Expand("customer acquisition and retention strategies")
	assert.Contains(t, out, "customer acquisition")
	assert.Contains(t, out, "retention strategies")
}

func TestExpandDecomposesMultipleQuestions(t *testing.T) {
	e := New(8)
	out := e.Expand("Should we raise funding? When is the right time?")
	assert.Contains(t, out, "Should we raise funding?")
	assert.Contains(t, out, "When is the right time?")
}

func TestExpandStripsInterrogativeScaffolding(t *testing.T) {
	e := New(8)
	out := e.Expand("How do I find product market fit?")
	found := false
	for _, q := range out {
		if q == "find product market fit?" {
			found = true
		}
	}
	assert.True(t, found, "expected key-concept variant in %v", out)
}
