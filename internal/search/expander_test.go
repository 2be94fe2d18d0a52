package search

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThesaurusExpander_AddsSynonyms(t *testing.T) {
	e := NewThesaurusExpander()

	expanded, err := e.Expand(context.Background(), "get users")
	require.NoError(t, err)

	terms := strings.Fields(expanded)
	// Originals come first so exact matches keep their weight.
	assert.Equal(t, "get", terms[0])
	assert.Equal(t, "users", terms[1])
	assert.Contains(t, terms, "fetch")
	assert.Contains(t, terms, "retrieve")
}

func TestThesaurusExpander_UnknownTermsPassThrough(t *testing.T) {
	e := NewThesaurusExpander()

	expanded, err := e.Expand(context.Background(), "frobnicate widget")
	require.NoError(t, err)
	assert.Equal(t, "frobnicate widget", expanded)
}

func TestThesaurusExpander_MaxTermsPerToken(t *testing.T) {
	e := NewThesaurusExpander(WithMaxTermsPerToken(1))

	expanded, err := e.Expand(context.Background(), "delete")
	require.NoError(t, err)
	assert.Equal(t, "delete remove", expanded)
}

func TestThesaurusExpander_Deduplicates(t *testing.T) {
	e := NewThesaurusExpander()

	// "get" and "fetch" list each other as synonyms; neither may
	// appear twice.
	expanded, err := e.Expand(context.Background(), "get fetch")
	require.NoError(t, err)

	seen := map[string]int{}
	for _, term := range strings.Fields(expanded) {
		seen[strings.ToLower(term)]++
	}
	for term, count := range seen {
		assert.Equal(t, 1, count, "term %q duplicated", term)
	}
}

func TestThesaurusExpander_CustomSynonyms(t *testing.T) {
	e := NewThesaurusExpander(WithSynonyms(map[string][]string{
		"widget": {"gadget"},
	}))

	expanded, err := e.Expand(context.Background(), "widget")
	require.NoError(t, err)
	assert.Equal(t, "widget gadget", expanded)
}

func TestThesaurusExpander_EmptyQuery(t *testing.T) {
	e := NewThesaurusExpander()

	expanded, err := e.Expand(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, "   ", expanded)
}

func TestParseTermList(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"plain array", `["fetch", "retrieve"]`, []string{"fetch", "retrieve"}, false},
		{"fenced json", "```json\n[\"fetch\"]\n```", []string{"fetch"}, false},
		{"fenced bare", "```\n[\"fetch\"]\n```", []string{"fetch"}, false},
		{"empty array", `[]`, []string{}, false},
		{"prose", "here are some terms", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTermList(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQueryTokens(t *testing.T) {
	assert.Equal(t, []string{"get", "users"}, queryTokens("get users"))
	assert.Equal(t, []string{"list_users", "v2"}, queryTokens("list_users/v2"))
	assert.Empty(t, queryTokens("  ...  "))
}
