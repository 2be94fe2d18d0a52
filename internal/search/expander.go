package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	openai "github.com/sashabaranov/go-openai"

	"github.com/apidex/apidex/internal/apperrors"
)

// Expander rewrites a query with related terms before the keyword
// leg runs. Implementations must expand from the original query only;
// callers never feed an expanded string back in, so drift cannot
// compound. Errors are treated as fail-open by the engine.
type Expander interface {
	Expand(ctx context.Context, query string) (string, error)
}

// ThesaurusExpander expands queries with a static synonym table.
// It never fails: unknown terms pass through unchanged.
type ThesaurusExpander struct {
	synonyms         map[string][]string
	maxTermsPerToken int
}

// ThesaurusOption configures a ThesaurusExpander.
type ThesaurusOption func(*ThesaurusExpander)

// WithMaxTermsPerToken caps how many synonyms each query token adds.
func WithMaxTermsPerToken(n int) ThesaurusOption {
	return func(e *ThesaurusExpander) {
		e.maxTermsPerToken = n
	}
}

// WithSynonyms merges additional synonym mappings into the table.
func WithSynonyms(extra map[string][]string) ThesaurusOption {
	return func(e *ThesaurusExpander) {
		for k, v := range extra {
			e.synonyms[strings.ToLower(k)] = append(e.synonyms[strings.ToLower(k)], v...)
		}
	}
}

// NewThesaurusExpander creates an expander backed by APISynonyms.
func NewThesaurusExpander(opts ...ThesaurusOption) *ThesaurusExpander {
	e := &ThesaurusExpander{
		synonyms:         make(map[string][]string, len(APISynonyms)),
		maxTermsPerToken: 3,
	}
	for k, v := range APISynonyms {
		e.synonyms[k] = v
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand returns the original terms followed by their synonyms,
// deduplicated case-insensitively. Original terms always come first
// so exact matches keep their BM25 weight.
func (e *ThesaurusExpander) Expand(_ context.Context, query string) (string, error) {
	terms := queryTokens(query)
	if len(terms) == 0 {
		return query, nil
	}

	seen := make(map[string]bool, len(terms))
	expanded := make([]string, 0, len(terms)*2)

	for _, term := range terms {
		lower := strings.ToLower(term)
		if !seen[lower] {
			expanded = append(expanded, term)
			seen[lower] = true
		}
	}

	for _, term := range terms {
		added := 0
		for _, syn := range e.synonyms[strings.ToLower(term)] {
			lower := strings.ToLower(syn)
			if seen[lower] || added >= e.maxTermsPerToken {
				continue
			}
			expanded = append(expanded, syn)
			seen[lower] = true
			added++
		}
	}

	return strings.Join(expanded, " "), nil
}

var _ Expander = (*ThesaurusExpander)(nil)

// LLMExpander asks a chat model for terms related to the query. The
// engine treats any error as fail-open, so a dead provider costs one
// round trip and nothing else.
type LLMExpander struct {
	client   *openai.Client
	model    string
	maxTerms int
}

// NewLLMExpander creates a model-backed expander. Model defaults to
// gpt-4o-mini when empty.
func NewLLMExpander(client *openai.Client, model string, maxTerms int) *LLMExpander {
	if model == "" {
		model = openai.GPT4oMini
	}
	if maxTerms <= 0 {
		maxTerms = 8
	}
	return &LLMExpander{client: client, model: model, maxTerms: maxTerms}
}

const expansionSystemPrompt = `You expand search queries for an API documentation search engine.
Given a query, reply with a JSON array of up to %d single words or short phrases
closely related to the query's intent (synonyms, API terminology, HTTP verbs).
Reply with the JSON array only, no prose.`

// Expand appends model-suggested terms to the original query.
func (e *LLMExpander) Expand(ctx context.Context, query string) (string, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: 0,
		MaxTokens:   128,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(expansionSystemPrompt, e.maxTerms)},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
	})
	if err != nil {
		return query, apperrors.New(apperrors.ErrCodeExpansionProvider, "query expansion failed", err)
	}
	if len(resp.Choices) == 0 {
		return query, apperrors.New(apperrors.ErrCodeExpansionProvider, "query expansion returned no choices", nil)
	}

	terms, err := parseTermList(resp.Choices[0].Message.Content)
	if err != nil {
		return query, apperrors.New(apperrors.ErrCodeExpansionProvider, "query expansion returned unparseable output", err)
	}

	seen := make(map[string]bool)
	for _, t := range queryTokens(query) {
		seen[strings.ToLower(t)] = true
	}

	expanded := []string{query}
	added := 0
	for _, term := range terms {
		term = strings.TrimSpace(term)
		lower := strings.ToLower(term)
		if term == "" || seen[lower] || added >= e.maxTerms {
			continue
		}
		expanded = append(expanded, term)
		seen[lower] = true
		added++
	}

	return strings.Join(expanded, " "), nil
}

var _ Expander = (*LLMExpander)(nil)

// parseTermList decodes a JSON string array, tolerating markdown code
// fences around it.
func parseTermList(content string) ([]string, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var terms []string
	if err := json.Unmarshal([]byte(content), &terms); err != nil {
		return nil, err
	}
	return terms, nil
}

// queryTokens splits a query on non-alphanumeric boundaries, keeping
// underscores inside identifiers.
func queryTokens(query string) []string {
	var tokens []string
	var current strings.Builder
	for _, r := range query {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			current.WriteRune(r)
		} else if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}
