package store

import (
	"regexp"
	"strings"
	"unicode"
)

// tokenRegex matches alphanumeric sequences (including underscores for initial split).
var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// DefaultMinTokenLength is the minimum token length indexed when none
// is configured.
const DefaultMinTokenLength = 2

// TokenizeDoc splits API documentation text with identifier-aware rules.
// It handles camelCase, PascalCase, snake_case (common in endpoint and
// parameter names) and filters short tokens. All tokens are lowercased.
func TokenizeDoc(text string) []string {
	return TokenizeDocMin(text, DefaultMinTokenLength)
}

// TokenizeDocMin is TokenizeDoc with an explicit minimum token length.
// Values below 1 fall back to DefaultMinTokenLength.
func TokenizeDocMin(text string, minLen int) []string {
	if minLen < 1 {
		minLen = DefaultMinTokenLength
	}

	var tokens []string
	words := tokenRegex.FindAllString(text, -1)
	for _, word := range words {
		for _, t := range SplitIdentifier(word) {
			lower := strings.ToLower(t)
			if len(lower) >= minLen {
				tokens = append(tokens, lower)
			}
		}
	}

	return tokens
}

// SplitIdentifier splits camelCase and snake_case identifiers.
func SplitIdentifier(token string) []string {
	if strings.Contains(token, "_") {
		var result []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				result = append(result, SplitCamelCase(part)...)
			}
		}
		return result
	}

	return SplitCamelCase(token)
}

// SplitCamelCase splits camelCase and PascalCase identifiers.
// Examples:
//   - "getUserById" -> ["get", "User", "By", "Id"]
//   - "HTTPHandler" -> ["HTTP", "Handler"]
func SplitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])

			// Split if previous is lowercase OR next is lowercase (handles acronyms)
			if prevIsLower || nextIsLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}

	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}

// FilterStopWords removes stop words from a token list.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		lower := strings.ToLower(token)
		if _, isStop := stopWords[lower]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// BuildStopWordMap converts a slice of stop words to a map for efficient lookup.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
