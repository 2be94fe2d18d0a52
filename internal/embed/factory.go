package embed

import (
	"fmt"
	"strings"

	"github.com/apidex/apidex/internal/config"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderOpenAI uses an OpenAI-compatible embeddings endpoint
	ProviderOpenAI ProviderType = "openai"

	// ProviderStatic uses hash-based embeddings (offline, deterministic)
	ProviderStatic ProviderType = "static"
)

// NewEmbedder creates an embedder from configuration, wrapped with an
// LRU cache. Provider selection does not fall back silently: an openai
// provider without credentials is an error, not a downgrade.
func NewEmbedder(cfg config.EmbeddingsConfig) (Embedder, error) {
	provider, err := ParseProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}

	var embedder Embedder
	switch provider {
	case ProviderOpenAI:
		embedder, err = NewOpenAIEmbedder(OpenAIConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		})
	case ProviderStatic:
		embedder = NewStaticEmbedder()
	}
	if err != nil {
		return nil, err
	}

	return NewCachedEmbedder(embedder, cfg.CacheSize), nil
}

// ParseProvider converts a string to ProviderType. Unknown names are an
// error rather than a silent downgrade to the static provider.
func ParseProvider(s string) (ProviderType, error) {
	switch strings.ToLower(s) {
	case "openai":
		return ProviderOpenAI, nil
	case "static":
		return ProviderStatic, nil
	default:
		return "", fmt.Errorf("unknown embedding provider %q (valid: %s)",
			s, strings.Join(ValidProviders(), ", "))
	}
}

// String returns the string representation of ProviderType
func (p ProviderType) String() string {
	return string(p)
}

// ValidProviders returns all valid provider names
func ValidProviders() []string {
	return []string{
		string(ProviderOpenAI),
		string(ProviderStatic),
	}
}

// IsValidProvider checks if a provider name is valid
func IsValidProvider(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range ValidProviders() {
		if lower == p {
			return true
		}
	}
	return false
}
