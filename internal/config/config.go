// Package config loads and validates apidex configuration.
//
// Configuration is resolved in priority order:
//  1. Environment variables (APIDEX_*) — highest priority
//  2. Config file (apidex.yaml in the data directory or passed explicitly)
//  3. Built-in defaults
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete apidex configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	BM25       BM25Config       `yaml:"bm25" json:"bm25"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Rerank     RerankConfig     `yaml:"rerank" json:"rerank"`
	Expansion  ExpansionConfig  `yaml:"expansion" json:"expansion"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// PathsConfig configures on-disk index locations.
type PathsConfig struct {
	// DataDir is the root directory for all index files (default: .apidex).
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// SearchConfig configures the retrieval and ranking pipeline.
type SearchConfig struct {
	// DefaultLimit is the default number of results (default: 10).
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`

	// MaxLimit is the maximum allowed results (default: 100).
	MaxLimit int `yaml:"max_limit" json:"max_limit"`

	// FusionAlpha is the dense-leg weight for RRF fusion (0.0-1.0, default: 0.5).
	// alpha=1 ranks by the dense leg alone, alpha=0 by the sparse leg alone.
	FusionAlpha float64 `yaml:"fusion_alpha" json:"fusion_alpha"`

	// RRFConstant is the RRF smoothing parameter k (default: 60).
	// Higher values reduce the impact of rank differences.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// DiversityLambda is the MMR relevance/diversity trade-off (0.0-1.0, default: 0.7).
	// lambda=1 is pure relevance, lambda=0 is pure diversity.
	DiversityLambda float64 `yaml:"diversity_lambda" json:"diversity_lambda"`

	// OverFetch is the candidate over-fetch multiplier applied to each
	// retrieval leg (default: 2; raised automatically when post-filtering).
	OverFetch int `yaml:"over_fetch" json:"over_fetch"`

	// MaxFilterDepth bounds filter expression nesting (default: 32).
	MaxFilterDepth int `yaml:"max_filter_depth" json:"max_filter_depth"`

	// Timeout is the maximum search duration (default: 10s).
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// EnableExpansion turns query expansion on by default.
	EnableExpansion bool `yaml:"enable_expansion" json:"enable_expansion"`

	// EnableRerank turns cross-encoder reranking on by default.
	EnableRerank bool `yaml:"enable_rerank" json:"enable_rerank"`

	// EnableDiversification turns MMR diversification on by default.
	EnableDiversification bool `yaml:"enable_diversification" json:"enable_diversification"`
}

// BM25Config configures the sparse keyword index.
type BM25Config struct {
	// Backend selects the sparse index backend: "bleve" (default) or "sqlite".
	// SQLite FTS5 with WAL mode allows concurrent multi-process access.
	Backend string `yaml:"backend" json:"backend"`

	// MinTokenLength is the minimum token length to index (default: 2).
	MinTokenLength int `yaml:"min_token_length" json:"min_token_length"`

	// StopWords replaces the built-in documentation stop word list
	// when set.
	StopWords []string `yaml:"stop_words,omitempty" json:"stop_words,omitempty"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "openai" (any OpenAI-compatible
	// endpoint) or "static" (deterministic hash embeddings, offline).
	Provider string `yaml:"provider" json:"provider"`

	// Model is the embedding model name.
	Model string `yaml:"model" json:"model"`

	// Dimensions is the embedding vector length (default: 256 for static,
	// provider-reported otherwise).
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// BaseURL overrides the provider endpoint (for local gateways).
	BaseURL string `yaml:"base_url" json:"base_url"`

	// BatchSize is the batch size for embedding requests (default: 32).
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// CacheSize is the LRU cache capacity for query embeddings (default: 10000).
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// RerankConfig configures cross-encoder reranking.
type RerankConfig struct {
	// Model is the scoring model name.
	Model string `yaml:"model" json:"model"`

	// TopN is how many fused candidates are rescored (default: 30).
	TopN int `yaml:"top_n" json:"top_n"`

	// Concurrency bounds parallel scoring calls per request (default: 4).
	Concurrency int `yaml:"concurrency" json:"concurrency"`

	// CacheSize is the LRU capacity for (query, document) scores (default: 10000).
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// ExpansionConfig configures query expansion.
type ExpansionConfig struct {
	// Strategy selects the expander: "thesaurus" (static synonyms, default)
	// or "llm" (model-generated related terms).
	Strategy string `yaml:"strategy" json:"strategy"`

	// Model is the LLM model name when Strategy is "llm".
	Model string `yaml:"model" json:"model"`

	// MaxTermsPerToken caps synonyms added per query term (default: 3).
	MaxTermsPerToken int `yaml:"max_terms_per_token" json:"max_terms_per_token"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: ".apidex",
		},
		Search: SearchConfig{
			DefaultLimit:          10,
			MaxLimit:              100,
			FusionAlpha:           0.5,
			RRFConstant:           60,
			DiversityLambda:       0.7,
			OverFetch:             2,
			MaxFilterDepth:        32,
			Timeout:               10 * time.Second,
			EnableExpansion:       false,
			EnableRerank:          false,
			EnableDiversification: false,
		},
		BM25: BM25Config{
			Backend:        "bleve",
			MinTokenLength: 2,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "static",
			Model:      "static-hash",
			Dimensions: 256,
			BatchSize:  32,
			CacheSize:  10000,
		},
		Rerank: RerankConfig{
			Model:       "gpt-4o-mini",
			TopN:        30,
			Concurrency: 4,
			CacheSize:   10000,
		},
		Expansion: ExpansionConfig{
			Strategy:         "thesaurus",
			MaxTermsPerToken: 3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the given path, falling back to defaults
// for unset fields, then applies environment overrides and validates.
// A missing file is not an error: defaults plus env overrides are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies APIDEX_* environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("APIDEX_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("APIDEX_FUSION_ALPHA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.FusionAlpha = f
		}
	}
	if v := os.Getenv("APIDEX_RRF_CONSTANT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.RRFConstant = n
		}
	}
	if v := os.Getenv("APIDEX_DIVERSITY_LAMBDA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.DiversityLambda = f
		}
	}
	if v := os.Getenv("APIDEX_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("APIDEX_EMBEDDINGS_BASE_URL"); v != "" {
		c.Embeddings.BaseURL = v
	}
	if v := os.Getenv("APIDEX_BM25_BACKEND"); v != "" {
		c.BM25.Backend = v
	}
	if v := os.Getenv("APIDEX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Search.FusionAlpha < 0 || c.Search.FusionAlpha > 1 {
		return fmt.Errorf("search.fusion_alpha must be in [0,1], got %v", c.Search.FusionAlpha)
	}
	if c.Search.DiversityLambda < 0 || c.Search.DiversityLambda > 1 {
		return fmt.Errorf("search.diversity_lambda must be in [0,1], got %v", c.Search.DiversityLambda)
	}
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search.default_limit must be positive, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search.max_limit (%d) must be >= default_limit (%d)",
			c.Search.MaxLimit, c.Search.DefaultLimit)
	}
	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("search.rrf_constant must be positive, got %d", c.Search.RRFConstant)
	}
	if c.Search.MaxFilterDepth <= 0 {
		return fmt.Errorf("search.max_filter_depth must be positive, got %d", c.Search.MaxFilterDepth)
	}
	if c.BM25.MinTokenLength < 1 {
		return fmt.Errorf("bm25.min_token_length must be at least 1, got %d", c.BM25.MinTokenLength)
	}
	switch c.BM25.Backend {
	case "bleve", "sqlite":
	default:
		return fmt.Errorf("bm25.backend must be \"bleve\" or \"sqlite\", got %q", c.BM25.Backend)
	}
	switch c.Embeddings.Provider {
	case "openai", "static":
	default:
		return fmt.Errorf("embeddings.provider must be \"openai\" or \"static\", got %q", c.Embeddings.Provider)
	}
	if c.Rerank.TopN <= 0 {
		return fmt.Errorf("rerank.top_n must be positive, got %d", c.Rerank.TopN)
	}
	if c.Rerank.Concurrency <= 0 {
		return fmt.Errorf("rerank.concurrency must be positive, got %d", c.Rerank.Concurrency)
	}
	return nil
}

// Save writes the configuration to the given path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
