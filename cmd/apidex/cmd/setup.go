package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	openai "github.com/sashabaranov/go-openai"

	"github.com/apidex/apidex/internal/config"
	"github.com/apidex/apidex/internal/embed"
	"github.com/apidex/apidex/internal/search"
	"github.com/apidex/apidex/internal/store"
)

const vectorFileName = "vectors.hnsw"

// pipeline bundles the engine with the on-disk paths the CLI needs for
// persistence after writes.
type pipeline struct {
	engine     *search.Engine
	vector     *store.HNSWStore
	vectorPath string
}

// openPipeline builds the full engine from configuration. The vector
// store is loaded from disk when a previous index run saved one.
func openPipeline(cfg *config.Config) (*pipeline, error) {
	dataDir := cfg.Paths.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	embedder, err := embed.NewEmbedder(cfg.Embeddings)
	if err != nil {
		return nil, err
	}

	bm25 := store.DefaultBM25Config()
	bm25.MinTokenLength = cfg.BM25.MinTokenLength
	if len(cfg.BM25.StopWords) > 0 {
		bm25.StopWords = cfg.BM25.StopWords
	}

	// An existing index decides its own backend; opening a sqlite index
	// with the bleve backend would silently start an empty index.
	sparseBase := filepath.Join(dataDir, "sparse")
	backend := cfg.BM25.Backend
	if detected := store.DetectSparseBackend(sparseBase); detected != "" && string(detected) != backend {
		slog.Warn("existing sparse index overrides configured backend",
			slog.String("configured", backend),
			slog.String("detected", string(detected)))
		backend = string(detected)
	}
	sparse, err := store.NewSparseIndex(sparseBase, bm25, backend)
	if err != nil {
		return nil, fmt.Errorf("opening sparse index: %w", err)
	}

	vectorPath := filepath.Join(dataDir, vectorFileName)
	vcfg := store.DefaultVectorStoreConfig(embedder.Dimensions())
	vector, err := store.NewHNSWStore(vcfg)
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(vectorPath); statErr == nil {
		if err := vector.Load(vectorPath); err != nil {
			return nil, fmt.Errorf("loading vector index: %w", err)
		}
	}

	docs, err := store.NewSQLiteDocumentStore(filepath.Join(dataDir, "documents.db"))
	if err != nil {
		return nil, fmt.Errorf("opening document store: %w", err)
	}

	opts := []search.EngineOption{
		search.WithFusionAlpha(cfg.Search.FusionAlpha),
		search.WithRRFConstant(cfg.Search.RRFConstant),
		search.WithDiversityLambda(cfg.Search.DiversityLambda),
		search.WithDefaultLimit(cfg.Search.DefaultLimit),
		search.WithMaxLimit(cfg.Search.MaxLimit),
		search.WithOverFetch(cfg.Search.OverFetch),
		search.WithMaxFilterDepth(cfg.Search.MaxFilterDepth),
		search.WithTimeout(cfg.Search.Timeout),
		search.WithLogger(slog.Default()),
	}

	if exp := buildExpander(cfg); exp != nil {
		opts = append(opts, search.WithExpander(exp))
	}
	if rer := buildReranker(cfg); rer != nil {
		opts = append(opts, search.WithReranker(rer))
	}

	engine, err := search.NewEngine(embedder, sparse, vector, docs, opts...)
	if err != nil {
		return nil, err
	}

	return &pipeline{engine: engine, vector: vector, vectorPath: vectorPath}, nil
}

// buildExpander returns nil when no expander can be constructed;
// expansion is then unavailable rather than an error.
func buildExpander(cfg *config.Config) search.Expander {
	switch cfg.Expansion.Strategy {
	case "llm":
		client := openaiClient(cfg)
		if client == nil {
			slog.Warn("llm expansion configured but no API key available, falling back to thesaurus")
			return search.NewThesaurusExpander(search.WithMaxTermsPerToken(cfg.Expansion.MaxTermsPerToken))
		}
		return search.NewLLMExpander(client, cfg.Expansion.Model, 0)
	default:
		return search.NewThesaurusExpander(search.WithMaxTermsPerToken(cfg.Expansion.MaxTermsPerToken))
	}
}

// buildReranker wires the cross-encoder when an API key is available.
func buildReranker(cfg *config.Config) *search.Reranker {
	client := openaiClient(cfg)
	if client == nil {
		return nil
	}
	scorer := search.NewLLMPairScorer(client, cfg.Rerank.Model)
	return search.NewReranker(scorer,
		search.WithRerankTopN(cfg.Rerank.TopN),
		search.WithRerankConcurrency(cfg.Rerank.Concurrency),
		search.WithRerankCacheSize(cfg.Rerank.CacheSize),
	)
}

func openaiClient(cfg *config.Config) *openai.Client {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil
	}
	clientCfg := openai.DefaultConfig(key)
	if cfg.Embeddings.BaseURL != "" {
		clientCfg.BaseURL = cfg.Embeddings.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

// close tears the pipeline down, saving vectors first when dirty is
// set by the caller.
func (p *pipeline) close(saveVectors bool) error {
	if saveVectors {
		if err := p.vector.Save(p.vectorPath); err != nil {
			return fmt.Errorf("saving vector index: %w", err)
		}
	}
	return p.engine.Close()
}
