package embed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/apidex/apidex/internal/apperrors"
	"github.com/apidex/apidex/internal/resilience"
)

// OpenAIEmbedder generates embeddings through any OpenAI-compatible
// embeddings endpoint (OpenAI, local gateways, vLLM).
type OpenAIEmbedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	batchSize  int
	breaker    *resilience.Breaker
	retry      resilience.RetryConfig

	mu     sync.RWMutex
	closed bool
}

// OpenAIConfig holds the embedding provider settings.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	BatchSize  int
}

// NewOpenAIEmbedder creates an OpenAI-compatible embedding provider.
// The API key falls back to OPENAI_API_KEY when unset.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, apperrors.New(apperrors.ErrCodeEmbeddingUnavailable,
			"no API key configured for embedding provider", nil)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}

	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		batchSize:  batchSize,
		breaker:    resilience.NewBreaker("embeddings"),
		retry:      resilience.DefaultRetryConfig(),
	}, nil
}

// Embed generates an embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts, splitting the input
// into provider-sized batches.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		req := openai.EmbeddingRequest{
			Input:          texts[start:end],
			Model:          e.model,
			EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		}
		if e.dimensions > 0 {
			req.Dimensions = e.dimensions
		}

		// Transient faults are retried; a dead provider trips the
		// breaker so later requests degrade without waiting out a
		// timeout.
		resp, err := resilience.RetryWithResult(ctx, e.retry, func() (openai.EmbeddingResponse, error) {
			return resilience.Do(e.breaker, func() (openai.EmbeddingResponse, error) {
				return e.client.CreateEmbeddings(ctx, req)
			})
		})
		if err != nil {
			return nil, parseAPIError(err)
		}
		if len(resp.Data) != end-start {
			return nil, apperrors.New(apperrors.ErrCodeEmbeddingUnavailable,
				fmt.Sprintf("provider returned %d embeddings for %d inputs", len(resp.Data), end-start), nil)
		}

		for _, d := range resp.Data {
			results = append(results, normalizeVector(d.Embedding))
		}
	}

	return results, nil
}

// parseAPIError extracts a human-readable error from the API response,
// coded as an embedding availability failure.
func parseAPIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, resilience.ErrOpen) {
		return apperrors.New(apperrors.ErrCodeEmbeddingUnavailable,
			"embedding provider circuit open", err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return apperrors.New(apperrors.ErrCodeEmbeddingUnavailable,
			fmt.Sprintf("embedding API error %d: %s", reqErr.HTTPStatusCode, string(reqErr.Body)), err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apperrors.New(apperrors.ErrCodeEmbeddingUnavailable,
			fmt.Sprintf("embedding API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message), err)
	}

	return apperrors.New(apperrors.ErrCodeEmbeddingUnavailable, "embedding request failed", err)
}

// Dimensions returns the configured embedding dimension, or 0 when the
// provider default is used.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string {
	return string(e.model)
}

// Available checks if the provider responds via ListModels (free endpoint).
func (e *OpenAIEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return false
	}
	e.mu.RUnlock()

	_, err := e.client.ListModels(ctx)
	return err == nil
}

// Close releases resources.
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
