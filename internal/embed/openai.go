package embed

import (
	"context"
	"os"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	skerrors "github.com/skuseek/skuseek/internal/errors"
)

// OpenAIEmbedder generates embeddings through an OpenAI-compatible API.
type OpenAIEmbedder struct {
	mu         sync.RWMutex
	client     *openai.Client
	model      string
	dimensions int
	batchSize  int
	closed     bool
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// OpenAIConfig configures the OpenAI embedder.
type OpenAIConfig struct {
	// APIKey authenticates requests. Empty falls back to OPENAI_API_KEY.
	APIKey string
	// BaseURL overrides the endpoint for compatible servers. Empty uses
	// the OpenAI default.
	BaseURL string
	// Model is the embedding model name.
	Model string
	// Dimensions requests a specific output dimensionality.
	Dimensions int
	// BatchSize caps texts per request.
	BatchSize int
}

// NewOpenAIEmbedder creates an embedder backed by the OpenAI embeddings API.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, skerrors.New(skerrors.ErrCodeEmbeddingFailed,
			"no API key: set OPENAI_API_KEY or embeddings.api_key", nil)
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      model,
		dimensions: dimensions,
		batchSize:  batchSize,
	}, nil
}

// Embed generates embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts, splitting requests
// at the configured batch size.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, skerrors.New(skerrors.ErrCodeEmbeddingFailed, "embedder is closed", nil)
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:      texts[start:end],
			Model:      openai.EmbeddingModel(e.model),
			Dimensions: e.dimensions,
		})
		if err != nil {
			return nil, skerrors.New(skerrors.ErrCodeEmbeddingFailed, "embedding request failed", err)
		}
		if len(resp.Data) != end-start {
			return nil, skerrors.New(skerrors.ErrCodeEmbeddingFailed,
				"embedding response count mismatch", nil)
		}

		for _, item := range resp.Data {
			results = append(results, item.Embedding)
		}
	}

	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

// Available reports whether the embedder can serve requests.
// A cheap probe embed is used; failures mean unavailable.
func (e *OpenAIEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return false
	}
	_, err := e.Embed(ctx, "ping")
	return err == nil
}

// Close releases resources.
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
