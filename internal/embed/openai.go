package embed

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// DefaultBatchSize is the maximum number of inputs per embeddings call.
// OpenAI caps a single request at 2048 inputs.
const DefaultBatchSize = 2048

// OpenAIProvider implements Provider using OpenAI's embeddings API
type OpenAIProvider struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	batchSize int
}

// NewOpenAIProvider creates a new OpenAI embedding provider
func NewOpenAIProvider(apiKey, baseURL, model string, batchSize int) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     openai.EmbeddingModel(model),
		batchSize: batchSize,
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Embed embeds all texts, chunking requests at the provider's batch limit.
// Chunk boundaries are invisible to callers: results are accumulated in
// input order before returning.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += p.batchSize {
		end := start + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts[start:end],
			Model: p.model,
		})
		if err != nil {
			return nil, fmt.Errorf("create embeddings: %w", err)
		}

		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", end-start, len(resp.Data))
		}

		// The API does not guarantee response order; Index is authoritative
		chunk := make([][]float32, end-start)
		for _, item := range resp.Data {
			if item.Index < 0 || item.Index >= len(chunk) {
				return nil, fmt.Errorf("embedding index %d out of range for chunk of %d", item.Index, len(chunk))
			}
			chunk[item.Index] = item.Embedding
		}
		vectors = append(vectors, chunk...)
	}

	return vectors, nil
}
