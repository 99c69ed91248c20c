// Package embedding turns text into fixed-length vectors through
// langchaingo embedders. The vector length is fixed by the configured
// model; the store enforces it per class on insert.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"manual-rag/internal/config"
	"manual-rag/internal/errs"
	"manual-rag/internal/models"
)

// NewEmbedder builds the embedder selected by the config provider.
func NewEmbedder(llmConfig *config.LLMConfig) (embeddings.Embedder, error) {
	switch llmConfig.Provider {
	case config.ProviderOllama:
		return NewOllamaEmbedder(llmConfig)
	case config.ProviderOpenAI:
		return NewOpenAIEmbedder(llmConfig)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", errs.ErrInvalidConfig, llmConfig.Provider)
	}
}

// NewOpenAIEmbedder targets any OpenAI-compatible endpoint, including
// OpenRouter.
func NewOpenAIEmbedder(llmConfig *config.LLMConfig) (embeddings.Embedder, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithEmbeddingModel(llmConfig.Model),
	}
	if llmConfig.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding LLM: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

func NewOllamaEmbedder(llmConfig *config.LLMConfig) (embeddings.Embedder, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(llmConfig.BaseURL),
		ollama.WithModel(llmConfig.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding LLM: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// EmbedQuery embeds one text. Empty text is rejected before any network
// call; service failures come back as errs.ErrTransient so callers can
// retry with backoff.
func EmbedQuery(ctx context.Context, embedder embeddings.Embedder, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: cannot embed empty text", errs.ErrInvalidInput)
	}
	vec, err := embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding call failed: %v", errs.ErrTransient, err)
	}
	return vec, nil
}

// EmbedChunks embeds parsed chunks one by one. Calls are sequential and
// hold no shared state, so ingest callers may shard the chunk slice and
// run several of these concurrently.
func EmbedChunks(ctx context.Context, embedder embeddings.Embedder, chunks []models.Chunk) ([]models.EmbeddedChunk, error) {
	if len(chunks) == 0 {
		log.Info().Msg("No chunks generated from content")
		return nil, nil
	}

	embedded := make([]models.EmbeddedChunk, 0, len(chunks))
	for _, chunk := range chunks {
		vec, err := EmbedQuery(ctx, embedder, chunk.Content)
		if err != nil {
			return nil, err
		}
		embedded = append(embedded, models.EmbeddedChunk{Chunk: chunk, Embedding: vec})
	}
	return embedded, nil
}
