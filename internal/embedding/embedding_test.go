package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manual-rag/internal/config"
	"manual-rag/internal/errs"
	"manual-rag/internal/models"
)

// fakeEmbedder returns a constant-length vector, or a canned error.
type fakeEmbedder struct {
	dim   int
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		vec, err := f.EmbedQuery(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return make([]float32, f.dim), nil
}

func TestEmbedQueryRejectsEmptyText(t *testing.T) {
	f := &fakeEmbedder{dim: 4}
	_, err := EmbedQuery(context.Background(), f, "   ")
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	assert.Zero(t, f.calls, "no network call for empty text")
}

func TestEmbedQueryFixedLength(t *testing.T) {
	f := &fakeEmbedder{dim: 8}
	ctx := context.Background()

	a, err := EmbedQuery(ctx, f, "some text")
	require.NoError(t, err)
	b, err := EmbedQuery(ctx, f, "some text")
	require.NoError(t, err)
	assert.Len(t, a, 8)
	assert.Len(t, b, 8)
}

func TestEmbedQueryTransientOnFailure(t *testing.T) {
	f := &fakeEmbedder{dim: 4, err: errors.New("connection refused")}
	_, err := EmbedQuery(context.Background(), f, "some text")
	assert.ErrorIs(t, err, errs.ErrTransient)
}

func TestEmbedChunks(t *testing.T) {
	f := &fakeEmbedder{dim: 4}
	chunks := []models.Chunk{
		{Content: "first", Type: models.ChunkTypeBody, PageNumber: 1, Filename: "m.pdf", ChunkID: 1},
		{Content: "second", Type: models.ChunkTypeTable, PageNumber: 2, Filename: "m.pdf", ChunkID: 2},
	}

	embedded, err := EmbedChunks(context.Background(), f, chunks)
	require.NoError(t, err)
	require.Len(t, embedded, 2)
	for i, ec := range embedded {
		assert.Equal(t, chunks[i], ec.Chunk)
		assert.Len(t, ec.Embedding, 4)
	}
}

func TestEmbedChunksEmpty(t *testing.T) {
	f := &fakeEmbedder{dim: 4}
	embedded, err := EmbedChunks(context.Background(), f, nil)
	require.NoError(t, err)
	assert.Nil(t, embedded)
}

func TestNewEmbedderUnknownProvider(t *testing.T) {
	_, err := NewEmbedder(&config.LLMConfig{Provider: "watson"})
	assert.ErrorIs(t, err, errs.ErrInvalidConfig)
}
