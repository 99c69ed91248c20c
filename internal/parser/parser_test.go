package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manual-rag/internal/config"
	"manual-rag/internal/errs"
	"manual-rag/internal/models"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func chunkConfig(size, overlap int) *config.Config {
	return &config.Config{RAG: config.RAGConfig{ChunkSize: size, ChunkOverlap: overlap}}
}

func TestParseTextChunksAndMetadata(t *testing.T) {
	path := writeFile(t, "notes.txt", strings.Repeat("x", 250))

	chunks, err := Parse(path, chunkConfig(100, 0))
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	for i, c := range chunks {
		assert.Equal(t, models.ChunkTypeBody, c.Type)
		assert.Equal(t, "notes.txt", c.Filename)
		assert.Equal(t, 1, c.PageNumber)
		assert.Equal(t, i+1, c.ChunkID)
	}
	assert.Len(t, chunks[0].Content, 100)
	assert.Len(t, chunks[1].Content, 100)
	assert.Len(t, chunks[2].Content, 50)
}

func TestParseTextPreservesOrder(t *testing.T) {
	path := writeFile(t, "notes.txt", "aaaabbbbcccc")

	chunks, err := Parse(path, chunkConfig(4, 0))
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "aaaa", chunks[0].Content)
	assert.Equal(t, "bbbb", chunks[1].Content)
	assert.Equal(t, "cccc", chunks[2].Content)
}

func TestParseMarkdownRenders(t *testing.T) {
	path := writeFile(t, "readme.md", "# Pump Manual\n\nimpeller clearance is 0.3mm\n")

	chunks, err := Parse(path, chunkConfig(1000, 0))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Contains(t, chunks[0].Content, "impeller clearance is 0.3mm")
	assert.Equal(t, models.ChunkTypeBody, chunks[0].Type)
}

func TestParseUnsupportedExtension(t *testing.T) {
	path := writeFile(t, "image.png", "not a document")

	_, err := Parse(path, nil)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestParseBadChunkConfig(t *testing.T) {
	path := writeFile(t, "notes.txt", "hello")

	_, err := Parse(path, chunkConfig(10, 10))
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestParseEmptyFile(t *testing.T) {
	path := writeFile(t, "empty.txt", "")

	chunks, err := Parse(path, nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
