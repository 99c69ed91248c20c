package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manual-rag/internal/errs"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
embed_llm:
  model: nomic-embed-text
  key: test-key
infer_llm:
  model: gpt-4o-mini
  key: test-key
rag:
  vector_size: 768
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, BackendChromem, cfg.Store.Backend)
	assert.Equal(t, "./chromemdb", cfg.Chromem.Path)
	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.Equal(t, "manuals", cfg.RAG.ClassName)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("EMBED_API_KEY", "from-env")
	path := writeConfig(t, `
embed_llm:
  model: text-embedding-3-small
rag:
  vector_size: 1536
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.EmbedLLM.Key)
}

func TestValidateMissingFields(t *testing.T) {
	t.Setenv("EMBED_API_KEY", "")
	t.Setenv("INFER_API_KEY", "")
	tests := []struct {
		name string
		body string
	}{
		{"missing embed model", `
infer_llm:
  model: m
  key: k
rag:
  vector_size: 768
`},
		{"missing embed openai key", `
embed_llm:
  model: text-embedding-3-small
infer_llm:
  model: m
  key: k
rag:
  vector_size: 768
`},
		{"missing infer model", `
embed_llm:
  model: m
  key: k
rag:
  vector_size: 768
`},
		{"missing infer openai key", `
embed_llm:
  model: m
  key: k
infer_llm:
  model: gpt-4o-mini
rag:
  vector_size: 768
`},
		{"missing infer ollama base url", `
embed_llm:
  model: m
  key: k
infer_llm:
  provider: ollama
  model: llama3
rag:
  vector_size: 768
`},
		{"missing database url", `
store:
  backend: postgres
embed_llm:
  model: m
  key: k
infer_llm:
  model: m
  key: k
rag:
  vector_size: 768
`},
		{"unknown backend", `
store:
  backend: pinecone
embed_llm:
  model: m
  key: k
infer_llm:
  model: m
  key: k
rag:
  vector_size: 768
`},
		{"missing vector size", `
embed_llm:
  model: m
  key: k
infer_llm:
  model: m
  key: k
`},
		{"overlap too large", `
embed_llm:
  model: m
  key: k
infer_llm:
  model: m
  key: k
rag:
  vector_size: 768
  chunk_size: 100
  chunk_overlap: 100
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, tt.body))
			require.NoError(t, err)
			assert.ErrorIs(t, cfg.Validate(), errs.ErrInvalidConfig)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
