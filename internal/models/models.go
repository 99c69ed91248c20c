package models

// ChunkType tells where a chunk came from: running body text or a table row.
type ChunkType string

const (
	ChunkTypeBody  ChunkType = "body"
	ChunkTypeTable ChunkType = "table"
)

// Chunk represents a parsed chunk with metadata. Immutable once created.
type Chunk struct {
	Content    string
	Type       ChunkType
	PageNumber int
	Filename   string
	ChunkID    int
}

// EmbeddedChunk is a Chunk plus its vector. The vector length is fixed by
// the embedding model in use; the store enforces one length per class.
type EmbeddedChunk struct {
	Chunk
	Embedding []float32
}

// QueryResult is one ranked hit from a tenant query. Score is cosine
// similarity, higher is better, for every store backend.
type QueryResult struct {
	Content    string
	Type       ChunkType
	PageNumber int
	Filename   string
	Score      float64
}

type PromptResponse struct {
	Query   string
	Source  string
	Content string
}
