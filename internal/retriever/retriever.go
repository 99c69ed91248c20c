// Package retriever composes the embedder and the tenant store into
// the query-time pipeline: embed the prompt, fetch the k nearest
// chunks for one tenant, hand the ranked results back untouched.
package retriever

import (
	"context"

	"github.com/tmc/langchaingo/embeddings"

	"manual-rag/internal/embedding"
	"manual-rag/internal/models"
	"manual-rag/internal/store"
)

type Retriever struct {
	embedder embeddings.Embedder
	store    store.TenantStore
}

func New(embedder embeddings.Embedder, st store.TenantStore) *Retriever {
	return &Retriever{embedder: embedder, store: st}
}

// Query returns the store's results unchanged and in order. Failures
// from either dependency propagate as-is; the caller decides whether a
// transient one is worth a retry.
func (r *Retriever) Query(ctx context.Context, prompt string, k int, class, tenant string) ([]models.QueryResult, error) {
	vec, err := embedding.EmbedQuery(ctx, r.embedder, prompt)
	if err != nil {
		return nil, err
	}
	return r.store.Query(ctx, class, tenant, vec, k)
}
