// Package ingest runs the ingest-time pipeline: parse a document,
// embed its chunks and load them into one tenant of the vector store.
package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"manual-rag/internal/config"
	"manual-rag/internal/embedding"
	"manual-rag/internal/errs"
	"manual-rag/internal/parser"
	"manual-rag/internal/store"
)

// TenantFromFilename derives the tenant name from the source document,
// e.g. "Pump Manual.pdf" becomes "pump-manual".
func TenantFromFilename(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.ToLower(strings.TrimSpace(stem))
	stem = strings.ReplaceAll(stem, " ", "-")
	for strings.Contains(stem, "__") {
		stem = strings.ReplaceAll(stem, "__", "_")
	}
	return stem
}

// Run ingests one document into the given tenant, creating the class
// and tenant as needed. Re-ingesting an existing tenant replaces its
// records. Returns the number of chunks stored.
func Run(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder, st store.TenantStore, filePath, tenant string) (int, error) {
	if tenant == "" {
		tenant = TenantFromFilename(filePath)
	}

	chunks, err := parser.Parse(filePath, cfg)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		log.Info().Str("file", filePath).Msg("Document produced no chunks")
		return 0, nil
	}

	embedded, err := embedding.EmbedChunks(ctx, embedder, chunks)
	if err != nil {
		return 0, err
	}

	class := cfg.RAG.ClassName
	if err := st.CreateClass(ctx, class); err != nil {
		return 0, err
	}
	if err := st.AddTenant(ctx, class, tenant); err != nil {
		if !errors.Is(err, errs.ErrConflict) {
			return 0, err
		}
		// existing tenant: drop the old records, they are superseded
		if err := st.RemoveTenant(ctx, class, tenant); err != nil {
			return 0, err
		}
		if err := st.AddTenant(ctx, class, tenant); err != nil {
			return 0, err
		}
	}

	if err := st.Insert(ctx, class, tenant, embedded); err != nil {
		return 0, err
	}
	log.Info().Int("chunks", len(embedded)).Str("tenant", tenant).Msg("Stored document")
	return len(embedded), nil
}
