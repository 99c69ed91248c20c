// Package store defines the multi-tenant vector index used by the
// pipeline. A class is the top-level collection; tenants are disjoint
// partitions inside it. Every insert and query is scoped to exactly one
// tenant, and records never cross tenants.
package store

import (
	"context"

	"manual-rag/internal/models"
)

// TenantStore is implemented by the chromem and postgres backends.
//
// Semantics shared by all backends:
//   - CreateClass is an idempotent no-op when the class already exists.
//   - AddTenant returns errs.ErrConflict for a duplicate tenant and
//     errs.ErrNotFound when the class is absent.
//   - Insert and Query return errs.ErrNotFound when the tenant was
//     never created, never an empty result.
//   - Query ranks by cosine similarity, best first; k is an upper
//     bound; ties are broken by insertion order. k <= 0 is
//     errs.ErrInvalidInput.
//   - Vectors in one class share the configured length; a mismatch on
//     insert or query is errs.ErrInvalidInput.
type TenantStore interface {
	CreateClass(ctx context.Context, class string) error
	DeleteClass(ctx context.Context, class string) error
	AddTenant(ctx context.Context, class, tenant string) error
	RemoveTenant(ctx context.Context, class, tenant string) error
	Tenants(ctx context.Context, class string) ([]string, error)
	Insert(ctx context.Context, class, tenant string, recs []models.EmbeddedChunk) error
	Query(ctx context.Context, class, tenant string, vector []float32, k int) ([]models.QueryResult, error)
}
