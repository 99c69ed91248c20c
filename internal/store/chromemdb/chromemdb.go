// Package chromemdb backs the tenant store with an embedded chromem-go
// database. Each tenant is one chromem collection named
// "<class>__<tenant>"; the class itself is a marker collection that
// holds no documents. Similarity is cosine.
package chromemdb

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"

	"manual-rag/internal/errs"
	"manual-rag/internal/helper"
	"manual-rag/internal/models"
)

const tenantSeparator = "__"

// Store implements store.TenantStore. Safe for concurrent use: the
// local mutex serializes Insert calls so the insertion sequence used
// for tie-breaking stays unique; reads go straight to chromem.
type Store struct {
	db            *chromem.DB
	dim           int
	compress      bool
	encryptionKey string

	mu sync.Mutex
}

type Options struct {
	Path          string
	InMemory      bool
	Compress      bool
	EncryptionKey string
	VectorSize    int
}

func New(opts Options) (*Store, error) {
	if opts.VectorSize <= 0 {
		return nil, fmt.Errorf("%w: vector size must be positive", errs.ErrInvalidInput)
	}
	var db *chromem.DB
	var err error
	if opts.InMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(opts.Path, opts.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem database: %w", err)
		}
	}
	return &Store{
		db:            db,
		dim:           opts.VectorSize,
		compress:      opts.Compress,
		encryptionKey: opts.EncryptionKey,
	}, nil
}

// Export writes every collection to one file, optionally AES-encrypted
// with the configured key. An in-memory store survives restarts this
// way.
func (s *Store) Export(ctx context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("%w: export path must not be empty", errs.ErrInvalidInput)
	}
	if err := s.db.ExportToFile(path, s.compress, s.encryptionKey); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import loads collections from a file written by Export, using the
// same encryption key.
func (s *Store) Import(ctx context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("%w: import path must not be empty", errs.ErrInvalidInput)
	}
	if err := s.db.ImportFromFile(path, s.encryptionKey); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	return nil
}

func validName(name string) error {
	if name == "" || strings.Contains(name, tenantSeparator) {
		return fmt.Errorf("%w: name %q must be non-empty and must not contain %q", errs.ErrInvalidInput, name, tenantSeparator)
	}
	return nil
}

func collectionName(class, tenant string) string {
	return class + tenantSeparator + tenant
}

func (s *Store) CreateClass(ctx context.Context, class string) error {
	if err := validName(class); err != nil {
		return err
	}
	// GetOrCreateCollection makes re-creation a no-op.
	if _, err := s.db.GetOrCreateCollection(class, nil, noEmbedding); err != nil {
		return fmt.Errorf("failed to create class %s: %w", class, err)
	}
	return nil
}

func (s *Store) DeleteClass(ctx context.Context, class string) error {
	if s.db.GetCollection(class, noEmbedding) == nil {
		return fmt.Errorf("%w: class %s", errs.ErrNotFound, class)
	}
	for name := range s.db.ListCollections() {
		if strings.HasPrefix(name, class+tenantSeparator) {
			if err := s.db.DeleteCollection(name); err != nil {
				return fmt.Errorf("failed to delete tenant collection %s: %w", name, err)
			}
		}
	}
	if err := s.db.DeleteCollection(class); err != nil {
		return fmt.Errorf("failed to delete class %s: %w", class, err)
	}
	return nil
}

func (s *Store) AddTenant(ctx context.Context, class, tenant string) error {
	if err := validName(tenant); err != nil {
		return err
	}
	if s.db.GetCollection(class, noEmbedding) == nil {
		return fmt.Errorf("%w: class %s", errs.ErrNotFound, class)
	}
	name := collectionName(class, tenant)
	if s.db.GetCollection(name, noEmbedding) != nil {
		return fmt.Errorf("%w: tenant %s in class %s", errs.ErrConflict, tenant, class)
	}
	if _, err := s.db.CreateCollection(name, map[string]string{"class": class, "tenant": tenant}, noEmbedding); err != nil {
		return fmt.Errorf("failed to add tenant %s: %w", tenant, err)
	}
	return nil
}

func (s *Store) RemoveTenant(ctx context.Context, class, tenant string) error {
	name := collectionName(class, tenant)
	if s.db.GetCollection(name, noEmbedding) == nil {
		return fmt.Errorf("%w: tenant %s in class %s", errs.ErrNotFound, tenant, class)
	}
	if err := s.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("failed to remove tenant %s: %w", tenant, err)
	}
	return nil
}

func (s *Store) Tenants(ctx context.Context, class string) ([]string, error) {
	if s.db.GetCollection(class, noEmbedding) == nil {
		return nil, fmt.Errorf("%w: class %s", errs.ErrNotFound, class)
	}
	var tenants []string
	for name := range s.db.ListCollections() {
		if rest, ok := strings.CutPrefix(name, class+tenantSeparator); ok {
			tenants = append(tenants, rest)
		}
	}
	sort.Strings(tenants)
	return tenants, nil
}

func (s *Store) Insert(ctx context.Context, class, tenant string, recs []models.EmbeddedChunk) error {
	col := s.db.GetCollection(collectionName(class, tenant), noEmbedding)
	if col == nil {
		return fmt.Errorf("%w: tenant %s in class %s", errs.ErrNotFound, tenant, class)
	}
	for _, rec := range recs {
		if len(rec.Embedding) != s.dim {
			return fmt.Errorf("%w: embedding length %d does not match class dimension %d", errs.ErrInvalidInput, len(rec.Embedding), s.dim)
		}
	}

	// The lock stays held through AddDocuments: seq values come from
	// Count(), so a second insert must not read the count until the
	// first one's documents are in.
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := col.Count()
	docs := make([]chromem.Document, len(recs))
	for i, rec := range recs {
		id, err := helper.GenerateUUID()
		if err != nil {
			return err
		}
		docs[i] = chromem.Document{
			ID:        id,
			Content:   rec.Content,
			Embedding: rec.Embedding,
			Metadata: map[string]string{
				"filename":     rec.Filename,
				"page_number":  strconv.Itoa(rec.PageNumber),
				"chunk_type":   string(rec.Type),
				"chunk_number": strconv.Itoa(rec.ChunkID),
				"seq":          strconv.Itoa(seq + i),
			},
		}
	}

	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents to tenant %s: %w", tenant, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, class, tenant string, vector []float32, k int) ([]models.QueryResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", errs.ErrInvalidInput, k)
	}
	if len(vector) != s.dim {
		return nil, fmt.Errorf("%w: query vector length %d does not match class dimension %d", errs.ErrInvalidInput, len(vector), s.dim)
	}
	col := s.db.GetCollection(collectionName(class, tenant), noEmbedding)
	if col == nil {
		return nil, fmt.Errorf("%w: tenant %s in class %s", errs.ErrNotFound, tenant, class)
	}

	// Ask chromem for every stored vector, not just k: its own sort
	// decides which records survive a tie at the k boundary, and that
	// order is not insertion order. The seq sort below needs the full
	// tie group before truncating.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	hits, err := col.QueryEmbedding(ctx, vector, count, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query tenant %s: %w", tenant, err)
	}

	type ranked struct {
		res models.QueryResult
		seq int
	}
	out := make([]ranked, len(hits))
	for i, hit := range hits {
		page, _ := strconv.Atoi(hit.Metadata["page_number"])
		seq, _ := strconv.Atoi(hit.Metadata["seq"])
		out[i] = ranked{
			res: models.QueryResult{
				Content:    hit.Content,
				Type:       models.ChunkType(hit.Metadata["chunk_type"]),
				PageNumber: page,
				Filename:   hit.Metadata["filename"],
				Score:      float64(hit.Similarity),
			},
			seq: seq,
		}
	}
	// chromem leaves equal-similarity ordering unspecified; pin it to
	// insertion order.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].res.Score != out[j].res.Score {
			return out[i].res.Score > out[j].res.Score
		}
		return out[i].seq < out[j].seq
	})

	if len(out) > k {
		out = out[:k]
	}
	results := make([]models.QueryResult, len(out))
	for i, r := range out {
		results[i] = r.res
	}
	return results, nil
}

// noEmbedding is passed where chromem wants an embedding function; all
// documents and queries arrive with vectors already attached.
func noEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("%w: no embedding function configured, vectors must be precomputed", errs.ErrInvalidInput)
}
