// Package postgres backs the tenant store with a pgvector table. All
// records live in one documents table keyed by (class, tenant);
// registered classes and tenants are tracked in their own tables so a
// query against an unknown tenant fails instead of returning nothing.
// Similarity is cosine, via the pgvector <=> operator.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"manual-rag/internal/config"
	"manual-rag/internal/errs"
	"manual-rag/internal/models"
)

type class struct {
	bun.BaseModel `bun:"table:classes,alias:c"`
	Name          string `bun:"name,pk"`
}

type tenant struct {
	bun.BaseModel `bun:"table:tenants,alias:t"`
	Class         string `bun:"class,pk"`
	Name          string `bun:"name,pk"`
}

type document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            int64  `bun:"id,pk,autoincrement"`
	Class         string `bun:"class,notnull"`
	Tenant        string `bun:"tenant,notnull"`
	Filename      string `bun:"filename,notnull"`
	PageNumber    int    `bun:"page_number,notnull"`
	ChunkType     string `bun:"chunk_type,notnull"`
	ChunkNumber   int    `bun:"chunk_number,notnull"`
	Content       string `bun:"content,notnull"`
	Embedding     string `bun:"embedding,notnull"`
}

// Store implements store.TenantStore on Postgres.
type Store struct {
	db  *bun.DB
	dim int
}

// Connect opens the database. A separate key selects the pgdriver
// connector with an explicit password (hosted setups like Supabase);
// otherwise the URL is handed to lib/pq as a plain DSN.
func Connect(cfg *config.DatabaseConfig, vectorSize int) (*Store, error) {
	if vectorSize <= 0 {
		return nil, fmt.Errorf("%w: vector size must be positive", errs.ErrInvalidInput)
	}
	var sqldb *sql.DB
	if cfg.Key != "" {
		sqldb = sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.URL), pgdriver.WithPassword(cfg.Key)))
	} else {
		var err error
		sqldb, err = sql.Open("postgres", cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	}
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return &Store{db: db, dim: vectorSize}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Init creates the extension and tables. Safe to call repeatedly.
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		"CREATE TABLE IF NOT EXISTS classes (name text PRIMARY KEY)",
		"CREATE TABLE IF NOT EXISTS tenants (class text NOT NULL, name text NOT NULL, PRIMARY KEY (class, name))",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS documents (
			id bigserial PRIMARY KEY,
			class text NOT NULL,
			tenant text NOT NULL,
			filename text NOT NULL,
			page_number int NOT NULL,
			chunk_type text NOT NULL,
			chunk_number int NOT NULL,
			content text NOT NULL,
			embedding vector(%d) NOT NULL
		)`, s.dim),
		"CREATE INDEX IF NOT EXISTS documents_class_tenant_idx ON documents (class, tenant)",
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", wrapDBErr(err))
		}
	}
	return nil
}

func (s *Store) CreateClass(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("%w: class name must not be empty", errs.ErrInvalidInput)
	}
	// ON CONFLICT keeps re-creation a no-op.
	_, err := s.db.NewInsert().Model(&class{Name: name}).On("CONFLICT (name) DO NOTHING").Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create class %s: %w", name, wrapDBErr(err))
	}
	return nil
}

// DeleteClass removes the class, its tenants and its documents in a
// single transaction, so a failure part-way leaves no orphans.
func (s *Store) DeleteClass(ctx context.Context, name string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().Model((*class)(nil)).Where("name = ?", name).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete class %s: %w", name, wrapDBErr(err))
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: class %s", errs.ErrNotFound, name)
		}
		if _, err := tx.NewDelete().Model((*tenant)(nil)).Where("class = ?", name).Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete tenants of class %s: %w", name, wrapDBErr(err))
		}
		if _, err := tx.NewDelete().Model((*document)(nil)).Where("class = ?", name).Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete documents of class %s: %w", name, wrapDBErr(err))
		}
		return nil
	})
}

func (s *Store) classExists(ctx context.Context, name string) (bool, error) {
	exists, err := s.db.NewSelect().Model((*class)(nil)).Where("name = ?", name).Exists(ctx)
	if err != nil {
		return false, wrapDBErr(err)
	}
	return exists, nil
}

func (s *Store) tenantExists(ctx context.Context, cls, name string) (bool, error) {
	exists, err := s.db.NewSelect().Model((*tenant)(nil)).
		Where("class = ?", cls).Where("name = ?", name).Exists(ctx)
	if err != nil {
		return false, wrapDBErr(err)
	}
	return exists, nil
}

func (s *Store) AddTenant(ctx context.Context, cls, name string) error {
	if name == "" {
		return fmt.Errorf("%w: tenant name must not be empty", errs.ErrInvalidInput)
	}
	ok, err := s.classExists(ctx, cls)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: class %s", errs.ErrNotFound, cls)
	}
	res, err := s.db.NewInsert().Model(&tenant{Class: cls, Name: name}).
		On("CONFLICT (class, name) DO NOTHING").Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to add tenant %s: %w", name, wrapDBErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: tenant %s in class %s", errs.ErrConflict, name, cls)
	}
	return nil
}

// RemoveTenant drops the tenant registration and its documents
// together; the transaction keeps a half-removed tenant from
// surviving a failure between the two deletes.
func (s *Store) RemoveTenant(ctx context.Context, cls, name string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().Model((*tenant)(nil)).
			Where("class = ?", cls).Where("name = ?", name).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to remove tenant %s: %w", name, wrapDBErr(err))
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: tenant %s in class %s", errs.ErrNotFound, name, cls)
		}
		if _, err := tx.NewDelete().Model((*document)(nil)).
			Where("class = ?", cls).Where("tenant = ?", name).Exec(ctx); err != nil {
			return fmt.Errorf("failed to remove documents of tenant %s: %w", name, wrapDBErr(err))
		}
		return nil
	})
}

func (s *Store) Tenants(ctx context.Context, cls string) ([]string, error) {
	ok, err := s.classExists(ctx, cls)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: class %s", errs.ErrNotFound, cls)
	}
	var names []string
	err = s.db.NewSelect().Model((*tenant)(nil)).Column("name").
		Where("class = ?", cls).Order("name ASC").Scan(ctx, &names)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", wrapDBErr(err))
	}
	return names, nil
}

func (s *Store) Insert(ctx context.Context, cls, tnt string, recs []models.EmbeddedChunk) error {
	ok, err := s.tenantExists(ctx, cls, tnt)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: tenant %s in class %s", errs.ErrNotFound, tnt, cls)
	}
	if len(recs) == 0 {
		return nil
	}
	docs := make([]document, len(recs))
	for i, rec := range recs {
		if len(rec.Embedding) != s.dim {
			return fmt.Errorf("%w: embedding length %d does not match class dimension %d", errs.ErrInvalidInput, len(rec.Embedding), s.dim)
		}
		docs[i] = document{
			Class:       cls,
			Tenant:      tnt,
			Filename:    rec.Filename,
			PageNumber:  rec.PageNumber,
			ChunkType:   string(rec.Type),
			ChunkNumber: rec.ChunkID,
			Content:     rec.Content,
			Embedding:   vectorLiteral(rec.Embedding),
		}
	}
	if _, err := s.db.NewInsert().Model(&docs).Exec(ctx); err != nil {
		return fmt.Errorf("failed to store documents: %w", wrapDBErr(err))
	}
	return nil
}

func (s *Store) Query(ctx context.Context, cls, tnt string, vector []float32, k int) ([]models.QueryResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", errs.ErrInvalidInput, k)
	}
	if len(vector) != s.dim {
		return nil, fmt.Errorf("%w: query vector length %d does not match class dimension %d", errs.ErrInvalidInput, len(vector), s.dim)
	}
	ok, err := s.tenantExists(ctx, cls, tnt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: tenant %s in class %s", errs.ErrNotFound, tnt, cls)
	}

	lit := vectorLiteral(vector)
	var rows []struct {
		Content    string  `bun:"content"`
		ChunkType  string  `bun:"chunk_type"`
		PageNumber int     `bun:"page_number"`
		Filename   string  `bun:"filename"`
		Score      float64 `bun:"score"`
	}
	err = s.db.NewSelect().Model((*document)(nil)).
		Column("content", "chunk_type", "page_number", "filename").
		ColumnExpr("1 - (d.embedding <=> ?::vector) AS score", lit).
		Where("class = ?", cls).Where("tenant = ?", tnt).
		OrderExpr("d.embedding <=> ?::vector ASC, d.id ASC", lit).
		Limit(k).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", wrapDBErr(err))
	}

	results := make([]models.QueryResult, len(rows))
	for i, row := range rows {
		results[i] = models.QueryResult{
			Content:    row.Content,
			Type:       models.ChunkType(row.ChunkType),
			PageNumber: row.PageNumber,
			Filename:   row.Filename,
			Score:      row.Score,
		}
	}
	return results, nil
}

// vectorLiteral renders a pgvector input literal, e.g. [0.1,0.2,0.3].
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// wrapDBErr marks connection-level failures as retryable. Server-side
// errors (constraint or syntax violations) stay as they are.
func wrapDBErr(err error) error {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", errs.ErrTransient, err)
	}
	return err
}
