package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	"manual-rag/internal/config"
	"manual-rag/internal/errs"
)

// newSQLiteStore builds a Store over an in-memory SQLite database. The
// registry operations (classes, tenants, plain deletes) are portable
// SQL, so they can be exercised without a Postgres server; only the
// pgvector search needs the real thing.
func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	sqldb, err := sql.Open("sqlite", "file::memory:?cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	for _, stmt := range []string{
		"CREATE TABLE classes (name text PRIMARY KEY)",
		"CREATE TABLE tenants (class text NOT NULL, name text NOT NULL, PRIMARY KEY (class, name))",
		`CREATE TABLE documents (
			id integer PRIMARY KEY AUTOINCREMENT,
			class text NOT NULL,
			tenant text NOT NULL,
			filename text NOT NULL,
			page_number int NOT NULL,
			chunk_type text NOT NULL,
			chunk_number int NOT NULL,
			content text NOT NULL,
			embedding text NOT NULL
		)`,
	} {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	return &Store{db: db, dim: 3}
}

func seedClassWithDocuments(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateClass(ctx, "manuals"))
	require.NoError(t, s.AddTenant(ctx, "manuals", "pump-a"))
	_, err := s.db.NewInsert().Model(&document{
		Class: "manuals", Tenant: "pump-a", Filename: "pump-a.pdf",
		PageNumber: 1, ChunkType: "body", ChunkNumber: 1,
		Content: "impeller clearance", Embedding: "[1,0,0]",
	}).Exec(ctx)
	require.NoError(t, err)
}

func countRows(t *testing.T, s *Store, model any) int {
	t.Helper()
	n, err := s.db.NewSelect().Model(model).Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestDeleteClassRemovesTenantsAndDocuments(t *testing.T) {
	s := newSQLiteStore(t)
	seedClassWithDocuments(t, s)
	ctx := context.Background()

	require.NoError(t, s.DeleteClass(ctx, "manuals"))
	assert.Zero(t, countRows(t, s, (*class)(nil)))
	assert.Zero(t, countRows(t, s, (*tenant)(nil)))
	assert.Zero(t, countRows(t, s, (*document)(nil)))

	assert.ErrorIs(t, s.DeleteClass(ctx, "manuals"), errs.ErrNotFound)
}

func TestDeleteClassRollsBackOnFailure(t *testing.T) {
	s := newSQLiteStore(t)
	seedClassWithDocuments(t, s)
	ctx := context.Background()

	// force the last delete inside the transaction to fail
	_, err := s.db.ExecContext(ctx, "DROP TABLE documents")
	require.NoError(t, err)

	require.Error(t, s.DeleteClass(ctx, "manuals"))
	assert.Equal(t, 1, countRows(t, s, (*class)(nil)), "class row must survive the failed delete")
	assert.Equal(t, 1, countRows(t, s, (*tenant)(nil)), "tenant row must survive the failed delete")
}

func TestRemoveTenantRemovesDocuments(t *testing.T) {
	s := newSQLiteStore(t)
	seedClassWithDocuments(t, s)
	ctx := context.Background()

	require.NoError(t, s.RemoveTenant(ctx, "manuals", "pump-a"))
	assert.Zero(t, countRows(t, s, (*tenant)(nil)))
	assert.Zero(t, countRows(t, s, (*document)(nil)))
	assert.Equal(t, 1, countRows(t, s, (*class)(nil)), "class stays registered")

	assert.ErrorIs(t, s.RemoveTenant(ctx, "manuals", "pump-a"), errs.ErrNotFound)
}

func TestRemoveTenantRollsBackOnFailure(t *testing.T) {
	s := newSQLiteStore(t)
	seedClassWithDocuments(t, s)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, "DROP TABLE documents")
	require.NoError(t, err)

	require.Error(t, s.RemoveTenant(ctx, "manuals", "pump-a"))
	assert.Equal(t, 1, countRows(t, s, (*tenant)(nil)), "tenant row must survive the failed delete")
}

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[1,0,0]", vectorLiteral([]float32{1, 0, 0}))
	assert.Equal(t, "[0.5,-0.25]", vectorLiteral([]float32{0.5, -0.25}))
	assert.Equal(t, "[]", vectorLiteral(nil))
}

func TestConnectRejectsBadVectorSize(t *testing.T) {
	_, err := Connect(&config.DatabaseConfig{URL: "postgres://localhost/rag"}, 0)
	require.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestWrapDBErrTransient(t *testing.T) {
	err := wrapDBErr(context.DeadlineExceeded)
	assert.ErrorIs(t, err, errs.ErrTransient)

	plain := errors.New("syntax error")
	assert.Equal(t, plain, wrapDBErr(plain))
}
