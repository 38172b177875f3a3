package migrations

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEmbeddedMigrationsApply(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	m := NewMigrator(db, Embedded(), nil)

	n, err := m.MigrateUp(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var revision int64
	require.NoError(t, db.QueryRow("SELECT revision FROM kv_meta WHERE id = 1").Scan(&revision))
	assert.Zero(t, revision)

	// second run is a no-op
	n, err = m.MigrateUp(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoadSortsByVersion(t *testing.T) {
	source := fstest.MapFS{
		"002_second.sql": {Data: []byte("SELECT 2;")},
		"001_first.sql":  {Data: []byte("SELECT 1;")},
		"README.md":      {Data: []byte("ignored")},
	}

	migrations, err := Load(source)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, "001", migrations[0].Version)
	assert.Equal(t, "first", migrations[0].Description)
	assert.Equal(t, "002", migrations[1].Version)
}

func TestLoadRejectsBadName(t *testing.T) {
	_, err := Load(fstest.MapFS{"schema.sql": {Data: []byte("")}})
	assert.Error(t, err)
}

func TestFailedMigrationIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	m := NewMigrator(db, fstest.MapFS{
		"001_broken.sql": {Data: []byte("CREATE TABL nope;")},
	}, nil)

	_, err := m.MigrateUp(ctx)
	assert.Error(t, err)

	applied, err := m.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestCreateMigration(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "migrations")

	first, err := CreateMigration(dir, "add audit table")
	require.NoError(t, err)
	assert.Equal(t, "001_add_audit_table.sql", filepath.Base(first))

	second, err := CreateMigration(dir, "add index")
	require.NoError(t, err)
	assert.Equal(t, "002_add_index.sql", filepath.Base(second))

	content, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Contains(t, string(content), "-- Migration: add index")
}
