package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fadedpez/ebucks/internal/logging"
)

//go:embed sql/*.sql
var embedded embed.FS

// Embedded returns the schema migrations shipped with the binary
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}

// Migration represents a database migration
type Migration struct {
	Version     string
	Description string
	SQL         string
}

// Migrator handles database migrations
type Migrator struct {
	db     *sql.DB
	source fs.FS
	logger *logging.Logger
}

// NewMigrator creates a new migrator reading .sql files from source
func NewMigrator(db *sql.DB, source fs.FS, logger *logging.Logger) *Migrator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Migrator{
		db:     db,
		source: source,
		logger: logger.WithComponent("migrations"),
	}
}

// Initialize creates the migrations table if it doesn't exist
func (m *Migrator) Initialize(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY,
			version TEXT NOT NULL,
			description TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	return err
}

// GetAppliedMigrations returns a map of already applied migrations
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version FROM migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// LoadMigrations loads all migration files from the source
func (m *Migrator) LoadMigrations() ([]Migration, error) {
	return Load(m.source)
}

// Load parses every NNN_description.sql file of source, sorted by version
func Load(source fs.FS) ([]Migration, error) {
	files, err := fs.ReadDir(source, ".")
	if err != nil {
		return nil, err
	}

	var migrations []Migration
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		content, err := fs.ReadFile(source, file.Name())
		if err != nil {
			return nil, err
		}

		// Parse version and description from filename (e.g., "001_create_kv_store.sql")
		parts := strings.SplitN(strings.TrimSuffix(file.Name(), ".sql"), "_", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid migration filename: %s", file.Name())
		}

		migrations = append(migrations, Migration{
			Version:     parts[0],
			Description: strings.ReplaceAll(parts[1], "_", " "),
			SQL:         string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// ApplyMigration applies a single migration
func (m *Migrator) ApplyMigration(ctx context.Context, migration Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		tx.Rollback()
		return fmt.Errorf("error applying migration %s: %w", migration.Version, err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO migrations (version, description) VALUES (?, ?)",
		migration.Version,
		migration.Description,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("error recording migration %s: %w", migration.Version, err)
	}

	return tx.Commit()
}

// MigrateUp applies all pending migrations and returns how many ran
func (m *Migrator) MigrateUp(ctx context.Context) (int, error) {
	if err := m.Initialize(ctx); err != nil {
		return 0, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	migrations, err := m.LoadMigrations()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, migration := range migrations {
		if applied[migration.Version] {
			m.logger.Debug("Migration %s already applied, skipping", migration.Version)
			continue
		}

		m.logger.Info("Applying migration %s: %s", migration.Version, migration.Description)
		if err := m.ApplyMigration(ctx, migration); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}

// CreateMigration writes the next numbered, empty migration file into dir
func CreateMigration(dir, description string) (string, error) {
	var existing []Migration
	if _, err := os.Stat(dir); err == nil {
		existing, err = Load(os.DirFS(dir))
		if err != nil {
			return "", err
		}
	}

	nextVersion := fmt.Sprintf("%03d", len(existing)+1)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	fileName := fmt.Sprintf("%s_%s.sql", nextVersion, strings.ReplaceAll(strings.TrimSpace(description), " ", "_"))
	filePath := filepath.Join(dir, fileName)

	content := fmt.Sprintf("-- Migration: %s\n-- Created: %s\n\n", description, time.Now().Format(time.RFC3339))
	if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
		return "", err
	}

	return filePath, nil
}
