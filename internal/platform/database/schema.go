package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

const schemaTable = "schema_versions"

// Dialect captures the few SQL differences between the supported engines.
type Dialect struct {
	Name string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
}

var (
	PostgresDialect = Dialect{Name: "postgres", Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) }}
	SQLiteDialect   = Dialect{Name: "sqlite", Placeholder: func(int) string { return "?" }}
)

// EnsureSchema executes the embedded schema files under root in name order,
// each at most once.
func EnsureSchema(ctx context.Context, db *sql.DB, d Dialect, files fs.FS, root string) error {
	if db == nil {
		return fmt.Errorf("sql db is required")
	}

	entries, err := fs.ReadDir(files, root)
	if err != nil {
		return fmt.Errorf("read schema dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	createSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    name TEXT PRIMARY KEY,
    applied_at BIGINT NOT NULL
)`, schemaTable)
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("ensure schema table: %w", err)
	}

	for _, name := range names {
		applied, err := isApplied(ctx, db, d, name)
		if err != nil {
			return fmt.Errorf("check schema %s: %w", name, err)
		}
		if applied {
			continue
		}

		content, err := fs.ReadFile(files, path.Join(root, name))
		if err != nil {
			return fmt.Errorf("read schema %s: %w", name, err)
		}
		up := upSection(string(content))
		if strings.TrimSpace(up) == "" {
			continue
		}

		if err := applyOne(ctx, db, d, name, up); err != nil {
			return err
		}
	}
	return nil
}

func applyOne(ctx context.Context, db *sql.DB, d Dialect, name, up string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction %s: %w", name, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, up); err != nil {
		return fmt.Errorf("exec schema %s: %w", name, err)
	}
	record := fmt.Sprintf("INSERT INTO %s (name, applied_at) VALUES (%s, %s) ON CONFLICT (name) DO NOTHING",
		schemaTable, d.Placeholder(1), d.Placeholder(2))
	if _, err := tx.ExecContext(ctx, record, name, time.Now().UTC().UnixMilli()); err != nil {
		return fmt.Errorf("record schema %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema %s: %w", name, err)
	}
	return nil
}

func isApplied(ctx context.Context, db *sql.DB, d Dialect, name string) (bool, error) {
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE name = %s", schemaTable, d.Placeholder(1))
	if err := db.QueryRowContext(ctx, query, name).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// upSection returns the SQL in the "-- +migrate Up" section, or all of content
// when no markers are present.
func upSection(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, "-- +migrate Down")
	if downIdx == -1 {
		return content[upIdx+len("-- +migrate Up"):]
	}
	return content[upIdx+len("-- +migrate Up") : downIdx]
}
