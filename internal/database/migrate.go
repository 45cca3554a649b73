package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const migrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		name VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

// Migrate applies every NNN_name.<direction>.sql file in dir, each in its own
// transaction. Up skips files already recorded in schema_migrations; down
// runs newest first and only for recorded files.
func Migrate(ctx context.Context, db *sql.DB, dir, direction string, logger *zap.Logger) (int, error) {
	if direction != "up" && direction != "down" {
		return 0, fmt.Errorf("direction must be up or down, got %q", direction)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	files, err := migrationFiles(dir, direction)
	if err != nil {
		return 0, err
	}

	if _, err := db.ExecContext(ctx, migrationsTable); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return 0, err
	}

	ran := 0
	for _, filename := range files {
		name := migrationName(filename)
		if (direction == "up") == applied[name] {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, filename))
		if err != nil {
			return ran, fmt.Errorf("read migration file %s: %w", filename, err)
		}

		logger.Info("running migration", zap.String("file", filename))
		err = WithTransaction(ctx, db, DefaultTxOptions(), func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, string(content)); err != nil {
				return err
			}
			if direction == "up" {
				_, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name)
			} else {
				_, err = tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE name = $1`, name)
			}
			return err
		})
		if err != nil {
			return ran, fmt.Errorf("execute migration %s: %w", filename, err)
		}
		ran++
	}

	return ran, nil
}

func migrationFiles(dir, direction string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migration directory: %w", err)
	}

	suffix := fmt.Sprintf(".%s.sql", direction)
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)
	if direction == "down" {
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}
	return files, nil
}

// migrationName strips the direction suffix: 001_x.up.sql -> 001_x.
func migrationName(filename string) string {
	name := strings.TrimSuffix(filename, ".sql")
	name = strings.TrimSuffix(name, ".up")
	return strings.TrimSuffix(name, ".down")
}

func appliedMigrations(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan migration name: %w", err)
		}
		applied[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return applied, nil
}
