// Package sqlite persists state store commits in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"brick/internal/state"
	"brick/internal/state/sqlite/migrations"
)

const migrationTable = "schema_migrations"

// pragmas use modernc's _pragma form; they apply to every pooled connection.
// synchronous(FULL) fsyncs each commit so an acknowledged unit survives power loss.
const pragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"

// Store implements state.Persister. Each commit is written in one SQLite
// transaction so a crash never leaves a half-applied unit on disk.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (or creates) the database at path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?" + pragmas
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer: the state store already serializes commits.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Health pings the database.
func (s *Store) Health(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

func (s *Store) Apply(ctx context.Context, changes []state.Change) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	now := time.Now().UTC().UnixMilli()
	for _, c := range changes {
		if c.Value == nil {
			_, err = tx.ExecContext(ctx, `DELETE FROM state_rows WHERE tbl = ? AND row_key = ?`, c.Table, c.Key)
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO state_rows (tbl, row_key, row_value, updated_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (tbl, row_key) DO UPDATE SET
					row_value = excluded.row_value,
					updated_at = excluded.updated_at
			`, c.Table, c.Key, c.Value, now)
		}
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("write %s row: %w", c.Table, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO state_commits (change_count, committed_at) VALUES (?, ?)`,
		len(changes), now,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record commit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context) ([]state.Change, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT tbl, row_key, row_value FROM state_rows ORDER BY tbl, row_key`)
	if err != nil {
		return nil, fmt.Errorf("query state rows: %w", err)
	}
	defer rows.Close()

	var out []state.Change
	for rows.Next() {
		var c state.Change
		if err := rows.Scan(&c.Table, &c.Key, &c.Value); err != nil {
			return nil, fmt.Errorf("scan state row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state rows: %w", err)
	}
	return out, nil
}

// CommitCount returns how many units have been persisted.
func (s *Store) CommitCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM state_commits`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count commits: %w", err)
	}
	return n, nil
}

// applyMigrations runs each embedded .sql file once, in name order.
func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
		name TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	files, err := fs.Glob(migrationFS, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	for _, name := range files {
		var found int
		err := sqlDB.QueryRow(`SELECT 1 FROM `+migrationTable+` WHERE name = ?`, name).Scan(&found)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("check migration %s: %w", name, err)
		}

		content, err := fs.ReadFile(migrationFS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.Exec(upSection(string(content))); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`,
			name, time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}
	return nil
}

// upSection returns the SQL between the Up and Down markers.
func upSection(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	if i := strings.Index(content, up); i >= 0 {
		content = content[i+len(up):]
	}
	if i := strings.Index(content, down); i >= 0 {
		content = content[:i]
	}
	return content
}
