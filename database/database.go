// Package database owns the SQLite connection and the migration runner.
//
// The only local state the site keeps is the lead store; everything else
// lives behind the remote property API. modernc.org/sqlite is a pure-Go
// driver, so the binary builds without CGO.
package database

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// recoverableErrors are migration failures that mean the statement already
// ran, e.g. a half-applied migration re-run after a crash.
var recoverableErrors = []string{
	"duplicate column name",
}

// DB wraps the connection pool. *sql.DB is safe for concurrent use.
type DB struct {
	Conn *sql.DB
	log  *zap.Logger
}

// New opens (creating if needed) the database at dbPath and applies
// pending migrations from migrationsFS.
func New(dbPath string, migrationsFS fs.FS, log *zap.Logger) (*DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL lets the redelivery worker write while pages read.
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway and this avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{Conn: conn, log: log}

	if err := db.runMigrations(migrationsFS); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("connected and migrations applied", zap.String("path", dbPath))
	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.Conn.Close()
}

// runMigrations applies migrations/*.sql in file-name order, recording each
// in schema_migrations so non-idempotent statements never run twice.
func (db *DB) runMigrations(migrationsFS fs.FS) error {
	if _, err := db.Conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}
	sort.Strings(sqlFiles)

	applied, err := db.appliedMigrations()
	if err != nil {
		return err
	}

	// A database created before migration tracking already has the leads
	// table; record every file as applied instead of re-running them.
	if len(applied) == 0 {
		var tableCount int
		if err := db.Conn.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='leads'",
		).Scan(&tableCount); err != nil {
			return fmt.Errorf("failed to check existing tables: %w", err)
		}

		if tableCount > 0 {
			for _, file := range sqlFiles {
				if _, err := db.Conn.Exec(
					"INSERT INTO schema_migrations (filename) VALUES (?)", file,
				); err != nil {
					return fmt.Errorf("failed to bootstrap migration %s: %w", file, err)
				}
			}
			db.log.Info("bootstrapped existing migrations", zap.Int("count", len(sqlFiles)))
			return nil
		}
	}

	for _, file := range sqlFiles {
		if applied[file] {
			continue
		}

		content, err := fs.ReadFile(migrationsFS, file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		if err := db.execStatements(file, string(content)); err != nil {
			return err
		}

		if _, err := db.Conn.Exec(
			"INSERT INTO schema_migrations (filename) VALUES (?)", file,
		); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", file, err)
		}

		db.log.Info("migration applied", zap.String("file", file))
	}

	return nil
}

// AppliedMigrations lists recorded migration files in order.
func (db *DB) AppliedMigrations() ([]string, error) {
	applied, err := db.appliedMigrations()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(applied))
	for name := range applied {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (db *DB) appliedMigrations() (map[string]bool, error) {
	applied := make(map[string]bool)
	rows, err := db.Conn.Query("SELECT filename FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query schema_migrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate migration rows: %w", err)
	}
	return applied, nil
}

// execStatements runs a migration one statement at a time so recoverable
// failures can be skipped individually.
func (db *DB) execStatements(filename, content string) error {
	for i, stmt := range splitStatements(content) {
		if _, err := db.Conn.Exec(stmt); err != nil {
			errMsg := err.Error()
			recoverable := false
			for _, pattern := range recoverableErrors {
				if strings.Contains(errMsg, pattern) {
					recoverable = true
					break
				}
			}

			if recoverable {
				db.log.Warn("migration statement skipped",
					zap.String("file", filename),
					zap.Int("statement", i+1),
					zap.String("reason", errMsg),
				)
				continue
			}

			return fmt.Errorf("failed to execute migration %s (statement %d): %w", filename, i+1, err)
		}
	}

	return nil
}

// splitStatements splits SQL on semicolons outside single-quoted literals.
// Lines starting with "--" are dropped first.
func splitStatements(sql string) []string {
	var statements []string
	var current strings.Builder
	inString := false

	var body strings.Builder
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	sql = body.String()

	for i := 0; i < len(sql); i++ {
		ch := sql[i]

		if ch == '\'' {
			// '' inside a literal is an escaped quote.
			if inString && i+1 < len(sql) && sql[i+1] == '\'' {
				current.WriteByte(ch)
				current.WriteByte(sql[i+1])
				i++
				continue
			}
			inString = !inString
		}

		if ch == ';' && !inString {
			if s := strings.TrimSpace(current.String()); s != "" {
				statements = append(statements, s)
			}
			current.Reset()
			continue
		}

		current.WriteByte(ch)
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		statements = append(statements, s)
	}

	return statements
}
