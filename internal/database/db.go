// Package database provides sqlite connection management and schema migration.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // cgo driver, registered as "sqlite3"
	_ "modernc.org/sqlite"          // Pure Go driver, registered as "sqlite"
)

//go:embed schemas/*.sql
var schemaFS embed.FS

// Driver names accepted in Config.Driver
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

// DatabaseProfile defines different configuration profiles for databases
type DatabaseProfile string

const (
	// ProfileCache - Maximum speed for recomputable data
	ProfileCache DatabaseProfile = "cache"
	// ProfileStandard - Balanced configuration for price history and positions
	ProfileStandard DatabaseProfile = "standard"
)

// schemaFiles maps database names to their embedded schema
var schemaFiles = map[string]string{
	"history":   "schemas/history_schema.sql",
	"portfolio": "schemas/portfolio_schema.sql",
	"cache":     "schemas/cache_schema.sql",
}

// DB wraps a database connection with its configuration
type DB struct {
	conn    *sql.DB
	path    string
	driver  string
	profile DatabaseProfile
	name    string
}

// Config holds database configuration
type Config struct {
	Path    string
	Profile DatabaseProfile
	Name    string // history, portfolio or cache
	Driver  string // sqlite (default) or sqlite3
}

// New opens a database connection with profile-specific pragmas
func New(cfg Config) (*DB, error) {
	if !strings.HasPrefix(cfg.Path, "file:") {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path to absolute: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		cfg.Path = absPath
	}

	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}

	connStr, err := buildConnectionString(cfg.Driver, cfg.Path, cfg.Profile)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(cfg.Driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Name, err)
	}
	configureConnectionPool(conn, cfg.Profile)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Name, err)
	}

	return &DB{
		conn:    conn,
		path:    cfg.Path,
		driver:  cfg.Driver,
		profile: cfg.Profile,
		name:    cfg.Name,
	}, nil
}

// buildConnectionString appends WAL and profile pragmas in the syntax of each driver
func buildConnectionString(driver, path string, profile DatabaseProfile) (string, error) {
	sync, vacuum := "NORMAL", "INCREMENTAL"
	if profile == ProfileCache {
		sync, vacuum = "OFF", "FULL"
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	switch driver {
	case DriverModernc:
		return path + sep + strings.Join([]string{
			"_pragma=journal_mode(WAL)",
			"_pragma=synchronous(" + sync + ")",
			"_pragma=auto_vacuum(" + vacuum + ")",
			"_pragma=temp_store(MEMORY)",
			"_pragma=foreign_keys(1)",
			"_pragma=busy_timeout(5000)",
		}, "&"), nil
	case DriverMattn:
		return path + sep + strings.Join([]string{
			"_journal_mode=WAL",
			"_synchronous=" + sync,
			"_auto_vacuum=" + strings.ToLower(vacuum),
			"_foreign_keys=1",
			"_busy_timeout=5000",
		}, "&"), nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q", driver)
	}
}

// configureConnectionPool sets up the connection pool for a long-running service
func configureConnectionPool(conn *sql.DB, profile DatabaseProfile) {
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(24 * time.Hour)
	conn.SetConnMaxIdleTime(30 * time.Minute)

	if profile == ProfileCache {
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(2)
	}
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Name returns the database name for logging
func (db *DB) Name() string {
	return db.name
}

// Driver returns the sql driver name
func (db *DB) Driver() string {
	return db.driver
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Migrate applies the embedded schema for this database name.
// Unknown names have no schema and are left untouched.
func (db *DB) Migrate() error {
	return ApplySchema(db.conn, db.name)
}

// ApplySchema executes the embedded schema of name on conn
func ApplySchema(conn *sql.DB, name string) error {
	file, ok := schemaFiles[name]
	if !ok {
		return nil
	}

	content, err := schemaFS.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read schema %s: %w", file, err)
	}

	return WithTransaction(conn, func(tx *sql.Tx) error {
		if _, err := tx.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute schema %s for %s: %w", file, name, err)
		}
		return nil
	})
}

// WithTransaction executes fn within a transaction. It rolls back when fn
// returns an error or panics, and commits otherwise.
func WithTransaction(db *sql.DB, fn func(*sql.Tx) error) (err error) {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", p)
		} else if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				err = fmt.Errorf("transaction failed: %w (rollback also failed: %v)", err, rollbackErr)
			} else {
				err = fmt.Errorf("transaction failed: %w", err)
			}
		} else if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", commitErr)
		}
	}()

	err = fn(tx)
	return err
}

// HealthCheck pings the database and runs an integrity check
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed for %s: %w", db.name, err)
	}

	var result string
	if err := db.conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed for %s: %w", db.name, err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed for %s: %s", db.name, result)
	}
	return nil
}

// QuickCheck only pings the database
func (db *DB) QuickCheck(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// WALCheckpoint forces a WAL checkpoint. Modes: PASSIVE, FULL, RESTART, TRUNCATE.
func (db *DB) WALCheckpoint(mode string) error {
	if mode == "" {
		mode = "TRUNCATE"
	}
	if _, err := db.conn.Exec(fmt.Sprintf("PRAGMA wal_checkpoint(%s)", mode)); err != nil {
		return fmt.Errorf("WAL checkpoint failed for %s: %w", db.name, err)
	}
	return nil
}
