package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DB wraps the results database connection
type DB struct {
	conn *sql.DB
	path string
}

// New creates a new database connection and applies the schema
func New(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Use WAL mode for better concurrency
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)

	db := &DB{
		conn: conn,
		path: dbPath,
	}
	if err := db.Migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Migrate creates the result tables if they do not exist
func (db *DB) Migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS sweep_runs (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			policy TEXT NOT NULL,
			dataset TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS regime_results (
			run_id TEXT NOT NULL REFERENCES sweep_runs(id),
			regime TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			total_return REAL NOT NULL,
			annualized_return REAL NOT NULL,
			sharpe_ratio REAL NOT NULL,
			sortino_ratio REAL NOT NULL,
			max_drawdown REAL NOT NULL,
			win_rate REAL NOT NULL,
			profit_factor REAL NOT NULL,
			trade_count INTEGER NOT NULL,
			final_capital REAL NOT NULL,
			error TEXT,
			PRIMARY KEY (run_id, regime)
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			run_id TEXT NOT NULL REFERENCES sweep_runs(id),
			regime TEXT NOT NULL,
			position_id INTEGER NOT NULL,
			type TEXT NOT NULL,
			entry_time TEXT NOT NULL,
			exit_time TEXT NOT NULL,
			days_held INTEGER NOT NULL,
			pnl REAL NOT NULL,
			return_pct REAL NOT NULL,
			vol_spread REAL NOT NULL,
			exit_reason TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS optimization_results (
			run_id TEXT NOT NULL,
			rank INTEGER NOT NULL,
			params TEXT NOT NULL,
			objective TEXT NOT NULL,
			value REAL NOT NULL,
			failed INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, rank)
		)`,
	}

	for _, stmt := range schema {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Begin starts a new transaction
func (db *DB) Begin() (*sql.Tx, error) {
	return db.conn.Begin()
}

// Exec executes a query without returning rows
func (db *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows
func (db *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row
func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRow(query, args...)
}
