// Package storage provides SQLite persistence of scan runs.
package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// FileName is the database file created inside the data directory.
const FileName = "netrecon.db"

// DB wraps the SQLite database connection.
type DB struct {
	*sql.DB
}

// Initialize opens (and creates if needed) the run history in dataDir.
func Initialize(dataDir string) (*DB, error) {
	return Open(filepath.Join(dataDir, FileName))
}

// Open opens the database at path and creates missing tables.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &DB{DB: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (db *DB) createTables() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			probe_id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			subject TEXT NOT NULL,
			summary TEXT,
			started_at DATETIME NOT NULL,
			elapsed_ms REAL,
			result TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_kind_subject ON runs(kind, subject)`,

		`CREATE TABLE IF NOT EXISTS scan_hosts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL,
			ip TEXT NOT NULL,
			hostname TEXT,
			mac TEXT,
			vendor TEXT,
			os TEXT,
			ttl INTEGER,
			rtt_ms REAL,
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE,
			UNIQUE(run_id, ip)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_hosts_ip ON scan_hosts(ip)`,

		`CREATE TABLE IF NOT EXISTS scan_ports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			host_id INTEGER NOT NULL,
			port INTEGER NOT NULL,
			protocol TEXT DEFAULT 'tcp',
			state TEXT NOT NULL,
			service TEXT,
			version TEXT,
			banner TEXT,
			FOREIGN KEY (host_id) REFERENCES scan_hosts(id) ON DELETE CASCADE,
			UNIQUE(host_id, port, protocol)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_ports_host_id ON scan_ports(host_id)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_ports_port ON scan_ports(port)`,

		`CREATE TABLE IF NOT EXISTS trace_hops (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL,
			hop_num INTEGER NOT NULL,
			ip TEXT,
			hostname TEXT,
			latency_ms REAL,
			lost INTEGER DEFAULT 0,
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trace_hops_run_id ON trace_hops(run_id)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to execute: %s: %w", table, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
