// Package database migrates pipeline artifacts (the crawl aggregate and
// the analysis CSV) into a relational SQLite database for querying:
// documents, per-document analysis history, red-flag rows, and federal
// statute references.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"reg-scraper/pkg/utils"
)

// schema is idempotent; Open applies it on every start.
const schema = `
CREATE TABLE IF NOT EXISTS regulatory_documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_index INTEGER NOT NULL,
	type TEXT NOT NULL,
	state TEXT NOT NULL,
	title TEXT,
	url TEXT,
	url_type TEXT,
	content TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(state, source_index, type)
);

CREATE INDEX IF NOT EXISTS idx_documents_url ON regulatory_documents(url);

CREATE TABLE IF NOT EXISTS analyses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id INTEGER NOT NULL REFERENCES regulatory_documents(id),
	model_version TEXT,
	max_severity INTEGER DEFAULT 0,
	num_flags INTEGER DEFAULT 0,
	is_current BOOLEAN DEFAULT TRUE,
	analyzed_at DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_analyses_document ON analyses(document_id);

CREATE TABLE IF NOT EXISTS red_flags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	analysis_id INTEGER NOT NULL REFERENCES analyses(id),
	category TEXT NOT NULL,
	text_examples TEXT
);

CREATE INDEX IF NOT EXISTS idx_red_flags_analysis ON red_flags(analysis_id);

CREATE TABLE IF NOT EXISTS statute_references (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id INTEGER NOT NULL UNIQUE REFERENCES regulatory_documents(id),
	usc_citations TEXT,
	cfr_citations TEXT,
	public_laws TEXT,
	state_title TEXT,
	state_section TEXT
);
`

// DB wraps the SQLite connection. SQLite supports one writer, so the
// pool is pinned to a single connection.
type DB struct {
	db  *sql.DB
	log *logrus.Entry
}

// Open opens (creating if needed) the database at path, enables WAL, and
// applies the schema.
func Open(path string, logger *logrus.Entry) (*DB, error) {
	entry := logger.WithField("component", "database")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: creating database directory: %w", utils.ErrFilesystem, err)
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", utils.ErrDatabase, path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: enabling WAL on %s: %w", utils.ErrDatabase, path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: applying schema to %s: %w", utils.ErrDatabase, path, err)
	}

	entry.WithField("path", path).Info("Database opened")
	return &DB{db: db, log: entry}, nil
}

// Close releases the connection.
func (d *DB) Close() error {
	return d.db.Close()
}
