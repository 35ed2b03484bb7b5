// Package sqlite implements the refresh journal on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// filePragmas apply to on-disk journals. WAL lets the reader pool list
// history while a refresh is being recorded.
const filePragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// maxReaders bounds the reader pool. History listings are the only reads.
const maxReaders = 2

// DB holds a single-connection writer pool and a small reader pool on the
// same database. SQLite allows one writer at a time; funnelling writes through
// one connection avoids "database is locked" errors.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
	path   string
}

// OpenJournal opens the journal database at path, creating the file and its
// directory if needed, and applies pending migrations.
func OpenJournal(ctx context.Context, path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}

	db, err := NewDB(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewDB opens the database file at dbPath without migrating it.
func NewDB(ctx context.Context, dbPath string) (*DB, error) {
	db, err := openPools(ctx, fmt.Sprintf("file:%s?%s", dbPath, filePragmas))
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", dbPath, err)
	}
	db.path = dbPath
	return db, nil
}

// openPools opens the writer and reader pools on dsn and checks both answer.
func openPools(ctx context.Context, dsn string) (*DB, error) {
	writer, err := openPool(ctx, dsn, 1)
	if err != nil {
		return nil, fmt.Errorf("writer: %w", err)
	}
	reader, err := openPool(ctx, dsn, maxReaders)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("reader: %w", err)
	}
	return &DB{Writer: writer, Reader: reader}, nil
}

func openPool(ctx context.Context, dsn string, maxOpen int) (*sql.DB, error) {
	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(maxOpen)
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return pool, nil
}

// Path returns the database file the DB was opened on.
func (db *DB) Path() string {
	return db.path
}

// Close closes both pools and returns the first error.
func (db *DB) Close() error {
	readerErr := db.Reader.Close()
	writerErr := db.Writer.Close()
	switch {
	case readerErr != nil:
		return fmt.Errorf("closing reader: %w", readerErr)
	case writerErr != nil:
		return fmt.Errorf("closing writer: %w", writerErr)
	}
	return nil
}
