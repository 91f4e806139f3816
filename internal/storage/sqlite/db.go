// Package sqlite implements frontpage.CacheStorage on SQLite via modernc.org/sqlite,
// so offline copies survive a restart of the server.
//
// Containers are rows of cache_containers. Their entries live in cache_entries
// and go with the container through ON DELETE CASCADE, which needs the
// foreign_keys pragma on every connection.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"runtime"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/eugener/frontpage/internal/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	_ storage.Backend = (*Store)(nil)
	_ storage.Expirer = (*Store)(nil)
)

// pragmas apply to every pooled connection. Cascading container deletes
// depend on foreign_keys.
const pragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"

// Store holds offline cache containers in SQLite. Puts and deletes go through
// a single writer connection; matches and listings use the reader pool.
type Store struct {
	write *sql.DB
	read  *sql.DB
}

// New opens the cache database at dsn, a file path or ":memory:", and brings
// its schema up to date.
func New(ctx context.Context, dsn string) (*Store, error) {
	full := connString(dsn)

	write, err := sql.Open("sqlite", full)
	if err != nil {
		return nil, fmt.Errorf("open cache db writer: %w", err)
	}
	write.SetMaxOpenConns(1)

	read, err := sql.Open("sqlite", full)
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("open cache db readers: %w", err)
	}
	read.SetMaxOpenConns(max(4, runtime.NumCPU()))

	if err := migrate(ctx, write); err != nil {
		write.Close()
		read.Close()
		return nil, fmt.Errorf("cache schema: %w", err)
	}

	return &Store{write: write, read: read}, nil
}

// connString builds the driver DSN. An in-memory database uses a shared
// cache so the writer and the readers see the same containers.
func connString(dsn string) string {
	if dsn == ":memory:" {
		return "file::memory:?mode=memory&cache=shared&" + pragmas
	}
	return "file:" + dsn + "?" + pragmas
}

// migrate applies the embedded goose migrations. fs.Sub strips the
// "migrations/" prefix so goose sees files at the FS root.
func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("sub fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	_, err = provider.Up(ctx)
	return err
}

// Ping checks that the reader pool answers and the container table exists.
func (s *Store) Ping(ctx context.Context) error {
	var n int
	if err := s.read.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_containers`).Scan(&n); err != nil {
		return fmt.Errorf("cache db: %w", err)
	}
	return nil
}

// Close closes the writer and the reader pool.
func (s *Store) Close() error {
	return errors.Join(s.write.Close(), s.read.Close())
}
