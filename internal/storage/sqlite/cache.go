package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	frontpage "github.com/eugener/frontpage/internal"
	"github.com/eugener/frontpage/internal/storage"
)

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// notFoundErr translates sql.ErrNoRows to frontpage.ErrNotFound.
func notFoundErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return frontpage.ErrNotFound
	}
	return err
}

// Open returns the named container, creating its row on first use.
func (s *Store) Open(ctx context.Context, name string) (frontpage.CacheContainer, error) {
	_, err := s.write.ExecContext(ctx,
		`INSERT INTO cache_containers (name, created_at) VALUES (?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		name, time.Now().UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("open container %q: %w", name, err)
	}
	return &container{store: s, name: name}, nil
}

// Names lists all containers ordered by name.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	rows, err := s.read.QueryContext(ctx, `SELECT name FROM cache_containers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Delete drops a container; its entries go with it via ON DELETE CASCADE.
func (s *Store) Delete(ctx context.Context, name string) (bool, error) {
	res, err := s.write.ExecContext(ctx, `DELETE FROM cache_containers WHERE name = ?`, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// PurgeExpired removes entries in container that expired before cutoff.
func (s *Store) PurgeExpired(ctx context.Context, containerName string, cutoff time.Time) (int, error) {
	res, err := s.write.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE container = ? AND expires_at > 0 AND expires_at < ?`,
		containerName, cutoff.UnixNano(),
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// container is a view of one named container within the Store.
type container struct {
	store *Store
	name  string
}

// Match returns the entry under key.
func (c *container) Match(ctx context.Context, key string) (*frontpage.CachedResponse, error) {
	row := c.store.read.QueryRowContext(ctx,
		`SELECT status, header, body, stored_at, expires_at
		 FROM cache_entries WHERE container = ? AND key = ?`, c.name, key,
	)
	return scanEntry(row)
}

// Put upserts the entry under key. Putting into a deleted container fails
// with a foreign key error rather than silently recreating it.
func (c *container) Put(ctx context.Context, key string, resp *frontpage.CachedResponse) error {
	header, err := storage.EncodeHeader(resp.Header)
	if err != nil {
		return err
	}
	_, err = c.store.write.ExecContext(ctx,
		`INSERT INTO cache_entries (container, key, status, header, body, stored_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(container, key) DO UPDATE SET
		 status = excluded.status,
		 header = excluded.header,
		 body = excluded.body,
		 stored_at = excluded.stored_at,
		 expires_at = excluded.expires_at`,
		c.name, key, resp.Status, header, storage.EncodeBody(resp.Body),
		storage.UnixNano(resp.StoredAt), storage.UnixNano(resp.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("put %q in %q: %w", key, c.name, err)
	}
	return nil
}

// Keys lists all keys in the container.
func (c *container) Keys(ctx context.Context) ([]string, error) {
	rows, err := c.store.read.QueryContext(ctx,
		`SELECT key FROM cache_entries WHERE container = ? ORDER BY stored_at`, c.name,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Delete removes the entry under key.
func (c *container) Delete(ctx context.Context, key string) error {
	_, err := c.store.write.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE container = ? AND key = ?`, c.name, key,
	)
	return err
}

func scanEntry(s scanner) (*frontpage.CachedResponse, error) {
	var (
		e                  frontpage.CachedResponse
		header             sql.NullString
		body               []byte
		storedAt, expireAt int64
	)
	if err := s.Scan(&e.Status, &header, &body, &storedAt, &expireAt); err != nil {
		return nil, notFoundErr(err)
	}
	h, err := storage.DecodeHeader(header.String)
	if err != nil {
		return nil, err
	}
	e.Header = h
	if e.Body, err = storage.DecodeBody(body); err != nil {
		return nil, err
	}
	e.StoredAt = storage.FromUnixNano(storedAt)
	e.ExpiresAt = storage.FromUnixNano(expireAt)
	return &e, nil
}
