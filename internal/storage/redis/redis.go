// Package redis implements frontpage.CacheStorage on Redis so several
// frontpage instances can share one set of offline copies.
//
// Layout, with ns the configured key namespace:
//
//	<ns>containers           SET of container names
//	<ns>c:<name>:entries     HASH key -> packed entry
//	<ns>c:<name>:expiry      ZSET key scored by expiry (unix ns), only entries that expire
package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	frontpage "github.com/eugener/frontpage/internal"
	"github.com/eugener/frontpage/internal/storage"
)

// Options configures a Store.
type Options struct {
	// Client cannot be nil.
	Client redis.UniversalClient
	// Namespace prefixes every key. Default "frontpage:".
	Namespace string
}

var (
	_ storage.Backend = (*Store)(nil)
	_ storage.Expirer = (*Store)(nil)
)

// Store implements frontpage.CacheStorage using Redis.
type Store struct {
	client redis.UniversalClient
	ns     string
}

// New returns a Store using the given client.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("nil redis client")
	}
	if opts.Namespace == "" {
		opts.Namespace = "frontpage:"
	}
	return &Store{client: opts.Client, ns: opts.Namespace}, nil
}

// Dial connects to a single Redis server and returns a Store that owns the client.
func Dial(ctx context.Context, addr, password string, db int) (*Store, error) {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return New(Options{Client: c})
}

func (s *Store) setKey() string                { return s.ns + "containers" }
func (s *Store) entriesKey(name string) string { return s.ns + "c:" + name + ":entries" }
func (s *Store) expiryKey(name string) string  { return s.ns + "c:" + name + ":expiry" }

// Open registers the container name and returns a handle to it.
func (s *Store) Open(ctx context.Context, name string) (frontpage.CacheContainer, error) {
	if err := s.client.SAdd(ctx, s.setKey(), name).Err(); err != nil {
		return nil, fmt.Errorf("open container %q: %w", name, err)
	}
	return &container{store: s, name: name}, nil
}

// Names lists all registered containers, sorted.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, s.setKey()).Result()
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

// Delete unregisters the container and drops its entries atomically.
func (s *Store) Delete(ctx context.Context, name string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.SRem(ctx, s.setKey(), name)
		pipe.Del(ctx, s.entriesKey(name), s.expiryKey(name))
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed.Val() > 0, nil
}

// PurgeExpired removes entries whose expiry is before cutoff.
func (s *Store) PurgeExpired(ctx context.Context, name string, cutoff time.Time) (int, error) {
	keys, err := s.client.ZRangeByScore(ctx, s.expiryKey(name), &redis.ZRangeBy{
		Min: "1",
		Max: "(" + strconv.FormatInt(cutoff.UnixNano(), 10),
	}).Result()
	if err != nil || len(keys) == 0 {
		return 0, err
	}
	members := make([]any, len(keys))
	for i, k := range keys {
		members[i] = k
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.entriesKey(name), keys...)
		pipe.ZRem(ctx, s.expiryKey(name), members...)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

type container struct {
	store *Store
	name  string
}

// Match returns the entry under key.
func (c *container) Match(ctx context.Context, key string) (*frontpage.CachedResponse, error) {
	b, err := c.store.client.HGet(ctx, c.store.entriesKey(c.name), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, frontpage.ErrNotFound
		}
		return nil, err
	}
	return unpackEntry(b)
}

// Put writes the entry and its expiry index in one transaction.
func (c *container) Put(ctx context.Context, key string, resp *frontpage.CachedResponse) error {
	data, err := packEntry(resp)
	if err != nil {
		return err
	}
	_, err = c.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, c.store.entriesKey(c.name), key, data)
		if resp.ExpiresAt.IsZero() {
			pipe.ZRem(ctx, c.store.expiryKey(c.name), key)
		} else {
			pipe.ZAdd(ctx, c.store.expiryKey(c.name), &redis.Z{
				Score:  float64(resp.ExpiresAt.UnixNano()),
				Member: key,
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("put %q in %q: %w", key, c.name, err)
	}
	return nil
}

// Keys lists all keys in the container.
func (c *container) Keys(ctx context.Context) ([]string, error) {
	return c.store.client.HKeys(ctx, c.store.entriesKey(c.name)).Result()
}

// Delete removes the entry under key.
func (c *container) Delete(ctx context.Context, key string) error {
	_, err := c.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, c.store.entriesKey(c.name), key)
		pipe.ZRem(ctx, c.store.expiryKey(c.name), key)
		return nil
	})
	return err
}

// headerSize is stored_at(8) + expires_at(8) + status(2) + header_len(4).
const headerSize = 22

// packEntry lays out the entry as fixed-width big-endian fields followed by
// the JSON header and the snappy-compressed body.
func packEntry(resp *frontpage.CachedResponse) ([]byte, error) {
	h, err := storage.EncodeHeader(resp.Header)
	if err != nil {
		return nil, err
	}
	body := storage.EncodeBody(resp.Body)
	b := make([]byte, headerSize+len(h)+len(body))
	binary.BigEndian.PutUint64(b[0:8], uint64(storage.UnixNano(resp.StoredAt)))
	binary.BigEndian.PutUint64(b[8:16], uint64(storage.UnixNano(resp.ExpiresAt)))
	binary.BigEndian.PutUint16(b[16:18], uint16(resp.Status))
	binary.BigEndian.PutUint32(b[18:22], uint32(len(h)))
	copy(b[headerSize:], h)
	copy(b[headerSize+len(h):], body)
	return b, nil
}

func unpackEntry(b []byte) (*frontpage.CachedResponse, error) {
	if len(b) < headerSize {
		return nil, errors.New("redis entry too short")
	}
	hl := int(binary.BigEndian.Uint32(b[18:22]))
	if len(b) < headerSize+hl {
		return nil, errors.New("redis entry header truncated")
	}
	header, err := storage.DecodeHeader(string(b[headerSize : headerSize+hl]))
	if err != nil {
		return nil, err
	}
	body, err := storage.DecodeBody(b[headerSize+hl:])
	if err != nil {
		return nil, err
	}
	return &frontpage.CachedResponse{
		Status:    int(binary.BigEndian.Uint16(b[16:18])),
		Header:    header,
		Body:      body,
		StoredAt:  storage.FromUnixNano(int64(binary.BigEndian.Uint64(b[0:8]))),
		ExpiresAt: storage.FromUnixNano(int64(binary.BigEndian.Uint64(b[8:16]))),
	}, nil
}
