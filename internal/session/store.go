// Package session parks finished results until the requester fetches them.
// Entries are keyed by request id and expire on a fixed TTL; Redis expiry is
// the sweep, and a successful fetch invalidates explicitly.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound means the archive was never stored, already fetched, or
// expired.
var ErrNotFound = errors.New("session entry not found")

type Store struct {
	rc        redis.UniversalClient
	namespace string
	ttl       time.Duration
}

func NewStore(rc redis.UniversalClient, namespace string, ttl time.Duration) *Store {
	return &Store{rc: rc, namespace: namespace, ttl: ttl}
}

func (s *Store) key(id string) string { return s.namespace + ":archive:" + id }

// SaveArchive parks the result ZIP under the request id.
func (s *Store) SaveArchive(ctx context.Context, id string, archive []byte) error {
	return s.rc.Set(ctx, s.key(id), archive, s.ttl).Err()
}

// Archive fetches the parked ZIP.
func (s *Store) Archive(ctx context.Context, id string) ([]byte, error) {
	raw, err := s.rc.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// Invalidate removes the entry after a successful fetch.
func (s *Store) Invalidate(ctx context.Context, id string) error {
	return s.rc.Del(ctx, s.key(id)).Err()
}
