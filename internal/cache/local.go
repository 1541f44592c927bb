package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LocalStore is the in-process cache tier. It front-runs the distributed
// tier so repeat texts within one process never leave the machine. Eviction
// is LRU with a fixed TTL; the TTL is set at construction, so the ttl
// argument to PutMany is ignored here.
type LocalStore struct {
	lru *expirable.LRU[string, []byte]
}

// NewLocalStore creates an in-process store holding up to size entries for
// at most ttl each.
func NewLocalStore(size int, ttl time.Duration) *LocalStore {
	return &LocalStore{
		lru: expirable.NewLRU[string, []byte](size, nil, ttl),
	}
}

func (s *LocalStore) GetMany(_ context.Context, keys []string) (map[string][]byte, error) {
	found := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := s.lru.Get(k); ok {
			found[k] = v
		}
	}
	return found, nil
}

func (s *LocalStore) PutMany(_ context.Context, entries map[string][]byte, _ time.Duration) error {
	for k, v := range entries {
		s.lru.Add(k, v)
	}
	return nil
}

func (s *LocalStore) Close() error { return nil }

var _ Store = (*LocalStore)(nil)
