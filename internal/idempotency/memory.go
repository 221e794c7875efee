package idempotency

import (
	"context"
	"sync"
	"time"

	"storefront-system/internal/commerce"
)

type entry struct {
	payload []byte
	pending bool
	expires time.Time
}

// MemoryStore is the in-process counterpart of RedisStore.
type MemoryStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	entries   map[string]entry
	nextSweep time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]entry)}
}

func (s *MemoryStore) Acquire(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)
	e, ok := s.entries[key]
	if ok && now.Before(e.expires) {
		if e.pending {
			return nil, false, commerce.ErrCheckoutInProgress
		}
		return append([]byte(nil), e.payload...), false, nil
	}
	s.entries[key] = entry{pending: true, expires: now.Add(s.ttl)}
	return nil, true, nil
}

func (s *MemoryStore) Complete(_ context.Context, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{payload: append([]byte(nil), payload...), expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// sweep drops expired entries, at most once per TTL.
func (s *MemoryStore) sweep(now time.Time) {
	if now.Before(s.nextSweep) {
		return
	}
	for key, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, key)
		}
	}
	s.nextSweep = now.Add(s.ttl)
}
