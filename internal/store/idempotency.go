package store

import (
	"strings"
	"sync"
	"time"
)

// IdempotencyRecord captures the outcome of a previously processed dispatch
// so retries of POST /chat with the same Idempotency-Key can be replayed
// without re-dispatching to the provider.
type IdempotencyRecord struct {
	Key            string
	ConversationID string
	ChannelID      string
	Status         int
	Body           []byte
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// IdempotencyStore holds idempotency records in memory with TTL expiry.
// Expired entries are dropped opportunistically on lookup and insert.
type IdempotencyStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	records map[string]IdempotencyRecord
}

// NewIdempotencyStore returns a store whose records expire after ttl.
// A non-positive ttl defaults to 24 hours.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{
		ttl:     ttl,
		records: make(map[string]IdempotencyRecord),
	}
}

// Get returns a non-expired record for key, or ErrNotFound.
func (s *IdempotencyStore) Get(key string, now time.Time) (*IdempotencyRecord, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !rec.ExpiresAt.After(now) {
		delete(s.records, key)
		return nil, ErrNotFound
	}
	out := rec
	return &out, nil
}

// Put stores the outcome for key, overwriting any previous record.
func (s *IdempotencyStore) Put(key string, rec IdempotencyRecord, now time.Time) {
	if strings.TrimSpace(key) == "" {
		return
	}
	rec.Key = key
	rec.CreatedAt = now
	rec.ExpiresAt = now.Add(s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	// Opportunistic sweep keeps the map bounded by live keys.
	for k, r := range s.records {
		if !r.ExpiresAt.After(now) {
			delete(s.records, k)
		}
	}
	s.records[key] = rec
}
