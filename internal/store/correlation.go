// Package store implements the relay's in-memory state: the correlation
// store mapping provider channel ids to pending request context, the
// append-only conversation log, and idempotency records for safe request
// retries.
//
// All state is ephemeral and scoped to one process's lifetime; there is no
// durability guarantee across restarts. Every store is an owned, injectable
// object (never a package-level global) so tests can construct isolated
// instances per case.
package store

import (
	"errors"
	"sync"

	"github.com/tbourn/go-relay-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// PendingStore maps an opaque provider channel id to the original request
// context. Entries are consumed at most once: TakeIfPresent removes the
// entry in the same critical section that reads it, so two racing webhook
// deliveries for one channel id can never both observe the pending request.
//
// There is no TTL or eviction; entries accumulate until consumed by a
// matching webhook. Len is exported so callers can surface the backlog.
type PendingStore struct {
	mu      sync.Mutex
	pending map[string]domain.PendingRequest
}

// NewPendingStore returns an empty correlation store.
func NewPendingStore() *PendingStore {
	return &PendingStore{pending: make(map[string]domain.PendingRequest)}
}

// Put records the pending context for channelID, replacing any previous
// entry for the same id. Channel ids are opaque provider-issued strings
// assumed unique per in-flight request.
func (s *PendingStore) Put(channelID string, req domain.PendingRequest) {
	s.mu.Lock()
	s.pending[channelID] = req
	s.mu.Unlock()
}

// TakeIfPresent atomically reads and deletes the pending context for
// channelID. The second return value is false when no entry exists, which
// callers must treat as a degraded-but-valid outcome (duplicate or
// unsolicited webhook), not an error.
func (s *PendingStore) TakeIfPresent(channelID string) (domain.PendingRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.pending[channelID]
	if ok {
		delete(s.pending, channelID)
	}
	return req, ok
}

// Len reports the number of in-flight requests awaiting a webhook.
func (s *PendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
