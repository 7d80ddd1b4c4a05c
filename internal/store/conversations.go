package store

import (
	"sync"
	"time"

	"github.com/tbourn/go-relay-backend/internal/domain"
)

// ConversationLog keeps an append-only history of finished response records
// per conversation id. Conversation containers are created lazily on the
// first append and never deleted.
//
// Records are stored in insertion order; a stored record is never mutated.
type ConversationLog struct {
	mu            sync.RWMutex
	conversations map[string]*domain.Conversation
}

// NewConversationLog returns an empty conversation log.
func NewConversationLog() *ConversationLog {
	return &ConversationLog{conversations: make(map[string]*domain.Conversation)}
}

// Append adds rec to the history of conversationID, creating the
// conversation container if this is its first record.
func (l *ConversationLog) Append(conversationID string, rec domain.ResponseRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	conv, ok := l.conversations[conversationID]
	if !ok {
		conv = &domain.Conversation{
			ID:        conversationID,
			CreatedAt: time.Now().UTC(),
		}
		l.conversations[conversationID] = conv
	}
	conv.Messages = append(conv.Messages, rec)
}

// Get returns a snapshot of the conversation, or ErrNotFound when no record
// has ever been appended under the id. The returned value is a copy; callers
// cannot mutate the stored history through it.
func (l *ConversationLog) Get(conversationID string) (*domain.Conversation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	conv, ok := l.conversations[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	out := &domain.Conversation{
		ID:        conv.ID,
		CreatedAt: conv.CreatedAt,
		Messages:  append([]domain.ResponseRecord(nil), conv.Messages...),
	}
	return out, nil
}

// MessagesPage returns one page of a conversation's history in insertion
// order, plus the total record count. Offset past the end yields an empty
// page. Unknown conversation ids return ErrNotFound.
func (l *ConversationLog) MessagesPage(conversationID string, offset, limit int) ([]domain.ResponseRecord, int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	conv, ok := l.conversations[conversationID]
	if !ok {
		return nil, 0, ErrNotFound
	}
	total := len(conv.Messages)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || offset >= total {
		return []domain.ResponseRecord{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := append([]domain.ResponseRecord(nil), conv.Messages[offset:end]...)
	return page, total, nil
}

// Len reports the number of conversations held in memory.
func (l *ConversationLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.conversations)
}
