package store

import (
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-relay-backend/internal/domain"
)

func record(id, conversationID, response string) domain.ResponseRecord {
	return domain.ResponseRecord{
		ID:             id,
		Prompt:         "p",
		Response:       response,
		CreatedAt:      time.Now().UTC(),
		ChannelID:      "ch",
		ConversationID: conversationID,
	}
}

func TestConversationLog_LazyCreateAndOrder(t *testing.T) {
	l := NewConversationLog()
	if l.Len() != 0 {
		t.Fatalf("new log must be empty")
	}

	l.Append("conv-1", record("m1", "conv-1", "first"))
	l.Append("conv-1", record("m2", "conv-1", "second"))
	l.Append("conv-2", record("m3", "conv-2", "other"))

	conv, err := l.Get("conv-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if conv.ID != "conv-1" || len(conv.Messages) != 2 {
		t.Fatalf("conversation shape wrong: %+v", conv)
	}
	if conv.Messages[0].ID != "m1" || conv.Messages[1].ID != "m2" {
		t.Fatalf("insertion order not preserved: %+v", conv.Messages)
	}
	if conv.CreatedAt.IsZero() {
		t.Fatalf("CreatedAt not set on lazy creation")
	}
}

func TestConversationLog_GetUnknown(t *testing.T) {
	l := NewConversationLog()
	if _, err := l.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestConversationLog_GetReturnsSnapshot(t *testing.T) {
	l := NewConversationLog()
	l.Append("conv-1", record("m1", "conv-1", "x"))

	conv, _ := l.Get("conv-1")
	conv.Messages[0].ID = "tampered"

	again, _ := l.Get("conv-1")
	if again.Messages[0].ID != "m1" {
		t.Fatalf("stored history must not be mutable through Get results")
	}
}

func TestConversationLog_MessagesPage(t *testing.T) {
	l := NewConversationLog()
	for i := 0; i < 5; i++ {
		l.Append("conv-1", record(string(rune('a'+i)), "conv-1", "r"))
	}

	page, total, err := l.MessagesPage("conv-1", 2, 2)
	if err != nil {
		t.Fatalf("MessagesPage: %v", err)
	}
	if total != 5 || len(page) != 2 {
		t.Fatalf("total=%d len=%d, want 5/2", total, len(page))
	}
	if page[0].ID != "c" || page[1].ID != "d" {
		t.Fatalf("wrong page contents: %+v", page)
	}

	// Offset past the end: empty page, correct total.
	page, total, err = l.MessagesPage("conv-1", 10, 2)
	if err != nil || total != 5 || len(page) != 0 {
		t.Fatalf("past-end page: page=%v total=%d err=%v", page, total, err)
	}

	if _, _, err := l.MessagesPage("missing", 0, 10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown conversation must return ErrNotFound, got %v", err)
	}
}

func TestIdempotencyStore_TTL(t *testing.T) {
	s := NewIdempotencyStore(time.Minute)
	now := time.Now().UTC()

	s.Put("key-1", IdempotencyRecord{ConversationID: "conv-1", Status: 200}, now)

	rec, err := s.Get("key-1", now.Add(30*time.Second))
	if err != nil || rec.ConversationID != "conv-1" {
		t.Fatalf("live record not returned: %v %v", rec, err)
	}

	if _, err := s.Get("key-1", now.Add(2*time.Minute)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired record must be gone, got %v", err)
	}

	if _, err := s.Get("", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("blank key must be ErrNotFound, got %v", err)
	}
}
