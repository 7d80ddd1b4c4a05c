package store

import (
	"sync"
	"testing"
	"time"

	"github.com/tbourn/go-relay-backend/internal/domain"
)

func pendingFixture(channelID string) domain.PendingRequest {
	return domain.PendingRequest{
		ChannelID:      channelID,
		Prompt:         "Hello test",
		ConversationID: "conv-1",
		MessageID:      "msg-1",
		SubmittedAt:    time.Now().UTC(),
	}
}

func TestPendingStore_PutTakeOnce(t *testing.T) {
	s := NewPendingStore()
	s.Put("ch-1", pendingFixture("ch-1"))

	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}

	got, ok := s.TakeIfPresent("ch-1")
	if !ok {
		t.Fatalf("first take must find the entry")
	}
	if got.Prompt != "Hello test" || got.MessageID != "msg-1" {
		t.Fatalf("wrong entry returned: %+v", got)
	}

	if _, ok := s.TakeIfPresent("ch-1"); ok {
		t.Fatalf("second take must find nothing")
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d after consumption, want 0", s.Len())
	}
}

func TestPendingStore_TakeUnknownKey(t *testing.T) {
	s := NewPendingStore()
	if _, ok := s.TakeIfPresent("never-stored"); ok {
		t.Fatalf("unknown key must return ok=false")
	}
}

func TestPendingStore_PutOverwritesSameChannel(t *testing.T) {
	s := NewPendingStore()
	s.Put("ch-1", pendingFixture("ch-1"))
	second := pendingFixture("ch-1")
	second.Prompt = "second"
	s.Put("ch-1", second)

	got, ok := s.TakeIfPresent("ch-1")
	if !ok || got.Prompt != "second" {
		t.Fatalf("latest entry must win: %+v ok=%v", got, ok)
	}
}

// Two racing consumers for the same channel id: exactly one may win.
func TestPendingStore_ConcurrentTakeExactlyOnce(t *testing.T) {
	const rounds = 200
	for i := 0; i < rounds; i++ {
		s := NewPendingStore()
		s.Put("ch-race", pendingFixture("ch-race"))

		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, ok := s.TakeIfPresent("ch-race"); ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if wins != 1 {
			t.Fatalf("round %d: %d winners, want exactly 1", i, wins)
		}
	}
}
