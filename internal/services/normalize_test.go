package services

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/tbourn/go-relay-backend/internal/domain"
)

func standardEnvelope(payload string) domain.WebhookEnvelope {
	return domain.WebhookEnvelope{
		ChannelID: "ch-1",
		Status:    "completed",
		Data:      json.RawMessage(payload),
	}
}

func TestNormalize_StructuredPassthrough(t *testing.T) {
	env := standardEnvelope(`{"answer": "42", "confidence": 0.9}`)
	n := Normalize(context.Background(), env)

	if n.ChannelID != "ch-1" {
		t.Fatalf("ChannelID = %q", n.ChannelID)
	}
	m, ok := n.Response.(map[string]any)
	if !ok {
		t.Fatalf("structured payload must pass through as object, got %T", n.Response)
	}
	if m["answer"] != "42" || m["confidence"] != 0.9 {
		t.Fatalf("payload altered: %v", m)
	}
}

func TestNormalize_ChoicesExtraction(t *testing.T) {
	env := standardEnvelope(`{
		"choices": [{"message": {"role": "assistant", "content": "Hi"}}],
		"usage": {"total_tokens": 7}
	}`)
	n := Normalize(context.Background(), env)

	if n.Response != "Hi" {
		t.Fatalf("Response = %v, want extracted content", n.Response)
	}
	if n.Usage == nil || n.Usage["total_tokens"] != float64(7) {
		t.Fatalf("usage not captured: %v", n.Usage)
	}
}

func TestNormalize_NestedResponseChoices(t *testing.T) {
	env := standardEnvelope(`{
		"response": {"choices": [{"message": {"content": "nested"}}]}
	}`)
	n := Normalize(context.Background(), env)

	if n.Response != "nested" {
		t.Fatalf("Response = %v, want nested extraction", n.Response)
	}
}

func TestNormalize_SerializationFallback(t *testing.T) {
	// Carries a choices key but not the expected layout underneath.
	raw := `{"choices": "not-a-list"}`
	n := Normalize(context.Background(), standardEnvelope(raw))
	if n.Response != raw {
		t.Fatalf("Response = %v, want serialized payload", n.Response)
	}

	// Arrays are never passed through as structured output.
	n = Normalize(context.Background(), standardEnvelope(`[1, 2, 3]`))
	if n.Response != "[1, 2, 3]" {
		t.Fatalf("array Response = %v", n.Response)
	}
}

func TestNormalize_NonJSONPayload(t *testing.T) {
	n := Normalize(context.Background(), standardEnvelope(`plain text`))
	if n.Response != "plain text" {
		t.Fatalf("Response = %v", n.Response)
	}
}

func TestNormalize_EmptyPayload(t *testing.T) {
	n := Normalize(context.Background(), domain.WebhookEnvelope{ChannelID: "ch-1"})
	if n.Response != nil {
		t.Fatalf("empty payload must normalize to nil, got %v", n.Response)
	}
}

func TestNormalize_EventDrivenSelection(t *testing.T) {
	env := domain.WebhookEnvelope{
		ChannelID:  "ch-1",
		Type:       domain.EventTypeAIGenerated,
		Event:      "completed",
		AIResponse: &domain.AIResponse{Data: json.RawMessage(`{"result": "ok"}`)},
		Data:       json.RawMessage(`{"ignored": true}`),
	}
	n := Normalize(context.Background(), env)

	want := map[string]any{"result": "ok"}
	if !reflect.DeepEqual(n.Response, want) {
		t.Fatalf("event-driven payload not selected: %v", n.Response)
	}
}

func TestNormalize_ForwardURL(t *testing.T) {
	// Envelope-level url wins over a payload-embedded one.
	env := standardEnvelope(`{"callbackUrl": "https://payload.example.com/cb"}`)
	env.CallbackURL = "https://envelope.example.com/cb"
	if n := Normalize(context.Background(), env); n.ForwardURL != "https://envelope.example.com/cb" {
		t.Fatalf("ForwardURL = %q", n.ForwardURL)
	}

	// Payload url is used when the envelope carries none.
	env = standardEnvelope(`{"callbackUrl": "http://payload.example.com/cb"}`)
	if n := Normalize(context.Background(), env); n.ForwardURL != "http://payload.example.com/cb" {
		t.Fatalf("ForwardURL = %q", n.ForwardURL)
	}

	// Non-http schemes are dropped.
	env = standardEnvelope(`{}`)
	env.CallbackURL = "ftp://files.example.com/cb"
	if n := Normalize(context.Background(), env); n.ForwardURL != "" {
		t.Fatalf("non-http url must be dropped, got %q", n.ForwardURL)
	}

	// A mismatched /callback/{id} suffix is flagged but not dropped.
	env = standardEnvelope(`{}`)
	env.CallbackURL = "https://consumer.example.com/callback/other-channel"
	if n := Normalize(context.Background(), env); n.ForwardURL != env.CallbackURL {
		t.Fatalf("mismatched callback id must not block forwarding, got %q", n.ForwardURL)
	}
}
