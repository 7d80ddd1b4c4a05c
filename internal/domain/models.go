// Package domain defines the core data model of the relay: the pending
// request context stored at dispatch time, the canonical response record
// built from an inbound webhook, the per-conversation history container,
// and the transient webhook envelope covering both wire shapes the AI
// provider is known to send.
//
// Identifiers are always chosen by this system (UUIDv4), never by the
// external provider. The provider's channel id is kept only as an opaque
// correlation key.
package domain

import (
	"encoding/json"
	"time"
)

// EventTypeAIGenerated is the envelope type tag that marks the event-driven
// webhook shape, in which the response payload lives under aiResponse.data.
const EventTypeAIGenerated = "task.ai_generated"

// PendingRequest is the original request context stored when an async
// dispatch is issued, keyed by the provider-assigned channel id. It is
// owned exclusively by the correlation store and consumed at most once by
// the webhook that resolves it.
//
// Fields:
//   - ChannelID: opaque provider-assigned id of the in-flight request.
//   - Prompt: the user message that was dispatched.
//   - ConversationID: caller-chosen (or generated) conversation identifier.
//   - MessageID: identifier generated fresh per request; becomes the
//     ResponseRecord ID when the webhook arrives.
//   - SubmittedAt: dispatch timestamp (UTC).
type PendingRequest struct {
	ChannelID      string    `json:"channel_id"`
	Prompt         string    `json:"prompt"`
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// ResponseRecord is the canonical, immutable record built once per inbound
// webhook. Response holds either extracted text (unstructured output) or
// the provider's structured object passed through unmodified.
type ResponseRecord struct {
	ID             string         `json:"id"`
	Prompt         string         `json:"prompt"`
	Response       any            `json:"response"`
	CreatedAt      time.Time      `json:"created_at"`
	ChannelID      string         `json:"channel_id"`
	ConversationID string         `json:"conversation_id"`
	Usage          map[string]any `json:"usage,omitempty"`
}

// Conversation is an append-only, insertion-ordered history of response
// records sharing a conversation id. Created lazily on first append and
// never deleted by the relay.
type Conversation struct {
	ID        string           `json:"id"`
	Messages  []ResponseRecord `json:"messages"`
	CreatedAt time.Time        `json:"created_at"`
}

// AIResponse wraps the response payload in the event-driven webhook shape.
type AIResponse struct {
	Data json.RawMessage `json:"data"`
}

// WebhookEnvelope is the transient inbound webhook body. The provider sends
// one of two shapes and this struct is the superset of both:
//
//   - standard:     { channelId, status, data, meta, callbackUrl? }
//   - event-driven: { type, event, channelId, aiResponse: { data },
//     callbackUrl, callbackRequired, meta? }
//
// Kind() performs the tag detection; aiResponse.data is equivalent to data
// when the event-driven tag applies.
type WebhookEnvelope struct {
	ChannelID   string          `json:"channelId"`
	Status      string          `json:"status,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Meta        map[string]any  `json:"meta,omitempty"`
	CallbackURL string          `json:"callbackUrl,omitempty"`

	// Event-driven shape only.
	Type             string      `json:"type,omitempty"`
	Event            string      `json:"event,omitempty"`
	AIResponse       *AIResponse `json:"aiResponse,omitempty"`
	CallbackRequired bool        `json:"callbackRequired,omitempty"`
}

// EnvelopeKind tags the two inbound webhook shapes.
type EnvelopeKind int

const (
	// EnvelopeStandard selects the top-level data payload.
	EnvelopeStandard EnvelopeKind = iota
	// EnvelopeEventDriven selects the aiResponse.data payload.
	EnvelopeEventDriven
)

// Kind reports which wire shape the envelope carries. An envelope is
// event-driven only when both the type tag matches and aiResponse.data is
// actually present; anything else falls back to the standard shape.
func (e WebhookEnvelope) Kind() EnvelopeKind {
	if e.Type == EventTypeAIGenerated && e.AIResponse != nil && len(e.AIResponse.Data) > 0 {
		return EnvelopeEventDriven
	}
	return EnvelopeStandard
}

// Payload returns the raw response payload selected by Kind().
func (e WebhookEnvelope) Payload() json.RawMessage {
	if e.Kind() == EnvelopeEventDriven {
		return e.AIResponse.Data
	}
	return e.Data
}
