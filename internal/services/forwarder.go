// Package services – callback forwarding
//
// This file implements the outbound leg of webhook processing: delivering
// the finished response to the downstream callback address the provider
// supplied. Delivery is best-effort; callers log failures and still
// acknowledge the webhook.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Forwarder POSTs processed responses to downstream callback addresses.
// The embedded client bounds every delivery attempt; an optional API key is
// sent as a bearer token.
type Forwarder struct {
	HTTP   *http.Client
	APIKey string
}

// NewForwarder returns a Forwarder whose deliveries are bounded by timeout
// (30 seconds when non-positive).
func NewForwarder(apiKey string, timeout time.Duration) *Forwarder {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Forwarder{
		HTTP:   &http.Client{Timeout: timeout},
		APIKey: apiKey,
	}
}

// callbackEnvelope is the body delivered to the downstream callback.
type callbackEnvelope struct {
	Data     map[string]any   `json:"data"`
	TaskID   string           `json:"taskId"`
	Metadata callbackMetadata `json:"metadata"`
}

type callbackMetadata struct {
	ConversationID string         `json:"conversationId"`
	ChannelID      string         `json:"channelId"`
	ProcessedAt    string         `json:"processedAt"`
	Usage          map[string]any `json:"usage,omitempty"`
}

// Forward coerces payload into the object shape downstream consumers
// require, wraps it in the callback envelope, and POSTs it to url.
//
// A 2xx reply and any 4xx reply are both terminal: 4xx means the consumer
// rejected the callback and a retry cannot help, so nil is returned either
// way. Network failures and 5xx replies are returned as errors for the
// caller to log; they must never fail the webhook acknowledgement.
func (f *Forwarder) Forward(ctx context.Context, url string, payload any, messageID, conversationID, channelID string, usage map[string]any) error {
	data, err := coerceCallbackData(payload, messageID, conversationID)
	if err != nil {
		return err
	}

	env := callbackEnvelope{
		Data:   data,
		TaskID: messageID,
		Metadata: callbackMetadata{
			ConversationID: conversationID,
			ChannelID:      channelID,
			ProcessedAt:    time.Now().UTC().Format(time.RFC3339),
			Usage:          usage,
		},
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode callback envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}

	resp, err := f.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("deliver callback: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode <= 499:
		// Consumer rejected the callback; retrying the same body cannot
		// succeed, so treat it as delivered.
		log.Ctx(ctx).Warn().
			Int("status", resp.StatusCode).
			Str("url", url).
			Str("task_id", messageID).
			Msg("callback rejected by consumer")
		return nil
	default:
		return fmt.Errorf("callback delivery returned %d", resp.StatusCode)
	}
}

// coerceCallbackData turns any payload into the JSON object downstream
// consumers require, always carrying the record and conversation ids.
func coerceCallbackData(payload any, messageID, conversationID string) (map[string]any, error) {
	ids := func(m map[string]any) map[string]any {
		m["id"] = messageID
		m["conversationId"] = conversationID
		return m
	}

	switch v := payload.(type) {
	case nil:
		return ids(map[string]any{"message": "Response processed"}), nil
	case map[string]any:
		out := make(map[string]any, len(v)+2)
		for k, val := range v {
			out[k] = val
		}
		return ids(out), nil
	case []any:
		return ids(map[string]any{"items": v}), nil
	case string, bool, float64, int, int64, json.Number:
		return ids(map[string]any{"content": v}), nil
	default:
		return nil, ErrInvalidCallbackShape
	}
}
