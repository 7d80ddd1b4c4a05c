// Package services, webhook normalization.
//
// This file reduces the two inbound webhook wire shapes to a single
// Normalized value: the correlation channel id, the response payload in its
// final form (structured object passed through, or text extracted from the
// well-known completion layouts), the surviving forward address, and any
// usage accounting the provider attached.
package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-relay-backend/internal/domain"
)

// Normalized is the shape-independent result of webhook normalization.
//
// Response is a map[string]any for structured payloads, a string for
// extracted or serialized text, or nil when the webhook carried no payload.
// ForwardURL is empty when no usable callback address survived validation.
type Normalized struct {
	ChannelID  string
	Response   any
	ForwardURL string
	Usage      map[string]any
}

// Normalize selects the response payload per the envelope's wire shape and
// reduces it to its final form.
//
// A JSON object without choices or response keys is treated as structured
// output and passed through unmodified. Otherwise text extraction is
// attempted at choices[0].message.content, then at
// response.choices[0].message.content; when both miss, the whole payload is
// kept as its JSON serialization so nothing the provider sent is lost.
//
// The forward address is taken from the envelope's callbackUrl first, then
// from a callbackUrl embedded in the payload object. Addresses without an
// http or https scheme are dropped with a log line. A /callback/{id} suffix
// naming a different channel id is logged but does not block forwarding.
func Normalize(ctx context.Context, env domain.WebhookEnvelope) Normalized {
	n := Normalized{ChannelID: env.ChannelID}

	raw := env.Payload()
	var payload map[string]any
	if len(raw) > 0 {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			// Not JSON at all; keep the raw bytes as text.
			n.Response = string(raw)
		} else if m, ok := decoded.(map[string]any); ok {
			payload = m
			n.Response = reduceObject(m, raw)
		} else {
			// Arrays and bare primitives are kept serialized.
			n.Response = string(raw)
		}
	}

	if payload != nil {
		if usage, ok := payload["usage"].(map[string]any); ok {
			n.Usage = usage
		}
	}

	forwardURL := env.CallbackURL
	if forwardURL == "" && payload != nil {
		forwardURL, _ = payload["callbackUrl"].(string)
	}
	n.ForwardURL = validateForwardURL(ctx, forwardURL, env.ChannelID)

	return n
}

// reduceObject applies the structured-vs-extracted decision to a JSON
// object payload.
func reduceObject(m map[string]any, raw json.RawMessage) any {
	_, hasChoices := m["choices"]
	_, hasResponse := m["response"]
	if !hasChoices && !hasResponse {
		return m
	}
	if content, ok := choiceContent(m); ok {
		return content
	}
	if nested, ok := m["response"].(map[string]any); ok {
		if content, ok := choiceContent(nested); ok {
			return content
		}
	}
	return string(raw)
}

// choiceContent digs out choices[0].message.content when every layer has
// the expected shape.
func choiceContent(m map[string]any) (string, bool) {
	choices, ok := m["choices"].([]any)
	if !ok || len(choices) == 0 {
		return "", false
	}
	first, ok := choices[0].(map[string]any)
	if !ok {
		return "", false
	}
	message, ok := first["message"].(map[string]any)
	if !ok {
		return "", false
	}
	content, ok := message["content"].(string)
	return content, ok
}

// validateForwardURL enforces the http/https scheme requirement and flags a
// /callback/{id} suffix that names a different channel than the envelope.
func validateForwardURL(ctx context.Context, forwardURL, channelID string) string {
	if forwardURL == "" {
		return ""
	}
	if !strings.HasPrefix(forwardURL, "http://") && !strings.HasPrefix(forwardURL, "https://") {
		log.Ctx(ctx).Warn().
			Str("callback_url", forwardURL).
			Str("channel_id", channelID).
			Msg("dropping callback url without http scheme")
		return ""
	}
	if idx := strings.LastIndex(forwardURL, "/callback/"); idx >= 0 {
		suffix := forwardURL[idx+len("/callback/"):]
		if suffix != "" && suffix != channelID {
			log.Ctx(ctx).Warn().
				Str("callback_url", forwardURL).
				Str("channel_id", channelID).
				Str("url_channel_id", suffix).
				Msg("callback url names a different channel id")
		}
	}
	return forwardURL
}
