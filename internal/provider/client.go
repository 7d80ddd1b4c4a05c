// Package provider implements the outbound HTTP client for the async AI
// provider. Dispatching a chat message returns immediately with a set of
// connection descriptors (channel id, websocket coordinates); the actual
// response arrives later on this system's webhook endpoint, which the
// client embeds as the callback target of every dispatch.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/go-relay-backend/internal/domain"
	"github.com/tbourn/go-relay-backend/internal/services"
)

// WebhookPath is the route on this system that the provider is asked to
// invoke when the async response is ready.
const WebhookPath = "/webhook/provider"

// defaultEvent is subscribed when the caller supplies no events list.
const defaultEvent = "webhook_received"

// DispatchResult carries the provider's connection descriptors, returned
// verbatim to the caller of POST /chat.
type DispatchResult struct {
	ChannelID        string `json:"channelId"`
	WSToken          string `json:"wsToken"`
	WebsocketURL     string `json:"websocketUrl"`
	WebsocketChannel string `json:"websocketChannel"`
	ProjectID        string `json:"projectId"`
}

// DispatchError reports a failed dispatch: either a transport failure
// (StatusCode 0) or a non-2xx provider response with the provider's own
// message and details passed through.
type DispatchError struct {
	StatusCode int
	Message    string
	Details    any
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider dispatch failed (%d): %s", e.StatusCode, e.Message)
	}
	return "provider dispatch failed: " + e.Message
}

// dispatchRequest is the outbound payload sent to the provider's
// async-dispatch endpoint.
type dispatchRequest struct {
	Message      string         `json:"message"`
	ResponseMode string         `json:"responseMode"`
	CallbackURL  string         `json:"callbackUrl"`
	Workflow     string         `json:"workflow,omitempty"`
	Events       []string       `json:"events"`
	Metadata     map[string]any `json:"metadata"`
}

// Client talks to the provider's async-dispatch endpoint using bearer-token
// authentication.
//
// PublicBaseURL is this system's externally reachable root; it is combined
// with WebhookPath to form the callback address embedded in each dispatch.
type Client struct {
	BaseURL       string
	APIKey        string
	PublicBaseURL string
	HTTP          *http.Client
}

// NewClient constructs a Client with the given endpoints and a bounded
// request timeout.
func NewClient(baseURL, apiKey, publicBaseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		BaseURL:       baseURL,
		APIKey:        apiKey,
		PublicBaseURL: publicBaseURL,
		HTTP:          &http.Client{Timeout: timeout},
	}
}

// dispatchEnvelope tolerates descriptors at the top level or nested under a
// data object, which older provider deployments use.
type dispatchEnvelope struct {
	DispatchResult
	Data *DispatchResult `json:"data,omitempty"`
}

// errorEnvelope matches the provider's error body on non-2xx responses.
type errorEnvelope struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// Dispatch submits message to the provider and returns its connection
// descriptors together with the pending-request entry the caller should
// store under the returned channel id. The store mutation stays on the
// caller side so a failed dispatch leaves no partial state behind.
//
// A blank conversationID is replaced with a fresh UUID; the message id is
// always freshly generated. An empty events list defaults to a single
// webhook-received subscription, and the callback address always points at
// this system's own webhook endpoint.
//
// Network errors and non-2xx responses are returned as *DispatchError; no
// descriptors are ever returned alongside an error.
func (c *Client) Dispatch(ctx context.Context, message, conversationID, workflow string, events []string) (*DispatchResult, *domain.PendingRequest, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, nil, services.ErrMessageRequired
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, nil, services.ErrAPIKeyMissing
	}

	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	messageID := uuid.NewString()
	submittedAt := time.Now().UTC()

	if len(events) == 0 {
		events = []string{defaultEvent}
	}
	req := dispatchRequest{
		Message:      message,
		ResponseMode: "websocket",
		CallbackURL:  c.PublicBaseURL + WebhookPath,
		Workflow:     workflow,
		Events:       events,
		Metadata: map[string]any{
			"conversationId": conversationID,
			"messageId":      messageID,
			"prompt":         message,
			"submittedAt":    submittedAt.Format(time.RFC3339),
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, nil, &DispatchError{Message: "encode dispatch payload: " + err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/chat/async", bytes.NewReader(body))
	if err != nil {
		return nil, nil, &DispatchError{Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, nil, &DispatchError{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, &DispatchError{StatusCode: resp.StatusCode, Message: "read provider response: " + err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var pe errorEnvelope
		_ = json.Unmarshal(raw, &pe)
		msg := pe.Message
		if msg == "" {
			msg = pe.Error
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, nil, &DispatchError{StatusCode: resp.StatusCode, Message: msg, Details: pe.Details}
	}

	var env dispatchEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, &DispatchError{StatusCode: resp.StatusCode, Message: "decode provider response: " + err.Error()}
	}
	result := env.DispatchResult
	if result.ChannelID == "" && env.Data != nil {
		result = *env.Data
	}
	if result.ChannelID == "" {
		return nil, nil, &DispatchError{StatusCode: resp.StatusCode, Message: "provider response carried no channel id"}
	}

	pending := &domain.PendingRequest{
		ChannelID:      result.ChannelID,
		Prompt:         message,
		ConversationID: conversationID,
		MessageID:      messageID,
		SubmittedAt:    submittedAt,
	}
	return &result, pending, nil
}
