// Chat dispatch HTTP handler.
//
// This file exposes the synchronous half of the relay:
//   - POST /chat  (dispatch a message to the async AI provider)
//
// Handlers are transport-thin: they validate input, call the dispatch
// client, store the pending correlation entry, and translate results into
// HTTP responses. The asynchronous half arrives later on the webhook
// endpoint (see webhook_handler.go).
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-relay-backend/internal/domain"
	"github.com/tbourn/go-relay-backend/internal/http/middleware"
	"github.com/tbourn/go-relay-backend/internal/provider"
	"github.com/tbourn/go-relay-backend/internal/services"
	"github.com/tbourn/go-relay-backend/internal/store"
)

//
// Service contracts (context-aware)
//

// Dispatcher submits a chat message to the async provider. Implemented by
// provider.Client; implementations must honor the context for cancellation.
type Dispatcher interface {
	// Dispatch returns the provider's connection descriptors plus the
	// pending entry the handler stores under the returned channel id.
	Dispatch(ctx context.Context, message, conversationID, workflow string, events []string) (*provider.DispatchResult, *domain.PendingRequest, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of the relay. It depends on abstract
// contracts to keep transport concerns separate from pipeline logic; only
// the in-memory stores are concrete because they are the process state.
type Handlers struct {
	dispatcher Dispatcher
	relay      RelayService
	verifier   WebhookVerifier
	pending    *store.PendingStore
	idem       *store.IdempotencyStore
}

// New constructs a Handlers instance bound to the given collaborators.
func New(dispatcher Dispatcher, relay RelayService, verifier WebhookVerifier, pending *store.PendingStore, idem *store.IdempotencyStore) *Handlers {
	return &Handlers{
		dispatcher: dispatcher,
		relay:      relay,
		verifier:   verifier,
		pending:    pending,
		idem:       idem,
	}
}

// IdempotencyLookup adapts the idempotency store for the validator
// middleware.
func (h *Handlers) IdempotencyLookup(ctx context.Context, key string, now time.Time) (bool, error) {
	_, err := h.idem.Get(key, now)
	return err == nil, nil
}

//
// DTOs
//

// ChatRequest is the JSON payload for dispatching a chat message.
type ChatRequest struct {
	// Message is the user prompt to send to the AI provider.
	Message string `json:"message" binding:"required" example:"Hello test"`
	// ConversationID optionally continues an existing conversation.
	ConversationID string `json:"conversationId,omitempty" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	// Workflow optionally selects a provider-side workflow.
	Workflow string `json:"workflow,omitempty" example:"default"`
	// Events optionally overrides the webhook event subscriptions.
	Events []string `json:"events,omitempty"`
}

// Dispatch godoc
// @ID          dispatchChat
// @Summary     Dispatch a chat message
// @Description Submits the message to the async AI provider and returns the
// @Description websocket connection descriptors immediately. The AI response
// @Description arrives later via the provider webhook.
// @Tags        Chat
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Deduplicates retried dispatches"
// @Param       body             body    handlers.ChatRequest  true  "Dispatch payload"
//
// @Success     200  {object}  provider.DispatchResult
// @Failure     400  {object}  handlers.ErrorResponse  "Missing or invalid message"
// @Failure     500  {object}  handlers.ErrorResponse  "Dispatch or configuration error"
// @Router      /chat [post]
func (h *Handlers) Dispatch(c *gin.Context) {
	// Replay a previously completed dispatch instead of hitting the
	// provider again.
	if middleware.IsReplay(c) {
		if key, ok := middleware.GetIdempotencyKey(c); ok {
			if rec, err := h.idem.Get(key, time.Now().UTC()); err == nil {
				c.Data(rec.Status, "application/json", rec.Body)
				return
			}
		}
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message is required")
		return
	}

	res, pending, err := h.dispatcher.Dispatch(c.Request.Context(), req.Message, req.ConversationID, req.Workflow, req.Events)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMessageRequired):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message is required")
		case errors.Is(err, services.ErrAPIKeyMissing):
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "provider api key is not configured")
		default:
			var de *provider.DispatchError
			if errors.As(err, &de) {
				fail(c, http.StatusInternalServerError, ErrCodeDispatchFailed, de.Message)
				return
			}
			fail(c, http.StatusInternalServerError, ErrCodeDispatchFailed, err.Error())
		}
		return
	}

	h.pending.Put(pending.ChannelID, *pending)

	middleware.LoggerFrom(c).Info().
		Str("channel_id", pending.ChannelID).
		Str("conversation_id", pending.ConversationID).
		Msg("dispatched chat message")

	if key, hasKey := middleware.GetIdempotencyKey(c); hasKey {
		if body, merr := json.Marshal(res); merr == nil {
			h.idem.Put(key, store.IdempotencyRecord{
				ConversationID: pending.ConversationID,
				ChannelID:      pending.ChannelID,
				Status:         http.StatusOK,
				Body:           body,
			}, time.Now().UTC())
		}
	}

	ok(c, http.StatusOK, res)
}
