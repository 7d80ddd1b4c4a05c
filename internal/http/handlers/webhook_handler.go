// Provider webhook HTTP handler.
//
// This file exposes the asynchronous half of the relay:
//   - POST /webhook/provider  (receive the AI response for a dispatched message)
//
// The raw body is read before any JSON decoding because the HMAC signature
// covers the exact bytes on the wire. Authentication failures use the
// provider-facing {error, message} body instead of the standard envelope;
// that shape is part of the provider's webhook contract.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-relay-backend/internal/domain"
	"github.com/tbourn/go-relay-backend/internal/http/middleware"
	"github.com/tbourn/go-relay-backend/internal/signature"
)

// RelayService turns verified webhook envelopes into conversation history
// and exposes the recorded conversations. Implemented by
// services.RelayService.
type RelayService interface {
	ProcessWebhook(ctx context.Context, env domain.WebhookEnvelope) (*domain.ResponseRecord, bool, error)
	Conversation(ctx context.Context, conversationID string) (*domain.Conversation, error)
	MessagesPage(ctx context.Context, conversationID string, page, pageSize int) ([]domain.ResponseRecord, int, error)
}

// WebhookVerifier authenticates an inbound webhook from its signature and
// timestamp headers plus the raw body. Implemented by signature.Verifier.
type WebhookVerifier interface {
	Verify(signatureHeader, timestampHeader string, rawBody []byte) error
}

// WebhookResponse is the acknowledgement body returned to the provider.
type WebhookResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	RecordID string `json:"recordId,omitempty"`
}

// webhookUnauthorized is the 401 body shape the provider expects.
type webhookUnauthorized struct {
	Error   string `json:"error" example:"Unauthorized"`
	Message string `json:"message" example:"invalid webhook signature"`
}

// Webhook godoc
// @ID          providerWebhook
// @Summary     Receive a provider webhook
// @Description Verifies the HMAC signature, resolves the pending dispatch for
// @Description the channel, records the response, and forwards it to the
// @Description downstream callback when one was supplied. Webhooks for
// @Description unknown channels are still recorded and acknowledged.
// @Tags        Webhook
// @Accept      json
// @Produce     json
//
// @Param       X-Signature  header  string  true  "Lowercase hex HMAC-SHA256 of timestamp.body"
// @Param       X-Timestamp  header  string  true  "Timestamp covered by the signature"
// @Param       body         body    domain.WebhookEnvelope  true  "Webhook envelope"
//
// @Success     200  {object}  handlers.WebhookResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed envelope"
// @Failure     401  {object}  handlers.webhookUnauthorized  "Signature verification failed"
// @Failure     500  {object}  handlers.ErrorResponse  "Processing error"
// @Router      /webhook/provider [post]
func (h *Handlers) Webhook(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable request body")
		return
	}

	if err := h.verifier.Verify(c.GetHeader(signature.HeaderSignature), c.GetHeader(signature.HeaderTimestamp), raw); err != nil {
		msg := "signature verification failed"
		var deny *signature.DenyError
		if errors.As(err, &deny) {
			msg = deny.Message
			middleware.LoggerFrom(c).Warn().
				Str("reason", deny.Reason).
				Msg("webhook rejected")
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, webhookUnauthorized{
			Error:   "Unauthorized",
			Message: msg,
		})
		return
	}

	var env domain.WebhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	rec, matched, err := h.relay.ProcessWebhook(c.Request.Context(), env)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeWebhookFailed, err.Error())
		return
	}

	msg := "Webhook processed successfully"
	if !matched {
		msg = "Webhook processed for unknown channel"
	}
	ok(c, http.StatusOK, WebhookResponse{
		Success:  true,
		Message:  msg,
		RecordID: rec.ID,
	})
}
