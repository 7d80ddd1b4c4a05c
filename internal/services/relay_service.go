// Package services, RelayService.
//
// This file implements RelayService, the application-level component that
// resolves inbound provider webhooks. It normalizes the envelope, consumes
// the pending-request entry for the channel (at most once), records the
// canonical response in the conversation log, and forwards the result to
// the downstream callback when one survived normalization.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the channel and conversation identifiers.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-relay-backend/internal/domain"
	"github.com/tbourn/go-relay-backend/internal/observability"
	"github.com/tbourn/go-relay-backend/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// unknownPrompt is recorded when a webhook arrives for a channel with no
// pending entry, so late or duplicate webhooks still leave a usable record.
const unknownPrompt = "Unknown prompt"

// CallbackSender delivers a processed response to a downstream callback
// address. Implemented by Forwarder.
type CallbackSender interface {
	Forward(ctx context.Context, url string, payload any, messageID, conversationID, channelID string, usage map[string]any) error
}

// RelayService turns verified webhooks into conversation history and
// downstream callbacks.
type RelayService struct {
	Pending   *store.PendingStore
	Log       *store.ConversationLog
	Forwarder CallbackSender
}

// NewRelayService wires the relay over its stores and callback sender.
func NewRelayService(pending *store.PendingStore, convLog *store.ConversationLog, fwd CallbackSender) *RelayService {
	return &RelayService{Pending: pending, Log: convLog, Forwarder: fwd}
}

// ProcessWebhook resolves one verified webhook envelope. It returns the
// response record appended to the conversation log and whether the channel
// matched a pending dispatch.
//
// The pending entry is consumed atomically before the record is built, so
// concurrent duplicates of the same webhook settle on exactly one matched
// record; the losers follow the unmatched path with fresh identifiers and a
// placeholder prompt. Forwarding failures are logged and swallowed; they
// never surface to the webhook acknowledgement.
func (s *RelayService) ProcessWebhook(ctx context.Context, env domain.WebhookEnvelope) (*domain.ResponseRecord, bool, error) {
	tr := otel.Tracer("services/RelayService")
	ctx, span := tr.Start(ctx, "ProcessWebhook",
		trace.WithAttributes(
			attribute.String("channel.id", env.ChannelID),
		),
	)
	defer span.End()

	n := Normalize(ctx, env)

	rec := domain.ResponseRecord{
		Response:  n.Response,
		CreatedAt: time.Now().UTC(),
		ChannelID: n.ChannelID,
		Usage:     n.Usage,
	}

	pending, matched := s.Pending.TakeIfPresent(n.ChannelID)
	if matched {
		rec.ID = pending.MessageID
		rec.ConversationID = pending.ConversationID
		rec.Prompt = pending.Prompt
	} else {
		rec.ID = uuid.NewString()
		rec.ConversationID = uuid.NewString()
		rec.Prompt = unknownPrompt
		log.Ctx(ctx).Warn().
			Str("channel_id", n.ChannelID).
			Msg("webhook arrived for unknown channel")
	}
	if matched {
		observability.WebhooksTotal.WithLabelValues(observability.OutcomeMatched).Inc()
	} else {
		observability.WebhooksTotal.WithLabelValues(observability.OutcomeUnmatched).Inc()
	}
	span.SetAttributes(
		attribute.String("conversation.id", rec.ConversationID),
		attribute.Bool("relay.matched", matched),
	)

	s.Log.Append(rec.ConversationID, rec)

	if n.ForwardURL != "" {
		if err := s.Forwarder.Forward(ctx, n.ForwardURL, n.Response, rec.ID, rec.ConversationID, rec.ChannelID, n.Usage); err != nil {
			observability.ForwardsTotal.WithLabelValues(observability.OutcomeFailed).Inc()
			log.Ctx(ctx).Error().
				Err(err).
				Str("url", n.ForwardURL).
				Str("record_id", rec.ID).
				Msg("callback forwarding failed")
		} else {
			observability.ForwardsTotal.WithLabelValues(observability.OutcomeDelivered).Inc()
		}
	}

	return &rec, matched, nil
}

// Conversation returns the full history recorded under conversationID.
func (s *RelayService) Conversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	tr := otel.Tracer("services/RelayService")
	_, span := tr.Start(ctx, "Conversation",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)),
	)
	defer span.End()

	conv, err := s.Log.Get(conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return conv, nil
}

// MessagesPage returns one page of a conversation's history plus the total
// record count. It applies defaults for invalid page and pageSize.
func (s *RelayService) MessagesPage(ctx context.Context, conversationID string, page, pageSize int) ([]domain.ResponseRecord, int, error) {
	tr := otel.Tracer("services/RelayService")
	_, span := tr.Start(ctx, "MessagesPage",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	items, total, err := s.Log.MessagesPage(conversationID, offset, pageSize)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, 0, ErrConversationNotFound
		}
		return nil, 0, err
	}
	return items, total, nil
}
