// Package services defines the business logic for dispatching chat messages,
// normalizing provider webhooks, and forwarding results to downstream
// callbacks. This file centralizes common service-level error values so that
// they can be consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the
// handler layer.
package services

import "errors"

var (
	// ErrMessageRequired is returned when a dispatch request carries an
	// empty or whitespace-only message.
	ErrMessageRequired = errors.New("message is required")

	// ErrAPIKeyMissing indicates the provider API key was never configured,
	// so no outbound dispatch can be authenticated.
	ErrAPIKeyMissing = errors.New("provider api key is not configured")

	// ErrInvalidCallbackShape is returned when a callback payload cannot be
	// coerced into the JSON object shape downstream consumers require.
	ErrInvalidCallbackShape = errors.New("callback payload is not a JSON object")

	// ErrConversationNotFound indicates that the requested conversation has
	// no recorded history.
	ErrConversationNotFound = errors.New("conversation not found")
)
