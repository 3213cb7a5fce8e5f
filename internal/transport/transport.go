// Package transport carries serialized mutation events between
// collaborators. It is the only channel through which remote mutations
// enter the services.
package transport

import (
	"context"
	"encoding/json"
)

// Service names routed inside an Envelope.
const (
	ServiceComments    = "comments"
	ServiceSuggestions = "suggestions"
	ServicePermissions = "permissions"
)

// Envelope wraps one service payload on the session channel. Token carries
// the sender's join token; receivers verify it before applying the payload.
type Envelope struct {
	Service  string          `json:"service"`
	SenderID string          `json:"senderId"`
	Token    string          `json:"token,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

// Handler consumes one delivered envelope. A transport invokes the handler
// from a single goroutine, so delivery is serialized per subscriber.
type Handler func(Envelope)

// Transport is a realtime pub/sub channel scoped to one session.
type Transport interface {
	Publish(ctx context.Context, envelope Envelope) error
	// Subscribe starts delivering envelopes to handler until Close.
	// Only one subscription per transport.
	Subscribe(ctx context.Context, handler Handler) error
	Close() error
}
