package usecase

import (
	"context"

	"event-ticket/internal/credential"
	"event-ticket/internal/live"
)

// Publisher sends a message to the cross-service topic exchange.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// LiveFeed pushes seat map deltas to in-process subscribers.
type LiveFeed interface {
	Publish(eventID string, msg live.Message)
}

// CredentialOpener recovers the payload behind a printed credential reference.
type CredentialOpener interface {
	Open(ref string) (credential.Payload, error)
}
