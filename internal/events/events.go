// Package events fans domain events out to other services after commit.
package events

import (
	"context"
	"time"

	"bookshare-backend/internal/logger"
)

// Message is the envelope published for every committed transition. The
// routing key is Type, e.g. "loan.borrowed" or "ledger.resized".
type Message struct {
	Type       string    `json:"type"`
	TraceID    string    `json:"trace_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// NoopPublisher drops messages. It is used when events.type is "none".
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, msg Message) error {
	logger.Debug("Event dropped", "type", msg.Type, "trace_id", msg.TraceID)
	return nil
}

func (NoopPublisher) Close() error { return nil }
