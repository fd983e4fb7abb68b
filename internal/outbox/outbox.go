// Package outbox relays timeline events written to the outbox table to Kafka.
// Rows are claimed with FOR UPDATE SKIP LOCKED inside one transaction that
// also marks them published, so a failed publish leaves them for the next
// poll. Delivery is at least once; consumers dedupe on the message ID.
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message is one outbox row.
type Message struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       json.RawMessage
	CreatedAt     time.Time
}

// Store claims and acknowledges outbox rows. Both calls must join the
// transaction carried by ctx.
type Store interface {
	ClaimUnpublished(ctx context.Context, limit int) ([]Message, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Publisher delivers a batch, returning only once every message is acknowledged.
type Publisher interface {
	Publish(ctx context.Context, msgs []Message) error
}
