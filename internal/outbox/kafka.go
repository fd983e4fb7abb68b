package outbox

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher produces outbox messages to one topic, keyed by aggregate so
// a case's events stay ordered within a partition.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

func NewKafkaPublisher(client *kgo.Client, topic string) *KafkaPublisher {
	return &KafkaPublisher{client: client, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	records := make([]*kgo.Record, 0, len(msgs))
	for _, m := range msgs {
		records = append(records, toRecord(p.topic, m))
	}
	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce outbox batch: %w", err)
	}
	return nil
}

func toRecord(topic string, m Message) *kgo.Record {
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(m.AggregateID),
		Value: m.Payload,
		Headers: []kgo.RecordHeader{
			{Key: "message_id", Value: []byte(m.ID.String())},
			{Key: "event_type", Value: []byte(m.EventType)},
			{Key: "aggregate_type", Value: []byte(m.AggregateType)},
		},
		Timestamp: m.CreatedAt,
	}
}
