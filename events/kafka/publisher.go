// Package kafka publishes payment-recorded events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"

	"github.com/kampus/tuition-ledger/events"
	"github.com/kampus/tuition-ledger/ledger"
)

const defaultTopic = "payment_recorded"

// Publisher writes one message per stored transaction. Publish failures are
// logged and never propagate: event delivery must not fail the write path.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher connects to the given brokers. An empty topic uses the
// default "payment_recorded".
func NewPublisher(brokers []string, topic string) *Publisher {
	if topic == "" {
		topic = defaultTopic
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

var _ ledger.Publisher = (*Publisher)(nil)

// PaymentRecorded publishes one message per transaction, keyed by student so
// a student's payments stay ordered within a partition.
func (p *Publisher) PaymentRecorded(ctx context.Context, txs []ledger.PaymentTransaction) {
	msgs := make([]kafka.Message, 0, len(txs))
	for _, tx := range txs {
		data, err := json.Marshal(events.FromTransaction(tx))
		if err != nil {
			log.Printf("kafka: marshal payment %s: %v", tx.ID, err)
			continue
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(tx.StudentID),
			Value: data,
		})
	}
	if len(msgs) == 0 {
		return
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		log.Printf("kafka: publish payment events: %v", err)
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
