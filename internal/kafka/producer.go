package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmehdipour/wa-notifier/internal/model"
	"github.com/segmentio/kafka-go"
)

type ProducerConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration // default 5s
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher emits one OutcomeEvent per recipient, keyed by batch id so a batch stays
// on one partition and keeps its order.
type Publisher struct {
	w     messageWriter
	topic string
}

func NewPublisherFromConfig(c ProducerConfig) *Publisher {
	wt := c.WriteTimeout
	if wt <= 0 {
		wt = 5 * time.Second
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Topic:                  c.Topic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           wt,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	return &Publisher{w: w, topic: c.Topic}
}

func (p *Publisher) Name() string { return "kafka:" + p.topic }

// Record satisfies report.Sink.
func (p *Publisher) Record(ctx context.Context, res model.BatchResult) error {
	msgs, err := outcomeMessages(res)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	return p.w.WriteMessages(ctx, msgs...)
}

func (p *Publisher) Close() error { return p.w.Close() }

func outcomeMessages(res model.BatchResult) ([]kafka.Message, error) {
	at := res.FinishedAt
	if at.IsZero() {
		at = time.Now()
	}

	msgs := make([]kafka.Message, 0, len(res.Outcomes))
	for i, o := range res.Outcomes {
		b, err := json.Marshal(model.OutcomeEvent{
			BatchID:       res.ID,
			Seq:           i,
			Recipient:     o.Recipient,
			Address:       o.Address,
			Status:        o.Status,
			FailureReason: o.FailureReason,
			At:            at.UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("marshal outcome event: %w", err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(res.ID), Value: b, Time: at})
	}
	return msgs, nil
}
