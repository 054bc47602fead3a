// Package notify publishes export outcomes to Kafka.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"photomark/internal/export"
)

// Event is the message body written for each export outcome.
type Event struct {
	Batch  uuid.UUID `json:"batch"`
	Source string    `json:"source"`
	Output string    `json:"output,omitempty"`
	Text   string    `json:"text,omitempty"`
	Status string    `json:"status"`
	Error  string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}

// NewEvent converts an outcome into its published form.
func NewEvent(batch uuid.UUID, o export.Outcome, at time.Time) Event {
	e := Event{
		Batch:  batch,
		Source: o.Source,
		Output: o.Output,
		Text:   o.Text,
		Status: string(o.Status),
		At:     at.UTC(),
	}
	if o.Err != nil {
		e.Error = o.Err.Error()
	}
	return e
}

// Message encodes the event keyed by its batch so one batch stays on one
// partition.
func (e Event) Message() (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("notify.Message: %w", err)
	}
	return kafka.Message{Key: []byte(e.Batch.String()), Value: value, Time: e.At}, nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka reports export outcomes to a topic.
type Kafka struct {
	writer messageWriter
	now    func() time.Time
}

func NewKafka(broker, topic string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(broker),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		now: time.Now,
	}
}

func (k *Kafka) Report(ctx context.Context, batch uuid.UUID, o export.Outcome) error {
	const op = "notify.Report"

	msg, err := NewEvent(batch, o, k.now()).Message()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
