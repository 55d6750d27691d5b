package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	coreeventlog "github.com/kilianp07/wildguard/core/eventlog"
)

// KafkaConfig configures the Kafka exporter.
type KafkaConfig struct {
	Brokers      []string      `json:"brokers"`
	Topic        string        `json:"topic"`
	BatchTimeout time.Duration `json:"batch_timeout"`
	Async        bool          `json:"async"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink mirrors records to a Kafka topic keyed by incident so all events
// of one incident land on the same partition.
type KafkaSink struct {
	writer messageWriter
}

// NewKafkaSink creates the exporter.
func NewKafkaSink(c KafkaConfig) (*KafkaSink, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("eventlog/kafka: brokers required")
	}
	if c.Topic == "" {
		c.Topic = "wildguard.events"
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 10 * time.Millisecond
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        c.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: c.BatchTimeout,
		Async:        c.Async,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaSink{writer: w}, nil
}

func (k *KafkaSink) Append(ctx context.Context, rec coreeventlog.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key := rec.CorrelationID
	if key == "" {
		key = rec.Topic
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  rec.Timestamp,
		Headers: []kafka.Header{
			{Key: "topic", Value: []byte(rec.Topic)},
			{Key: "sender", Value: []byte(rec.Sender)},
		},
	})
}

// Close flushes pending messages.
func (k *KafkaSink) Close() error { return k.writer.Close() }
