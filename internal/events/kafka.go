package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/Shivanand-hulikatti/eventbooking/internal/config"
)

// NewSyncProducer connects a sarama sync producer that waits for all
// in-sync replicas.
func NewSyncProducer(cfg config.EventsConfig) (sarama.SyncProducer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.ClientID = cfg.Producer
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = cfg.RetryMax
	saramaCfg.Producer.Return.Successes = true

	prod, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return prod, nil
}

// KafkaPublisher sends envelopes to a single topic keyed by event ID.
type KafkaPublisher struct {
	prod  sarama.SyncProducer
	topic string
}

// NewKafkaPublisher takes ownership of prod.
func NewKafkaPublisher(prod sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{prod: prod, topic: topic}
}

// Publish keys the message by partition key so one event's bookings land on
// one partition.
func (p *KafkaPublisher) Publish(_ context.Context, env Envelope) error {
	val, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", env.EventName, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(env.PartitionKey),
		Value: sarama.ByteEncoder(val),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_name"), Value: []byte(env.RoutingKey())},
			{Key: []byte("timestamp"), Value: []byte(env.OccurredAt.Format(time.RFC3339))},
		},
	}

	if _, _, err := p.prod.SendMessage(msg); err != nil {
		return fmt.Errorf("send %s: %w", env.RoutingKey(), err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.prod.Close()
}
