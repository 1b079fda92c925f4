package events

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/eventbooking/internal/config"
	"github.com/Shivanand-hulikatti/eventbooking/internal/logger"
)

// Publisher delivers envelopes to a broker. Publish is called only after
// the unit of work that produced the event has committed.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// New builds the publisher selected by cfg.Broker.
func New(cfg config.EventsConfig, l logger.Logger) (Publisher, error) {
	switch cfg.Broker {
	case config.BrokerRabbitMQ:
		p, err := NewRabbitPublisher(cfg.AMQPURL)
		if err != nil {
			return nil, err
		}
		l.Info("events: publishing to RabbitMQ", "exchange", Exchange)
		return p, nil
	case config.BrokerKafka:
		prod, err := NewSyncProducer(cfg)
		if err != nil {
			return nil, err
		}
		l.Info("events: publishing to Kafka", "brokers", cfg.Brokers, "topic", cfg.Topic)
		return NewKafkaPublisher(prod, cfg.Topic), nil
	case config.BrokerNone, "":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown events broker %q", cfg.Broker)
	}
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Envelope) error { return nil }
func (Nop) Close() error                            { return nil }
