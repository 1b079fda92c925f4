package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/Shivanand-hulikatti/eventbooking/internal/config"
	"github.com/Shivanand-hulikatti/eventbooking/internal/logger"
	"github.com/Shivanand-hulikatti/eventbooking/internal/model"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEnvelope(t *testing.T) Envelope {
	t.Helper()
	env, err := NewEnvelope(BookingCreated, 7, Meta{CorrelationID: "cid-1"}, "eventbooking",
		BookingCreatedPayload{
			BookingID:       11,
			EventID:         7,
			UserID:          "user-1",
			NumberOfTickets: 30,
			TotalAmount:     15000,
			BookingStatus:   model.BookingPending,
			PaymentStatus:   model.PaymentPending,
			AvailableSeats:  70,
			TotalSeats:      100,
		},
		time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return env
}

func TestNewEnvelope(t *testing.T) {
	env := sampleEnvelope(t)

	require.NoError(t, env.Validate())
	assert.Equal(t, "booking.created.v1", env.RoutingKey())
	assert.Equal(t, "7", env.PartitionKey)
	assert.Equal(t, "cid-1", env.CorrelationID)
	assert.NotEmpty(t, env.EventID)

	var p BookingCreatedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, 70, p.AvailableSeats)
	assert.Equal(t, 15000.0, p.TotalAmount)
}

func TestNewEnvelope_GeneratesCorrelationID(t *testing.T) {
	env, err := NewEnvelope(BookingStatusChanged, 1, Meta{}, "eventbooking", struct{}{}, time.Now())
	require.NoError(t, err)
	assert.NotEmpty(t, env.CorrelationID)
}

func TestEnvelope_Validate(t *testing.T) {
	env := sampleEnvelope(t)
	env.PartitionKey = ""
	assert.Error(t, env.Validate())

	env = sampleEnvelope(t)
	env.EventID = ""
	assert.Error(t, env.Validate())
}

type fakeChannel struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
	closed        bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestRabbitPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := &RabbitPublisher{ch: ch}
	env := sampleEnvelope(t)

	require.NoError(t, p.Publish(context.Background(), env))
	assert.Equal(t, Exchange, ch.exchange)
	assert.Equal(t, "booking.created.v1", ch.key)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, env.EventID, ch.msg.MessageId)
	assert.Equal(t, "cid-1", ch.msg.CorrelationId)

	var got Envelope
	require.NoError(t, json.Unmarshal(ch.msg.Body, &got))
	assert.Equal(t, env.EventID, got.EventID)

	ch.err = errors.New("channel closed")
	assert.Error(t, p.Publish(context.Background(), env))

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	prod := mocks.NewSyncProducer(t, nil)
	p := NewKafkaPublisher(prod, "eventbooking.bookings")
	env := sampleEnvelope(t)

	prod.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got Envelope
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.EventName != BookingCreated {
			return errors.New("unexpected event name " + got.EventName)
		}
		return nil
	})
	require.NoError(t, p.Publish(context.Background(), env))

	prod.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	err := p.Publish(context.Background(), env)
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)

	require.NoError(t, p.Close())
}

func TestNew_SelectsNop(t *testing.T) {
	p, err := New(config.EventsConfig{Broker: config.BrokerNone}, logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, Nop{}, p)
	assert.NoError(t, p.Publish(context.Background(), Envelope{}))

	_, err = New(config.EventsConfig{Broker: "carrier-pigeon"}, logger.NewNop())
	assert.Error(t, err)
}
