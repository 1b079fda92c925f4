// Package events publishes booking notifications after a unit of work commits.
package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Shivanand-hulikatti/eventbooking/internal/model"
	"github.com/google/uuid"
)

// Event names. The routing key appends the version, e.g. booking.created.v1.
const (
	BookingCreated       = "booking.created"
	BookingStatusChanged = "booking.status_changed"
)

const eventVersion = 1

// Envelope is the shared wrapper for every published event.
type Envelope struct {
	EventName     string          `json:"eventName"`
	EventVersion  int             `json:"eventVersion"`
	EventID       string          `json:"eventId"`
	CorrelationID string          `json:"correlationId,omitempty"`
	CausationID   string          `json:"causationId,omitempty"`
	Producer      string          `json:"producer"`
	PartitionKey  string          `json:"partitionKey"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Payload       json.RawMessage `json:"payload"`
}

func (e Envelope) RoutingKey() string {
	return e.EventName + ".v" + strconv.Itoa(e.EventVersion)
}

func (e Envelope) Validate() error {
	switch {
	case e.EventName == "":
		return fmt.Errorf("missing eventName")
	case e.EventVersion < 1:
		return fmt.Errorf("unexpected eventVersion %d", e.EventVersion)
	case e.EventID == "":
		return fmt.Errorf("missing eventId")
	case e.PartitionKey == "":
		return fmt.Errorf("missing partitionKey")
	}
	return nil
}

// Meta carries tracing context for an emitted event.
type Meta struct {
	CorrelationID string
	CausationID   string
}

// BookingCreatedPayload is the body of booking.created.v1.
type BookingCreatedPayload struct {
	BookingID       int64               `json:"bookingId"`
	EventID         int64               `json:"eventId"`
	UserID          string              `json:"userId"`
	NumberOfTickets int                 `json:"numberOfTickets"`
	TotalAmount     float64             `json:"totalAmount"`
	BookingStatus   model.BookingStatus `json:"bookingStatus"`
	PaymentStatus   model.PaymentStatus `json:"paymentStatus"`
	AvailableSeats  int                 `json:"availableSeats"`
	TotalSeats      int                 `json:"totalSeats"`
	CreatedAt       time.Time           `json:"createdAt"`
}

// BookingStatusChangedPayload is the body of booking.status_changed.v1.
// SeatsDelta is positive when seats went back to the event and negative when
// a reactivated booking took them again.
type BookingStatusChangedPayload struct {
	BookingID             int64               `json:"bookingId"`
	EventID               int64               `json:"eventId"`
	UserID                string              `json:"userId"`
	NumberOfTickets       int                 `json:"numberOfTickets"`
	PreviousBookingStatus model.BookingStatus `json:"previousBookingStatus"`
	BookingStatus         model.BookingStatus `json:"bookingStatus"`
	PreviousPaymentStatus model.PaymentStatus `json:"previousPaymentStatus"`
	PaymentStatus         model.PaymentStatus `json:"paymentStatus"`
	SeatsDelta            int                 `json:"seatsDelta"`
	AvailableSeats        *int                `json:"availableSeats,omitempty"`
}

// NewEnvelope wraps payload. Events are partitioned by the catalog event id so
// consumers see one event's bookings in order.
func NewEnvelope(name string, eventID int64, meta Meta, producer string, payload any, occurredAt time.Time) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", name, err)
	}
	if meta.CorrelationID == "" {
		meta.CorrelationID = uuid.NewString()
	}
	return Envelope{
		EventName:     name,
		EventVersion:  eventVersion,
		EventID:       uuid.NewString(),
		CorrelationID: meta.CorrelationID,
		CausationID:   meta.CausationID,
		Producer:      producer,
		PartitionKey:  strconv.FormatInt(eventID, 10),
		OccurredAt:    occurredAt.UTC(),
		Payload:       body,
	}, nil
}
