// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the storage layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Shivanand-hulikatti/eventbooking/internal/logger"
	"github.com/Shivanand-hulikatti/eventbooking/internal/model"
)

// Transactor scopes a unit of work. Both *database.Transactor and
// *memory.Store implement it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Ledger is the seat counter. See package ledger.
type Ledger interface {
	Reserve(ctx context.Context, eventID int64, count int) (model.Availability, error)
	Release(ctx context.Context, eventID int64, count int) (model.Availability, error)
	Read(ctx context.Context, eventID int64) (model.Availability, error)
}

// EventStore is the event catalog.
type EventStore interface {
	Create(ctx context.Context, req model.CreateEventRequest) (*model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
	GetByID(ctx context.Context, id int64) (*model.Event, error)
}

// BookingStore persists bookings. GetForUpdate locks the row until the
// surrounding transaction ends.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetForUpdate(ctx context.Context, id int64) (*model.Booking, error)
	UpdateStatus(ctx context.Context, id int64, bs model.BookingStatus, ps model.PaymentStatus) (*model.Booking, error)
	GetDetails(ctx context.Context, id int64) (*model.BookingDetails, error)
	List(ctx context.Context, f model.BookingFilter) ([]model.BookingDetails, error)
}

// AvailabilityCache is satisfied by *cache.Availability, including a nil one.
// On a miss Get reports the invalidation generation; Set with that generation
// is a no-op if Invalidate ran in between.
type AvailabilityCache interface {
	Get(ctx context.Context, eventID int64) (a model.Availability, gen int64, ok bool, err error)
	Set(ctx context.Context, a model.Availability, gen int64) error
	Invalidate(ctx context.Context, eventID int64) error
}

type noCache struct{}

func (noCache) Get(context.Context, int64) (model.Availability, int64, bool, error) {
	return model.Availability{}, 0, false, nil
}
func (noCache) Set(context.Context, model.Availability, int64) error { return nil }
func (noCache) Invalidate(context.Context, int64) error              { return nil }

func orNoCache(c AvailabilityCache) AvailabilityCache {
	if c == nil {
		return noCache{}
	}
	return c
}

const maxTotalSeats = 100_000

// EventService orchestrates catalog operations.
type EventService struct {
	events EventStore
	ledger Ledger
	cache  AvailabilityCache
	log    logger.Logger
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(events EventStore, ledger Ledger, cache AvailabilityCache, l logger.Logger) *EventService {
	return &EventService{events: events, ledger: ledger, cache: orNoCache(cache), log: l.With("component", "event-service")}
}

// CreateEvent validates the request and delegates to the store.
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, model.Invalid(model.ErrInvalidEvent, "event title is required")
	}
	if req.TotalSeats <= 0 {
		return nil, model.Invalid(model.ErrInvalidEvent, "totalSeats must be a positive integer")
	}
	if req.TotalSeats > maxTotalSeats {
		return nil, model.Invalid(model.ErrInvalidEvent, "totalSeats cannot exceed 100,000")
	}
	if req.TicketPrice < 0 {
		return nil, model.Invalid(model.ErrInvalidEvent, "ticketPrice cannot be negative")
	}
	if !req.StartDate.IsZero() && !req.EndDate.IsZero() && req.EndDate.Before(req.StartDate) {
		return nil, model.Invalid(model.ErrInvalidEvent, "endDate must not be before startDate")
	}

	e, err := s.events.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.log.Info("event created", "event_id", e.ID, "total_seats", e.TotalSeats)
	return e, nil
}

// ListEvents returns all events.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.events.List(ctx)
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	if id <= 0 {
		return nil, model.ErrInvalidID
	}
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrEventNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// Availability returns the seat counter, served from the cache when it can
// be. Cache failures fall through to the ledger.
func (s *EventService) Availability(ctx context.Context, id int64) (model.Availability, error) {
	if id <= 0 {
		return model.Availability{}, model.ErrInvalidID
	}

	a, gen, ok, err := s.cache.Get(ctx, id)
	if err != nil {
		s.log.Warn("availability cache read failed", "event_id", id, "error", err)
	}
	if ok {
		return a, nil
	}

	a, err = s.ledger.Read(ctx, id)
	if err != nil {
		return model.Availability{}, err
	}
	if err := s.cache.Set(ctx, a, gen); err != nil {
		s.log.Warn("availability cache write failed", "event_id", id, "error", err)
	}
	return a, nil
}
