package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/eventbooking/internal/database"
	"github.com/Shivanand-hulikatti/eventbooking/internal/events"
	"github.com/Shivanand-hulikatti/eventbooking/internal/logger"
	"github.com/Shivanand-hulikatti/eventbooking/internal/model"
	"github.com/Shivanand-hulikatti/eventbooking/internal/reqctx"
)

// BookingDeps groups what a BookingService needs.
type BookingDeps struct {
	Tx        Transactor
	Events    EventStore
	Bookings  BookingStore
	Ledger    Ledger
	Cache     AvailabilityCache
	Publisher events.Publisher
	Producer  string
	Logger    logger.Logger
}

// BookingService owns the booking lifecycle. Every change that crosses the
// cancelled boundary moves seats through the ledger in the same unit of work
// as the booking write.
type BookingService struct {
	tx       Transactor
	events   EventStore
	bookings BookingStore
	ledger   Ledger
	cache    AvailabilityCache
	pub      events.Publisher
	producer string
	log      logger.Logger
	now      func() time.Time
}

// NewBookingService fills in no-op defaults for the optional Cache and Publisher.
func NewBookingService(d BookingDeps) *BookingService {
	pub := d.Publisher
	if pub == nil {
		pub = events.Nop{}
	}
	return &BookingService{
		tx:       d.Tx,
		events:   d.Events,
		bookings: d.Bookings,
		ledger:   d.Ledger,
		cache:    orNoCache(d.Cache),
		pub:      pub,
		producer: d.Producer,
		log:      d.Logger.With("component", "booking-service"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateBooking reserves seats and records a pending booking. The reserve and
// the insert commit together or not at all.
func (s *BookingService) CreateBooking(ctx context.Context, req model.CreateBookingRequest) (*model.BookingDetails, error) {
	req.Normalize()
	switch {
	case req.EventID == 0:
		return nil, model.ErrMissingEventID
	case req.UserID == "":
		return nil, model.ErrMissingUserID
	case req.NumberOfTickets < 1:
		return nil, model.ErrInvalidTicketCount
	}

	var booking *model.Booking
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		event, err := s.events.GetByID(ctx, req.EventID)
		if err != nil {
			return err
		}

		avail, err := s.ledger.Reserve(ctx, event.ID, req.NumberOfTickets)
		if err != nil {
			return err
		}

		now := s.now()
		b := &model.Booking{
			EventID:         event.ID,
			UserID:          req.UserID,
			NumberOfTickets: req.NumberOfTickets,
			TotalAmount:     float64(req.NumberOfTickets) * event.TicketPrice,
			BookingStatus:   model.BookingPending,
			PaymentStatus:   model.PaymentPending,
			BookingDate:     now,
			CreatedAt:       now,
		}
		if err := s.bookings.Create(ctx, b); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		booking = b

		database.AfterCommit(ctx, func() { s.bookingCreated(ctx, *b, avail) })
		return nil
	})
	if err != nil {
		return nil, s.escalate(err, "create booking", "event_id", req.EventID, "tickets", req.NumberOfTickets)
	}

	s.log.Info("booking created",
		"booking_id", booking.ID,
		"event_id", booking.EventID,
		"user_id", booking.UserID,
		"tickets", booking.NumberOfTickets,
	)

	// The booking is committed at this point. A failed display read must not
	// look like a failed booking, or clients would retry and book twice.
	details, err := s.bookings.GetDetails(ctx, booking.ID)
	if err != nil {
		s.log.Warn("booking details read failed", "booking_id", booking.ID, "error", err)
		return &model.BookingDetails{Booking: *booking}, nil
	}
	return details, nil
}

// UpdateBookingStatus applies the supplied status changes. Cancelling a
// seat-holding booking releases its seats before the status write; moving a
// cancelled booking back to a seat-holding status reserves them again and
// fails with *model.CapacityError when they are gone.
func (s *BookingService) UpdateBookingStatus(ctx context.Context, id int64, req model.UpdateBookingStatusRequest) (*model.Booking, error) {
	if id <= 0 {
		return nil, model.ErrInvalidID
	}
	bs, ps, err := parseStatusUpdate(req)
	if err != nil {
		return nil, err
	}

	var (
		prev, updated *model.Booking
		delta         int
		avail         *model.Availability
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cur, err := s.bookings.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		nextBS, nextPS := cur.BookingStatus, cur.PaymentStatus
		if bs != nil {
			nextBS = *bs
		}
		if ps != nil {
			nextPS = *ps
		}

		switch {
		case cur.BookingStatus.HoldsSeats() && !nextBS.HoldsSeats():
			a, err := s.ledger.Release(ctx, cur.EventID, cur.NumberOfTickets)
			if err != nil {
				return fmt.Errorf("release seats: %w", err)
			}
			delta, avail = cur.NumberOfTickets, &a
		case !cur.BookingStatus.HoldsSeats() && nextBS.HoldsSeats():
			a, err := s.ledger.Reserve(ctx, cur.EventID, cur.NumberOfTickets)
			if err != nil {
				return err
			}
			delta, avail = -cur.NumberOfTickets, &a
		}

		u, err := s.bookings.UpdateStatus(ctx, id, nextBS, nextPS)
		if err != nil {
			return fmt.Errorf("update booking status: %w", err)
		}
		prev, updated = cur, u

		database.AfterCommit(ctx, func() { s.statusChanged(ctx, *prev, *updated, delta, avail) })
		return nil
	})
	if err != nil {
		return nil, s.escalate(err, "update booking status", "booking_id", id)
	}

	s.log.Info("booking status updated",
		"booking_id", id,
		"booking_status", updated.BookingStatus,
		"payment_status", updated.PaymentStatus,
		"seats_delta", delta,
	)
	return updated, nil
}

// GetBooking returns a booking with its display data.
func (s *BookingService) GetBooking(ctx context.Context, id int64) (*model.BookingDetails, error) {
	if id <= 0 {
		return nil, model.ErrInvalidID
	}
	return s.bookings.GetDetails(ctx, id)
}

// ListBookings returns bookings newest first. The result is never nil.
func (s *BookingService) ListBookings(ctx context.Context, f model.BookingFilter) ([]model.BookingDetails, error) {
	if f.Limit < 0 || f.Offset < 0 {
		return nil, model.ErrInvalidPagination
	}
	if f.BookingStatus != "" && !f.BookingStatus.Valid() {
		return nil, model.NewBookingStatusError(string(f.BookingStatus))
	}
	if f.PaymentStatus != "" && !f.PaymentStatus.Valid() {
		return nil, model.NewPaymentStatusError(string(f.PaymentStatus))
	}
	f.Normalize()

	out, err := s.bookings.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	if out == nil {
		out = []model.BookingDetails{}
	}
	return out, nil
}

func parseStatusUpdate(req model.UpdateBookingStatusRequest) (*model.BookingStatus, *model.PaymentStatus, error) {
	var (
		bs *model.BookingStatus
		ps *model.PaymentStatus
	)
	if req.BookingStatus != nil {
		v := model.BookingStatus(*req.BookingStatus)
		if !v.Valid() {
			return nil, nil, model.NewBookingStatusError(*req.BookingStatus)
		}
		bs = &v
	}
	if req.PaymentStatus != nil {
		v := model.PaymentStatus(*req.PaymentStatus)
		if !v.Valid() {
			return nil, nil, model.NewPaymentStatusError(*req.PaymentStatus)
		}
		ps = &v
	}
	if bs == nil && ps == nil {
		return nil, nil, model.ErrNoUpdates
	}
	return bs, ps, nil
}

// escalate turns a rollback that really failed, or a commit whose outcome is
// unknown, into ErrInventoryInconsistent. Either way nobody can say whether the
// seat movement was applied. A rollback lost to a dropped connection is not
// escalated; the transactor already returned its cause.
func (s *BookingService) escalate(err error, op string, keysAndValues ...any) error {
	if !errors.Is(err, database.ErrRollbackFailed) && !errors.Is(err, database.ErrCommitUnknown) {
		return err
	}
	kv := append([]any{"alert", "inventory_inconsistent", "op", op, "error", err}, keysAndValues...)
	s.log.Error("compensation failed, seat inventory may be inconsistent", kv...)
	return fmt.Errorf("%w: %s: %w", model.ErrInventoryInconsistent, op, err)
}

func (s *BookingService) bookingCreated(ctx context.Context, b model.Booking, a model.Availability) {
	ctx = context.WithoutCancel(ctx)
	s.invalidate(ctx, b.EventID)
	s.publish(ctx, events.BookingCreated, b.EventID, events.BookingCreatedPayload{
		BookingID:       b.ID,
		EventID:         b.EventID,
		UserID:          b.UserID,
		NumberOfTickets: b.NumberOfTickets,
		TotalAmount:     b.TotalAmount,
		BookingStatus:   b.BookingStatus,
		PaymentStatus:   b.PaymentStatus,
		AvailableSeats:  a.AvailableSeats,
		TotalSeats:      a.TotalSeats,
		CreatedAt:       b.CreatedAt,
	})
}

func (s *BookingService) statusChanged(ctx context.Context, prev, cur model.Booking, delta int, a *model.Availability) {
	ctx = context.WithoutCancel(ctx)
	p := events.BookingStatusChangedPayload{
		BookingID:             cur.ID,
		EventID:               cur.EventID,
		UserID:                cur.UserID,
		NumberOfTickets:       cur.NumberOfTickets,
		PreviousBookingStatus: prev.BookingStatus,
		BookingStatus:         cur.BookingStatus,
		PreviousPaymentStatus: prev.PaymentStatus,
		PaymentStatus:         cur.PaymentStatus,
		SeatsDelta:            delta,
	}
	if a != nil {
		s.invalidate(ctx, cur.EventID)
		p.AvailableSeats = &a.AvailableSeats
	}
	s.publish(ctx, events.BookingStatusChanged, cur.EventID, p)
}

func (s *BookingService) invalidate(ctx context.Context, eventID int64) {
	if err := s.cache.Invalidate(ctx, eventID); err != nil {
		s.log.Warn("availability cache invalidation failed", "event_id", eventID, "error", err)
	}
}

// publish is best effort. A committed booking stays committed.
func (s *BookingService) publish(ctx context.Context, name string, eventID int64, payload any) {
	env, err := events.NewEnvelope(name, eventID, events.Meta{CorrelationID: reqctx.CorrelationID(ctx)}, s.producer, payload, s.now())
	if err != nil {
		s.log.Error("build event envelope", "event", name, "error", err)
		return
	}
	if err := s.pub.Publish(ctx, env); err != nil {
		s.log.Error("publish event failed", "event", env.RoutingKey(), "event_id", env.EventID, "error", err)
	}
}
