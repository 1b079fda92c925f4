// Package memory is an in-process storage backend with the same contracts as
// the pgx repositories and the Postgres ledger.
//
// A single mutex stands in for the database's row locks. WithinTx holds it for
// the whole unit of work and records an undo entry for every write, replaying
// them in reverse when the unit of work fails.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/eventbooking/internal/database"
	"github.com/Shivanand-hulikatti/eventbooking/internal/ledger"
	"github.com/Shivanand-hulikatti/eventbooking/internal/logger"
	"github.com/Shivanand-hulikatti/eventbooking/internal/model"
)

// Store holds every table in maps guarded by mu.
type Store struct {
	mu  sync.Mutex
	log logger.Logger

	nextEventID   int64
	nextBookingID int64

	events   map[int64]*model.Event
	bookings map[int64]*model.Booking
	venues   map[int64]model.Venue
	profiles map[string]model.Profile

	now func() time.Time
}

// New returns an empty store.
func New(l logger.Logger) *Store {
	return &Store{
		log:      l.With("component", "memory-store"),
		events:   make(map[int64]*model.Event),
		bookings: make(map[int64]*model.Booking),
		venues:   make(map[int64]model.Venue),
		profiles: make(map[string]model.Profile),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// unit is the in-flight unit of work carried by the context.
type unit struct {
	undo []func()
}

type unitKey struct{}

func unitFrom(ctx context.Context) (*unit, bool) {
	u, ok := ctx.Value(unitKey{}).(*unit)
	return u, ok
}

// WithinTx runs fn while holding the store lock. Nested calls join the
// outer unit of work.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := unitFrom(ctx); ok {
		return fn(ctx)
	}

	u := &unit{}
	txCtx, hooks := database.WithHooks(context.WithValue(ctx, unitKey{}, u))

	err := func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		done := false
		defer func() {
			if done {
				return
			}
			for i := len(u.undo) - 1; i >= 0; i-- {
				u.undo[i]()
			}
		}()

		if err := fn(txCtx); err != nil {
			return err
		}
		done = true
		return nil
	}()
	if err != nil {
		return err
	}
	hooks.Run()
	return nil
}

// lock takes the store lock unless ctx already holds it.
func (s *Store) lock(ctx context.Context) func() {
	if _, ok := unitFrom(ctx); ok {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) record(ctx context.Context, fn func()) {
	if u, ok := unitFrom(ctx); ok {
		u.undo = append(u.undo, fn)
	}
}

// PutVenue and PutProfile seed the rows booking details join against.
func (s *Store) PutVenue(v model.Venue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.venues[v.ID] = v
}

func (s *Store) PutProfile(p model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

// Events, Bookings and Ledger are views sharing the store lock.
func (s *Store) Events() *Events     { return &Events{s: s} }
func (s *Store) Bookings() *Bookings { return &Bookings{s: s} }
func (s *Store) Ledger() *Ledger     { return &Ledger{s: s} }

// Events is the catalog view of the store.
type Events struct{ s *Store }

func (r *Events) Create(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	s := r.s
	defer s.lock(ctx)()

	s.nextEventID++
	now := s.now()
	e := &model.Event{
		ID:             s.nextEventID,
		Title:          req.Title,
		Description:    req.Description,
		CategoryID:     req.CategoryID,
		VenueID:        req.VenueID,
		ManagerID:      req.ManagerID,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		TicketPrice:    req.TicketPrice,
		TotalSeats:     req.TotalSeats,
		AvailableSeats: req.TotalSeats,
		Status:         model.EventStatusUpcoming,
		ImageURL:       req.ImageURL,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.events[e.ID] = e
	s.record(ctx, func() { delete(s.events, e.ID) })

	out := *e
	return &out, nil
}

func (r *Events) List(ctx context.Context) ([]model.Event, error) {
	s := r.s
	defer s.lock(ctx)()

	out := make([]model.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *Events) GetByID(ctx context.Context, id int64) (*model.Event, error) {
	s := r.s
	defer s.lock(ctx)()

	e, ok := s.events[id]
	if !ok {
		return nil, model.ErrEventNotFound
	}
	out := *e
	return &out, nil
}

// Ledger keeps the counter on the stored event.
type Ledger struct{ s *Store }

func (l *Ledger) Reserve(ctx context.Context, eventID int64, count int) (model.Availability, error) {
	var out model.Availability
	err := l.s.WithinTx(ctx, func(ctx context.Context) error {
		e, cur, err := l.s.availability(eventID)
		if err != nil {
			return err
		}
		next, err := ledger.Debit(cur, count)
		if err != nil {
			return err
		}
		l.s.setAvailable(ctx, e, next.AvailableSeats)
		out = next
		return nil
	})
	return out, err
}

func (l *Ledger) Release(ctx context.Context, eventID int64, count int) (model.Availability, error) {
	var out model.Availability
	err := l.s.WithinTx(ctx, func(ctx context.Context) error {
		e, cur, err := l.s.availability(eventID)
		if err != nil {
			return err
		}
		next, clamped, err := ledger.Credit(cur, count)
		if err != nil {
			return err
		}
		if clamped {
			l.s.log.Warn("release clamped at total seats", "event_id", eventID, "count", count)
		}
		l.s.setAvailable(ctx, e, next.AvailableSeats)
		out = next
		return nil
	})
	return out, err
}

func (l *Ledger) Read(ctx context.Context, eventID int64) (model.Availability, error) {
	defer l.s.lock(ctx)()
	_, a, err := l.s.availability(eventID)
	return a, err
}

// availability must be called with the lock held.
func (s *Store) availability(eventID int64) (*model.Event, model.Availability, error) {
	e, ok := s.events[eventID]
	if !ok {
		return nil, model.Availability{}, model.ErrEventNotFound
	}
	a := model.Availability{EventID: e.ID, AvailableSeats: e.AvailableSeats, TotalSeats: e.TotalSeats}
	if err := ledger.Check(a); err != nil {
		return nil, model.Availability{}, err
	}
	return e, a, nil
}

func (s *Store) setAvailable(ctx context.Context, e *model.Event, n int) {
	prev, prevUpdated := e.AvailableSeats, e.UpdatedAt
	e.AvailableSeats = n
	e.UpdatedAt = s.now()
	s.record(ctx, func() {
		e.AvailableSeats = prev
		e.UpdatedAt = prevUpdated
	})
}

// Bookings is the booking view of the store.
type Bookings struct{ s *Store }

func (r *Bookings) Create(ctx context.Context, b *model.Booking) error {
	s := r.s
	defer s.lock(ctx)()

	if _, ok := s.events[b.EventID]; !ok {
		return fmt.Errorf("insert booking: %w", model.ErrEventNotFound)
	}
	s.nextBookingID++
	b.ID = s.nextBookingID
	stored := *b
	s.bookings[b.ID] = &stored
	s.record(ctx, func() { delete(s.bookings, stored.ID) })
	return nil
}

// GetForUpdate is GetDetails without the joins. The store lock already
// serialises the surrounding unit of work.
func (r *Bookings) GetForUpdate(ctx context.Context, id int64) (*model.Booking, error) {
	s := r.s
	defer s.lock(ctx)()

	b, ok := s.bookings[id]
	if !ok {
		return nil, model.ErrBookingNotFound
	}
	out := *b
	return &out, nil
}

func (r *Bookings) UpdateStatus(ctx context.Context, id int64, bs model.BookingStatus, ps model.PaymentStatus) (*model.Booking, error) {
	s := r.s
	defer s.lock(ctx)()

	b, ok := s.bookings[id]
	if !ok {
		return nil, model.ErrBookingNotFound
	}
	prevBS, prevPS := b.BookingStatus, b.PaymentStatus
	b.BookingStatus, b.PaymentStatus = bs, ps
	s.record(ctx, func() { b.BookingStatus, b.PaymentStatus = prevBS, prevPS })

	out := *b
	return &out, nil
}

func (r *Bookings) GetDetails(ctx context.Context, id int64) (*model.BookingDetails, error) {
	s := r.s
	defer s.lock(ctx)()

	b, ok := s.bookings[id]
	if !ok {
		return nil, model.ErrBookingNotFound
	}
	d := s.details(b)
	return &d, nil
}

func (r *Bookings) List(ctx context.Context, f model.BookingFilter) ([]model.BookingDetails, error) {
	s := r.s
	defer s.lock(ctx)()

	f.Normalize()
	matched := make([]*model.Booking, 0)
	for _, b := range s.bookings {
		if matches(b, f) {
			matched = append(matched, b)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	if f.Offset >= len(matched) {
		return []model.BookingDetails{}, nil
	}
	end := min(f.Offset+f.Limit, len(matched))
	out := make([]model.BookingDetails, 0, end-f.Offset)
	for _, b := range matched[f.Offset:end] {
		out = append(out, s.details(b))
	}
	return out, nil
}

func matches(b *model.Booking, f model.BookingFilter) bool {
	switch {
	case f.UserID != "" && b.UserID != f.UserID:
		return false
	case f.EventID != 0 && b.EventID != f.EventID:
		return false
	case f.BookingStatus != "" && b.BookingStatus != f.BookingStatus:
		return false
	case f.PaymentStatus != "" && b.PaymentStatus != f.PaymentStatus:
		return false
	}
	return true
}

// details must be called with the lock held.
func (s *Store) details(b *model.Booking) model.BookingDetails {
	d := model.BookingDetails{Booking: *b}

	if e, ok := s.events[b.EventID]; ok {
		d.Event = &model.EventSummary{
			ID:          e.ID,
			Title:       e.Title,
			StartDate:   e.StartDate,
			EndDate:     e.EndDate,
			ImageURL:    e.ImageURL,
			TicketPrice: e.TicketPrice,
			VenueID:     e.VenueID,
		}
		if e.VenueID != nil {
			if v, ok := s.venues[*e.VenueID]; ok {
				d.Venue = &model.VenueSummary{ID: v.ID, Name: v.Name, Address: v.Address, City: v.City, Area: v.Area}
			}
		}
	}
	if p, ok := s.profiles[b.UserID]; ok {
		d.User = &model.UserSummary{ID: p.ID, FullName: p.FullName, Email: p.Email, Phone: p.Phone}
	}
	return d
}
