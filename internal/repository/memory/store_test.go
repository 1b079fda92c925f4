package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/eventbooking/internal/database"
	"github.com/Shivanand-hulikatti/eventbooking/internal/logger"
	"github.com/Shivanand-hulikatti/eventbooking/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedEvent(t *testing.T, s *Store, seats int) *model.Event {
	t.Helper()
	e, err := s.Events().Create(context.Background(), model.CreateEventRequest{
		Title:       "Standup Special",
		StartDate:   time.Date(2026, 11, 20, 19, 0, 0, 0, time.UTC),
		TicketPrice: 250,
		TotalSeats:  seats,
	})
	require.NoError(t, err)
	return e
}

func TestWithinTx_UndoOnError(t *testing.T) {
	s := New(logger.NewNop())
	e := seedEvent(t, s, 10)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.Ledger().Reserve(ctx, e.ID, 4); err != nil {
			return err
		}
		b := &model.Booking{EventID: e.ID, UserID: "u1", NumberOfTickets: 4}
		if err := s.Bookings().Create(ctx, b); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	a, err := s.Ledger().Read(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, a.AvailableSeats)

	out, err := s.Bookings().List(ctx, model.BookingFilter{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestWithinTx_UndoOnPanic(t *testing.T) {
	s := New(logger.NewNop())
	e := seedEvent(t, s, 10)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = s.WithinTx(ctx, func(ctx context.Context) error {
			if _, err := s.Ledger().Reserve(ctx, e.ID, 3); err != nil {
				return err
			}
			panic("handler bug")
		})
	})

	// the lock was released and the debit undone
	a, err := s.Ledger().Read(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, a.AvailableSeats)

	_, err = s.Ledger().Reserve(ctx, e.ID, 1)
	require.NoError(t, err)
}

func TestWithinTx_HooksRunAfterCommitOnly(t *testing.T) {
	s := New(logger.NewNop())
	ctx := context.Background()

	var ran []string
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context) error {
		database.AfterCommit(ctx, func() { ran = append(ran, "ok") })
		return nil
	}))
	_ = s.WithinTx(ctx, func(ctx context.Context) error {
		database.AfterCommit(ctx, func() { ran = append(ran, "failed") })
		return errors.New("nope")
	})
	assert.Equal(t, []string{"ok"}, ran)
}

func TestLedger_ReserveRelease(t *testing.T) {
	s := New(logger.NewNop())
	e := seedEvent(t, s, 5)
	ctx := context.Background()
	led := s.Ledger()

	a, err := led.Reserve(ctx, e.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, a.AvailableSeats)

	_, err = led.Reserve(ctx, e.ID, 1)
	var ce *model.CapacityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 0, ce.Remaining)

	a, err = led.Release(ctx, e.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, a.AvailableSeats)

	a, err = led.Release(ctx, e.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, a.AvailableSeats, "release clamps at total seats")

	_, err = led.Reserve(ctx, 999, 1)
	assert.ErrorIs(t, err, model.ErrEventNotFound)
}

func TestLedger_ConcurrentReservesNeverOvercommit(t *testing.T) {
	s := New(logger.NewNop())
	e := seedEvent(t, s, 50)
	led := s.Ledger()

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := led.Reserve(context.Background(), e.ID, 1); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	a, err := led.Read(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, ok)
	assert.Equal(t, 0, a.AvailableSeats)
}

func TestBookings_ListFilterAndPaging(t *testing.T) {
	s := New(logger.NewNop())
	e1 := seedEvent(t, s, 100)
	e2 := seedEvent(t, s, 100)
	ctx := context.Background()

	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		ev := e1
		if i%2 == 1 {
			ev = e2
		}
		b := &model.Booking{
			EventID:         ev.ID,
			UserID:          "u1",
			NumberOfTickets: 1,
			BookingStatus:   model.BookingPending,
			PaymentStatus:   model.PaymentPending,
			CreatedAt:       base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.Bookings().Create(ctx, b))
	}

	out, err := s.Bookings().List(ctx, model.BookingFilter{EventID: e1.ID})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.True(t, out[0].CreatedAt.After(out[1].CreatedAt), "newest first")

	page, err := s.Bookings().List(ctx, model.BookingFilter{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	none, err := s.Bookings().List(ctx, model.BookingFilter{Offset: 50})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestBookings_DetailsJoin(t *testing.T) {
	s := New(logger.NewNop())
	venueID := int64(3)
	s.PutVenue(model.Venue{ID: venueID, Name: "Blue Room", City: "Pune"})
	s.PutProfile(model.Profile{ID: "u1", FullName: "Ada L", Email: "ada@example.com"})

	e, err := s.Events().Create(context.Background(), model.CreateEventRequest{
		Title: "Quiz", TicketPrice: 100, TotalSeats: 10, VenueID: &venueID,
	})
	require.NoError(t, err)

	b := &model.Booking{EventID: e.ID, UserID: "u1", NumberOfTickets: 1}
	require.NoError(t, s.Bookings().Create(context.Background(), b))

	d, err := s.Bookings().GetDetails(context.Background(), b.ID)
	require.NoError(t, err)
	require.NotNil(t, d.Venue)
	assert.Equal(t, "Blue Room", d.Venue.Name)
	require.NotNil(t, d.User)
	assert.Equal(t, "Ada L", d.User.FullName)

	b2 := &model.Booking{EventID: e.ID, UserID: "ghost", NumberOfTickets: 1}
	require.NoError(t, s.Bookings().Create(context.Background(), b2))
	d, err = s.Bookings().GetDetails(context.Background(), b2.ID)
	require.NoError(t, err)
	assert.Nil(t, d.User)

	_, err = s.Bookings().GetDetails(context.Background(), 404)
	assert.ErrorIs(t, err, model.ErrBookingNotFound)
}
