//go:build integration

package integration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Shivanand-hulikatti/eventbooking/internal/cache"
	"github.com/Shivanand-hulikatti/eventbooking/internal/config"
	"github.com/Shivanand-hulikatti/eventbooking/internal/database"
	"github.com/Shivanand-hulikatti/eventbooking/internal/ledger"
	"github.com/Shivanand-hulikatti/eventbooking/internal/logger"
	"github.com/Shivanand-hulikatti/eventbooking/internal/model"
	"github.com/Shivanand-hulikatti/eventbooking/internal/repository"
	"github.com/Shivanand-hulikatti/eventbooking/internal/service"
)

const userID = "user-1"

type app struct {
	pool     *pgxpool.Pool
	events   *service.EventService
	bookings *service.BookingService
	ledger   *ledger.Postgres
}

func TestBookingIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pgC, dbCfg := startPostgres(ctx, t)
	defer terminateContainer(t, pgC)

	redisC, redisAddr := startRedis(ctx, t)
	defer terminateContainer(t, redisC)

	l := logger.NewNop()
	require.NoError(t, database.RunMigrations(dbCfg.URL(), l))

	a := newApp(ctx, t, dbCfg, redisAddr, l)
	defer a.pool.Close()

	_, err := a.pool.Exec(ctx, `INSERT INTO profiles (id, email, full_name) VALUES ($1, $2, $3)`,
		userID, "user1@example.com", "User One")
	require.NoError(t, err)

	t.Run("concurrent bookings never oversell", func(t *testing.T) {
		e := createEvent(ctx, t, a, 50)

		var ok, full atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 120; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := a.bookings.CreateBooking(ctx, model.CreateBookingRequest{EventID: e.ID, UserID: userID, NumberOfTickets: 1})
				switch {
				case err == nil:
					ok.Add(1)
				case errors.Is(err, model.ErrInsufficientCapacity):
					full.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		require.Equal(t, int32(50), ok.Load())
		require.Equal(t, int32(70), full.Load())

		avail, err := a.ledger.Read(ctx, e.ID)
		require.NoError(t, err)
		require.Equal(t, 0, avail.AvailableSeats)
		requireLedgerMatchesBookings(ctx, t, a.pool, e.ID)
	})

	t.Run("cancel releases seats once", func(t *testing.T) {
		e := createEvent(ctx, t, a, 100)

		b, err := a.bookings.CreateBooking(ctx, model.CreateBookingRequest{EventID: e.ID, UserID: userID, NumberOfTickets: 30})
		require.NoError(t, err)
		require.NotNil(t, b.User)
		require.Equal(t, "User One", b.User.FullName)

		got, err := a.events.Availability(ctx, e.ID)
		require.NoError(t, err)
		require.Equal(t, 70, got.AvailableSeats)

		cancelled := string(model.BookingCancelled)
		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := a.bookings.UpdateBookingStatus(ctx, b.ID, model.UpdateBookingStatusRequest{BookingStatus: &cancelled}); err != nil {
					t.Errorf("cancel: %v", err)
				}
			}()
		}
		wg.Wait()

		// the cache was invalidated by the release, so this reads the ledger
		got, err = a.events.Availability(ctx, e.ID)
		require.NoError(t, err)
		require.Equal(t, 100, got.AvailableSeats)

		_, err = a.bookings.CreateBooking(ctx, model.CreateBookingRequest{EventID: e.ID, UserID: userID, NumberOfTickets: 150})
		var ce *model.CapacityError
		require.ErrorAs(t, err, &ce)
		require.Equal(t, 100, ce.Remaining)
		requireLedgerMatchesBookings(ctx, t, a.pool, e.ID)
	})

	t.Run("cache drops a snapshot older than the last invalidation", func(t *testing.T) {
		rdb, err := cache.NewClient(ctx, config.RedisConfig{Addr: redisAddr, PoolSize: 2})
		require.NoError(t, err)
		defer rdb.Close()
		c := cache.NewAvailability(rdb, time.Minute)

		_, gen, ok, err := c.Get(ctx, 4242)
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, c.Invalidate(ctx, 4242))
		require.NoError(t, c.Set(ctx, model.Availability{EventID: 4242, AvailableSeats: 9, TotalSeats: 10}, gen))

		_, gen, ok, err = c.Get(ctx, 4242)
		require.NoError(t, err)
		require.False(t, ok, "stale write must be dropped")

		require.NoError(t, c.Set(ctx, model.Availability{EventID: 4242, AvailableSeats: 8, TotalSeats: 10}, gen))
		got, _, ok, err := c.Get(ctx, 4242)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, 8, got.AvailableSeats)
	})

	t.Run("listing filters by event", func(t *testing.T) {
		e := createEvent(ctx, t, a, 10)
		for i := 0; i < 3; i++ {
			_, err := a.bookings.CreateBooking(ctx, model.CreateBookingRequest{EventID: e.ID, UserID: userID, NumberOfTickets: 1})
			require.NoError(t, err)
		}

		list, err := a.bookings.ListBookings(ctx, model.BookingFilter{EventID: e.ID, Limit: 2})
		require.NoError(t, err)
		require.Len(t, list, 2)
		require.True(t, !list[0].CreatedAt.Before(list[1].CreatedAt))
	})
}

func newApp(ctx context.Context, t *testing.T, dbCfg config.DatabaseConfig, redisAddr string, l logger.Logger) *app {
	t.Helper()

	pool, err := database.NewPool(ctx, dbCfg, l)
	require.NoError(t, err)

	rdb, err := cache.NewClient(ctx, config.RedisConfig{Addr: redisAddr, PoolSize: 10})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	avail := cache.NewAvailability(rdb, time.Minute)

	tx := database.NewTransactor(pool, l)
	events := repository.NewEventRepository(pool)
	led := ledger.NewPostgres(pool, tx, l)

	return &app{
		pool:   pool,
		ledger: led,
		events: service.NewEventService(events, led, avail, l),
		bookings: service.NewBookingService(service.BookingDeps{
			Tx:       tx,
			Events:   events,
			Bookings: repository.NewBookingRepository(pool),
			Ledger:   led,
			Cache:    avail,
			Logger:   l,
		}),
	}
}

func createEvent(ctx context.Context, t *testing.T, a *app, seats int) *model.Event {
	t.Helper()
	start := time.Now().Add(24 * time.Hour).UTC()
	e, err := a.events.CreateEvent(ctx, model.CreateEventRequest{
		Title:       "Integration Night",
		StartDate:   start,
		EndDate:     start.Add(3 * time.Hour),
		TicketPrice: 500,
		TotalSeats:  seats,
	})
	require.NoError(t, err)
	return e
}

// requireLedgerMatchesBookings checks total - available equals the tickets
// held by non-cancelled bookings.
func requireLedgerMatchesBookings(ctx context.Context, t *testing.T, pool *pgxpool.Pool, eventID int64) {
	t.Helper()
	var total, available, held int
	err := pool.QueryRow(ctx, `
		SELECT e.total_seats, e.available_seats,
		       COALESCE((SELECT SUM(number_of_tickets) FROM bookings
		                 WHERE event_id = e.id AND booking_status <> 'cancelled'), 0)
		FROM events e WHERE e.id = $1`, eventID).Scan(&total, &available, &held)
	require.NoError(t, err)
	require.Equal(t, held, total-available)
}

func startPostgres(ctx context.Context, t *testing.T) (testcontainers.Container, config.DatabaseConfig) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "eventbooking"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return container, config.DatabaseConfig{
		Host:         host,
		Port:         mappedPort.Port(),
		User:         "postgres",
		Password:     "postgres",
		DBName:       "eventbooking",
		SSLMode:      "disable",
		MaxConns:     20,
		MinConns:     1,
		ConnAttempts: 5,
	}
}

func startRedis(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return container, endpoint
}

func terminateContainer(t *testing.T, c testcontainers.Container) {
	t.Helper()
	terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, c.Terminate(terminateCtx))
}
