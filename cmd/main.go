// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Shivanand-hulikatti/eventbooking/internal/cache"
	"github.com/Shivanand-hulikatti/eventbooking/internal/config"
	"github.com/Shivanand-hulikatti/eventbooking/internal/database"
	"github.com/Shivanand-hulikatti/eventbooking/internal/events"
	"github.com/Shivanand-hulikatti/eventbooking/internal/handler"
	"github.com/Shivanand-hulikatti/eventbooking/internal/ledger"
	"github.com/Shivanand-hulikatti/eventbooking/internal/logger"
	"github.com/Shivanand-hulikatti/eventbooking/internal/repository"
	"github.com/Shivanand-hulikatti/eventbooking/internal/repository/memory"
	"github.com/Shivanand-hulikatti/eventbooking/internal/service"
)

// stores is the storage backend selected by STORAGE_DRIVER.
type stores struct {
	tx       service.Transactor
	events   service.EventStore
	bookings service.BookingStore
	ledger   service.Ledger
	close    func()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "eventbooking: %v\n", err)
		os.Exit(1)
	}
}

// run owns every resource it opens, so the deferred closes run on all exits.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	l := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	defer func() { _ = l.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── 1. Storage ───────────────────────────────────────────────────────
	st, err := openStores(ctx, cfg, l)
	if err != nil {
		return fmt.Errorf("storage %s: %w", cfg.Storage.Driver, err)
	}
	defer st.close()

	// ── 2. Availability cache ────────────────────────────────────────────
	var availCache service.AvailabilityCache
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		defer rdb.Close()
		availCache = cache.NewAvailability(rdb, cfg.Redis.TTL)
		l.Info("availability cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL)
	}

	// ── 3. Domain events ─────────────────────────────────────────────────
	pub, err := events.New(cfg.Events, l)
	if err != nil {
		return fmt.Errorf("events %s: %w", cfg.Events.Broker, err)
	}
	defer func() {
		if err := pub.Close(); err != nil {
			l.Warn("events: close publisher", "error", err)
		}
	}()

	// ── 4. Wire up layers ────────────────────────────────────────────────
	eventSvc := service.NewEventService(st.events, st.ledger, availCache, l)
	bookingSvc := service.NewBookingService(service.BookingDeps{
		Tx:        st.tx,
		Events:    st.events,
		Bookings:  st.bookings,
		Ledger:    st.ledger,
		Cache:     availCache,
		Publisher: pub,
		Producer:  cfg.Events.Producer,
		Logger:    l,
	})

	r := handler.NewRouter(handler.RouterConfig{
		Events:      eventSvc,
		Bookings:    bookingSvc,
		Logger:      l,
		CORSOrigins: cfg.Server.CORSOrigins,
		JWTSecret:   cfg.Auth.JWTSecret,
	})

	// ── 5. Start server with graceful shutdown ───────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info("server listening", "port", cfg.Server.Port, "env", cfg.Env, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-quit:
		l.Info("shutting down server", "signal", sig.String())
	case serveErr = <-errCh:
		l.Error("server error", "error", serveErr)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("graceful shutdown failed", "error", err)
	}
	l.Info("server stopped")

	if serveErr != nil {
		return fmt.Errorf("serve: %w", serveErr)
	}
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, l logger.Logger) (*stores, error) {
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		l.Warn("using in-memory storage; data is lost on restart")
		m := memory.New(l)
		return &stores{
			tx:       m,
			events:   m.Events(),
			bookings: m.Bookings(),
			ledger:   m.Ledger(),
			close:    func() {},
		}, nil

	default:
		pool, err := database.NewPool(ctx, cfg.Database, l)
		if err != nil {
			return nil, err
		}
		l.Info("connected to PostgreSQL", "host", cfg.Database.Host, "db", cfg.Database.DBName)

		if cfg.Database.RunMigrations {
			if err := database.RunMigrations(cfg.Database.DSN(), l); err != nil {
				pool.Close()
				return nil, err
			}
		}

		tx := database.NewTransactor(pool, l)
		return &stores{
			tx:       tx,
			events:   repository.NewEventRepository(pool),
			bookings: repository.NewBookingRepository(pool),
			ledger:   ledger.NewPostgres(pool, tx, l),
			close:    pool.Close,
		}, nil
	}
}
