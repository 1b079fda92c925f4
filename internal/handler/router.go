package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/eventbooking/internal/logger"
	"github.com/Shivanand-hulikatti/eventbooking/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig carries the services and settings NewRouter mounts.
// An empty JWTSecret disables bearer token parsing.
type RouterConfig struct {
	Events      *service.EventService
	Bookings    *service.BookingService
	Logger      logger.Logger
	CORSOrigins []string
	JWTSecret   string
}

// NewRouter builds the HTTP API.
func NewRouter(cfg RouterConfig) http.Handler {
	eventHandler := NewEventHandler(cfg.Events, cfg.Logger)
	bookingHandler := NewBookingHandler(cfg.Bookings, cfg.Logger)

	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(CorrelationID)
	r.Use(Logger(cfg.Logger))
	r.Use(CORS(cfg.CORSOrigins))
	r.Use(Identity(cfg.JWTSecret, cfg.Logger))

	r.Get("/health", HealthCheck)

	r.Route("/events", func(r chi.Router) {
		r.Post("/", eventHandler.CreateEvent)
		r.Get("/", eventHandler.ListEvents)
		r.Get("/{id}", eventHandler.GetEvent)
		r.Get("/{id}/availability", eventHandler.GetAvailability)
	})

	r.Route("/bookings", func(r chi.Router) {
		r.Post("/", bookingHandler.CreateBooking)
		r.Get("/", bookingHandler.ListBookings)
		r.Put("/", bookingHandler.UpdateBookingStatus)
		r.Patch("/", bookingHandler.UpdateBookingStatus)
		r.Get("/{id}", bookingHandler.GetBooking)
		r.Put("/{id}", bookingHandler.UpdateBookingStatus)
		r.Patch("/{id}", bookingHandler.UpdateBookingStatus)
	})

	return r
}
