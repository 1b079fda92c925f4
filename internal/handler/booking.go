package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Shivanand-hulikatti/eventbooking/internal/logger"
	"github.com/Shivanand-hulikatti/eventbooking/internal/model"
	"github.com/Shivanand-hulikatti/eventbooking/internal/reqctx"
	"github.com/Shivanand-hulikatti/eventbooking/internal/service"
)

// BookingHandler serves the booking endpoints.
type BookingHandler struct {
	svc *service.BookingService
	log logger.Logger
}

// NewBookingHandler creates a BookingHandler.
func NewBookingHandler(svc *service.BookingService, l logger.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, log: l}
}

// CreateBooking handles POST /bookings
// The caller's identity, when the request carries one, wins over the body's
// userId.
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidBody, "invalid request body: "+err.Error())
		return
	}
	if uid := reqctx.UserID(r.Context()); uid != "" {
		req.UserID = uid
	}

	booking, err := h.svc.CreateBooking(r.Context(), req)
	if err != nil {
		// An unknown event is a bad booking request, not a missing resource.
		if errors.Is(err, model.ErrEventNotFound) {
			writeError(w, http.StatusBadRequest, CodeEventNotFound, "Event not found")
			return
		}
		writeServiceError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, booking)
}

// UpdateBookingStatus handles PATCH and PUT /bookings/{id}
func (h *BookingHandler) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeInvalidID, "Valid ID is required")
		return
	}

	var req model.UpdateBookingStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidBody, "invalid request body: "+err.Error())
		return
	}

	booking, err := h.svc.UpdateBookingStatus(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, booking)
}

// GetBooking handles GET /bookings/{id}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeInvalidID, "Valid ID is required")
		return
	}

	booking, err := h.svc.GetBooking(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, booking)
}

// ListBookings handles GET /bookings
// A request carrying ?id= is answered like GET /bookings/{id}.
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Has("id") {
		h.GetBooking(w, r)
		return
	}

	f := model.BookingFilter{
		UserID:        strings.TrimSpace(q.Get("userId")),
		BookingStatus: model.BookingStatus(q.Get("bookingStatus")),
		PaymentStatus: model.PaymentStatus(q.Get("paymentStatus")),
	}

	if raw := q.Get("eventId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, CodeInvalidEventID, "Valid event ID is required")
			return
		}
		f.EventID = id
	}

	var ok bool
	if f.Limit, ok = queryInt(q.Get("limit")); !ok {
		writeServiceError(w, h.log, model.ErrInvalidPagination)
		return
	}
	if f.Offset, ok = queryInt(q.Get("offset")); !ok {
		writeServiceError(w, h.log, model.ErrInvalidPagination)
		return
	}

	bookings, err := h.svc.ListBookings(r.Context(), f)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, bookings)
}

// queryInt parses an optional non-negative integer. Empty means zero.
func queryInt(raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
