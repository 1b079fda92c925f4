// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Shivanand-hulikatti/eventbooking/internal/logger"
	"github.com/Shivanand-hulikatti/eventbooking/internal/model"
	"github.com/go-chi/chi/v5"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidBody           = "INVALID_BODY"
	CodeInvalidID             = "INVALID_ID"
	CodeInvalidEventID        = "INVALID_EVENT_ID"
	CodeInvalidPagination     = "INVALID_PAGINATION"
	CodeInvalidEvent          = "INVALID_EVENT"
	CodeMissingEventID        = "MISSING_EVENT_ID"
	CodeMissingUserID         = "MISSING_USER_ID"
	CodeInvalidTicketCount    = "INVALID_TICKET_COUNT"
	CodeEventNotFound         = "EVENT_NOT_FOUND"
	CodeBookingNotFound       = "BOOKING_NOT_FOUND"
	CodeInsufficientSeats     = "INSUFFICIENT_SEATS"
	CodeInvalidBookingStatus  = "INVALID_BOOKING_STATUS"
	CodeInvalidPaymentStatus  = "INVALID_PAYMENT_STATUS"
	CodeNoUpdates             = "NO_UPDATES"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeInventoryInconsistent = "INVENTORY_INCONSISTENT"
	CodeInternal              = "INTERNAL_ERROR"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg, Code: code})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// pathID reads the numeric {id} route parameter, falling back to ?id= for
// clients that address bookings by query string.
func pathID(r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		raw = r.URL.Query().Get("id")
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// writeServiceError maps a service error onto a status code and error code.
// Anything it does not recognise is a 500 and gets logged.
func writeServiceError(w http.ResponseWriter, l logger.Logger, err error) {
	var (
		ce *model.CapacityError
		se *model.StatusError
		ve *model.ValidationError
	)

	switch {
	case errors.As(err, &ce):
		writeError(w, http.StatusBadRequest, CodeInsufficientSeats, ce.Error())
	case errors.As(err, &se):
		code := CodeInvalidBookingStatus
		if errors.Is(err, model.ErrInvalidPaymentStatus) {
			code = CodeInvalidPaymentStatus
		}
		writeError(w, http.StatusBadRequest, code, se.Error())
	case errors.Is(err, model.ErrMissingEventID):
		writeError(w, http.StatusBadRequest, CodeMissingEventID, "Event ID is required")
	case errors.Is(err, model.ErrMissingUserID):
		writeError(w, http.StatusBadRequest, CodeMissingUserID, "User ID is required")
	case errors.Is(err, model.ErrInvalidTicketCount):
		writeError(w, http.StatusBadRequest, CodeInvalidTicketCount, "Number of tickets must be greater than 0")
	case errors.Is(err, model.ErrNoUpdates):
		writeError(w, http.StatusBadRequest, CodeNoUpdates, "No valid fields to update")
	case errors.Is(err, model.ErrInvalidID):
		writeError(w, http.StatusBadRequest, CodeInvalidID, "Valid ID is required")
	case errors.Is(err, model.ErrInvalidPagination):
		writeError(w, http.StatusBadRequest, CodeInvalidPagination, "limit and offset must be non-negative integers")
	case errors.As(err, &ve) && errors.Is(err, model.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, CodeInvalidEvent, ve.Error())
	case errors.Is(err, model.ErrEventNotFound):
		writeError(w, http.StatusNotFound, CodeEventNotFound, "Event not found")
	case errors.Is(err, model.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, CodeBookingNotFound, "Booking not found")
	case errors.Is(err, model.ErrInventoryInconsistent):
		l.Error("request failed with inconsistent inventory", "alert", "inventory_inconsistent", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInventoryInconsistent, "Seat inventory could not be reconciled")
	default:
		l.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "Internal server error")
	}
}

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
