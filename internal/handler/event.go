package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/eventbooking/internal/logger"
	"github.com/Shivanand-hulikatti/eventbooking/internal/model"
	"github.com/Shivanand-hulikatti/eventbooking/internal/service"
)

// EventHandler serves the catalog endpoints.
type EventHandler struct {
	svc *service.EventService
	log logger.Logger
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(svc *service.EventService, l logger.Logger) *EventHandler {
	return &EventHandler{svc: svc, log: l}
}

// CreateEvent handles POST /events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidBody, "invalid request body: "+err.Error())
		return
	}

	event, err := h.svc.CreateEvent(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListEvents(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.Event{}
	}

	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeInvalidID, "Valid ID is required")
		return
	}

	event, err := h.svc.GetEvent(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// GetAvailability handles GET /events/{id}/availability
func (h *EventHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeInvalidID, "Valid ID is required")
		return
	}

	a, err := h.svc.Availability(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}
