// Package model defines the core domain types for the event booking system.
package model

import (
	"strings"
	"time"
)

// Event represents a bookable event. The catalog owns it; the booking flow
// only moves AvailableSeats, and only through the ledger.
type Event struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	CategoryID     *int64    `json:"categoryId"`
	VenueID        *int64    `json:"venueId"`
	ManagerID      *string   `json:"managerId"`
	StartDate      time.Time `json:"startDate"`
	EndDate        time.Time `json:"endDate"`
	TicketPrice    float64   `json:"ticketPrice"`
	TotalSeats     int       `json:"totalSeats"`
	AvailableSeats int       `json:"availableSeats"`
	Status         string    `json:"status"`
	ImageURL       *string   `json:"imageUrl"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// EventStatusUpcoming is the status every new event starts in.
const EventStatusUpcoming = "upcoming"

// Availability is a snapshot of an event's seat counter.
type Availability struct {
	EventID        int64 `json:"eventId"`
	AvailableSeats int   `json:"availableSeats"`
	TotalSeats     int   `json:"totalSeats"`
}

// Booked returns the number of seats currently held by non-cancelled bookings.
func (a Availability) Booked() int {
	return a.TotalSeats - a.AvailableSeats
}

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// BookingStatuses lists the accepted booking statuses in display order.
var BookingStatuses = []BookingStatus{BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted}

// Valid reports whether s is one of BookingStatuses.
func (s BookingStatus) Valid() bool {
	for _, v := range BookingStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// HoldsSeats reports whether a booking in this status counts against capacity.
func (s BookingStatus) HoldsSeats() bool {
	return s != BookingCancelled
}

// PaymentStatus tracks payment independently of the booking lifecycle.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

var PaymentStatuses = []PaymentStatus{PaymentPending, PaymentPaid, PaymentRefunded}

// Valid reports whether s is one of PaymentStatuses.
func (s PaymentStatus) Valid() bool {
	for _, v := range PaymentStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Booking is a user's claim on a quantity of an event's seats.
// TotalAmount is fixed at creation and never recomputed.
type Booking struct {
	ID              int64         `json:"id"`
	EventID         int64         `json:"eventId"`
	UserID          string        `json:"userId"`
	NumberOfTickets int           `json:"numberOfTickets"`
	TotalAmount     float64       `json:"totalAmount"`
	BookingStatus   BookingStatus `json:"bookingStatus"`
	PaymentStatus   PaymentStatus `json:"paymentStatus"`
	BookingDate     time.Time     `json:"bookingDate"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// EventSummary is the event part of BookingDetails.
type EventSummary struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	ImageURL    *string   `json:"imageUrl"`
	TicketPrice float64   `json:"ticketPrice"`
	VenueID     *int64    `json:"venueId"`
}

// UserSummary is the profile subset embedded in booking details.
type UserSummary struct {
	ID       string  `json:"id"`
	FullName string  `json:"fullName"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone"`
}

// VenueSummary is the venue subset embedded in booking details.
type VenueSummary struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	Area    string `json:"area"`
}

// BookingDetails is a booking joined with display data. Joined parts are nil
// when the referenced row is missing.
type BookingDetails struct {
	Booking
	Event *EventSummary `json:"event"`
	User  *UserSummary  `json:"user"`
	Venue *VenueSummary `json:"venue"`
}

// Venue and Profile are the catalog rows BookingDetails joins against.
type Venue struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	Area    string `json:"area"`
}

// Profile is a registered user.
type Profile struct {
	ID       string  `json:"id"`
	Email    string  `json:"email"`
	FullName string  `json:"fullName"`
	Phone    *string `json:"phone"`
}

// Pagination bounds for booking listings.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// BookingFilter selects bookings for listing. Empty match fields do not filter.
type BookingFilter struct {
	UserID        string
	EventID       int64
	BookingStatus BookingStatus
	PaymentStatus PaymentStatus
	Limit         int
	Offset        int
}

// Normalize applies the default limit and the cap.
func (f *BookingFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CategoryID  *int64    `json:"categoryId"`
	VenueID     *int64    `json:"venueId"`
	ManagerID   *string   `json:"managerId"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	TicketPrice float64   `json:"ticketPrice"`
	TotalSeats  int       `json:"totalSeats"`
	ImageURL    *string   `json:"imageUrl"`
}

// CreateBookingRequest is the payload for creating a booking. UserID is the
// caller's identity; the transport layer decides where it comes from.
type CreateBookingRequest struct {
	EventID         int64  `json:"eventId"`
	UserID          string `json:"userId"`
	NumberOfTickets int    `json:"numberOfTickets"`
}

// Normalize trims the caller-supplied user ID.
func (r *CreateBookingRequest) Normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
}

// UpdateBookingStatusRequest carries optional status changes. A nil field
// means "leave unchanged".
type UpdateBookingStatusRequest struct {
	BookingStatus *string `json:"bookingStatus"`
	PaymentStatus *string `json:"paymentStatus"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
