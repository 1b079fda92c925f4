package model

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors. Always the caller's fault; never retried.
var (
	ErrMissingEventID       = errors.New("event ID is required")
	ErrMissingUserID        = errors.New("user ID is required")
	ErrInvalidTicketCount   = errors.New("number of tickets must be greater than 0")
	ErrInvalidBookingStatus = errors.New("invalid booking status")
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
	ErrNoUpdates            = errors.New("no valid fields to update")
	ErrInvalidID            = errors.New("valid ID is required")
	ErrInvalidPagination    = errors.New("limit and offset must be non-negative integers")
	ErrInvalidEvent         = errors.New("invalid event")
)

// Not-found errors.
var (
	ErrEventNotFound   = errors.New("event not found")
	ErrBookingNotFound = errors.New("booking not found")
)

// ErrInsufficientCapacity is an expected business outcome, not a fault.
var ErrInsufficientCapacity = errors.New("insufficient seats")

// ErrInventoryInconsistent means a compensating action failed and seats may
// have been lost or double counted. It must be alerted on.
var ErrInventoryInconsistent = errors.New("inventory inconsistent")

// CapacityError reports a reservation that did not fit.
type CapacityError struct {
	EventID   int64
	Requested int
	Remaining int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("Not enough seats available. Only %d seats remaining.", e.Remaining)
}

func (e *CapacityError) Unwrap() error { return ErrInsufficientCapacity }

// StatusError names a rejected enum value and the accepted set.
type StatusError struct {
	Field   string
	Value   string
	Allowed []string
	kind    error
}

// NewBookingStatusError reports an unknown booking status value.
func NewBookingStatusError(value string) *StatusError {
	allowed := make([]string, len(BookingStatuses))
	for i, s := range BookingStatuses {
		allowed[i] = string(s)
	}
	return &StatusError{Field: "bookingStatus", Value: value, Allowed: allowed, kind: ErrInvalidBookingStatus}
}

// NewPaymentStatusError reports an unknown payment status value.
func NewPaymentStatusError(value string) *StatusError {
	allowed := make([]string, len(PaymentStatuses))
	for i, s := range PaymentStatuses {
		allowed[i] = string(s)
	}
	return &StatusError{Field: "paymentStatus", Value: value, Allowed: allowed, kind: ErrInvalidPaymentStatus}
}

func (e *StatusError) Error() string {
	name := "booking status"
	if e.kind == ErrInvalidPaymentStatus {
		name = "payment status"
	}
	return fmt.Sprintf("Invalid %s %q. Must be one of: %s", name, e.Value, strings.Join(e.Allowed, ", "))
}

func (e *StatusError) Unwrap() error { return e.kind }

// ValidationError wraps a sentinel with a more specific message.
type ValidationError struct {
	Err     error
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid builds a ValidationError that matches kind with errors.Is.
func Invalid(kind error, format string, args ...any) error {
	return &ValidationError{Err: kind, Message: fmt.Sprintf(format, args...)}
}
