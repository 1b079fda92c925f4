// Package ledger owns the per-event seat counter. It is the only code that
// writes events.available_seats.
//
// The invariant it keeps is
//
//	available_seats == total_seats - Σ number_of_tickets (non-cancelled bookings)
//
// which holds as long as every crossing into or out of "cancelled" calls
// Release or Reserve exactly once, inside the same unit of work that writes the
// booking.
package ledger

import (
	"fmt"

	"github.com/Shivanand-hulikatti/eventbooking/internal/model"
)

// Debit takes count seats from a. It fails with *model.CapacityError and
// leaves a untouched when there are not enough seats.
func Debit(a model.Availability, count int) (model.Availability, error) {
	if count < 1 {
		return a, model.Invalid(model.ErrInvalidTicketCount, "seat count must be at least 1, got %d", count)
	}
	if a.AvailableSeats < count {
		return a, &model.CapacityError{EventID: a.EventID, Requested: count, Remaining: a.AvailableSeats}
	}
	a.AvailableSeats -= count
	return a, nil
}

// Credit gives count seats back to a, never exceeding TotalSeats. clamped is
// true when the ceiling cut the credit short, which means something released
// seats it never held.
func Credit(a model.Availability, count int) (next model.Availability, clamped bool, err error) {
	if count < 1 {
		return a, false, model.Invalid(model.ErrInvalidTicketCount, "seat count must be at least 1, got %d", count)
	}
	a.AvailableSeats += count
	if a.AvailableSeats > a.TotalSeats {
		a.AvailableSeats = a.TotalSeats
		clamped = true
	}
	return a, clamped, nil
}

// Check verifies the counter bounds of a snapshot.
func Check(a model.Availability) error {
	if a.AvailableSeats < 0 || a.AvailableSeats > a.TotalSeats {
		return fmt.Errorf("%w: event %d has %d of %d seats available",
			model.ErrInventoryInconsistent, a.EventID, a.AvailableSeats, a.TotalSeats)
	}
	return nil
}
