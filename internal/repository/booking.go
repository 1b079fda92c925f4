package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/eventbooking/internal/database"
	"github.com/Shivanand-hulikatti/eventbooking/internal/model"
	"github.com/jackc/pgx/v5"
)

// BookingRepository handles persistence for bookings. Bookings are never
// deleted.
type BookingRepository struct {
	db database.DBTX
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db database.DBTX) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, event_id, user_id, number_of_tickets, total_amount,
	booking_status, payment_status, booking_date, created_at`

// Create inserts b and sets its ID.
func (r *BookingRepository) Create(ctx context.Context, b *model.Booking) error {
	err := database.Conn(ctx, r.db).QueryRow(ctx,
		`INSERT INTO bookings (event_id, user_id, number_of_tickets, total_amount,
			booking_status, payment_status, booking_date, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		b.EventID, b.UserID, b.NumberOfTickets, b.TotalAmount,
		string(b.BookingStatus), string(b.PaymentStatus), b.BookingDate, b.CreatedAt,
	).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// GetForUpdate loads a booking and locks its row until the surrounding
// transaction ends, so two concurrent cancellations cannot both see the old
// status.
func (r *BookingRepository) GetForUpdate(ctx context.Context, id int64) (*model.Booking, error) {
	row := database.Conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`,
		id,
	)
	return scanBooking(row)
}

// UpdateStatus writes both status columns and returns the stored row.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id int64, bs model.BookingStatus, ps model.PaymentStatus) (*model.Booking, error) {
	row := database.Conn(ctx, r.db).QueryRow(ctx,
		`UPDATE bookings
		 SET booking_status = $2, payment_status = $3
		 WHERE id = $1
		 RETURNING `+bookingColumns,
		id, string(bs), string(ps),
	)
	return scanBooking(row)
}

const detailsSelect = `SELECT
	b.id, b.event_id, b.user_id, b.number_of_tickets, b.total_amount,
	b.booking_status, b.payment_status, b.booking_date, b.created_at,
	e.id, e.title, e.start_date, e.end_date, e.image_url, e.ticket_price, e.venue_id,
	p.id, p.full_name, p.email, p.phone,
	v.id, v.name, v.address, v.city, v.area
FROM bookings b
LEFT JOIN events e ON e.id = b.event_id
LEFT JOIN profiles p ON p.id = b.user_id
LEFT JOIN venues v ON v.id = e.venue_id`

// GetDetails returns a booking joined with its event, user and venue.
func (r *BookingRepository) GetDetails(ctx context.Context, id int64) (*model.BookingDetails, error) {
	row := database.Conn(ctx, r.db).QueryRow(ctx, detailsSelect+` WHERE b.id = $1`, id)
	d, err := scanDetails(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrBookingNotFound
		}
		return nil, err
	}
	return d, nil
}

// List returns bookings matching f, newest first.
func (r *BookingRepository) List(ctx context.Context, f model.BookingFilter) ([]model.BookingDetails, error) {
	f.Normalize()
	where, args := filterClause(f)

	args = append(args, f.Limit, f.Offset)
	query := detailsSelect + where +
		` ORDER BY b.created_at DESC, b.id DESC LIMIT $` + strconv.Itoa(len(args)-1) +
		` OFFSET $` + strconv.Itoa(len(args))

	rows, err := database.Conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var out []model.BookingDetails
	for rows.Next() {
		d, err := scanDetails(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func filterClause(f model.BookingFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		conds = append(conds, col+" = $"+strconv.Itoa(len(args)))
	}

	if f.UserID != "" {
		add("b.user_id", f.UserID)
	}
	if f.EventID != 0 {
		add("b.event_id", f.EventID)
	}
	if f.BookingStatus != "" {
		add("b.booking_status", string(f.BookingStatus))
	}
	if f.PaymentStatus != "" {
		add("b.payment_status", string(f.PaymentStatus))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var (
		b      model.Booking
		bs, ps string
	)
	err := row.Scan(
		&b.ID, &b.EventID, &b.UserID, &b.NumberOfTickets, &b.TotalAmount,
		&bs, &ps, &b.BookingDate, &b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrBookingNotFound
		}
		return nil, fmt.Errorf("scan booking: %w", err)
	}
	b.BookingStatus = model.BookingStatus(bs)
	b.PaymentStatus = model.PaymentStatus(ps)
	return &b, nil
}

// Joined columns are nullable because of the LEFT JOINs.
type joinedEvent struct {
	ID        *int64
	Title     *string
	StartDate *time.Time
	EndDate   *time.Time
	ImageURL  *string
	Price     *float64
	VenueID   *int64
}

type joinedProfile struct {
	ID       *string
	FullName *string
	Email    *string
	Phone    *string
}

type joinedVenue struct {
	ID      *int64
	Name    *string
	Address *string
	City    *string
	Area    *string
}

func scanDetails(row pgx.Row) (*model.BookingDetails, error) {
	var (
		d      model.BookingDetails
		bs, ps string
		e      joinedEvent
		p      joinedProfile
		v      joinedVenue
	)
	err := row.Scan(
		&d.ID, &d.EventID, &d.UserID, &d.NumberOfTickets, &d.TotalAmount,
		&bs, &ps, &d.BookingDate, &d.CreatedAt,
		&e.ID, &e.Title, &e.StartDate, &e.EndDate, &e.ImageURL, &e.Price, &e.VenueID,
		&p.ID, &p.FullName, &p.Email, &p.Phone,
		&v.ID, &v.Name, &v.Address, &v.City, &v.Area,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan booking details: %w", err)
	}
	d.BookingStatus = model.BookingStatus(bs)
	d.PaymentStatus = model.PaymentStatus(ps)

	if e.ID != nil {
		d.Event = &model.EventSummary{
			ID:          *e.ID,
			Title:       deref(e.Title),
			StartDate:   deref(e.StartDate),
			EndDate:     deref(e.EndDate),
			ImageURL:    e.ImageURL,
			TicketPrice: deref(e.Price),
			VenueID:     e.VenueID,
		}
	}
	if p.ID != nil {
		d.User = &model.UserSummary{ID: *p.ID, FullName: deref(p.FullName), Email: deref(p.Email), Phone: p.Phone}
	}
	if v.ID != nil {
		d.Venue = &model.VenueSummary{ID: *v.ID, Name: deref(v.Name), Address: deref(v.Address), City: deref(v.City), Area: deref(v.Area)}
	}
	return &d, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
