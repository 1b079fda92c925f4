// Package repository implements the pgx-backed catalog and booking queries.
// It uses pgx directly (no ORM). Every method resolves its connection with
// database.Conn, so it runs inside the caller's transaction when there is one.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/eventbooking/internal/database"
	"github.com/Shivanand-hulikatti/eventbooking/internal/model"
	"github.com/jackc/pgx/v5"
)

// EventRepository handles persistence for catalog events.
type EventRepository struct {
	db database.DBTX
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db database.DBTX) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, title, description, category_id, venue_id, manager_id, start_date, end_date,
	ticket_price, total_seats, available_seats, status, image_url, created_at, updated_at`

// Create inserts a new event with all of its seats available.
func (r *EventRepository) Create(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	now := time.Now().UTC()
	e := &model.Event{
		Title:          req.Title,
		Description:    req.Description,
		CategoryID:     req.CategoryID,
		VenueID:        req.VenueID,
		ManagerID:      req.ManagerID,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		TicketPrice:    req.TicketPrice,
		TotalSeats:     req.TotalSeats,
		AvailableSeats: req.TotalSeats,
		Status:         model.EventStatusUpcoming,
		ImageURL:       req.ImageURL,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := database.Conn(ctx, r.db).QueryRow(ctx,
		`INSERT INTO events (title, description, category_id, venue_id, manager_id, start_date, end_date,
			ticket_price, total_seats, available_seats, status, image_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING id`,
		e.Title, e.Description, e.CategoryID, e.VenueID, e.ManagerID, e.StartDate, e.EndDate,
		e.TicketPrice, e.TotalSeats, e.AvailableSeats, e.Status, e.ImageURL, e.CreatedAt, e.UpdatedAt,
	).Scan(&e.ID)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return e, nil
}

// List returns all events ordered by start date.
func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	rows, err := database.Conn(ctx, r.db).Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 ORDER BY start_date ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// GetByID returns a single event or model.ErrEventNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id int64) (*model.Event, error) {
	row := database.Conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`,
		id,
	)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrEventNotFound
		}
		return nil, err
	}
	return e, nil
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.CategoryID, &e.VenueID, &e.ManagerID, &e.StartDate, &e.EndDate,
		&e.TicketPrice, &e.TotalSeats, &e.AvailableSeats, &e.Status, &e.ImageURL, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	return &e, nil
}
