package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/eventbooking/internal/database"
	"github.com/Shivanand-hulikatti/eventbooking/internal/logger"
	"github.com/Shivanand-hulikatti/eventbooking/internal/model"
	"github.com/jackc/pgx/v5"
)

// TxRunner scopes a unit of work. *database.Transactor implements it.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Postgres keeps the counter in the events.available_seats column.
//
// Reserve and Release take a row lock with SELECT ... FOR UPDATE before the
// read-modify-write, so concurrent calls on one event serialise while calls on
// different events never contend. When ctx already carries a transaction they
// join it and the lock is held until the caller commits.
type Postgres struct {
	db  database.DBTX
	tx  TxRunner
	log logger.Logger
}

// NewPostgres returns a ledger over db. Writes run through tx so they join
// a surrounding transaction.
func NewPostgres(db database.DBTX, tx TxRunner, l logger.Logger) *Postgres {
	return &Postgres{db: db, tx: tx, log: l.With("component", "ledger")}
}

// Reserve debits count seats, failing with a *model.CapacityError when
// fewer remain.
func (p *Postgres) Reserve(ctx context.Context, eventID int64, count int) (model.Availability, error) {
	var out model.Availability
	err := p.tx.WithinTx(ctx, func(ctx context.Context) error {
		cur, err := p.lock(ctx, eventID)
		if err != nil {
			return err
		}
		next, err := Debit(cur, count)
		if err != nil {
			return err
		}
		if err := p.write(ctx, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return model.Availability{}, err
	}

	p.log.Debug("seats reserved", "event_id", eventID, "count", count, "available", out.AvailableSeats)
	return out, nil
}

// Release credits count seats, clamping at the event total.
func (p *Postgres) Release(ctx context.Context, eventID int64, count int) (model.Availability, error) {
	var out model.Availability
	err := p.tx.WithinTx(ctx, func(ctx context.Context) error {
		cur, err := p.lock(ctx, eventID)
		if err != nil {
			return err
		}
		next, clamped, err := Credit(cur, count)
		if err != nil {
			return err
		}
		if clamped {
			p.log.Warn("release clamped at total seats",
				"event_id", eventID,
				"count", count,
				"available_before", cur.AvailableSeats,
				"total", cur.TotalSeats,
			)
		}
		if err := p.write(ctx, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return model.Availability{}, err
	}

	p.log.Debug("seats released", "event_id", eventID, "count", count, "available", out.AvailableSeats)
	return out, nil
}

// Read returns one snapshot of the counter. Both numbers come from the same
// row version.
func (p *Postgres) Read(ctx context.Context, eventID int64) (model.Availability, error) {
	a := model.Availability{EventID: eventID}
	err := database.Conn(ctx, p.db).QueryRow(ctx,
		`SELECT available_seats, total_seats FROM events WHERE id = $1`,
		eventID,
	).Scan(&a.AvailableSeats, &a.TotalSeats)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Availability{}, model.ErrEventNotFound
		}
		return model.Availability{}, fmt.Errorf("read availability: %w", err)
	}
	return a, nil
}

func (p *Postgres) lock(ctx context.Context, eventID int64) (model.Availability, error) {
	a := model.Availability{EventID: eventID}
	err := database.Conn(ctx, p.db).QueryRow(ctx,
		`SELECT available_seats, total_seats
		 FROM events
		 WHERE id = $1
		 FOR UPDATE`,
		eventID,
	).Scan(&a.AvailableSeats, &a.TotalSeats)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Availability{}, model.ErrEventNotFound
		}
		return model.Availability{}, fmt.Errorf("lock event row: %w", err)
	}
	if err := Check(a); err != nil {
		return model.Availability{}, err
	}
	return a, nil
}

func (p *Postgres) write(ctx context.Context, a model.Availability) error {
	tag, err := database.Conn(ctx, p.db).Exec(ctx,
		`UPDATE events SET available_seats = $2, updated_at = now() WHERE id = $1`,
		a.EventID, a.AvailableSeats,
	)
	if err != nil {
		return fmt.Errorf("update available_seats: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update available_seats: %w", model.ErrEventNotFound)
	}
	return nil
}
