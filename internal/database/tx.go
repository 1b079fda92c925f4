package database

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/Shivanand-hulikatti/eventbooking/internal/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrRollbackFailed is returned when a failed unit of work could not be
// rolled back. Whatever it wrote may or may not have been undone.
var ErrRollbackFailed = errors.New("rollback failed")

// ErrCommitUnknown is returned when COMMIT was sent but no reply arrived. The
// transaction may or may not have been applied.
var ErrCommitUnknown = errors.New("commit outcome unknown")

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool matches the methods from *pgxpool.Pool that we use, so tests can
// substitute pgxmock.
type Pool interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

type txKey struct{}

// Conn returns the transaction carried by ctx, or fallback when there is none.
func Conn(ctx context.Context, fallback DBTX) DBTX {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return fallback
}

// InTx reports whether ctx carries a pgx transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(pgx.Tx)
	return ok
}

// Transactor runs units of work inside a single pgx transaction.
type Transactor struct {
	pool Pool
	log  logger.Logger
}

// NewTransactor returns a Transactor that begins transactions on pool.
func NewTransactor(pool Pool, l logger.Logger) *Transactor {
	return &Transactor{pool: pool, log: l}
}

// WithinTx runs fn in a transaction. fn's context carries the transaction, so
// repositories using Conn pick it up. A nested call joins the outer
// transaction. Hooks registered with AfterCommit run only after a successful
// commit of the outermost transaction.
//
// The transaction is rolled back on any exit that is not a commit, a panic
// included, so the row locks it holds never outlive fn.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	finished := false
	defer func() {
		if !finished {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	txCtx, hooks := WithHooks(context.WithValue(ctx, txKey{}, tx))

	if err := fn(txCtx); err != nil {
		finished = true
		return t.rollback(ctx, tx, err)
	}

	finished = true
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		if commitOutcomeUnknown(err) {
			t.log.Error("transaction commit outcome unknown", "error", err)
			return fmt.Errorf("%w: %w", ErrCommitUnknown, err)
		}
		return fmt.Errorf("commit transaction: %w", err)
	}

	hooks.Run()
	return nil
}

// rollback undoes a failed unit of work and returns cause. A rollback that
// fails because the connection is gone is harmless: the server aborts the
// transaction when the session ends.
func (t *Transactor) rollback(ctx context.Context, tx pgx.Tx, cause error) error {
	rbErr := tx.Rollback(context.WithoutCancel(ctx))
	if rbErr == nil || errors.Is(rbErr, pgx.ErrTxClosed) {
		return cause
	}
	if connectionLost(ctx, rbErr, cause) {
		t.log.Warn("transaction rollback skipped, connection gone", "error", rbErr, "cause", cause)
		return cause
	}
	t.log.Error("transaction rollback failed", "error", rbErr, "cause", cause)
	return fmt.Errorf("%w: %v (cause: %w)", ErrRollbackFailed, rbErr, cause)
}

func connectionLost(ctx context.Context, errs ...error) bool {
	if ctx.Err() != nil {
		return true
	}
	for _, err := range errs {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
			return true
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return true
		}
	}
	return false
}

// commitOutcomeUnknown reports whether COMMIT may have reached the server
// without an answer coming back. A server error or an error raised before
// anything was sent means the transaction did not commit.
func commitOutcomeUnknown(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return false
	}
	return !pgconn.SafeToRetry(err)
}
