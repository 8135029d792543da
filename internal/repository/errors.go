package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = pgx.ErrNoRows

	// ErrVersionConflict means the ticket changed since it was loaded.
	ErrVersionConflict = errors.New("ticket was modified concurrently")

	// ErrDuplicateTicket means a ticket with the same type and external id exists.
	ErrDuplicateTicket = errors.New("ticket already exists")

	// ErrDuplicateOperator means the operator email is taken.
	ErrDuplicateOperator = errors.New("operator already exists")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// isID reports whether id can be compared with a UUID column. Lookups of
// anything else match no row.
func isID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
