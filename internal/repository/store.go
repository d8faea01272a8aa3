package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned when a users.email unique constraint fires.
	ErrDuplicateEmail = errors.New("email already registered")
)

const pgUniqueViolation = "23505"

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store groups the repositories and runs them inside a transaction when asked.
type Store interface {
	Users() UserRepository
	Tickets() TicketRepository
	Comments() CommentRepository
	Attachments() AttachmentRepository
	// WithinTx runs fn against a Store bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(Store) error) error
}

type pgStore struct {
	pool *pgxpool.Pool
	db   DBTX
	inTx bool
}

// NewStore returns a Postgres-backed Store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool, db: pool}
}

func (s *pgStore) Users() UserRepository             { return NewUserRepository(s.db) }
func (s *pgStore) Tickets() TicketRepository         { return NewTicketRepository(s.db) }
func (s *pgStore) Comments() CommentRepository       { return NewCommentRepository(s.db) }
func (s *pgStore) Attachments() AttachmentRepository { return NewAttachmentRepository(s.db) }

func (s *pgStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&pgStore{pool: s.pool, db: tx, inTx: true})
	})
}

func translateNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
