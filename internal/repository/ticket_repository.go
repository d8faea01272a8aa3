package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const ticketColumns = `id, user_id, title, description, status, priority, created_at, updated_at,
        first_response_at, response_due_at, resolution_due_at`

// TicketFilter narrows ticket listings. A nil OwnerID lists every ticket.
type TicketFilter struct {
	OwnerID    *int64
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	UpdateStatus(ctx context.Context, id int64, status domain.TicketStatus, at time.Time) (*domain.Ticket, error)
	// MarkFirstResponse sets first_response_at only while it is still null.
	// It reports whether this call set it.
	MarkFirstResponse(ctx context.Context, id int64, at time.Time) (bool, error)
}

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (user_id, title, description, status, priority, created_at, updated_at,
            first_response_at, response_due_at, resolution_due_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id`
	return r.db.QueryRow(ctx, query,
		ticket.UserID,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.CreatedAt,
		ticket.UpdatedAt,
		ticket.FirstResponseAt,
		ticket.ResponseDueAt,
		ticket.ResolutionDueAt,
	).Scan(&ticket.ID)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.db.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id))
	return ticket, translateNoRows(err)
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	builder := psql.Select(ticketColumns).From("tickets")
	if filter.OwnerID != nil {
		builder = builder.Where(sq.Eq{"user_id": *filter.OwnerID})
	}
	if len(filter.Statuses) > 0 {
		builder = builder.Where(sq.Eq{"status": filter.Statuses})
	}
	if len(filter.Priorities) > 0 {
		builder = builder.Where(sq.Eq{"priority": filter.Priorities})
	}
	query, args, err := builder.OrderBy("created_at DESC", "id DESC").ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id int64, status domain.TicketStatus, at time.Time) (*domain.Ticket, error) {
	query := `UPDATE tickets SET status=$1, updated_at=$2 WHERE id=$3 RETURNING ` + ticketColumns
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, status, at, id))
	return ticket, translateNoRows(err)
}

func (r *ticketRepository) MarkFirstResponse(ctx context.Context, id int64, at time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET first_response_at=$1, updated_at=$1
        WHERE id=$2 AND first_response_at IS NULL`
	cmd, err := r.db.Exec(ctx, query, at, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.UserID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.FirstResponseAt,
		&ticket.ResponseDueAt,
		&ticket.ResolutionDueAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
