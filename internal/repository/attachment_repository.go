package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// AttachmentRepository persists attachment metadata.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.Attachment) error
	ListByComment(ctx context.Context, commentID int64) ([]domain.Attachment, error)
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.Attachment, error)
	// ListByUser returns the attachments a delete of userID cascades to: those on
	// comments the user wrote and on comments under tickets the user owns.
	ListByUser(ctx context.Context, userID int64) ([]domain.Attachment, error)
}

type attachmentRepository struct {
	db DBTX
}

// NewAttachmentRepository constructs repository.
func NewAttachmentRepository(db DBTX) AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) error {
	const query = `
        INSERT INTO attachments (comment_id, filename, path, mimetype, size)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id`
	return r.db.QueryRow(ctx, query,
		attachment.CommentID,
		attachment.Filename,
		attachment.Path,
		attachment.MimeType,
		attachment.Size,
	).Scan(&attachment.ID)
}

func (r *attachmentRepository) ListByComment(ctx context.Context, commentID int64) ([]domain.Attachment, error) {
	const query = `
        SELECT id, comment_id, filename, path, mimetype, size
        FROM attachments WHERE comment_id=$1 ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query, commentID)
	if err != nil {
		return nil, err
	}
	return scanAttachments(rows)
}

func (r *attachmentRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Attachment, error) {
	const query = `
        SELECT a.id, a.comment_id, a.filename, a.path, a.mimetype, a.size
        FROM attachments a JOIN comments c ON c.id = a.comment_id
        WHERE c.ticket_id=$1 ORDER BY a.id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	return scanAttachments(rows)
}

func (r *attachmentRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Attachment, error) {
	const query = `
        SELECT a.id, a.comment_id, a.filename, a.path, a.mimetype, a.size
        FROM attachments a
        JOIN comments c ON c.id = a.comment_id
        JOIN tickets t ON t.id = c.ticket_id
        WHERE c.user_id=$1 OR t.user_id=$1 ORDER BY a.id ASC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return scanAttachments(rows)
}

func scanAttachments(rows pgx.Rows) ([]domain.Attachment, error) {
	defer rows.Close()

	result := []domain.Attachment{}
	for rows.Next() {
		var attachment domain.Attachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.CommentID,
			&attachment.Filename,
			&attachment.Path,
			&attachment.MimeType,
			&attachment.Size,
		); err != nil {
			return nil, err
		}
		result = append(result, attachment)
	}
	return result, rows.Err()
}
