package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
}

// UpdateTicketRequest payload for PATCH /tickets/:id.
type UpdateTicketRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// CreateCommentRequest is the JSON form of a comment without files.
type CreateCommentRequest struct {
	Body string `json:"body"`
}

// TicketResponse is the full ticket record.
type TicketResponse struct {
	ID              int64                 `json:"id"`
	UserID          int64                 `json:"user_id"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	FirstResponseAt *time.Time            `json:"first_response_at"`
	ResponseDueAt   time.Time             `json:"response_due_at"`
	ResolutionDueAt time.Time             `json:"resolution_due_at"`
}

// CommentResponse represents one conversation entry.
type CommentResponse struct {
	ID          int64                `json:"id"`
	TicketID    int64                `json:"ticket_id"`
	UserID      int64                `json:"user_id"`
	Body        string               `json:"body"`
	CreatedAt   time.Time            `json:"created_at"`
	Attachments []AttachmentResponse `json:"attachments"`
}

// AttachmentResponse describes a stored file.
type AttachmentResponse struct {
	ID        int64  `json:"id"`
	CommentID int64  `json:"comment_id"`
	Filename  string `json:"filename"`
	Path      string `json:"path"`
	MimeType  string `json:"mimetype"`
	Size      int64  `json:"size"`
}

// CommentCreatedResponse is returned by POST /tickets/:id/comments.
type CommentCreatedResponse struct {
	Comment     CommentResponse      `json:"comment"`
	Attachments []AttachmentResponse `json:"attachments"`
}

// NewTicketResponse maps a ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:              t.ID,
		UserID:          t.UserID,
		Title:           t.Title,
		Description:     t.Description,
		Status:          t.Status,
		Priority:        t.Priority,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		FirstResponseAt: t.FirstResponseAt,
		ResponseDueAt:   t.ResponseDueAt,
		ResolutionDueAt: t.ResolutionDueAt,
	}
}

// NewTicketList maps tickets, never returning a nil slice.
func NewTicketList(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// NewCommentResponse maps a comment and its attachments.
func NewCommentResponse(c *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:          c.ID,
		TicketID:    c.TicketID,
		UserID:      c.UserID,
		Body:        c.Body,
		CreatedAt:   c.CreatedAt,
		Attachments: NewAttachmentList(c.Attachments),
	}
}

// NewCommentList maps comments in order.
func NewCommentList(comments []domain.Comment) []CommentResponse {
	out := make([]CommentResponse, 0, len(comments))
	for i := range comments {
		out = append(out, NewCommentResponse(&comments[i]))
	}
	return out
}

// NewAttachmentList maps attachments, never returning a nil slice.
func NewAttachmentList(atts []domain.Attachment) []AttachmentResponse {
	out := make([]AttachmentResponse, 0, len(atts))
	for _, a := range atts {
		out = append(out, AttachmentResponse{
			ID:        a.ID,
			CommentID: a.CommentID,
			Filename:  a.Filename,
			Path:      a.Path,
			MimeType:  a.MimeType,
			Size:      a.Size,
		})
	}
	return out
}
