package events

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers. The values are
// also the "event" field of outbound webhook bodies.
type EventType string

const (
	EventTicketCreated  EventType = "ticket.created"
	EventTicketUpdated  EventType = "ticket.updated"
	EventCommentCreated EventType = "comment.created"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	ActorID   int64     `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketPayload is the ticket record carried by ticket.created and ticket.updated.
type TicketPayload struct {
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

// CommentPayload is carried by comment.created.
type CommentPayload struct {
	Comment     CommentRecord       `json:"comment"`
	Attachments []AttachmentPayload `json:"attachments"`
}

// CommentRecord mirrors a stored comment row.
type CommentRecord struct {
	ID        int64     `json:"id"`
	TicketID  int64     `json:"ticket_id"`
	UserID    int64     `json:"user_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// AttachmentPayload mirrors a stored attachment row.
type AttachmentPayload struct {
	ID        int64  `json:"id"`
	CommentID int64  `json:"comment_id"`
	Filename  string `json:"filename"`
	Path      string `json:"path"`
	MimeType  string `json:"mimetype"`
	Size      int64  `json:"size"`
}

// NewTicketPayload copies t into its event form.
func NewTicketPayload(t *domain.Ticket) TicketPayload {
	return TicketPayload{
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

// NewCommentPayload copies c and its attachments into their event form.
func NewCommentPayload(c *domain.Comment) CommentPayload {
	atts := make([]AttachmentPayload, 0, len(c.Attachments))
	for _, a := range c.Attachments {
		atts = append(atts, AttachmentPayload{
			ID:        a.ID,
			CommentID: a.CommentID,
			Filename:  a.Filename,
			Path:      a.Path,
			MimeType:  a.MimeType,
			Size:      a.Size,
		})
	}
	return CommentPayload{
		Comment: CommentRecord{
			ID:        c.ID,
			TicketID:  c.TicketID,
			UserID:    c.UserID,
			Body:      c.Body,
			CreatedAt: c.CreatedAt,
		},
		Attachments: atts,
	}
}
