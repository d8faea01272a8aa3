package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/storage"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
	"github.com/spec-kit/helpdesk/pkg/validation"
)

const defaultMimeType = "application/octet-stream"

// TicketService coordinates ticket and conversation workflows.
type TicketService struct {
	store      repository.Store
	files      storage.FileStorage
	dispatcher events.Dispatcher
	validate   *validation.Validator
	logger     *zap.Logger
	sla        config.SLAConfig
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.Store
	Files      storage.FileStorage
	Dispatcher events.Dispatcher
	Validator  *validation.Validator
	Logger     *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string                `json:"title" validate:"required,max=255"`
	Description string                `json:"description" validate:"required"`
	Priority    domain.TicketPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
}

// TicketListFilter holds optional exact-match filters.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
}

// StatusUpdateInput is the body of a status change.
type StatusUpdateInput struct {
	Status domain.TicketStatus `json:"status" validate:"required,oneof=open in_progress pending resolved closed"`
}

// UploadInput is one file sent with a comment.
type UploadInput struct {
	Filename string
	MimeType string
	Content  io.Reader
}

// CommentInput describes a new conversation entry.
type CommentInput struct {
	Body  string        `json:"body" validate:"required"`
	Files []UploadInput `json:"-" validate:"-"`
}

// NewTicketService constructs the service.
func NewTicketService(cfg config.Config, deps TicketDependencies) *TicketService {
	v := deps.Validator
	if v == nil {
		v = validation.New()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		store:      deps.Store,
		files:      deps.Files,
		dispatcher: deps.Dispatcher,
		validate:   v,
		logger:     logger,
		sla:        cfg.SLA,
		now:        time.Now,
	}
}

// CreateTicket opens a ticket owned by the caller with SLA deadlines fixed from now.
func (s *TicketService) CreateTicket(ctx context.Context, identity domain.Identity, input TicketCreateInput) (*domain.Ticket, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if input.Priority == "" {
		input.Priority = domain.TicketPriorityMedium
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}

	now := s.timestamp()
	ticket := &domain.Ticket{
		UserID:          identity.ID,
		Title:           input.Title,
		Description:     input.Description,
		Status:          domain.TicketStatusOpen,
		Priority:        input.Priority,
		CreatedAt:       now,
		UpdatedAt:       now,
		ResponseDueAt:   now.Add(s.sla.ResponseWindow()),
		ResolutionDueAt: now.Add(s.sla.ResolutionWindow()),
	}
	if err := s.store.Tickets().Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventTicketCreated,
		ActorID: identity.ID,
		Payload: events.NewTicketPayload(ticket),
	})
	return ticket, nil
}

// ListTickets returns every ticket to staff and only owned tickets to everyone else.
func (s *TicketService) ListTickets(ctx context.Context, identity domain.Identity, filter TicketListFilter) ([]domain.Ticket, error) {
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, apperrors.NewValidationError("unknown status " + string(st))
		}
	}
	for _, p := range filter.Priorities {
		if !p.Valid() {
			return nil, apperrors.NewValidationError("unknown priority " + string(p))
		}
	}

	repoFilter := repository.TicketFilter{
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
	}
	if !identity.IsStaff() {
		ownerID := identity.ID
		repoFilter.OwnerID = &ownerID
	}
	tickets, err := s.store.Tickets().List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// GetTicket fetches a ticket visible to the caller.
func (s *TicketService) GetTicket(ctx context.Context, identity domain.Identity, ticketID int64) (*domain.Ticket, error) {
	return s.visibleTicket(ctx, identity, ticketID)
}

// UpdateStatus lets staff move a ticket to any status. Concurrent updates are last-write-wins.
func (s *TicketService) UpdateStatus(ctx context.Context, identity domain.Identity, ticketID int64, input StatusUpdateInput) (*domain.Ticket, error) {
	if !identity.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	input.Status = domain.TicketStatus(strings.TrimSpace(string(input.Status)))
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}

	ticket, err := s.store.Tickets().UpdateStatus(ctx, ticketID, input.Status, s.timestamp())
	if err != nil {
		return nil, mapRepoError(err, "ticket")
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventTicketUpdated,
		ActorID: identity.ID,
		Payload: events.NewTicketPayload(ticket),
	})
	return ticket, nil
}

// AddComment appends a comment with its attachments. The first staff comment
// stamps first_response_at; later ones leave it alone.
func (s *TicketService) AddComment(ctx context.Context, identity domain.Identity, ticketID int64, input CommentInput) (*domain.Comment, error) {
	ticket, err := s.visibleTicket(ctx, identity, ticketID)
	if err != nil {
		return nil, err
	}
	input.Body = strings.TrimSpace(input.Body)
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}

	stored := make([]storage.StoredFile, 0, len(input.Files))
	attachments := make([]domain.Attachment, 0, len(input.Files))
	for _, file := range input.Files {
		saved, err := s.files.Save(file.Filename, file.Content)
		if err != nil {
			s.removeFiles(stored)
			return nil, apperrors.NewInternalError(err)
		}
		stored = append(stored, saved)

		mimeType := strings.TrimSpace(file.MimeType)
		if mimeType == "" {
			mimeType = defaultMimeType
		}
		attachments = append(attachments, domain.Attachment{
			Filename: file.Filename,
			Path:     saved.Path,
			MimeType: mimeType,
			Size:     saved.Size,
		})
	}

	now := s.timestamp()
	comment := &domain.Comment{
		TicketID:  ticket.ID,
		UserID:    identity.ID,
		Body:      input.Body,
		CreatedAt: now,
	}
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Comments().Create(ctx, comment); err != nil {
			return err
		}
		for i := range attachments {
			attachments[i].CommentID = comment.ID
			if err := tx.Attachments().Create(ctx, &attachments[i]); err != nil {
				return err
			}
		}
		if identity.IsStaff() {
			if _, err := tx.Tickets().MarkFirstResponse(ctx, ticket.ID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.removeFiles(stored)
		return nil, apperrors.MapError(err)
	}
	comment.Attachments = attachments

	s.publishEvent(ctx, events.Event{
		Type:    events.EventCommentCreated,
		ActorID: identity.ID,
		Payload: events.NewCommentPayload(comment),
	})
	return comment, nil
}

// ListComments returns the conversation in insertion order with attachments filled in.
func (s *TicketService) ListComments(ctx context.Context, identity domain.Identity, ticketID int64) ([]domain.Comment, error) {
	ticket, err := s.visibleTicket(ctx, identity, ticketID)
	if err != nil {
		return nil, err
	}

	comments, err := s.store.Comments().ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	attachments, err := s.store.Attachments().ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	byComment := make(map[int64][]domain.Attachment, len(comments))
	for _, att := range attachments {
		byComment[att.CommentID] = append(byComment[att.CommentID], att)
	}
	for i := range comments {
		comments[i].Attachments = byComment[comments[i].ID]
		if comments[i].Attachments == nil {
			comments[i].Attachments = []domain.Attachment{}
		}
	}
	return comments, nil
}

func (s *TicketService) visibleTicket(ctx context.Context, identity domain.Identity, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket")
	}
	if !identity.CanAccess(ticket.UserID) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// timestamp is truncated to the precision Postgres stores.
func (s *TicketService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *TicketService) removeFiles(files []storage.StoredFile) {
	for _, f := range files {
		if err := s.files.Delete(f.Name); err != nil {
			s.logger.Warn("remove orphaned upload", zap.String("file", f.Name), zap.Error(err))
		}
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	s.dispatcher.Publish(ctx, event)
}
