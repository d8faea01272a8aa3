package handlers

import (
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// TicketsHandler manages ticket and comment endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload")
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), identity, service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ticket": dto.NewTicketResponse(ticket)})
}

// ListTickets GET /tickets?status=a,b&priority=c.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	var filter service.TicketListFilter
	for _, s := range splitQuery(c, "status") {
		filter.Statuses = append(filter.Statuses, domain.TicketStatus(s))
	}
	for _, p := range splitQuery(c, "priority") {
		filter.Priorities = append(filter.Priorities, domain.TicketPriority(p))
	}

	tickets, err := h.service.ListTickets(c.UserContext(), identity, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"tickets": dto.NewTicketList(tickets)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), identity, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ticket": dto.NewTicketResponse(ticket)})
}

// UpdateTicket PATCH /tickets/:id changes the status.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload")
	}

	ticket, err := h.service.UpdateStatus(c.UserContext(), identity, id, service.StatusUpdateInput{Status: req.Status})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ticket": dto.NewTicketResponse(ticket)})
}

// AddComment POST /tickets/:id/comments. Accepts multipart (body, files) or JSON.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	input, closeFiles, err := commentInput(c)
	if err != nil {
		return err
	}
	defer closeFiles()

	comment, err := h.service.AddComment(c.UserContext(), identity, id, input)
	if err != nil {
		return err
	}
	resp := dto.NewCommentResponse(comment)
	return c.Status(fiber.StatusCreated).JSON(dto.CommentCreatedResponse{
		Comment:     resp,
		Attachments: resp.Attachments,
	})
}

// ListComments GET /tickets/:id/comments.
func (h *TicketsHandler) ListComments(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	comments, err := h.service.ListComments(c.UserContext(), identity, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"comments": dto.NewCommentList(comments)})
}

func commentInput(c *fiber.Ctx) (service.CommentInput, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm) {
		var req dto.CreateCommentRequest
		if err := c.BodyParser(&req); err != nil {
			return service.CommentInput{}, noop, apperrors.NewValidationError("invalid payload")
		}
		return service.CommentInput{Body: req.Body}, noop, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return service.CommentInput{}, noop, apperrors.NewValidationError("invalid multipart form")
	}
	input := service.CommentInput{}
	if values := form.Value["body"]; len(values) > 0 {
		input.Body = values[0]
	}

	headers := make([]*multipart.FileHeader, 0, len(form.File["files"])+len(form.File["files[]"]))
	headers = append(headers, form.File["files"]...)
	headers = append(headers, form.File["files[]"]...)
	opened := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return service.CommentInput{}, noop, apperrors.NewInternalError(err)
		}
		opened = append(opened, f)
		input.Files = append(input.Files, service.UploadInput{
			Filename: fh.Filename,
			MimeType: fh.Header.Get(fiber.HeaderContentType),
			Content:  f,
		})
	}
	return input, closeAll, nil
}
