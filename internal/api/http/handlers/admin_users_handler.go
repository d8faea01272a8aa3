package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// AdminUsersHandler exposes admin-only account management.
type AdminUsersHandler struct {
	service *service.UserService
}

// NewAdminUsersHandler constructs handler.
func NewAdminUsersHandler(userService *service.UserService) *AdminUsersHandler {
	return &AdminUsersHandler{service: userService}
}

// List handles GET /admin/users.
func (h *AdminUsersHandler) List(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	users, err := h.service.ListUsers(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"users": dto.NewUserList(users)})
}

// Create handles POST /admin/users.
func (h *AdminUsersHandler) Create(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	var req dto.AdminCreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload")
	}
	user, err := h.service.CreateUser(c.UserContext(), identity, service.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": dto.NewUserResponse(user)})
}

// Update handles PATCH /admin/users/:id.
func (h *AdminUsersHandler) Update(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.AdminUpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload")
	}
	user, err := h.service.UpdateUser(c.UserContext(), identity, id, service.UpdateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"user": dto.NewUserResponse(user)})
}

// Delete handles DELETE /admin/users/:id.
func (h *AdminUsersHandler) Delete(c *fiber.Ctx) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.DeleteUser(c.UserContext(), identity, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true})
}
