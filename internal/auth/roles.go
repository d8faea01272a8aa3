package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// RequireStaff ensures the caller is an agent or admin.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !identity.IsStaff() {
			return apperrors.NewForbidden("staff role required")
		}
		return c.Next()
	}
}

// RequireAdmin ensures the caller is an admin.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !identity.IsAdmin() {
			return apperrors.NewForbidden("admin role required")
		}
		return c.Next()
	}
}
