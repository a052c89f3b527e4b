package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/citizenhub/complaint-service/pkg/util/errorutil"
)

// RequireAdmin ensures the administrator is authenticated.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !principal.IsAdmin() {
			return apperrors.NewForbidden("administrator privileges required")
		}
		return c.Next()
	}
}

// RequireAuthenticated ensures a citizen or the administrator is authenticated.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
