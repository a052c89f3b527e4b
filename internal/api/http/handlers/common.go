package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/citizenhub/complaint-service/internal/api/validation"
	"github.com/citizenhub/complaint-service/internal/auth"
	"github.com/citizenhub/complaint-service/internal/domain"
	apperrors "github.com/citizenhub/complaint-service/pkg/util/errorutil"
)

// bindBody validates the raw body against schema, then parses it into dst.
func bindBody(c *fiber.Ctx, validator *validation.Validator, schema string, dst any) error {
	if validator != nil {
		if err := validator.Validate(schema, c.Body()); err != nil {
			return err
		}
	}
	if err := c.BodyParser(dst); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

// currentPrincipal returns the authenticated caller or a 401.
func currentPrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	return principal, nil
}

func currentUser(c *fiber.Ctx) (*domain.User, error) {
	principal, err := currentPrincipal(c)
	if err != nil {
		return nil, err
	}
	return principal.User, nil
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseDate accepts a calendar day or an RFC3339 timestamp.
func parseDate(val string) (*time.Time, error) {
	if val == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.DateOnly, val); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid date", map[string]any{"value": val})
	}
	return &t, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
