package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/citizenhub/complaint-service/internal/domain"
	apperrors "github.com/citizenhub/complaint-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	Session *domain.Session
	User    *domain.User
}

// IsAdmin reports whether the caller is the administrator.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.User != nil && p.User.IsAdmin
}

// SessionResolver looks up a live session by id.
type SessionResolver interface {
	CurrentSession(ctx context.Context, sessionID string) (*domain.Session, error)
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens   *TokenManager
	sessions SessionResolver
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, sessions SessionResolver) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, sessions: sessions}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	principal, err := m.Authenticate(c.UserContext(), ExtractToken(c))
	if err != nil {
		return err
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

// Optional loads a principal when a token is present and continues either way.
func (m *AuthMiddleware) Optional(c *fiber.Ctx) error {
	if token := ExtractToken(c); token != "" {
		if principal, err := m.Authenticate(c.UserContext(), token); err == nil {
			c.Locals(principalKey, principal)
		}
	}
	return c.Next()
}

// Authenticate resolves a raw token into a principal backed by a live session.
func (m *AuthMiddleware) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, apperrors.NewUnauthorized("missing authorization header")
	}

	claims, err := m.tokens.ParseToken(token)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}

	session, err := m.sessions.CurrentSession(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	user := session.User
	return &Principal{Session: session, User: &user}, nil
}

// ExtractToken reads a bearer token from the Authorization header, falling
// back to the token query parameter used by WebSocket upgrades.
func ExtractToken(c *fiber.Ctx) string {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return ""
		}
		return strings.TrimSpace(parts[1])
	}
	return c.Query("token")
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
