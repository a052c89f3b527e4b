package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/citizenhub/complaint-service/internal/auth"
	"github.com/citizenhub/complaint-service/internal/config"
	"github.com/citizenhub/complaint-service/internal/domain"
	"github.com/citizenhub/complaint-service/internal/repository"
	"github.com/citizenhub/complaint-service/pkg/util/errorutil"
)

// AuthService coordinates identities and sessions.
type AuthService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	tokenMgr *auth.TokenManager
	cfg      config.AuthConfig
	logger   *zap.Logger
	now      func() time.Time
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo    repository.UserRepository
	SessionRepo repository.SessionRepository
	Tokens      *auth.TokenManager
	Logger      *zap.Logger
}

// RegisterInput carries the citizen registration form.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Address   string
}

// AuthResult is returned by login and registration.
type AuthResult struct {
	User    domain.User
	Session *domain.Session
	Token   string
	IsAdmin bool
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:    deps.UserRepo,
		sessions: deps.SessionRepo,
		tokenMgr: deps.Tokens,
		cfg:      cfg,
		logger:   orNop(deps.Logger),
		now:      time.Now,
	}
}

// SeedAdministrator creates the well-known administrator identity if missing
// and keeps its email and secret in line with configuration.
func (s *AuthService) SeedAdministrator(ctx context.Context) error {
	admin, err := s.users.GetByID(ctx, domain.AdministratorID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	if admin != nil {
		email := domain.NormalizeEmail(s.cfg.AdminEmail)
		if admin.Email == email && auth.ComparePassword(admin.PasswordHash, s.cfg.AdminPassword) == nil {
			return nil
		}
		hash, err := auth.HashPassword(s.cfg.AdminPassword, s.cfg.BcryptCost)
		if err != nil {
			return err
		}
		admin.Email = email
		admin.PasswordHash = hash
		admin.IsAdmin = true
		s.logger.Info("administrator identity updated from configuration")
		return s.users.Update(ctx, admin)
	}

	hash, err := auth.HashPassword(s.cfg.AdminPassword, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	admin = &domain.User{
		ID:           domain.AdministratorID,
		Email:        domain.NormalizeEmail(s.cfg.AdminEmail),
		FirstName:    s.cfg.AdminFirstName,
		LastName:     s.cfg.AdminLastName,
		IsAdmin:      true,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	s.logger.Info("seeding administrator identity", zap.String("email", admin.Email))
	return s.users.Create(ctx, admin)
}

// Login authenticates an identity and establishes a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errorutil.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if user.PasswordHash == "" {
		return nil, errorutil.Wrap(errorutil.ErrInvalidCredentials, "no password is set for this account")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		if user.IsAdmin {
			return nil, errorutil.Wrap(errorutil.ErrInvalidCredentials, "invalid administrator password")
		}
		return nil, errorutil.ErrInvalidCredentials
	}

	return s.establish(ctx, user)
}

// Register creates a citizen identity and establishes a session.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := domain.NormalizeEmail(input.Email)
	problems := map[string]any{}
	if email == "" || !strings.Contains(email, "@") {
		problems["email"] = "a valid email is required"
	}
	if input.Password == "" {
		problems["password"] = "required"
	}
	if strings.TrimSpace(input.FirstName) == "" {
		problems["firstName"] = "required"
	}
	if strings.TrimSpace(input.LastName) == "" {
		problems["lastName"] = "required"
	}
	if len(problems) > 0 {
		return nil, errorutil.NewValidationError("invalid registration", problems)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, errorutil.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	user := &domain.User{
		ID:        "user-" + uuid.NewString(),
		Email:     email,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Phone:     strings.TrimSpace(input.Phone),
		Address:   strings.TrimSpace(input.Address),
		CreatedAt: s.now().UTC(),
	}
	hash, err := auth.HashPassword(input.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("citizen registered", zap.String("user_id", user.ID))

	return s.establish(ctx, user)
}

// Logout clears the session. Unknown sessions are ignored.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessions.Delete(ctx, sessionID)
}

// CurrentSession returns the live session, clearing it when expired.
func (s *AuthService) CurrentSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, errorutil.ErrNotAuthenticated
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errorutil.ErrNotAuthenticated
	}
	if err != nil {
		return nil, err
	}
	if session.Expired(s.now()) {
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			s.logger.Warn("clear expired session", zap.String("session_id", sessionID), zap.Error(err))
		}
		return nil, errorutil.Wrap(errorutil.ErrNotAuthenticated, "session expired")
	}
	return session, nil
}

// UpdateProfile merges profile fields into the session's user.
func (s *AuthService) UpdateProfile(ctx context.Context, sessionID string, update domain.ProfileUpdate) (*domain.User, error) {
	session, err := s.CurrentSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, session.User.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errorutil.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	update.Apply(user)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	session.User = *user
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	public := user.Public()
	return &public, nil
}

// SweepExpired clears every session whose expiry has passed. Entries without
// an expiry record are left alone.
func (s *AuthService) SweepExpired(ctx context.Context) (int, error) {
	ids, err := s.sessions.ListIDs(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	cleared := 0
	for _, id := range ids {
		expiresAt, err := s.sessions.ExpiresAt(ctx, id)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			// no expiry yet: the session is still being written
			continue
		case err != nil:
			s.logger.Warn("read session expiry", zap.String("session_id", id), zap.Error(err))
			continue
		case !(&domain.Session{ExpiresAt: expiresAt}).Expired(now):
			continue
		}
		if err := s.sessions.Delete(ctx, id); err != nil {
			return cleared, err
		}
		cleared++
	}
	if cleared > 0 {
		s.logger.Info("expired sessions cleared", zap.Int("count", cleared))
	}
	return cleared, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) establish(ctx context.Context, user *domain.User) (*AuthResult, error) {
	session := &domain.Session{
		ID:        uuid.NewString(),
		User:      user.Public(),
		ExpiresAt: s.now().Add(s.cfg.SessionTTL()).UTC(),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	token, err := s.tokenMgr.GenerateToken(session)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		User:    session.User,
		Session: session,
		Token:   token,
		IsAdmin: user.IsAdmin,
	}, nil
}
