package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citizenhub/complaint-service/internal/auth"
	"github.com/citizenhub/complaint-service/internal/domain"
	"github.com/citizenhub/complaint-service/internal/persistence"
	"github.com/citizenhub/complaint-service/internal/repository"
	"github.com/citizenhub/complaint-service/pkg/util/errorutil"
)

func TestRegisterEstablishesCitizenSession(t *testing.T) {
	svc, _ := newTestAuthService(t, nil)
	ctx := context.Background()

	result, err := svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "s3cret", FirstName: "A", LastName: "B"})
	require.NoError(t, err)

	assert.False(t, result.IsAdmin)
	assert.NotEmpty(t, result.Token)
	assert.Contains(t, result.User.ID, "user-")
	assert.Empty(t, result.User.PasswordHash)

	session, err := svc.CurrentSession(ctx, result.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", session.User.Email)

	_, err = svc.Register(ctx, RegisterInput{Email: "A@X.com", Password: "other", FirstName: "A", LastName: "B"})
	assert.ErrorIs(t, err, errorutil.ErrAlreadyExists)
}

func TestRegisterValidatesInput(t *testing.T) {
	svc, _ := newTestAuthService(t, nil)

	_, err := svc.Register(context.Background(), RegisterInput{Email: "nope"})
	de := errorutil.ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, "VALIDATION_FAILED", de.Code)
	assert.Contains(t, de.Details, "email")
	assert.Contains(t, de.Details, "password")
	assert.Contains(t, de.Details, "firstName")
}

func TestLoginAdministrator(t *testing.T) {
	svc, _ := newTestAuthService(t, nil)
	ctx := context.Background()

	result, err := svc.Login(ctx, "evode.citizenhub@gmail.com", "evode@123")
	require.NoError(t, err)
	assert.True(t, result.IsAdmin)
	assert.Equal(t, domain.AdministratorID, result.User.ID)

	_, err = svc.Login(ctx, "evode.citizenhub@gmail.com", "wrong")
	assert.ErrorIs(t, err, errorutil.ErrInvalidCredentials)
}

func TestLoginCitizen(t *testing.T) {
	svc, _ := newTestAuthService(t, nil)
	ctx := context.Background()

	_, err := svc.Login(ctx, "ghost@x.com", "whatever")
	assert.ErrorIs(t, err, errorutil.ErrUserNotFound)

	_, err = svc.Register(ctx, RegisterInput{Email: "jane@x.com", Password: "s3cret", FirstName: "Jane", LastName: "Doe"})
	require.NoError(t, err)

	result, err := svc.Login(ctx, "Jane@X.com", "s3cret")
	require.NoError(t, err)
	assert.False(t, result.IsAdmin)

	_, err = svc.Login(ctx, "jane@x.com", "other")
	assert.ErrorIs(t, err, errorutil.ErrInvalidCredentials)

	_, err = svc.Register(ctx, RegisterInput{Email: "nopass@x.com", FirstName: "N", LastName: "P"})
	assert.Equal(t, "VALIDATION_FAILED", errorutil.ToDomainError(err).Code)
	_, err = svc.Login(ctx, "nopass@x.com", "")
	assert.ErrorIs(t, err, errorutil.ErrUserNotFound)
}

func TestLoginRejectsAccountWithoutPassword(t *testing.T) {
	svc, _ := newTestAuthService(t, nil)
	ctx := context.Background()
	require.NoError(t, svc.users.Create(ctx, &domain.User{ID: "user-legacy", Email: "legacy@x.com", FirstName: "L", LastName: "G"}))

	_, err := svc.Login(ctx, "legacy@x.com", "")
	assert.ErrorIs(t, err, errorutil.ErrInvalidCredentials)
	assert.Equal(t, "no password is set for this account", err.Error())
}

func TestSessionExpiryIsLazyAndSwept(t *testing.T) {
	clock := newFakeClock()
	svc, store := newTestAuthService(t, clock)
	ctx := context.Background()

	first, err := svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "s3cret", FirstName: "A", LastName: "B"})
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)
	second, err := svc.Login(ctx, "evode.citizenhub@gmail.com", "evode@123")
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	_, err = svc.CurrentSession(ctx, first.Session.ID)
	assert.ErrorIs(t, err, errorutil.ErrNotAuthenticated, "expiry instant counts as expired")

	cleared, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, cleared, "lazy check already cleared the first session")

	clock.Advance(10 * time.Minute)
	cleared, err = svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)

	_, err = svc.CurrentSession(ctx, second.Session.ID)
	assert.ErrorIs(t, err, errorutil.ErrNotAuthenticated)

	keys, err := store.Keys(ctx, "session:")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

// sweepingStore runs a sweep right after the first session key is written,
// landing between the two writes of a session save.
type sweepingStore struct {
	*persistence.MemoryRecords
	sweep   func(context.Context) (int, error)
	fired   bool
	cleared int
	err     error
}

func (s *sweepingStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.MemoryRecords.Set(ctx, key, value); err != nil {
		return err
	}
	if !s.fired && s.sweep != nil && strings.HasPrefix(key, "session:") {
		s.fired = true
		s.cleared, s.err = s.sweep(ctx)
	}
	return nil
}

func TestSweepDuringLoginKeepsNewSession(t *testing.T) {
	ctx := context.Background()
	store := &sweepingStore{MemoryRecords: persistence.NewMemoryRecords()}
	svc := NewAuthService(testAuthConfig(), AuthDependencies{
		UserRepo:    repository.NewUserRepository(store),
		SessionRepo: repository.NewSessionRepository(store),
		Tokens:      auth.NewTokenManager("test-secret", "citizenhub"),
	})
	require.NoError(t, svc.SeedAdministrator(ctx))
	store.sweep = svc.SweepExpired

	result, err := svc.Login(ctx, "evode.citizenhub@gmail.com", "evode@123")
	require.NoError(t, err)

	require.True(t, store.fired)
	require.NoError(t, store.err)
	assert.Zero(t, store.cleared)

	session, err := svc.CurrentSession(ctx, result.Session.ID)
	require.NoError(t, err)
	assert.True(t, session.User.IsAdmin)
}

func TestSweepSkipsSessionsWithoutExpiry(t *testing.T) {
	svc, store := newTestAuthService(t, nil)
	ctx := context.Background()
	require.NoError(t, persistence.SaveJSON(ctx, store, repository.SessionUserKey("orphan"), domain.User{ID: "user-9"}))

	cleared, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, cleared)

	_, err = store.Get(ctx, repository.SessionUserKey("orphan"))
	assert.NoError(t, err)
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc, _ := newTestAuthService(t, nil)
	ctx := context.Background()

	result, err := svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "s3cret", FirstName: "A", LastName: "B"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, result.Session.ID))
	require.NoError(t, svc.Logout(ctx, result.Session.ID))
	require.NoError(t, svc.Logout(ctx, ""))

	_, err = svc.CurrentSession(ctx, result.Session.ID)
	assert.ErrorIs(t, err, errorutil.ErrNotAuthenticated)
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := newTestAuthService(t, nil)
	ctx := context.Background()

	_, err := svc.UpdateProfile(ctx, "missing", domain.ProfileUpdate{})
	assert.ErrorIs(t, err, errorutil.ErrNotAuthenticated)

	result, err := svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "s3cret", FirstName: "A", LastName: "B"})
	require.NoError(t, err)

	user, err := svc.UpdateProfile(ctx, result.Session.ID, domain.ProfileUpdate{Phone: strPtr("0788123456"), Address: strPtr("KG 7 Ave")})
	require.NoError(t, err)
	assert.Equal(t, "0788123456", user.Phone)
	assert.Equal(t, "A", user.FirstName)

	session, err := svc.CurrentSession(ctx, result.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, "KG 7 Ave", session.User.Address)

	again, err := svc.Login(ctx, "a@x.com", "")
	assert.Nil(t, again)
	assert.ErrorIs(t, err, errorutil.ErrInvalidCredentials)
}

func TestSeedAdministratorIsIdempotent(t *testing.T) {
	svc, _ := newTestAuthService(t, nil)
	ctx := context.Background()

	require.NoError(t, svc.SeedAdministrator(ctx))

	users, err := svc.users.List(ctx)
	require.NoError(t, err)
	admins := 0
	for _, u := range users {
		if u.IsAdmin {
			admins++
		}
	}
	assert.Equal(t, 1, admins)
}
