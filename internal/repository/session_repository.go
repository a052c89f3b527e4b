package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/citizenhub/complaint-service/internal/domain"
	"github.com/citizenhub/complaint-service/internal/persistence"
)

const sessionPrefix = "session:"

// SessionUserKey is the record key holding the session's user.
func SessionUserKey(id string) string { return sessionPrefix + id + ":user" }

// SessionExpiryKey is the record key holding the session expiry in epoch milliseconds.
func SessionExpiryKey(id string) string { return sessionPrefix + id + ":expiry" }

// SessionRepository persists live sessions as a user record plus an expiry record.
// The expiry record is written first and removed last, so a session with a
// user record always has an expiry.
type SessionRepository interface {
	Save(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	ExpiresAt(ctx context.Context, id string) (time.Time, error)
	Delete(ctx context.Context, id string) error
	ListIDs(ctx context.Context) ([]string, error)
}

type sessionRepository struct {
	store persistence.RecordStore
}

// NewSessionRepository constructs repository.
func NewSessionRepository(store persistence.RecordStore) SessionRepository {
	return &sessionRepository{store: store}
}

func (r *sessionRepository) Save(ctx context.Context, session *domain.Session) error {
	expiry := strconv.FormatInt(session.ExpiresAt.UnixMilli(), 10)
	if err := r.store.Set(ctx, SessionExpiryKey(session.ID), []byte(expiry)); err != nil {
		return err
	}
	return persistence.SaveJSON(ctx, r.store, SessionUserKey(session.ID), session.User)
}

func (r *sessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	var user domain.User
	ok, err := persistence.LoadJSON(ctx, r.store, SessionUserKey(id), &user)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}

	expiresAt, err := r.ExpiresAt(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.Session{ID: id, User: user, ExpiresAt: expiresAt}, nil
}

func (r *sessionRepository) ExpiresAt(ctx context.Context, id string) (time.Time, error) {
	raw, err := r.store.Get(ctx, SessionExpiryKey(id))
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, err
	}
	millis, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode session expiry: %w", err)
	}
	return time.UnixMilli(millis).UTC(), nil
}

func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, SessionUserKey(id)); err != nil {
		return err
	}
	return r.store.Delete(ctx, SessionExpiryKey(id))
}

func (r *sessionRepository) ListIDs(ctx context.Context) ([]string, error) {
	keys, err := r.store.Keys(ctx, sessionPrefix)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	ids := make([]string, 0, len(keys)/2)
	for _, key := range keys {
		rest := strings.TrimPrefix(key, sessionPrefix)
		idx := strings.LastIndex(rest, ":")
		if idx <= 0 {
			continue
		}
		id := rest[:idx]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}
