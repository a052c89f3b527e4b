package repository

import (
	"context"
	"sync"

	"github.com/citizenhub/complaint-service/internal/domain"
	"github.com/citizenhub/complaint-service/internal/persistence"
)

// UsersKey is the record key holding the identity directory.
const UsersKey = "users"

// UserRepository defines persistence access for the identity directory.
type UserRepository interface {
	List(ctx context.Context) ([]domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type userRepository struct {
	mu    sync.Mutex
	store persistence.RecordStore
}

// NewUserRepository returns a record-store-backed implementation.
func NewUserRepository(store persistence.RecordStore) UserRepository {
	return &userRepository{store: store}
}

func (r *userRepository) List(ctx context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load(ctx)
	if err != nil {
		return err
	}
	users = append(users, *user)
	return persistence.SaveJSON(ctx, r.store, UsersKey, users)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load(ctx)
	if err != nil {
		return err
	}
	for i := range users {
		if users[i].ID == user.ID {
			users[i] = *user
			return persistence.SaveJSON(ctx, r.store, UsersKey, users)
		}
	}
	return ErrNotFound
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.find(ctx, func(u *domain.User) bool { return u.ID == id })
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	return r.find(ctx, func(u *domain.User) bool { return domain.NormalizeEmail(u.Email) == email })
}

func (r *userRepository) find(ctx context.Context, match func(*domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if match(&users[i]) {
			user := users[i]
			return &user, nil
		}
	}
	return nil, ErrNotFound
}

func (r *userRepository) load(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if _, err := persistence.LoadJSON(ctx, r.store, UsersKey, &users); err != nil {
		return nil, err
	}
	return users, nil
}
