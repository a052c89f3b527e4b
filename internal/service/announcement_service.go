package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/citizenhub/complaint-service/internal/domain"
	"github.com/citizenhub/complaint-service/internal/events"
	"github.com/citizenhub/complaint-service/internal/repository"
	"github.com/citizenhub/complaint-service/pkg/util/errorutil"
)

// AnnouncementService owns the announcement collection.
type AnnouncementService struct {
	mu            sync.RWMutex
	announcements []domain.Announcement

	repo      repository.AnnouncementRepository
	publisher publisher
	logger    *zap.Logger
	now       func() time.Time
}

// AnnouncementDependencies bundles collaborators for the announcement registry.
type AnnouncementDependencies struct {
	Repo       repository.AnnouncementRepository
	Dispatcher events.Dispatcher
	Origin     string
	Logger     *zap.Logger
}

// NewAnnouncementService constructs the service. Call Refresh to hydrate it.
func NewAnnouncementService(deps AnnouncementDependencies) *AnnouncementService {
	logger := orNop(deps.Logger)
	return &AnnouncementService{
		repo:      deps.Repo,
		publisher: publisher{dispatcher: deps.Dispatcher, origin: deps.Origin, logger: logger},
		logger:    logger,
		now:       time.Now,
	}
}

// Listen applies announcement events published by other instances.
func (s *AnnouncementService) Listen(dispatcher events.Dispatcher) func() {
	return dispatcher.Subscribe(s.ApplyRemote,
		events.EventAnnouncementAdded, events.EventAnnouncementUpdated, events.EventAnnouncementDeleted)
}

// Create publishes a new active announcement.
func (s *AnnouncementService) Create(ctx context.Context, actor *domain.User, fields domain.AnnouncementFields) (*domain.Announcement, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	fields = fields.Normalize()
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	announcement := domain.Announcement{
		ID:        uuid.NewString(),
		Title:     fields.Title,
		Message:   fields.Message,
		Priority:  fields.Priority,
		IsActive:  true,
		CreatedAt: now,
		CreatedBy: actor.ID,
	}

	s.mu.Lock()
	next := make([]domain.Announcement, 0, len(s.announcements)+1)
	next = append(next, announcement)
	next = append(next, s.announcements...)
	if err := s.repo.Save(ctx, next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.announcements = next
	s.mu.Unlock()

	s.publisher.publish(ctx, events.EventAnnouncementAdded, actor, "", announcement, now)
	return &announcement, nil
}

// Update edits an announcement's text and priority.
func (s *AnnouncementService) Update(ctx context.Context, actor *domain.User, id string, fields domain.AnnouncementFields) (*domain.Announcement, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	fields = fields.Normalize()
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	return s.mutate(ctx, actor, id, true, func(a *domain.Announcement) {
		a.Title = fields.Title
		a.Message = fields.Message
		a.Priority = fields.Priority
	})
}

// ToggleActive flips an announcement's visibility. An unknown id is ignored.
func (s *AnnouncementService) ToggleActive(ctx context.Context, actor *domain.User, id string) (*domain.Announcement, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, id, false, func(a *domain.Announcement) {
		a.IsActive = !a.IsActive
	})
}

// Delete removes an announcement. Deleting an unknown id succeeds.
func (s *AnnouncementService) Delete(ctx context.Context, actor *domain.User, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	s.mu.Lock()
	next := make([]domain.Announcement, 0, len(s.announcements))
	for _, a := range s.announcements {
		if a.ID != id {
			next = append(next, a)
		}
	}
	if err := s.repo.Save(ctx, next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.announcements = next
	s.mu.Unlock()

	s.publisher.publish(ctx, events.EventAnnouncementDeleted, actor, "", events.IDPayload{ID: id}, s.now())
	return nil
}

// ListActive returns active announcements, newest first.
func (s *AnnouncementService) ListActive() []domain.Announcement {
	s.mu.RLock()
	out := make([]domain.Announcement, 0, len(s.announcements))
	for _, a := range s.announcements {
		if a.IsActive {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// ListAll returns every announcement in registry order.
func (s *AnnouncementService) ListAll() []domain.Announcement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Announcement{}, s.announcements...)
}

// Refresh replaces the in-memory collection with the persisted one.
func (s *AnnouncementService) Refresh(ctx context.Context) error {
	loaded, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.announcements = loaded
	s.mu.Unlock()
	return nil
}

// ApplyRemote merges an announcement event from another origin and re-persists.
func (s *AnnouncementService) ApplyRemote(ctx context.Context, event events.Event) error {
	if event.Origin == s.publisher.origin {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var next []domain.Announcement
	switch event.Type {
	case events.EventAnnouncementAdded, events.EventAnnouncementUpdated:
		var incoming events.AnnouncementPayload
		if err := event.Decode(&incoming); err != nil {
			return err
		}
		idx := indexOfAnnouncement(s.announcements, incoming.ID)
		switch {
		case idx >= 0:
			next = append([]domain.Announcement(nil), s.announcements...)
			next[idx] = incoming
		case event.Type == events.EventAnnouncementAdded:
			next = append([]domain.Announcement{incoming}, s.announcements...)
		default:
			return nil
		}
	case events.EventAnnouncementDeleted:
		var removed events.IDPayload
		if err := event.Decode(&removed); err != nil {
			return err
		}
		next = make([]domain.Announcement, 0, len(s.announcements))
		for _, a := range s.announcements {
			if a.ID != removed.ID {
				next = append(next, a)
			}
		}
	default:
		return nil
	}

	if err := s.repo.Save(ctx, next); err != nil {
		return err
	}
	s.announcements = next
	return nil
}

// mutate applies change to the announcement with id and persists. When
// required is false an unknown id yields a nil announcement and no error.
func (s *AnnouncementService) mutate(ctx context.Context, actor *domain.User, id string, required bool, change func(*domain.Announcement)) (*domain.Announcement, error) {
	s.mu.Lock()
	idx := indexOfAnnouncement(s.announcements, id)
	if idx < 0 {
		s.mu.Unlock()
		if required {
			return nil, errorutil.NewNotFound("announcement", map[string]any{"id": id})
		}
		return nil, nil
	}

	next := append([]domain.Announcement(nil), s.announcements...)
	change(&next[idx])
	updated := next[idx]
	if err := s.repo.Save(ctx, next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.announcements = next
	s.mu.Unlock()

	s.publisher.publish(ctx, events.EventAnnouncementUpdated, actor, "", updated, s.now())
	return &updated, nil
}

func indexOfAnnouncement(list []domain.Announcement, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
