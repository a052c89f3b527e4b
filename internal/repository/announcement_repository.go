package repository

import (
	"context"

	"github.com/citizenhub/complaint-service/internal/domain"
	"github.com/citizenhub/complaint-service/internal/persistence"
)

// AnnouncementsKey is the record key holding the announcement collection.
const AnnouncementsKey = "citizenhub_announcements"

// AnnouncementRepository loads and stores the whole announcement collection.
type AnnouncementRepository interface {
	Load(ctx context.Context) ([]domain.Announcement, error)
	Save(ctx context.Context, announcements []domain.Announcement) error
}

type announcementRepository struct {
	store persistence.RecordStore
}

// NewAnnouncementRepository returns a record-store-backed implementation.
func NewAnnouncementRepository(store persistence.RecordStore) AnnouncementRepository {
	return &announcementRepository{store: store}
}

func (r *announcementRepository) Load(ctx context.Context) ([]domain.Announcement, error) {
	var announcements []domain.Announcement
	if _, err := persistence.LoadJSON(ctx, r.store, AnnouncementsKey, &announcements); err != nil {
		return nil, err
	}
	return announcements, nil
}

func (r *announcementRepository) Save(ctx context.Context, announcements []domain.Announcement) error {
	if announcements == nil {
		announcements = []domain.Announcement{}
	}
	return persistence.SaveJSON(ctx, r.store, AnnouncementsKey, announcements)
}
