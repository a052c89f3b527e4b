package repository

import (
	"context"

	"github.com/citizenhub/complaint-service/internal/domain"
	"github.com/citizenhub/complaint-service/internal/persistence"
)

// ComplaintsKey is the record key holding the complaint collection.
const ComplaintsKey = "complaints"

// ComplaintRepository loads and stores the whole complaint collection, newest first.
type ComplaintRepository interface {
	Load(ctx context.Context) ([]domain.Complaint, error)
	Save(ctx context.Context, complaints []domain.Complaint) error
}

type complaintRepository struct {
	store persistence.RecordStore
}

// NewComplaintRepository returns a record-store-backed implementation.
func NewComplaintRepository(store persistence.RecordStore) ComplaintRepository {
	return &complaintRepository{store: store}
}

func (r *complaintRepository) Load(ctx context.Context) ([]domain.Complaint, error) {
	var complaints []domain.Complaint
	if _, err := persistence.LoadJSON(ctx, r.store, ComplaintsKey, &complaints); err != nil {
		return nil, err
	}
	return complaints, nil
}

func (r *complaintRepository) Save(ctx context.Context, complaints []domain.Complaint) error {
	if complaints == nil {
		complaints = []domain.Complaint{}
	}
	return persistence.SaveJSON(ctx, r.store, ComplaintsKey, complaints)
}
