package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/citizenhub/complaint-service/internal/domain"
	"github.com/citizenhub/complaint-service/internal/events"
	"github.com/citizenhub/complaint-service/internal/repository"
	"github.com/citizenhub/complaint-service/pkg/util/errorutil"
)

// ComplaintService owns the complaint collection. The collection is kept
// newest first and persisted after every mutation.
type ComplaintService struct {
	mu         sync.RWMutex
	complaints []domain.Complaint

	repo      repository.ComplaintRepository
	publisher publisher
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// ComplaintDependencies bundles collaborators for the complaint registry.
type ComplaintDependencies struct {
	Repo       repository.ComplaintRepository
	Dispatcher events.Dispatcher
	Origin     string
	Logger     *zap.Logger
}

// NewComplaintService constructs the service. Call Refresh to hydrate it.
func NewComplaintService(deps ComplaintDependencies) *ComplaintService {
	logger := orNop(deps.Logger)
	return &ComplaintService{
		repo:      deps.Repo,
		publisher: publisher{dispatcher: deps.Dispatcher, origin: deps.Origin, logger: logger},
		logger:    logger,
		now:       time.Now,
		newID:     func() string { return "complaint-" + uuid.NewString() },
	}
}

// Listen applies complaint events published by other instances.
func (s *ComplaintService) Listen(dispatcher events.Dispatcher) func() {
	return dispatcher.Subscribe(s.ApplyRemote,
		events.EventComplaintAdded, events.EventComplaintUpdated, events.EventComplaintDeleted)
}

// Create files a new complaint on behalf of submitter.
func (s *ComplaintService) Create(ctx context.Context, submitter *domain.User, fields domain.ComplaintFields) (*domain.Complaint, error) {
	if submitter == nil {
		return nil, errorutil.NewUnauthorized("sign in to submit a complaint")
	}
	fields = fields.Normalize()
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	complaint := domain.Complaint{
		ID:          s.newID(),
		UserID:      submitter.ID,
		UserName:    submitter.FullName(),
		UserEmail:   submitter.Email,
		Title:       fields.Title,
		Description: fields.Description,
		Category:    fields.Category,
		Location:    fields.Location,
		ContactInfo: fields.ContactInfo,
		Priority:    fields.Priority,
		Status:      domain.ComplaintStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	next := make([]domain.Complaint, 0, len(s.complaints)+1)
	next = append(next, complaint)
	next = append(next, s.complaints...)
	if err := s.repo.Save(ctx, next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.complaints = next
	s.mu.Unlock()

	s.logger.Info("complaint created", zap.String("complaint_id", complaint.ID), zap.String("user_id", complaint.UserID))
	s.publisher.publish(ctx, events.EventComplaintAdded, submitter, complaint.UserID, complaint, now)
	return &complaint, nil
}

// UpdateStatus sets a complaint's status and, when notes is non-nil, its
// admin notes. An unknown id is ignored and yields a nil complaint.
func (s *ComplaintService) UpdateStatus(ctx context.Context, actor *domain.User, id string, status domain.ComplaintStatus, notes *string) (*domain.Complaint, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, errorutil.NewValidationError("invalid status", map[string]any{"status": "must be one of Pending, In Progress, Resolved"})
	}

	s.mu.Lock()
	idx := indexOfComplaint(s.complaints, id)
	if idx < 0 {
		s.mu.Unlock()
		s.logger.Debug("status update for unknown complaint ignored", zap.String("complaint_id", id))
		return nil, nil
	}

	next := append([]domain.Complaint(nil), s.complaints...)
	updated := next[idx]
	updated.Status = status
	if notes != nil {
		updated.AdminNotes = *notes
	}
	updated.UpdatedAt = nextTimestamp(updated.UpdatedAt, s.now())
	next[idx] = updated

	if err := s.repo.Save(ctx, next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.complaints = next
	s.mu.Unlock()

	updatedAt := updated.UpdatedAt
	s.publisher.publish(ctx, events.EventComplaintUpdated, actor, updated.UserID, events.ComplaintUpdatedPayload{
		ID:         updated.ID,
		Status:     updated.Status,
		AdminNotes: notes,
		UpdatedAt:  &updatedAt,
	}, updatedAt)
	return &updated, nil
}

// Delete removes a complaint. Deleting an unknown id succeeds.
func (s *ComplaintService) Delete(ctx context.Context, actor *domain.User, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	s.mu.Lock()
	ownerID := ""
	next := make([]domain.Complaint, 0, len(s.complaints))
	for _, c := range s.complaints {
		if c.ID == id {
			ownerID = c.UserID
			continue
		}
		next = append(next, c)
	}
	if err := s.repo.Save(ctx, next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.complaints = next
	s.mu.Unlock()

	s.logger.Info("complaint deleted", zap.String("complaint_id", id))
	s.publisher.publish(ctx, events.EventComplaintDeleted, actor, ownerID, events.IDPayload{ID: id}, s.now())
	return nil
}

// ListForUser returns the complaints owned by userID, newest first.
func (s *ComplaintService) ListForUser(userID string) []domain.Complaint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Complaint, 0)
	for _, c := range s.complaints {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out
}

// ListAll returns a copy of the whole collection.
func (s *ComplaintService) ListAll() []domain.Complaint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Complaint{}, s.complaints...)
}

// GetByID returns the complaint with id, if any. It performs no access check.
func (s *ComplaintService) GetByID(id string) (*domain.Complaint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := indexOfComplaint(s.complaints, id); idx >= 0 {
		c := s.complaints[idx]
		return &c, true
	}
	return nil, false
}

// GetForUser returns a complaint visible to actor: its owner or the administrator.
func (s *ComplaintService) GetForUser(actor *domain.User, id string) (*domain.Complaint, error) {
	if actor == nil {
		return nil, errorutil.NewUnauthorized("authentication required")
	}
	complaint, ok := s.GetByID(id)
	if !ok {
		return nil, errorutil.NewNotFound("complaint", map[string]any{"id": id})
	}
	if !actor.IsAdmin && complaint.UserID != actor.ID {
		return nil, errorutil.NewForbidden("complaint belongs to another citizen")
	}
	return complaint, nil
}

// Stats summarizes the whole collection.
func (s *ComplaintService) Stats() ComplaintStats {
	return ComputeStats(s.ListAll())
}

// Refresh replaces the in-memory collection with the persisted one.
func (s *ComplaintService) Refresh(ctx context.Context) error {
	loaded, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.complaints = loaded
	s.mu.Unlock()
	s.logger.Debug("complaints refreshed", zap.Int("count", len(loaded)))
	return nil
}

// ApplyRemote merges a complaint event from another origin and re-persists.
func (s *ComplaintService) ApplyRemote(ctx context.Context, event events.Event) error {
	if event.Origin == s.publisher.origin {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var next []domain.Complaint
	switch event.Type {
	case events.EventComplaintAdded:
		var added events.ComplaintAddedPayload
		if err := event.Decode(&added); err != nil {
			return err
		}
		next = make([]domain.Complaint, 0, len(s.complaints)+1)
		next = append(next, added)
		for _, c := range s.complaints {
			if c.ID != added.ID {
				next = append(next, c)
			}
		}
	case events.EventComplaintUpdated:
		var delta events.ComplaintUpdatedPayload
		if err := event.Decode(&delta); err != nil {
			return err
		}
		idx := indexOfComplaint(s.complaints, delta.ID)
		if idx < 0 {
			return nil
		}
		next = append([]domain.Complaint(nil), s.complaints...)
		if delta.Status.Valid() {
			next[idx].Status = delta.Status
		}
		if delta.AdminNotes != nil {
			next[idx].AdminNotes = *delta.AdminNotes
		}
		if delta.UpdatedAt != nil {
			next[idx].UpdatedAt = *delta.UpdatedAt
		} else {
			next[idx].UpdatedAt = nextTimestamp(next[idx].UpdatedAt, s.now())
		}
	case events.EventComplaintDeleted:
		var removed events.IDPayload
		if err := event.Decode(&removed); err != nil {
			return err
		}
		next = make([]domain.Complaint, 0, len(s.complaints))
		for _, c := range s.complaints {
			if c.ID != removed.ID {
				next = append(next, c)
			}
		}
	default:
		return nil
	}

	if err := s.repo.Save(ctx, next); err != nil {
		return err
	}
	s.complaints = next
	return nil
}

func indexOfComplaint(list []domain.Complaint, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
