package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/citizenhub/complaint-service/internal/auth"
	"github.com/citizenhub/complaint-service/internal/config"
	"github.com/citizenhub/complaint-service/internal/domain"
	"github.com/citizenhub/complaint-service/internal/events"
	"github.com/citizenhub/complaint-service/internal/persistence"
	"github.com/citizenhub/complaint-service/internal/repository"
)

var (
	testAdmin   = &domain.User{ID: domain.AdministratorID, Email: "evode.citizenhub@gmail.com", FirstName: "Evode", LastName: "Nuby", IsAdmin: true}
	testCitizen = &domain.User{ID: "user-1", Email: "a@x.com", FirstName: "A", LastName: "B"}
	otherUser   = &domain.User{ID: "user-2", Email: "c@x.com", FirstName: "C", LastName: "D"}
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// eventRecorder captures every published event.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:                   "test-secret",
		SessionTTLMinutes:           20,
		SessionCheckIntervalSeconds: 60,
		BcryptCost:                  4,
		AdminEmail:                  "evode.citizenhub@gmail.com",
		AdminPassword:               "evode@123",
		AdminFirstName:              "Evode",
		AdminLastName:               "Nuby",
	}
}

func newTestAuthService(t *testing.T, clock *fakeClock) (*AuthService, persistence.RecordStore) {
	t.Helper()
	store := persistence.NewMemoryRecords()
	svc := NewAuthService(testAuthConfig(), AuthDependencies{
		UserRepo:    repository.NewUserRepository(store),
		SessionRepo: repository.NewSessionRepository(store),
		Tokens:      auth.NewTokenManager("test-secret", "citizenhub"),
	})
	if clock != nil {
		svc.now = clock.Now
	}
	if err := svc.SeedAdministrator(context.Background()); err != nil {
		t.Fatalf("seed administrator: %v", err)
	}
	return svc, store
}

type complaintFixture struct {
	svc      *ComplaintService
	store    *persistence.MemoryRecords
	recorder *eventRecorder
	clock    *fakeClock
}

func newComplaintFixture(t *testing.T) *complaintFixture {
	t.Helper()
	store := persistence.NewMemoryRecords()
	dispatcher := events.NewInMemoryDispatcher(64, nil)
	recorder := &eventRecorder{}
	dispatcher.Subscribe(recorder.handle)

	clock := newFakeClock()
	svc := NewComplaintService(ComplaintDependencies{
		Repo:       repository.NewComplaintRepository(store),
		Dispatcher: dispatcher,
		Origin:     "instance-a",
	})
	svc.now = clock.Now
	return &complaintFixture{svc: svc, store: store, recorder: recorder, clock: clock}
}

func sampleFields(title string) domain.ComplaintFields {
	return domain.ComplaintFields{
		Title:       title,
		Description: "Details for " + title,
		Category:    "Utilities",
		Location:    "Kigali",
		ContactInfo: "0788000000",
		Priority:    domain.ComplaintPriorityHigh,
	}
}

func strPtr(s string) *string { return &s }
