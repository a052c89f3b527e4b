package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citizenhub/complaint-service/internal/domain"
	"github.com/citizenhub/complaint-service/internal/events"
	"github.com/citizenhub/complaint-service/internal/repository"
	"github.com/citizenhub/complaint-service/pkg/util/errorutil"
)

func TestComplaintLifecycle(t *testing.T) {
	f := newComplaintFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, testCitizen, sampleFields("Water Issue"))
	require.NoError(t, err)
	assert.Equal(t, domain.ComplaintStatusPending, created.Status)
	assert.Equal(t, "A B", created.UserName)
	assert.Equal(t, "a@x.com", created.UserEmail)
	assert.Empty(t, created.AdminNotes)
	assert.Contains(t, created.ID, "complaint-")

	mine := f.svc.ListForUser(testCitizen.ID)
	require.Len(t, mine, 1)
	assert.Equal(t, "Water Issue", mine[0].Title)
	assert.Len(t, f.svc.ListAll(), 1)

	f.clock.Advance(time.Hour)
	_, err = f.svc.UpdateStatus(ctx, testAdmin, created.ID, domain.ComplaintStatusResolved, strPtr("Fixed"))
	require.NoError(t, err)

	got, err := f.svc.GetForUser(testCitizen, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ComplaintStatusResolved, got.Status)
	assert.Equal(t, "Fixed", got.AdminNotes)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	assert.Equal(t, []events.EventType{events.EventComplaintAdded, events.EventComplaintUpdated}, f.recorder.types())
}

func TestCreateRequiresSubmitterAndValidFields(t *testing.T) {
	f := newComplaintFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, nil, sampleFields("x"))
	assert.ErrorIs(t, err, errorutil.ErrNotAuthenticated)

	_, err = f.svc.Create(ctx, testCitizen, domain.ComplaintFields{Title: "only title"})
	de := errorutil.ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, "VALIDATION_FAILED", de.Code)
	assert.Empty(t, f.svc.ListAll())
	assert.Empty(t, f.recorder.types())
}

func TestCreatePrependsNewestFirst(t *testing.T) {
	f := newComplaintFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, testCitizen, sampleFields("first"))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, otherUser, sampleFields("second"))
	require.NoError(t, err)

	all := f.svc.ListAll()
	require.Len(t, all, 2)
	assert.Equal(t, "second", all[0].Title)
	assert.Equal(t, "first", all[1].Title)
}

func TestUpdateStatusAuthorizationAndUnknownID(t *testing.T) {
	f := newComplaintFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, testCitizen, sampleFields("Pothole"))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, testCitizen, created.ID, domain.ComplaintStatusResolved, nil)
	assert.ErrorIs(t, err, errorutil.ErrNotAuthorized)

	_, err = f.svc.UpdateStatus(ctx, testAdmin, created.ID, "Closed", nil)
	assert.Error(t, err)

	updated, err := f.svc.UpdateStatus(ctx, testAdmin, "complaint-missing", domain.ComplaintStatusResolved, nil)
	require.NoError(t, err)
	assert.Nil(t, updated)

	assert.Equal(t, []events.EventType{events.EventComplaintAdded}, f.recorder.types())
}

func TestUpdateStatusKeepsNotesWhenOmitted(t *testing.T) {
	f := newComplaintFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, testCitizen, sampleFields("Streetlight"))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, testAdmin, created.ID, domain.ComplaintStatusInProgress, strPtr("crew assigned"))
	require.NoError(t, err)
	// the clock does not move; updatedAt must still advance
	first, _ := f.svc.GetByID(created.ID)

	second, err := f.svc.UpdateStatus(ctx, testAdmin, created.ID, domain.ComplaintStatusPending, nil)
	require.NoError(t, err)
	assert.Equal(t, "crew assigned", second.AdminNotes)
	assert.Equal(t, domain.ComplaintStatusPending, second.Status)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
}

func TestDeleteComplaint(t *testing.T) {
	f := newComplaintFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, testCitizen, sampleFields("Noise"))
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(ctx, testCitizen, created.ID), errorutil.ErrNotAuthorized)
	require.NoError(t, f.svc.Delete(ctx, testAdmin, created.ID))
	require.NoError(t, f.svc.Delete(ctx, testAdmin, created.ID))

	_, ok := f.svc.GetByID(created.ID)
	assert.False(t, ok)
	assert.Empty(t, f.svc.ListForUser(testCitizen.ID))

	_, err = f.svc.GetForUser(testAdmin, created.ID)
	assert.ErrorIs(t, err, errorutil.ErrNotFound)

	types := f.recorder.types()
	assert.Equal(t, events.EventComplaintDeleted, types[len(types)-1])
	f.recorder.mu.Lock()
	assert.Equal(t, testCitizen.ID, f.recorder.events[1].OwnerID)
	f.recorder.mu.Unlock()
}

func TestGetForUserEnforcesOwnership(t *testing.T) {
	f := newComplaintFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, testCitizen, sampleFields("Trash"))
	require.NoError(t, err)

	_, err = f.svc.GetForUser(otherUser, created.ID)
	assert.ErrorIs(t, err, errorutil.ErrNotAuthorized)

	_, err = f.svc.GetForUser(nil, created.ID)
	assert.ErrorIs(t, err, errorutil.ErrNotAuthenticated)

	got, err := f.svc.GetForUser(testAdmin, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestRefreshReloadsPersistedCollection(t *testing.T) {
	f := newComplaintFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, testCitizen, sampleFields("Flooding"))
	require.NoError(t, err)

	fresh := NewComplaintService(ComplaintDependencies{Repo: repository.NewComplaintRepository(f.store)})
	require.NoError(t, fresh.Refresh(ctx))

	all := fresh.ListAll()
	require.Len(t, all, 1)
	assert.Equal(t, created.ID, all[0].ID)
	assert.True(t, all[0].CreatedAt.Equal(created.CreatedAt))
}

func TestApplyRemote(t *testing.T) {
	f := newComplaintFixture(t)
	ctx := context.Background()

	remote := domain.Complaint{
		ID: "complaint-remote", UserID: otherUser.ID, Title: "Remote", Status: domain.ComplaintStatusPending,
		CreatedAt: f.clock.Now(), UpdatedAt: f.clock.Now(),
	}
	added, err := events.NewEvent(events.EventComplaintAdded, "instance-b", events.ActorFor(otherUser), otherUser.ID, remote, f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, f.svc.ApplyRemote(ctx, added))
	require.NoError(t, f.svc.ApplyRemote(ctx, added))
	require.Len(t, f.svc.ListAll(), 1)

	updated, err := events.NewEvent(events.EventComplaintUpdated, "instance-b", events.ActorFor(testAdmin), otherUser.ID,
		events.ComplaintUpdatedPayload{ID: remote.ID, Status: domain.ComplaintStatusInProgress, AdminNotes: strPtr("on it")}, f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, f.svc.ApplyRemote(ctx, updated))

	got, ok := f.svc.GetByID(remote.ID)
	require.True(t, ok)
	assert.Equal(t, domain.ComplaintStatusInProgress, got.Status)
	assert.Equal(t, "on it", got.AdminNotes)

	own, err := events.NewEvent(events.EventComplaintDeleted, "instance-a", events.ActorFor(testAdmin), "", events.IDPayload{ID: remote.ID}, f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, f.svc.ApplyRemote(ctx, own))
	assert.Len(t, f.svc.ListAll(), 1, "events from the same origin are ignored")

	deleted := own
	deleted.Origin = "instance-b"
	require.NoError(t, f.svc.ApplyRemote(ctx, deleted))
	assert.Empty(t, f.svc.ListAll())

	raw, err := f.store.Get(ctx, repository.ComplaintsKey)
	require.NoError(t, err)
	var persisted []domain.Complaint
	require.NoError(t, json.Unmarshal(raw, &persisted))
	assert.Empty(t, persisted)
}

func TestStats(t *testing.T) {
	f := newComplaintFixture(t)
	ctx := context.Background()

	a, err := f.svc.Create(ctx, testCitizen, sampleFields("a"))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, testCitizen, sampleFields("b"))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, testAdmin, a.ID, domain.ComplaintStatusResolved, nil)
	require.NoError(t, err)

	stats := f.svc.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[domain.ComplaintStatusPending])
	assert.Equal(t, 1, stats.ByStatus[domain.ComplaintStatusResolved])
	assert.Equal(t, 0, stats.ByStatus[domain.ComplaintStatusInProgress])
	assert.Equal(t, 2, stats.ByCategory["Utilities"])
}
