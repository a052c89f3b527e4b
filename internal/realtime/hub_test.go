package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citizenhub/complaint-service/internal/api/validation"
	"github.com/citizenhub/complaint-service/internal/auth"
	"github.com/citizenhub/complaint-service/internal/config"
	"github.com/citizenhub/complaint-service/internal/domain"
	"github.com/citizenhub/complaint-service/internal/events"
	"github.com/citizenhub/complaint-service/internal/persistence"
	"github.com/citizenhub/complaint-service/internal/repository"
	"github.com/citizenhub/complaint-service/internal/service"
	"github.com/citizenhub/complaint-service/pkg/util/errorutil"
)

var (
	hubAdmin   = domain.User{ID: domain.AdministratorID, Email: "evode.citizenhub@gmail.com", IsAdmin: true}
	hubCitizen = domain.User{ID: "user-1", Email: "a@x.com", FirstName: "A", LastName: "B"}
)

type hubFixture struct {
	hub        *Hub
	dispatcher events.Dispatcher
	complaints *service.ComplaintService
}

func newHubFixture(t *testing.T, cfg HubConfig) *hubFixture {
	t.Helper()
	return newHubFixtureWithValidator(t, cfg, nil)
}

func newHubFixtureWithValidator(t *testing.T, cfg HubConfig, validator FrameValidator) *hubFixture {
	t.Helper()
	return newHubFixtureWith(t, cfg, validator, nil)
}

func newHubFixtureWith(t *testing.T, cfg HubConfig, validator FrameValidator, sessions SessionChecker) *hubFixture {
	t.Helper()
	dispatcher := events.NewInMemoryDispatcher(4, nil)
	complaints := service.NewComplaintService(service.ComplaintDependencies{
		Repo:       repository.NewComplaintRepository(persistence.NewMemoryRecords()),
		Dispatcher: dispatcher,
		Origin:     "hub-test",
	})
	hub := NewHub(HubDependencies{
		Dispatcher: dispatcher,
		Complaints: complaints,
		Validator:  validator,
		Sessions:   sessions,
		Config:     cfg,
	})
	t.Cleanup(hub.Close)
	return &hubFixture{hub: hub, dispatcher: dispatcher, complaints: complaints}
}

func (f *hubFixture) publish(t *testing.T, eventType events.EventType, ownerID string, payload any) events.Event {
	t.Helper()
	e, err := events.NewEvent(eventType, "elsewhere", events.Actor{}, ownerID, payload, time.Now())
	require.NoError(t, err)
	e, err = f.dispatcher.Publish(context.Background(), e)
	require.NoError(t, err)
	return e
}

func sessionFor(user domain.User) domain.Session {
	return domain.Session{ID: "session-" + user.ID, User: user, ExpiresAt: time.Now().Add(time.Hour)}
}

// connect runs Serve in the background and completes the AUTH handshake.
func (f *hubFixture) connect(t *testing.T, user domain.User, lastEventID string) (*fakeConn, <-chan error) {
	t.Helper()
	return f.connectSession(t, sessionFor(user), lastEventID)
}

func (f *hubFixture) connectSession(t *testing.T, session domain.Session, lastEventID string) (*fakeConn, <-chan error) {
	t.Helper()
	user := session.User
	conn := newFakeConn()
	done := make(chan error, 1)
	go func() { done <- f.hub.Serve(context.Background(), conn, session) }()

	conn.deliver(t, mustMessage(t, MessageAuth, AuthPayload{UserID: user.ID, IsAdmin: user.IsAdmin, LastEventID: lastEventID}))
	require.Eventually(t, func() bool { return f.hub.ClientCount() > 0 }, 2*time.Second, 5*time.Millisecond)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, done
}

func TestHubRejectsMismatchedAuth(t *testing.T) {
	f := newHubFixture(t, HubConfig{})
	conn := newFakeConn()
	done := make(chan error, 1)
	go func() { done <- f.hub.Serve(context.Background(), conn, sessionFor(hubCitizen)) }()

	conn.deliver(t, mustMessage(t, MessageAuth, AuthPayload{UserID: hubCitizen.ID, IsAdmin: true}))

	msg := conn.next(t)
	assert.Equal(t, MessageError, msg.Type)
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	assert.True(t, conn.isClosed())
	assert.Zero(t, f.hub.ClientCount())
}

func TestHubFiltersComplaintEventsByOwner(t *testing.T) {
	f := newHubFixture(t, HubConfig{})
	citizen, _ := f.connect(t, hubCitizen, "")
	admin, _ := f.connect(t, hubAdmin, "")

	f.publish(t, events.EventComplaintAdded, "user-2", domain.Complaint{ID: "complaint-other", UserID: "user-2"})
	own := f.publish(t, events.EventComplaintAdded, hubCitizen.ID, domain.Complaint{ID: "complaint-own", UserID: hubCitizen.ID})
	notice := f.publish(t, events.EventAnnouncementAdded, "", domain.Announcement{ID: "announcement-1"})

	got := citizen.next(t)
	assert.Equal(t, MessageComplaintAdded, got.Type)
	assert.Equal(t, own.ID, got.ID)
	got = citizen.next(t)
	assert.Equal(t, MessageAnnouncementAdded, got.Type)
	assert.Equal(t, notice.ID, got.ID)
	citizen.expectSilence(t)

	for _, want := range []string{"1", "2", "3"} {
		assert.Equal(t, want, admin.next(t).ID)
	}
}

func TestHubReplaysFromCursor(t *testing.T) {
	f := newHubFixture(t, HubConfig{})
	f.publish(t, events.EventAnnouncementAdded, "", domain.Announcement{ID: "a1"})
	f.publish(t, events.EventAnnouncementAdded, "", domain.Announcement{ID: "a2"})
	f.publish(t, events.EventAnnouncementDeleted, "", events.IDPayload{ID: "a1"})

	conn, _ := f.connect(t, hubCitizen, "1")

	assert.Equal(t, "2", conn.next(t).ID)
	third := conn.next(t)
	assert.Equal(t, "3", third.ID)
	assert.Equal(t, MessageAnnouncementDeleted, third.Type)

	live := f.publish(t, events.EventAnnouncementUpdated, "", domain.Announcement{ID: "a2"})
	assert.Equal(t, live.ID, conn.next(t).ID)
}

func TestHubSendsResyncForExpiredCursor(t *testing.T) {
	f := newHubFixture(t, HubConfig{})
	for i := 0; i < 6; i++ {
		f.publish(t, events.EventAnnouncementAdded, "", domain.Announcement{ID: "a"})
	}

	conn, _ := f.connect(t, hubCitizen, "1")

	assert.Equal(t, MessageResync, conn.next(t).Type)
}

func TestHubRoutesClientFramesThroughRegistry(t *testing.T) {
	f := newHubFixture(t, HubConfig{})
	citizen, _ := f.connect(t, hubCitizen, "")

	citizen.deliver(t, mustMessage(t, MessageComplaintAdded, ComplaintSubmission{
		Title:       "Broken streetlight",
		Description: "Dark since Friday",
		Category:    "Infrastructure",
		Location:    "Main St",
		Priority:    "High",
	}))

	added := citizen.next(t)
	require.Equal(t, MessageComplaintAdded, added.Type)
	var complaint domain.Complaint
	require.NoError(t, json.Unmarshal(added.Payload, &complaint))
	assert.Equal(t, hubCitizen.ID, complaint.UserID)
	assert.Len(t, f.complaints.ListForUser(hubCitizen.ID), 1)

	citizen.deliver(t, mustMessage(t, MessageComplaintDeleted, events.IDPayload{ID: complaint.ID}))
	rejected := citizen.next(t)
	require.Equal(t, MessageError, rejected.Type)
	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(rejected.Payload, &payload))
	assert.Equal(t, "NOT_AUTHORIZED", payload.Code)
	assert.Len(t, f.complaints.ListForUser(hubCitizen.ID), 1)
}

func TestHubRateLimitsInboundFrames(t *testing.T) {
	f := newHubFixture(t, HubConfig{InboundPerSecond: 0.001, InboundBurst: 1})
	conn, _ := f.connect(t, hubCitizen, "")

	frame := mustMessage(t, MessageComplaintDeleted, events.IDPayload{ID: "missing"})
	conn.deliver(t, frame)
	conn.deliver(t, frame)

	var codes []string
	for i := 0; i < 2; i++ {
		msg := conn.next(t)
		require.Equal(t, MessageError, msg.Type)
		var payload ErrorPayload
		require.NoError(t, json.Unmarshal(msg.Payload, &payload))
		codes = append(codes, payload.Code)
	}
	assert.Equal(t, []string{"NOT_AUTHORIZED", "RATE_LIMITED"}, codes)
}

func TestHubDisconnectsSlowClient(t *testing.T) {
	f := newHubFixture(t, HubConfig{SendBuffer: 1})
	conn := newFakeConn()
	conn.out = make(chan []byte)
	done := make(chan error, 1)
	go func() { done <- f.hub.Serve(context.Background(), conn, sessionFor(hubAdmin)) }()
	conn.deliver(t, mustMessage(t, MessageAuth, AuthPayload{UserID: hubAdmin.ID, IsAdmin: true}))
	require.Eventually(t, func() bool { return f.hub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	for i := 0; i < 4; i++ {
		f.publish(t, events.EventAnnouncementAdded, "", domain.Announcement{ID: "a"})
	}

	require.Eventually(t, conn.isClosed, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return f.hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHubCloseEndsServe(t *testing.T) {
	f := newHubFixture(t, HubConfig{})
	_, done := f.connect(t, hubCitizen, "")

	f.hub.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Close")
	}
}

func TestHubRejectsFramesFailingSchema(t *testing.T) {
	validator, err := validation.New()
	require.NoError(t, err)
	f := newHubFixtureWithValidator(t, HubConfig{}, validator)
	conn, _ := f.connect(t, hubAdmin, "")

	conn.deliver(t, Message{Type: MessageComplaintUpdated, Payload: json.RawMessage(`{"id":"c1","status":"Closed"}`)})

	msg := conn.next(t)
	require.Equal(t, MessageError, msg.Type)
	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "VALIDATION_FAILED", payload.Code)
}

func newSessionAuth(t *testing.T) *service.AuthService {
	t.Helper()
	store := persistence.NewMemoryRecords()
	svc := service.NewAuthService(config.AuthConfig{
		JWTSecret:         "hub-secret",
		SessionTTLMinutes: 20,
		BcryptCost:        4,
		AdminEmail:        "evode.citizenhub@gmail.com",
		AdminPassword:     "evode@123",
	}, service.AuthDependencies{
		UserRepo:    repository.NewUserRepository(store),
		SessionRepo: repository.NewSessionRepository(store),
		Tokens:      auth.NewTokenManager("hub-secret", "citizenhub"),
	})
	return svc
}

func registerForHub(t *testing.T, svc *service.AuthService) *service.AuthResult {
	t.Helper()
	result, err := svc.Register(context.Background(), service.RegisterInput{
		Email: "jane@x.com", Password: "s3cret", FirstName: "Jane", LastName: "Doe",
	})
	require.NoError(t, err)
	return result
}

func expectSessionEnded(t *testing.T, f *hubFixture, conn *fakeConn, done <-chan error) {
	t.Helper()
	msg := conn.next(t)
	require.Equal(t, MessageError, msg.Type)
	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "NOT_AUTHENTICATED", payload.Code)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errorutil.ErrNotAuthenticated)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after the session ended")
	}
	assert.True(t, conn.isClosed())
	assert.Zero(t, f.hub.ClientCount())
}

func TestHubRejectsFramesAfterLogout(t *testing.T) {
	authSvc := newSessionAuth(t)
	f := newHubFixtureWith(t, HubConfig{}, nil, authSvc)
	result := registerForHub(t, authSvc)
	conn, done := f.connectSession(t, *result.Session, "")

	require.NoError(t, authSvc.Logout(context.Background(), result.Session.ID))
	conn.deliver(t, mustMessage(t, MessageComplaintAdded, ComplaintSubmission{
		Title:       "Broken streetlight",
		Description: "Dark since Friday",
		Category:    "Infrastructure",
	}))

	expectSessionEnded(t, f, conn, done)
	assert.Empty(t, f.complaints.ListAll())
}

func TestHubDisconnectsWhenSessionEnds(t *testing.T) {
	authSvc := newSessionAuth(t)
	f := newHubFixtureWith(t, HubConfig{SessionCheck: 20 * time.Millisecond}, nil, authSvc)
	result := registerForHub(t, authSvc)
	conn, done := f.connectSession(t, *result.Session, "")

	f.publish(t, events.EventComplaintAdded, result.User.ID, domain.Complaint{ID: "complaint-1", UserID: result.User.ID})
	assert.Equal(t, MessageComplaintAdded, conn.next(t).Type)

	require.NoError(t, authSvc.Logout(context.Background(), result.Session.ID))

	expectSessionEnded(t, f, conn, done)
}

func TestHubKeepsLiveSessionConnected(t *testing.T) {
	authSvc := newSessionAuth(t)
	f := newHubFixtureWith(t, HubConfig{SessionCheck: 10 * time.Millisecond}, nil, authSvc)
	result := registerForHub(t, authSvc)
	conn, _ := f.connectSession(t, *result.Session, "")

	time.Sleep(50 * time.Millisecond)
	conn.deliver(t, mustMessage(t, MessageComplaintAdded, ComplaintSubmission{
		Title:       "Pothole",
		Description: "Deep pothole near the school",
		Category:    "Roads",
	}))

	assert.Equal(t, MessageComplaintAdded, conn.next(t).Type)
	assert.Equal(t, 1, f.hub.ClientCount())
	assert.Len(t, f.complaints.ListForUser(result.User.ID), 1)
}
