package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citizenhub/complaint-service/internal/config"
	"github.com/citizenhub/complaint-service/internal/domain"
	"github.com/citizenhub/complaint-service/internal/events"
	"github.com/citizenhub/complaint-service/internal/service"
)

func TestRunPeriodicStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		RunPeriodic(ctx, "test", 5*time.Millisecond, func(context.Context) error {
			if runs.Add(1) == 1 {
				return errors.New("first run fails")
			}
			return nil
		}, nil)
	}()

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPeriodic did not stop after cancel")
	}
}

func TestSweepSessionsDropsCount(t *testing.T) {
	job := SweepSessions(func(context.Context) (int, error) { return 3, nil })
	assert.NoError(t, job(context.Background()))
}

func TestStartNotificationWorker(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(4, nil)
	notifications := service.NewNotificationService(dispatcher, nil, config.NotificationConfig{EmailFrom: "noreply@x", WebhookURL: "http://hook"})

	stop := StartNotificationWorker(notifications)
	event, err := events.NewEvent(events.EventComplaintAdded, "a", events.Actor{}, "user-1",
		domain.Complaint{ID: "complaint-1", UserEmail: "a@x.com"}, time.Now())
	require.NoError(t, err)
	_, err = dispatcher.Publish(context.Background(), event)
	assert.NoError(t, err)
	stop()

	StartNotificationWorker(nil)()
}
