package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/citizenhub/complaint-service/internal/domain"
	"github.com/citizenhub/complaint-service/internal/events"
	"github.com/citizenhub/complaint-service/pkg/util/errorutil"
)

func requireAdmin(actor *domain.User) error {
	if actor == nil {
		return errorutil.NewUnauthorized("authentication required")
	}
	if !actor.IsAdmin {
		return errorutil.NewForbidden("administrator privileges required")
	}
	return nil
}

// nextTimestamp returns now, or just after prev when the clock has not advanced past it.
func nextTimestamp(prev, now time.Time) time.Time {
	now = now.UTC()
	if !now.After(prev) {
		return prev.Add(time.Millisecond)
	}
	return now
}

// publisher emits registry events. A publish failure is logged and never
// fails the mutation, which has already been persisted.
type publisher struct {
	dispatcher events.Dispatcher
	origin     string
	logger     *zap.Logger
}

func (p publisher) publish(ctx context.Context, eventType events.EventType, actor *domain.User, ownerID string, payload any, now time.Time) {
	if p.dispatcher == nil {
		return
	}
	event, err := events.NewEvent(eventType, p.origin, events.ActorFor(actor), ownerID, payload, now)
	if err != nil {
		p.logger.Error("encode event", zap.String("event_type", string(eventType)), zap.Error(err))
		return
	}
	if _, err := p.dispatcher.Publish(ctx, event); err != nil {
		p.logger.Warn("publish event failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
