package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/citizenhub/complaint-service/internal/config"
	"github.com/citizenhub/complaint-service/internal/events"
)

// NotificationService handles emitting notifications for registry events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     orNop(logger),
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events and returns the unsubscribe func.
func (n *NotificationService) RegisterHandlers() func() {
	if n.dispatcher == nil {
		return func() {}
	}
	unsubs := []func(){
		n.dispatcher.Subscribe(n.handleComplaintAdded, events.EventComplaintAdded),
		n.dispatcher.Subscribe(n.handleComplaintUpdated, events.EventComplaintUpdated),
		n.dispatcher.Subscribe(n.handleAnnouncementAdded, events.EventAnnouncementAdded),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

func (n *NotificationService) handleComplaintAdded(ctx context.Context, event events.Event) error {
	var complaint events.ComplaintAddedPayload
	if err := event.Decode(&complaint); err != nil {
		return err
	}
	n.logger.Info("ComplaintAdded",
		zap.String("complaint_id", complaint.ID),
		zap.String("category", complaint.Category),
		zap.String("priority", string(complaint.Priority)))
	n.sendEmailNotificationStub(ctx, event, complaint.UserEmail)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleComplaintUpdated(ctx context.Context, event events.Event) error {
	var delta events.ComplaintUpdatedPayload
	if err := event.Decode(&delta); err != nil {
		return err
	}
	n.logger.Info("ComplaintUpdated", zap.String("complaint_id", delta.ID), zap.String("status", string(delta.Status)))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleAnnouncementAdded(ctx context.Context, event events.Event) error {
	var announcement events.AnnouncementPayload
	if err := event.Decode(&announcement); err != nil {
		return err
	}
	n.logger.Info("AnnouncementAdded", zap.String("announcement_id", announcement.ID), zap.String("priority", string(announcement.Priority)))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event, to string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" || strings.TrimSpace(to) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("to", to),
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))
}
