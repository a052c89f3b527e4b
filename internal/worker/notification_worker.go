package worker

import (
	"github.com/citizenhub/complaint-service/internal/service"
)

// StartNotificationWorker registers notification handlers and returns the
// func that removes them.
func StartNotificationWorker(notificationService *service.NotificationService) func() {
	if notificationService == nil {
		return func() {}
	}
	return notificationService.RegisterHandlers()
}
