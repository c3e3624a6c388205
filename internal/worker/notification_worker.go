package worker

import (
	"go.uber.org/zap"

	"github.com/sukudha/academy-service/internal/events"
	"github.com/sukudha/academy-service/internal/service"
)

// StartNotificationWorker registers notification handlers and, when a
// bridge is given, forwards every auth event to NATS.
func StartNotificationWorker(notificationService *service.NotificationService, dispatcher events.Dispatcher, bridge *events.NATSBridge, logger *zap.Logger) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if bridge != nil && dispatcher != nil {
		bridge.Attach(dispatcher)
		logger.Info("auth events bridged to nats")
	}
}
