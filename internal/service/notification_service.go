package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sukudha/academy-service/internal/config"
	"github.com/sukudha/academy-service/internal/events"
)

// NotificationService reacts to auth events. Reset codes go out through the
// mailer inside the request; this service only covers the side channels.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.MailConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.MailConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventUserRegistered, n.handleUserRegistered)
	n.dispatcher.Subscribe(events.EventPasswordResetCompleted, n.handlePasswordResetCompleted)
	n.dispatcher.Subscribe(events.EventUserStatusChanged, n.handleUserStatusChanged)
}

func (n *NotificationService) handleUserRegistered(ctx context.Context, event events.Event) error {
	n.logger.Info("UserRegistered", zap.String("user_id", event.UserID), zap.String("role", string(event.Role)))
	n.sendWelcomeEmailStub(ctx, event)
	return nil
}

func (n *NotificationService) handlePasswordResetCompleted(ctx context.Context, event events.Event) error {
	n.logger.Info("PasswordResetCompleted", zap.String("user_id", event.UserID))
	n.sendSecurityNoticeStub(ctx, event)
	return nil
}

func (n *NotificationService) handleUserStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("UserStatusChanged", zap.String("user_id", event.UserID), zap.Any("payload", event.Payload))
	n.sendSecurityNoticeStub(ctx, event)
	return nil
}

func (n *NotificationService) sendWelcomeEmailStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.SenderEmail) == "" {
		return
	}
	n.logger.Debug("sendWelcomeEmailStub",
		zap.String("from", n.cfg.SenderEmail),
		zap.String("user_id", event.UserID))
}

func (n *NotificationService) sendSecurityNoticeStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.SenderEmail) == "" {
		return
	}
	n.logger.Debug("sendSecurityNoticeStub",
		zap.String("from", n.cfg.SenderEmail),
		zap.String("user_id", event.UserID),
		zap.String("event_type", string(event.Type)))
}
