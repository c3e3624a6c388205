package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/sukudha/academy-service/internal/config"
)

// LogSender writes reset codes to the log instead of delivering them.
// Only meant for local development.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendOTPEmail(_ context.Context, to, otp string) error {
	s.logger.Warn("mail delivery disabled, logging reset code",
		zap.String("to", to),
		zap.String("otp", otp),
		zap.String("subject", OTPSubject))
	return nil
}

// NewSender picks Brevo when an API key is configured.
func NewSender(cfg config.MailConfig, logger *zap.Logger) OTPSender {
	if cfg.BrevoAPIKey == "" {
		return NewLogSender(logger)
	}
	return NewBrevoSender(cfg, logger)
}
