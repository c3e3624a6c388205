package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"
	"go.uber.org/zap"

	"github.com/sukudha/academy-service/internal/config"
)

const brevoSendPath = "/v3/smtp/email"

type brevoContact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type brevoMessage struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

// BrevoSender sends transactional email through the Brevo v3 API.
type BrevoSender struct {
	client  *http.Client
	baseURL string
	apiKey  string
	sender  brevoContact
	logger  *zap.Logger
}

// NewBrevoSender builds a sender from mail configuration.
func NewBrevoSender(cfg config.MailConfig, logger *zap.Logger) *BrevoSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BrevoSender{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(cfg.BrevoBaseURL, "/"),
		apiKey:  cfg.BrevoAPIKey,
		sender:  brevoContact{Name: cfg.SenderName, Email: cfg.SenderEmail},
		logger:  logger,
	}
}

func (s *BrevoSender) SendOTPEmail(ctx context.Context, to, otp string) error {
	html, err := RenderOTPEmail(otp)
	if err != nil {
		return err
	}
	return s.send(ctx, brevoMessage{
		Sender:      s.sender,
		To:          []brevoContact{{Email: to}},
		Subject:     OTPSubject,
		HTMLContent: html,
	})
}

func (s *BrevoSender) send(ctx context.Context, msg brevoMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return oops.Code("MAIL_ENCODE_FAILED").Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+brevoSendPath, bytes.NewReader(payload))
	if err != nil {
		return oops.Code("MAIL_REQUEST_FAILED").Wrap(err)
	}
	req.Header.Set("api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("provider", "brevo").Wrap(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return oops.Code("MAIL_SEND_FAILED").
			With("provider", "brevo").
			With("status", resp.StatusCode).
			Errorf("brevo responded %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	s.logger.Debug("email sent", zap.String("subject", msg.Subject), zap.Int("status", resp.StatusCode))
	return nil
}

var _ OTPSender = (*BrevoSender)(nil)
