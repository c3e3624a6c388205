package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sukudha/academy-service/internal/config"
)

func TestBrevoSender_SendOTPEmail(t *testing.T) {
	var (
		gotKey  string
		gotPath string
		gotMsg  brevoMessage
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("api-key")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotMsg))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"<abc@brevo>"}`))
	}))
	defer srv.Close()

	sender := NewBrevoSender(config.MailConfig{
		BrevoAPIKey:  "key-123",
		BrevoBaseURL: srv.URL + "/",
		SenderEmail:  "noreply@academy.test",
		SenderName:   "Sukudha Academy",
		Timeout:      time.Second,
	}, zap.NewNop())

	require.NoError(t, sender.SendOTPEmail(context.Background(), "ann@x.com", "482913"))

	assert.Equal(t, "key-123", gotKey)
	assert.Equal(t, "/v3/smtp/email", gotPath)
	assert.Equal(t, OTPSubject, gotMsg.Subject)
	assert.Equal(t, "Sukudha Academy", gotMsg.Sender.Name)
	assert.Equal(t, "noreply@academy.test", gotMsg.Sender.Email)
	require.Len(t, gotMsg.To, 1)
	assert.Equal(t, "ann@x.com", gotMsg.To[0].Email)
	assert.Contains(t, gotMsg.HTMLContent, "482913")
	assert.Contains(t, gotMsg.HTMLContent, "valid for 1 hour")
}

func TestBrevoSender_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"unauthorized","message":"Key not found"}`))
	}))
	defer srv.Close()

	sender := NewBrevoSender(config.MailConfig{BrevoAPIKey: "bad", BrevoBaseURL: srv.URL}, zap.NewNop())
	err := sender.SendOTPEmail(context.Background(), "ann@x.com", "482913")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestBrevoSender_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	sender := NewBrevoSender(config.MailConfig{BrevoAPIKey: "k", BrevoBaseURL: url}, zap.NewNop())
	assert.Error(t, sender.SendOTPEmail(context.Background(), "ann@x.com", "482913"))
}

func TestNewSender(t *testing.T) {
	logger := zap.NewNop()
	_, isLog := NewSender(config.MailConfig{}, logger).(*LogSender)
	assert.True(t, isLog)

	_, isBrevo := NewSender(config.MailConfig{BrevoAPIKey: "k"}, logger).(*BrevoSender)
	assert.True(t, isBrevo)
}

func TestRenderOTPEmail_EscapesInput(t *testing.T) {
	html, err := RenderOTPEmail("<b>1</b>")
	require.NoError(t, err)
	assert.NotContains(t, html, "<b>1</b>")
}
