package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sukudha/academy-service/internal/api/http/handlers"
	"github.com/sukudha/academy-service/internal/auth"
	"github.com/sukudha/academy-service/internal/config"
	"github.com/sukudha/academy-service/internal/events"
	"github.com/sukudha/academy-service/internal/observability"
	"github.com/sukudha/academy-service/internal/repository"
	"github.com/sukudha/academy-service/internal/service"
)

type captureMailer struct {
	mu   sync.Mutex
	last map[string]string
	err  error
}

func (m *captureMailer) SendOTPEmail(_ context.Context, to, otp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.last[to] = otp
	return nil
}

type testServer struct {
	app    *fiber.App
	users  *repository.MemoryUserRepository
	mailer *captureMailer
	svc    *service.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	users := repository.NewMemoryUserRepository()
	mailer := &captureMailer{last: make(map[string]string)}
	metrics := observability.NewMetrics()

	svc := service.NewAuthService(config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour}, service.AuthDependencies{
		Users:      users,
		Mailer:     mailer,
		Hasher:     auth.NewBcryptHasher(bcrypt.MinCost),
		Dispatcher: events.NewInMemoryDispatcher(),
		Metrics:    metrics,
		Logger:     logger,
	})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("academy-service", "test", map[string]handlers.Pinger{"store": users}),
		Auth:           handlers.NewAuthHandler(svc),
		Users:          handlers.NewUsersHandler(svc),
		AuthMiddleware: auth.NewMiddleware(svc.TokenManager(), users),
		Metrics:        metrics,
	})
	return &testServer{app: app, users: users, mailer: mailer, svc: svc}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

type authData struct {
	User  map[string]interface{} `json:"user"`
	Token string                 `json:"token"`
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, token string) (int, envelope, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env, raw
}

func decodeAuth(t *testing.T, env envelope) authData {
	t.Helper()
	var data authData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data
}

var ann = map[string]string{
	"fullName":        "Ann",
	"email":           "ann@x.com",
	"password":        "secret1",
	"confirmPassword": "secret1",
}

func TestRegisterStudent(t *testing.T) {
	s := newTestServer(t)
	status, env, raw := s.do(t, fiber.MethodPost, "/auth/student/register", ann, "")

	require.Equal(t, 201, status, string(raw))
	assert.True(t, env.Success)
	assert.Equal(t, "Student registered successfully", env.Message)

	data := decodeAuth(t, env)
	assert.NotEmpty(t, data.Token)
	assert.Equal(t, "ann@x.com", data.User["email"])
	assert.Equal(t, "student", data.User["role"])
	assert.NotContains(t, data.User, "password")
	assert.NotContains(t, data.User, "passwordHash")
	assert.NotContains(t, string(raw), "secret1")

	status, env, _ = s.do(t, fiber.MethodPost, "/auth/admin/register", map[string]string{"email": "ann@x.com", "password": "secret1"}, "")
	assert.Equal(t, 409, status)
	assert.False(t, env.Success)
	assert.Equal(t, "CONFLICT", env.Code)
}

func TestRegisterStudent_Validation(t *testing.T) {
	s := newTestServer(t)
	status, env, _ := s.do(t, fiber.MethodPost, "/auth/student/register", map[string]string{
		"fullName":        "A",
		"email":           "not-an-email",
		"password":        "123",
		"confirmPassword": "456",
	}, "")

	require.Equal(t, 422, status)
	assert.Equal(t, "Validation failed", env.Message)
	assert.Equal(t, "VALIDATION_FAILED", env.Code)

	byField := map[string]string{}
	for _, e := range env.Errors {
		byField[e.Field] = e.Message
	}
	assert.Equal(t, "Full name must be at least 2 characters", byField["fullName"])
	assert.Equal(t, "Please enter a valid email", byField["email"])
	assert.Equal(t, "Password must be at least 6 characters", byField["password"])
	assert.Equal(t, "Passwords do not match", byField["confirmPassword"])
	assert.Equal(t, 0, s.users.Len())
}

func TestMalformedPayload(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(fiber.MethodPost, "/auth/student/login", bytes.NewBufferString("{not json"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestLoginAndMe(t *testing.T) {
	s := newTestServer(t)
	status, _, _ := s.do(t, fiber.MethodPost, "/auth/student/register", ann, "")
	require.Equal(t, 201, status)

	status, env, _ := s.do(t, fiber.MethodPost, "/auth/student/login", map[string]string{"email": "ann@x.com", "password": "secret1"}, "")
	require.Equal(t, 200, status)
	token := decodeAuth(t, env).Token

	status, env, _ = s.do(t, fiber.MethodGet, "/auth/me", nil, token)
	require.Equal(t, 200, status)
	var me struct {
		User map[string]interface{} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "ann@x.com", me.User["email"])
	assert.NotNil(t, me.User["lastLogin"])

	status, env, _ = s.do(t, fiber.MethodGet, "/auth/me", nil, "")
	assert.Equal(t, 401, status)
	assert.Equal(t, "Not authorized to access this route", env.Message)

	status, env, _ = s.do(t, fiber.MethodGet, "/auth/me", nil, "garbage")
	assert.Equal(t, 401, status)
	assert.Equal(t, "Invalid or expired token", env.Message)
}

func TestLoginFailures(t *testing.T) {
	s := newTestServer(t)
	status, _, _ := s.do(t, fiber.MethodPost, "/auth/student/register", ann, "")
	require.Equal(t, 201, status)

	_, wrongPw, _ := s.do(t, fiber.MethodPost, "/auth/student/login", map[string]string{"email": "ann@x.com", "password": "nope"}, "")
	status, unknown, _ := s.do(t, fiber.MethodPost, "/auth/student/login", map[string]string{"email": "ghost@x.com", "password": "secret1"}, "")
	assert.Equal(t, 401, status)
	assert.Equal(t, wrongPw.Message, unknown.Message)
	assert.Equal(t, "Invalid email or password", unknown.Message)

	status, _, _ = s.do(t, fiber.MethodPost, "/auth/admin/login", map[string]string{"email": "ann@x.com", "password": "secret1"}, "")
	assert.Equal(t, 401, status)
}

func TestForgotAndResetPassword(t *testing.T) {
	s := newTestServer(t)
	status, env, _ := s.do(t, fiber.MethodPost, "/auth/student/register", ann, "")
	require.Equal(t, 201, status)
	userID := decodeAuth(t, env).User["id"]

	status, env, _ = s.do(t, fiber.MethodPost, "/auth/forgot-password", map[string]string{"email": "ann@x.com"}, "")
	require.Equal(t, 200, status)
	assert.Equal(t, "OTP sent to email", env.Message)
	otp := s.mailer.last["ann@x.com"]
	require.Len(t, otp, 6)

	reset := map[string]string{"email": "ann@x.com", "otp": otp, "newPassword": "secret2", "confirmPassword": "secret2"}
	status, env, _ = s.do(t, fiber.MethodPost, "/auth/reset-password", reset, "")
	require.Equal(t, 200, status)
	assert.Equal(t, "Password reset successful", env.Message)
	token := decodeAuth(t, env).Token

	claims, err := s.svc.TokenManager().Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)

	status, _, _ = s.do(t, fiber.MethodPost, "/auth/student/login", map[string]string{"email": "ann@x.com", "password": "secret1"}, "")
	assert.Equal(t, 401, status)
	status, _, _ = s.do(t, fiber.MethodPost, "/auth/student/login", map[string]string{"email": "ann@x.com", "password": "secret2"}, "")
	assert.Equal(t, 200, status)

	status, env, _ = s.do(t, fiber.MethodPost, "/auth/reset-password", reset, "")
	assert.Equal(t, 400, status)
	assert.Equal(t, "Invalid OTP or OTP has expired", env.Message)
}

func TestForgotPasswordErrors(t *testing.T) {
	s := newTestServer(t)

	status, env, _ := s.do(t, fiber.MethodPost, "/auth/forgot-password", map[string]string{}, "")
	assert.Equal(t, 400, status)
	assert.Equal(t, "Email is required", env.Message)

	status, env, _ = s.do(t, fiber.MethodPost, "/auth/forgot-password", map[string]string{"email": "ghost@x.com"}, "")
	assert.Equal(t, 404, status)
	assert.Equal(t, "User not found with this email", env.Message)

	status, _, _ = s.do(t, fiber.MethodPost, "/auth/student/register", ann, "")
	require.Equal(t, 201, status)
	s.mailer.err = errors.New("smtp down")
	status, env, _ = s.do(t, fiber.MethodPost, "/auth/forgot-password", map[string]string{"email": "ann@x.com"}, "")
	assert.Equal(t, 502, status)
	assert.Equal(t, "Email could not be sent. Please try again later.", env.Message)
}

func TestResetPasswordErrors(t *testing.T) {
	s := newTestServer(t)

	status, env, _ := s.do(t, fiber.MethodPost, "/auth/reset-password", map[string]string{"email": "ann@x.com"}, "")
	assert.Equal(t, 400, status)
	assert.Equal(t, "All fields are required", env.Message)

	status, env, _ = s.do(t, fiber.MethodPost, "/auth/reset-password", map[string]string{
		"email": "ann@x.com", "otp": "123456", "newPassword": "a", "confirmPassword": "b",
	}, "")
	assert.Equal(t, 400, status)
	assert.Equal(t, "PASSWORD_MISMATCH", env.Code)
	assert.Equal(t, "Passwords do not match", env.Message)
}

func TestUserStatus(t *testing.T) {
	s := newTestServer(t)
	status, env, _ := s.do(t, fiber.MethodPost, "/auth/student/register", ann, "")
	require.Equal(t, 201, status)
	student := decodeAuth(t, env)

	status, env, _ = s.do(t, fiber.MethodPost, "/auth/admin/register", map[string]string{"email": "boss@x.com", "password": "secret1"}, "")
	require.Equal(t, 201, status)
	admin := decodeAuth(t, env)

	path := "/auth/users/" + student.User["id"].(string) + "/status"

	status, env, _ = s.do(t, fiber.MethodPatch, path, map[string]bool{"isActive": false}, student.Token)
	assert.Equal(t, 403, status)
	assert.Equal(t, "Role 'student' is not authorized to access this route", env.Message)

	status, _, _ = s.do(t, fiber.MethodPatch, path, map[string]interface{}{}, admin.Token)
	assert.Equal(t, 422, status)

	status, _, _ = s.do(t, fiber.MethodPatch, path, map[string]bool{"isActive": false}, admin.Token)
	require.Equal(t, 200, status)

	status, env, _ = s.do(t, fiber.MethodGet, "/auth/me", nil, student.Token)
	assert.Equal(t, 403, status, "still-valid token for a deactivated user is rejected")
	assert.Equal(t, "Your account has been deactivated", env.Message)

	status, env, _ = s.do(t, fiber.MethodPost, "/auth/student/login", map[string]string{"email": "ann@x.com", "password": "secret1"}, "")
	assert.Equal(t, 403, status)
	assert.Equal(t, "Your account has been deactivated. Please contact support.", env.Message)

	status, _, _ = s.do(t, fiber.MethodPatch, "/auth/users/missing/status", map[string]bool{"isActive": true}, admin.Token)
	assert.Equal(t, 404, status)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	status, _, raw := s.do(t, fiber.MethodGet, "/health/live", nil, "")
	assert.Equal(t, 200, status)
	assert.Contains(t, string(raw), "alive")

	status, _, raw = s.do(t, fiber.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, 200, status)
	assert.Contains(t, string(raw), `"store":"ok"`)

	resp, err := s.app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	status, env, _ := s.do(t, fiber.MethodGet, "/nope", nil, "")
	assert.Equal(t, 404, status)
	assert.Equal(t, "NOT_FOUND", env.Code)
	assert.False(t, env.Success)
}
