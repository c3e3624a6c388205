package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sukudha/academy-service/internal/domain"
	"github.com/sukudha/academy-service/internal/repository"
	apperrors "github.com/sukudha/academy-service/pkg/util/errorutil"
)

type stubLookup map[string]*domain.User

func (s stubLookup) GetByID(_ context.Context, id string) (*domain.User, error) {
	if id == "broken" {
		return nil, errors.New("db down")
	}
	u, ok := s[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func testApp(tm *TokenManager, users UserLookup, roles ...domain.Role) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(fiber.Map{"code": de.Code, "message": de.Message})
		},
	})
	handlers := []fiber.Handler{NewMiddleware(tm, users).Handle}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRole(roles...))
	}
	handlers = append(handlers, func(c *fiber.Ctx) error {
		user, _ := UserFromContext(c)
		return c.JSON(fiber.Map{"id": user.ID})
	})
	app.Get("/me", handlers...)
	return app
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

func call(t *testing.T, app *fiber.App, header string) (int, errorBody) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set(fiber.HeaderAuthorization, header)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestMiddleware_Handle(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	users := stubLookup{
		"active":   {ID: "active", Role: domain.RoleStudent, IsActive: true},
		"inactive": {ID: "inactive", Role: domain.RoleStudent, IsActive: false},
	}
	app := testApp(tm, users)

	issue := func(id string) string {
		token, _, err := tm.Issue(id, domain.RoleStudent)
		require.NoError(t, err)
		return "Bearer " + token
	}
	foreign, _, err := NewTokenManager("other", time.Hour).Issue("active", domain.RoleStudent)
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		status  int
		message string
	}{
		{name: "missing header", header: "", status: 401, message: "Not authorized to access this route"},
		{name: "wrong scheme", header: "Basic abc", status: 401, message: "Not authorized to access this route"},
		{name: "bearer without token", header: "Bearer ", status: 401, message: "Not authorized to access this route"},
		{name: "foreign signature", header: "Bearer " + foreign, status: 401, message: "Invalid or expired token"},
		{name: "unknown user", header: issue("ghost"), status: 401, message: "User not found"},
		{name: "inactive user", header: issue("inactive"), status: 403, message: "Your account has been deactivated"},
		{name: "store failure", header: issue("broken"), status: 500},
		{name: "active user", header: issue("active"), status: 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, app, tt.header)
			assert.Equal(t, tt.status, status)
			if tt.message != "" {
				assert.Equal(t, tt.message, body.Message)
			}
			if status == 200 {
				assert.Equal(t, "active", body.ID)
			}
		})
	}
}
