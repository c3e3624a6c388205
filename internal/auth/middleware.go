package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sukudha/academy-service/internal/domain"
	"github.com/sukudha/academy-service/internal/repository"
	apperrors "github.com/sukudha/academy-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// UserLookup is the slice of the credential store the gate needs.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// Middleware validates bearer tokens and loads the referenced user.
type Middleware struct {
	tokens *TokenManager
	users  UserLookup
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenManager, users UserLookup) *Middleware {
	return &Middleware{tokens: tokens, users: users}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return apperrors.NewUnauthorized("Not authorized to access this route")
	}

	claims, err := m.tokens.Verify(token)
	if err != nil {
		return apperrors.NewUnauthorized("Invalid or expired token")
	}

	user, err := m.users.GetByID(c.UserContext(), claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperrors.NewUnauthorized("User not found")
		}
		return apperrors.NewInternalError(err)
	}
	if !user.IsActive {
		return apperrors.NewForbidden("Your account has been deactivated")
	}

	c.Locals(principalKey, user)
	return c.Next()
}

// UserFromContext retrieves the authenticated user.
func UserFromContext(c *fiber.Ctx) (*domain.User, bool) {
	user, ok := c.Locals(principalKey).(*domain.User)
	return user, ok && user != nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
