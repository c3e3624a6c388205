package auth

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/sukudha/academy-service/internal/domain"
	apperrors "github.com/sukudha/academy-service/pkg/util/errorutil"
)

// RoleAllowed reports whether role is in allowed. Unknown roles are never
// allowed.
func RoleAllowed(role domain.Role, allowed ...domain.Role) bool {
	if !role.Valid() {
		return false
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// RequireRole ensures the authenticated user has one of the allowed roles.
// It must run after Middleware.Handle.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	for _, r := range allowed {
		if !r.Valid() {
			panic(fmt.Sprintf("auth: RequireRole with unknown role %q", r))
		}
	}

	return func(c *fiber.Ctx) error {
		user, ok := UserFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("Not authorized to access this route")
		}
		if !RoleAllowed(user.Role, allowed...) {
			return apperrors.NewForbidden(fmt.Sprintf("Role '%s' is not authorized to access this route", user.Role))
		}
		return c.Next()
	}
}
