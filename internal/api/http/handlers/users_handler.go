package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sukudha/academy-service/internal/api/dto"
	"github.com/sukudha/academy-service/internal/auth"
	"github.com/sukudha/academy-service/internal/service"
)

// UsersHandler exposes admin account management.
type UsersHandler struct {
	auth *service.AuthService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService) *UsersHandler {
	return &UsersHandler{auth: authService}
}

// SetStatus handles PATCH /auth/users/:id/status.
func (h *UsersHandler) SetStatus(c *fiber.Ctx) error {
	var req dto.UserStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validateStruct(&req); err != nil {
		return err
	}

	actor, _ := auth.UserFromContext(c)
	user, err := h.auth.SetUserActive(c.UserContext(), actor, c.Params("id"), *req.IsActive)
	if err != nil {
		return err
	}

	msg := "User deactivated"
	if user.IsActive {
		msg = "User activated"
	}
	return c.JSON(dto.OK(msg, dto.UserEnvelope{User: dto.NewUserResponse(user)}))
}
