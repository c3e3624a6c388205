package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sukudha/academy-service/internal/api/dto"
	"github.com/sukudha/academy-service/internal/auth"
	"github.com/sukudha/academy-service/internal/service"
	apperrors "github.com/sukudha/academy-service/pkg/util/errorutil"
)

// AuthHandler exposes registration, login and password recovery.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// RegisterStudent handles POST /auth/student/register.
func (h *AuthHandler) RegisterStudent(c *fiber.Ctx) error {
	var req dto.StudentRegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(req.Email)
	if err := validateStruct(&req); err != nil {
		return err
	}

	res, err := h.auth.RegisterStudent(c.UserContext(), req.FullName, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.OK("Student registered successfully", dto.NewAuthResponse(res)))
}

// RegisterAdmin handles POST /auth/admin/register.
func (h *AuthHandler) RegisterAdmin(c *fiber.Ctx) error {
	var req dto.AdminRegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validateStruct(&req); err != nil {
		return err
	}

	res, err := h.auth.RegisterAdmin(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.OK("Admin registered successfully", dto.NewAuthResponse(res)))
}

// LoginStudent handles POST /auth/student/login.
func (h *AuthHandler) LoginStudent(c *fiber.Ctx) error {
	req, err := h.loginRequest(c)
	if err != nil {
		return err
	}
	res, err := h.auth.LoginStudent(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("Login successful", dto.NewAuthResponse(res)))
}

// LoginAdmin handles POST /auth/admin/login.
func (h *AuthHandler) LoginAdmin(c *fiber.Ctx) error {
	req, err := h.loginRequest(c)
	if err != nil {
		return err
	}
	res, err := h.auth.LoginAdmin(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("Login successful", dto.NewAuthResponse(res)))
}

func (h *AuthHandler) loginRequest(c *fiber.Ctx) (*dto.LoginRequest, error) {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return nil, err
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validateStruct(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Not authorized to access this route")
	}
	user, err := h.auth.GetProfile(c.UserContext(), principal.ID)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("", dto.UserEnvelope{User: dto.NewUserResponse(user)}))
}

// ForgotPassword handles POST /auth/forgot-password.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Email) == "" {
		return apperrors.NewBadRequest("Email is required")
	}

	if err := h.auth.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return err
	}
	return c.JSON(dto.OK("OTP sent to email", nil))
}

// ResetPassword handles POST /auth/reset-password.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.OTP) == "" ||
		req.NewPassword == "" || req.ConfirmPassword == "" {
		return apperrors.NewBadRequest("All fields are required")
	}

	res, err := h.auth.ResetPassword(c.UserContext(), req.Email, req.OTP, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("Password reset successful", dto.NewAuthResponse(res)))
}
