package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sukudha/academy-service/internal/auth"
	"github.com/sukudha/academy-service/internal/config"
	"github.com/sukudha/academy-service/internal/domain"
	"github.com/sukudha/academy-service/internal/events"
	"github.com/sukudha/academy-service/internal/mail"
	"github.com/sukudha/academy-service/internal/observability"
	"github.com/sukudha/academy-service/internal/repository"
	apperrors "github.com/sukudha/academy-service/pkg/util/errorutil"
)

// Throttle limits how often a key may trigger an action.
type Throttle interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// AuthService coordinates registration, login and password recovery.
type AuthService struct {
	users      repository.UserRepository
	hasher     auth.PasswordHasher
	tokenMgr   *auth.TokenManager
	mailer     mail.OTPSender
	throttle      Throttle
	resetThrottle Throttle
	dispatcher    events.Dispatcher
	metrics       *observability.Metrics
	logger        *zap.Logger
	now           func() time.Time
	generate      func() (string, error)
}

// AuthDependencies encapsulates collaborators for the auth service. Users
// and Mailer are required; the rest fall back to defaults when nil.
// Throttle limits forgot-password requests and ResetThrottle limits reset
// attempts, both keyed by normalized email.
type AuthDependencies struct {
	Users         repository.UserRepository
	Mailer        mail.OTPSender
	Hasher        auth.PasswordHasher
	Throttle      Throttle
	ResetThrottle Throttle
	Dispatcher    events.Dispatcher
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	Clock         func() time.Time
	OTPSource     func() (string, error)
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	s := &AuthService{
		users:         deps.Users,
		hasher:        deps.Hasher,
		tokenMgr:      auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL),
		mailer:        deps.Mailer,
		throttle:      deps.Throttle,
		resetThrottle: deps.ResetThrottle,
		dispatcher:    deps.Dispatcher,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		now:           deps.Clock,
		generate:      deps.OTPSource,
	}
	if s.hasher == nil {
		s.hasher = auth.NewBcryptHasher(cfg.BcryptCost)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.generate == nil {
		s.generate = auth.GenerateOTP
	}
	return s
}

// RegisterStudent creates a student account and signs the caller in.
func (s *AuthService) RegisterStudent(ctx context.Context, fullName, email, password string) (*domain.AuthResult, error) {
	name := strings.TrimSpace(fullName)
	res, err := s.register(ctx, &name, email, password, domain.RoleStudent)
	s.metrics.RecordAuth("register_student", err)
	return res, err
}

// RegisterAdmin creates an admin account and signs the caller in.
func (s *AuthService) RegisterAdmin(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	res, err := s.register(ctx, nil, email, password, domain.RoleAdmin)
	s.metrics.RecordAuth("register_admin", err)
	return res, err
}

func (s *AuthService) register(ctx context.Context, fullName *string, email, password string, role domain.Role) (*domain.AuthResult, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		FullName:     fullName,
		Email:        domain.NormalizeEmail(email),
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The store's unique index is the only uniqueness guarantee.
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, emailTaken(role)
		}
		return nil, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.EventUserRegistered, user, nil)
	return s.issue(user)
}

// LoginStudent authenticates a student.
func (s *AuthService) LoginStudent(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	res, err := s.login(ctx, email, password, domain.RoleStudent)
	s.metrics.RecordAuth("login_student", err)
	return res, err
}

// LoginAdmin authenticates an admin.
func (s *AuthService) LoginAdmin(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	res, err := s.login(ctx, email, password, domain.RoleAdmin)
	s.metrics.RecordAuth("login_admin", err)
	return res, err
}

func (s *AuthService) login(ctx context.Context, email, password string, role domain.Role) (*domain.AuthResult, error) {
	user, err := s.users.GetByEmailAndRole(ctx, domain.NormalizeEmail(email), role)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.NewInternalError(err)
	}

	// Password first so that deactivation is only revealed to the owner.
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, apperrors.ErrAccountDeactivated
	}

	at := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, at); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user.LastLogin = &at

	s.publish(ctx, events.EventUserLoggedIn, user, nil)
	return s.issue(user)
}

// GetProfile returns the stored record for an authenticated user.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperrors.NewNotFound("User", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

// ForgotPassword issues a one-hour reset code and mails it. When delivery
// fails the code is cleared before the error is returned.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	err := s.forgotPassword(ctx, domain.NormalizeEmail(email))
	s.metrics.RecordAuth("forgot_password", err)
	return err
}

func (s *AuthService) forgotPassword(ctx context.Context, email string) error {
	if !s.allow(ctx, s.throttle, "forgot-password", email) {
		return apperrors.ErrTooManyRequests
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperrors.NewDomainError(apperrors.CodeNotFound, "User not found with this email", http.StatusNotFound, nil)
		}
		return apperrors.NewInternalError(err)
	}

	otp, err := s.generate()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	expiresAt := s.now().UTC().Add(domain.ResetOTPTTL)
	if err := s.users.SetResetOTP(ctx, user.ID, otp, expiresAt); err != nil {
		return apperrors.NewInternalError(err)
	}

	if err := s.mailer.SendOTPEmail(ctx, user.Email, otp); err != nil {
		s.logger.Error("otp email delivery failed", zap.String("user_id", user.ID), zap.Error(err))
		// The caller never received this code, so it must not stay usable.
		if clearErr := s.users.ClearResetOTP(context.WithoutCancel(ctx), user.ID); clearErr != nil {
			s.logger.Error("failed to clear undelivered otp", zap.String("user_id", user.ID), zap.Error(clearErr))
		}
		return apperrors.ErrEmailDeliveryFailed
	}

	s.publish(ctx, events.EventPasswordResetRequested, user, events.PasswordResetRequestedPayload{ExpiresAt: expiresAt})
	return nil
}

// ResetPassword consumes a valid reset code and replaces the password.
func (s *AuthService) ResetPassword(ctx context.Context, email, otp, newPassword, confirmPassword string) (*domain.AuthResult, error) {
	res, err := s.resetPassword(ctx, domain.NormalizeEmail(email), strings.TrimSpace(otp), newPassword, confirmPassword)
	s.metrics.RecordAuth("reset_password", err)
	return res, err
}

func (s *AuthService) resetPassword(ctx context.Context, email, otp, newPassword, confirmPassword string) (*domain.AuthResult, error) {
	if newPassword != confirmPassword {
		return nil, apperrors.ErrPasswordMismatch
	}
	if !s.allow(ctx, s.resetThrottle, "reset-password", email) {
		return nil, apperrors.ErrTooManyRequests
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	// Email, code and expiry are matched in a single update so a code can
	// only ever be consumed once.
	user, err := s.users.ConsumeResetOTP(ctx, email, otp, hash, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidOrExpiredOTP
		}
		return nil, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.EventPasswordResetCompleted, user, nil)
	return s.issue(user)
}

// SetUserActive deactivates or reactivates an account.
func (s *AuthService) SetUserActive(ctx context.Context, actor *domain.User, userID string, active bool) (*domain.User, error) {
	if actor != nil && actor.ID == userID && !active {
		return nil, apperrors.NewBadRequest("You cannot deactivate your own account")
	}

	user, err := s.users.SetActive(ctx, userID, active)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperrors.NewNotFound("User", map[string]any{"id": userID})
		}
		return nil, apperrors.NewInternalError(err)
	}

	payload := events.UserStatusChangedPayload{IsActive: active}
	if actor != nil {
		payload.ActorID = actor.ID
	}
	s.publish(ctx, events.EventUserStatusChanged, user, payload)
	return user, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issue(user *domain.User) (*domain.AuthResult, error) {
	token, exp, err := s.tokenMgr.Issue(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &domain.AuthResult{User: user, Token: token, ExpiresAt: exp}, nil
}

// allow consults a throttle and fails open when it is unavailable.
func (s *AuthService) allow(ctx context.Context, t Throttle, name, key string) bool {
	if t == nil {
		return true
	}
	allowed, err := t.Allow(ctx, key)
	if err != nil {
		s.logger.Warn("throttle unavailable", zap.String("throttle", name), zap.Error(err))
		return true
	}
	return allowed
}

// publish emits an event; delivery failures never fail the request.
func (s *AuthService) publish(ctx context.Context, eventType events.EventType, user *domain.User, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    user.ID,
		Role:      user.Role,
		Timestamp: s.now().UTC(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}

func emailTaken(role domain.Role) error {
	if role == domain.RoleAdmin {
		return apperrors.NewConflict("Admin with this email already exists", nil)
	}
	return apperrors.ErrEmailTaken
}
