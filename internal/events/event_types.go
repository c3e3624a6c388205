package events

import (
	"time"

	"github.com/sukudha/academy-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered         EventType = "auth.user_registered"
	EventUserLoggedIn           EventType = "auth.user_logged_in"
	EventPasswordResetRequested EventType = "auth.password_reset_requested"
	EventPasswordResetCompleted EventType = "auth.password_reset_completed"
	EventUserStatusChanged      EventType = "auth.user_status_changed"
)

// AllEventTypes lists every event the auth service emits.
var AllEventTypes = []EventType{
	EventUserRegistered,
	EventUserLoggedIn,
	EventPasswordResetRequested,
	EventPasswordResetCompleted,
	EventUserStatusChanged,
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Role      domain.Role `json:"role"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// UserStatusChangedPayload payload.
type UserStatusChangedPayload struct {
	ActorID  string `json:"actor_id"`
	IsActive bool   `json:"is_active"`
}

// PasswordResetRequestedPayload payload. The code itself is never published.
type PasswordResetRequestedPayload struct {
	ExpiresAt time.Time `json:"expires_at"`
}
