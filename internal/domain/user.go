package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// ParseRole converts a raw value into a Role.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleStudent:
		return RoleStudent, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleAdmin:
		return true
	default:
		return false
	}
}

// User is the stored account record for students and admins.
type User struct {
	ID                string     `json:"id" bson:"_id"`
	FullName          *string    `json:"fullName,omitempty" bson:"full_name,omitempty"`
	Email             string     `json:"email" bson:"email"`
	PasswordHash      string     `json:"-" bson:"password_hash"`
	Role              Role       `json:"role" bson:"role"`
	IsActive          bool       `json:"isActive" bson:"is_active"`
	LastLogin         *time.Time `json:"lastLogin,omitempty" bson:"last_login,omitempty"`
	ResetOTP          *string    `json:"-" bson:"reset_otp"`
	ResetOTPExpiresAt *time.Time `json:"-" bson:"reset_otp_expires_at"`
	CreatedAt         time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt         time.Time  `json:"updatedAt" bson:"updated_at"`
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ResetPending reports whether the user holds an OTP that is still usable at now.
func (u *User) ResetPending(now time.Time) bool {
	if u.ResetOTP == nil || u.ResetOTPExpiresAt == nil {
		return false
	}
	return !OTPExpired(*u.ResetOTPExpiresAt, now)
}

// OTPExpired is true once now reaches expiresAt.
func OTPExpired(expiresAt, now time.Time) bool {
	return !now.Before(expiresAt)
}

// Clone returns a deep copy so stores never share pointers with callers.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.FullName != nil {
		v := *u.FullName
		c.FullName = &v
	}
	if u.LastLogin != nil {
		v := *u.LastLogin
		c.LastLogin = &v
	}
	if u.ResetOTP != nil {
		v := *u.ResetOTP
		c.ResetOTP = &v
	}
	if u.ResetOTPExpiresAt != nil {
		v := *u.ResetOTPExpiresAt
		c.ResetOTPExpiresAt = &v
	}
	return &c
}
