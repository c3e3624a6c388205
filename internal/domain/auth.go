package domain

import "time"

// ResetOTPTTL is how long a password-reset OTP stays valid after issue.
const ResetOTPTTL = time.Hour

// AuthResult is what every credential-issuing operation returns.
type AuthResult struct {
	User      *User
	Token     string
	ExpiresAt time.Time
}
