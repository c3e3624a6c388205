package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
)

// OTPSubject is the subject line of password reset emails.
const OTPSubject = "Your Password Reset OTP - Sukudha Academy"

// OTPSender delivers one-time reset codes to an address.
type OTPSender interface {
	SendOTPEmail(ctx context.Context, to, otp string) error
}

var otpTemplate = template.Must(template.New("otp").Parse(`<html>
    <body>
        <h1>Password Reset Request</h1>
        <p>You requested to reset your password. Use the following OTP to complete the process:</p>
        <h2 style="color: #4F46E5;">{{.OTP}}</h2>
        <p>This OTP is valid for 1 hour.</p>
        <p>If you didn't request this, please ignore this email.</p>
    </body>
</html>`))

// RenderOTPEmail builds the HTML body for a reset code.
func RenderOTPEmail(otp string) (string, error) {
	var buf bytes.Buffer
	if err := otpTemplate.Execute(&buf, struct{ OTP string }{OTP: otp}); err != nil {
		return "", fmt.Errorf("render otp email: %w", err)
	}
	return buf.String(), nil
}
