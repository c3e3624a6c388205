package auth

import (
	"crypto/rand"
	"math/big"
	"strconv"
)

const (
	otpMin   = 100000
	otpRange = 900000
)

// GenerateOTP returns a uniformly random six digit code in [100000, 999999].
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpRange))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10), nil
}
