package security

import (
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPService provisions and validates time-based one-time passwords.
type TOTPService interface {
	// GenerateSecret returns the base32 secret and the otpauth:// URL for
	// enrolling an authenticator app.
	GenerateSecret(accountName string) (secret string, otpauthURL string, err error)
	// ValidateCode checks a 6-digit code against the secret, tolerating one
	// 30-second step of clock skew in either direction.
	ValidateCode(secret string, code string) bool
}

type totpService struct {
	issuer string
}

// NewTOTPService creates a TOTPService with the given issuer name.
func NewTOTPService(issuer string) TOTPService {
	if strings.TrimSpace(issuer) == "" {
		issuer = "IdentityPlatform"
	}
	return &totpService{issuer: issuer}
}

func (s *totpService) GenerateSecret(accountName string) (string, string, error) {
	if strings.TrimSpace(accountName) == "" {
		return "", "", fmt.Errorf("account name cannot be empty")
	}
	if strings.Contains(accountName, ":") || strings.Contains(s.issuer, ":") {
		return "", "", fmt.Errorf("account name and issuer cannot contain a colon")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: accountName,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
		SecretSize:  20,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to generate TOTP key: %w", err)
	}
	return key.Secret(), key.URL(), nil
}

func (s *totpService) ValidateCode(secret string, code string) bool {
	if strings.TrimSpace(secret) == "" || strings.TrimSpace(code) == "" {
		return false
	}
	valid, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1, // one period of clock drift on either side
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return valid
}

var _ TOTPService = (*totpService)(nil)
