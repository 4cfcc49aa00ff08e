package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// GenerateOpaqueToken returns a hex-encoded random token of byteLength
// random bytes. Used for challenge tokens, magic links, and webhook secrets.
func GenerateOpaqueToken(byteLength int) (string, error) {
	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

const recoveryCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateRecoveryCode returns a human-typable code like "M3KP-7QWX-2ZRT".
// The alphabet drops ambiguous characters (0/O, 1/I).
func GenerateRecoveryCode() (string, error) {
	groups := make([]byte, 0, 14)
	for g := 0; g < 3; g++ {
		if g > 0 {
			groups = append(groups, '-')
		}
		for i := 0; i < 4; i++ {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(recoveryCodeAlphabet))))
			if err != nil {
				return "", fmt.Errorf("failed to generate recovery code: %w", err)
			}
			groups = append(groups, recoveryCodeAlphabet[n.Int64()])
		}
	}
	return string(groups), nil
}
