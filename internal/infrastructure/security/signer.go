package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignaturePrefix prepends every webhook signature so subscribers can detect
// the scheme: "sha256=" + hex(HMAC-SHA256(secret, body)).
const SignaturePrefix = "sha256="

// SignPayload computes the webhook signature over the exact body bytes that
// will be sent on the wire.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature against the raw body using a
// constant-time comparison. This is the subscriber-side reference
// implementation.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := SignPayload(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
