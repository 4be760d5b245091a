package tools

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader is the header carrying the webhook body signature: sha256=<hex>.
const SignatureHeader = "X-Webhook-Signature"

// VerifySignature validates header against the HMAC-SHA256 of body with secret.
// Returns false plus the reason on failure.
func VerifySignature(secret string, body []byte, header string) (bool, string) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return false, "webhook secret not configured"
	}

	sig := strings.TrimSpace(header)
	if sig == "" {
		return false, "missing " + SignatureHeader
	}
	if !strings.HasPrefix(sig, "sha256=") {
		return false, "invalid " + SignatureHeader + " format"
	}

	provided, err := hex.DecodeString(strings.TrimPrefix(sig, "sha256="))
	if err != nil {
		return false, "invalid signature hex"
	}

	if !hmac.Equal(provided, Sign(secret, body)) {
		return false, "signature mismatch"
	}
	return true, ""
}

// Sign returns the raw HMAC-SHA256 of body.
func Sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}

// SignatureValue formats Sign as a header value.
func SignatureValue(secret string, body []byte) string {
	return "sha256=" + hex.EncodeToString(Sign(secret, body))
}
