package recordings

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrWebhookSecretMissing = errors.New("webhook secret token not configured")
	ErrInvalidSignature     = errors.New("zoom webhook signature does not match")
)

// SignatureValidator checks Zoom webhook signatures (v0=HMAC-SHA256 of "v0:<ts>:<body>").
type SignatureValidator struct {
	secret []byte
}

// NewSignatureValidator creates a validator for the shared webhook secret.
func NewSignatureValidator(secret string) *SignatureValidator {
	return &SignatureValidator{secret: []byte(secret)}
}

// Validate checks signature against the raw request body and timestamp header.
func (v *SignatureValidator) Validate(body []byte, signature, timestamp string) error {
	if len(v.secret) == 0 {
		return ErrWebhookSecretMissing
	}
	if signature == "" || timestamp == "" {
		return fmt.Errorf("%w: missing signature or timestamp", ErrInvalidSignature)
	}
	expected := "v0=" + v.sign(fmt.Sprintf("v0:%s:%s", timestamp, body))
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidSignature
	}
	return nil
}

// EncryptToken answers an endpoint.url_validation challenge.
func (v *SignatureValidator) EncryptToken(plainToken string) string {
	return v.sign(plainToken)
}

func (v *SignatureValidator) sign(msg string) string {
	h := hmac.New(sha256.New, v.secret)
	h.Write([]byte(msg))
	return hex.EncodeToString(h.Sum(nil))
}
