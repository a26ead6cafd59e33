package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Token verification errors returned by Parse.
var (
	// ErrMalformedToken means the token does not have three well-formed parts.
	ErrMalformedToken = errors.New("malformed receipt token")
	// ErrBadSignature means the HMAC does not match the payload.
	ErrBadSignature = errors.New("invalid receipt token signature")
	// ErrExpiredToken means the signature is valid but the link has lapsed.
	ErrExpiredToken = errors.New("receipt token expired")
)

// ReceiptSigner mints and verifies tamper-proof receipt links. A token is
// "<base64 session id>.<unix expiry>.<hex hmac>".
type ReceiptSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewReceiptSigner constructs a signer with the provided secret and TTL.
func NewReceiptSigner(secret string, ttl time.Duration) *ReceiptSigner {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &ReceiptSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate returns a token for the given checkout session id.
func (s *ReceiptSigner) Generate(sessionID string) (string, time.Time, error) {
	if sessionID == "" {
		return "", time.Time{}, fmt.Errorf("session id required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).UTC()
	encoded := base64.RawURLEncoding.EncodeToString([]byte(sessionID))
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	return strings.Join([]string{encoded, exp, s.sign(encoded, exp)}, "."), expiresAt, nil
}

// Parse validates a token and returns the session id it was minted for.
func (s *ReceiptSigner) Parse(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", ErrMalformedToken
	}
	encoded, exp, signature := parts[0], parts[1], parts[2]

	if !hmac.Equal([]byte(s.sign(encoded, exp)), []byte(signature)) {
		return "", ErrBadSignature
	}
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return "", ErrMalformedToken
	}
	if s.now().After(time.Unix(expUnix, 0)) {
		return "", ErrExpiredToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || len(raw) == 0 {
		return "", ErrMalformedToken
	}
	return string(raw), nil
}

func (s *ReceiptSigner) sign(encoded, exp string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(encoded + "|" + exp))
	return hex.EncodeToString(mac.Sum(nil))
}
