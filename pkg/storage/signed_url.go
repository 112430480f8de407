package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken is returned for malformed or forged download tokens.
	ErrInvalidToken = errors.New("invalid download token")
	// ErrTokenExpired is returned once a token's lifetime has passed.
	ErrTokenExpired = errors.New("download token expired")
)

// SignedHandle is the verified content of a download token.
type SignedHandle struct {
	Handle    string
	ExpiresAt time.Time
}

// SignedURLSigner issues HMAC-signed, time-limited tokens for file handles.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer. A non-positive ttl falls back to 24h.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Sign returns a token of the form <handle>.<expiry>.<signature>, the handle base64url encoded.
func (s *SignedURLSigner) Sign(handle string) (string, time.Time, error) {
	if handle == "" {
		return "", time.Time{}, errors.New("handle required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	encoded := base64.RawURLEncoding.EncodeToString([]byte(handle))
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	return strings.Join([]string{encoded, exp, s.mac(encoded, exp)}, "."), expiresAt, nil
}

// Verify checks the signature and expiry of token and returns the handle it grants.
func (s *SignedURLSigner) Verify(token string) (SignedHandle, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || len(s.secret) == 0 {
		return SignedHandle{}, ErrInvalidToken
	}
	encoded, exp, signature := parts[0], parts[1], parts[2]
	if !hmac.Equal([]byte(s.mac(encoded, exp)), []byte(signature)) {
		return SignedHandle{}, ErrInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || len(raw) == 0 {
		return SignedHandle{}, ErrInvalidToken
	}
	unix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return SignedHandle{}, ErrInvalidToken
	}
	signed := SignedHandle{Handle: string(raw), ExpiresAt: time.Unix(unix, 0)}
	if s.now().After(signed.ExpiresAt) {
		return signed, ErrTokenExpired
	}
	return signed, nil
}

func (s *SignedURLSigner) mac(encodedHandle, exp string) string {
	h := hmac.New(sha256.New, s.secret)
	_, _ = h.Write([]byte(encodedHandle + "|" + exp))
	return hex.EncodeToString(h.Sum(nil))
}
