// Package auth provides password hashing and stateless session tokens.
// Passwords are hashed with bcrypt. Tokens are HMAC-SHA256 signed
// username+expiry pairs; no server-side session state is kept.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidToken indicates a malformed or tampered token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates a structurally valid but expired token.
	ErrExpiredToken = errors.New("token expired")
)

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// TokenIssuer issues and verifies signed session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration

	// now is replaceable in tests.
	now func() time.Time
}

// NewTokenIssuer creates a token issuer with the given signing secret and TTL.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue creates a signed token for the username, valid for the issuer's TTL.
// Token layout: base64(username|expiryUnix).base64(hmac).
func (t *TokenIssuer) Issue(username string) string {
	expiry := t.now().Add(t.ttl).Unix()
	payload := username + "|" + strconv.FormatInt(expiry, 10)
	sig := t.sign(payload)
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + base64.RawURLEncoding.EncodeToString(sig)
}

// Verify checks a token's signature and expiry and returns the username.
func (t *TokenIssuer) Verify(token string) (string, error) {
	encPayload, encSig, found := strings.Cut(token, ".")
	if !found {
		return "", ErrInvalidToken
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(encPayload)
	if err != nil {
		return "", ErrInvalidToken
	}
	sig, err := base64.RawURLEncoding.DecodeString(encSig)
	if err != nil {
		return "", ErrInvalidToken
	}

	payload := string(payloadBytes)
	if !hmac.Equal(sig, t.sign(payload)) {
		return "", ErrInvalidToken
	}

	username, expiryStr, found := strings.Cut(payload, "|")
	if !found || username == "" {
		return "", ErrInvalidToken
	}
	expiry, err := strconv.ParseInt(expiryStr, 10, 64)
	if err != nil {
		return "", ErrInvalidToken
	}
	if t.now().Unix() > expiry {
		return "", ErrExpiredToken
	}

	return username, nil
}

func (t *TokenIssuer) sign(payload string) []byte {
	mac := hmac.New(sha256.New, t.secret)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}
