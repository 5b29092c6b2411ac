package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)

	assert.True(t, CheckPassword(hash, "hunter2"))
	assert.False(t, CheckPassword(hash, "hunter3"))
	assert.False(t, CheckPassword("not a hash", "hunter2"))
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	token := issuer.Issue("alice")
	username, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestTokenExpiry(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return current }

	token := issuer.Issue("alice")

	current = current.Add(59 * time.Minute)
	_, err := issuer.Verify(token)
	require.NoError(t, err)

	current = current.Add(2 * time.Minute)
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenTampering(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	token := issuer.Issue("alice")

	// Flip a character in the payload half.
	payload, sig, found := strings.Cut(token, ".")
	require.True(t, found)
	mutated := "A" + payload[1:]
	if mutated == payload {
		mutated = "B" + payload[1:]
	}
	_, err := issuer.Verify(mutated + "." + sig)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Structurally broken tokens.
	_, err = issuer.Verify("no-separator")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = issuer.Verify("!!!.???")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Signed by a different secret.
	other := NewTokenIssuer("other-secret", time.Hour)
	_, err = issuer.Verify(other.Issue("alice"))
	assert.ErrorIs(t, err, ErrInvalidToken)
}
