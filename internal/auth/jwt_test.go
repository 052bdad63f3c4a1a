package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_RoundTrip(t *testing.T) {
	s, err := NewSigner("secret", 0)
	require.NoError(t, err)

	token, err := s.Issue("01HZX", "admin", true)
	require.NoError(t, err)

	claims, err := s.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "01HZX", claims.UserID)
	assert.Equal(t, "admin", claims.Username)
	assert.True(t, claims.IsStaff)
	assert.Nil(t, claims.ExpiresAt)
}

func TestSigner_Rejects(t *testing.T) {
	s, err := NewSigner("secret", 0)
	require.NoError(t, err)
	other, err := NewSigner("other-secret", 0)
	require.NoError(t, err)

	token, err := other.Issue("01HZX", "admin", true)
	require.NoError(t, err)

	_, err = s.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSigner_Expiry(t *testing.T) {
	s, err := NewSigner("secret", -time.Minute)
	require.NoError(t, err)
	// A negative ttl means no expiry claim, same as 0
	token, err := s.Issue("u", "user", false)
	require.NoError(t, err)
	_, err = s.Validate(token)
	assert.NoError(t, err)

	expiring := &Signer{secret: []byte("secret"), ttl: time.Nanosecond}
	token, err = expiring.Issue("u", "user", false)
	require.NoError(t, err)
	// NumericDate has second precision
	time.Sleep(time.Second)
	_, err = expiring.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewSigner_EmptySecret(t *testing.T) {
	_, err := NewSigner("", 0)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)

	assert.NoError(t, VerifyPassword("hunter2", hash))
	assert.Error(t, VerifyPassword("wrong", hash))
}
