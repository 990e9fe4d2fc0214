package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T, ttl time.Duration) *Signer {
	t.Helper()
	secret, err := GenerateSecureSecret()
	require.NoError(t, err)
	s, err := NewSigner(secret, ttl)
	require.NoError(t, err)
	return s
}

func TestIssueAndValidate(t *testing.T) {
	s := newTestSigner(t, time.Hour)

	token, err := s.Issue("ops", true)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."), "формат JWT")

	claims, err := s.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Operator)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, Issuer, claims.Issuer)
}

func TestValidateRejectsInvalid(t *testing.T) {
	s := newTestSigner(t, time.Hour)
	other := newTestSigner(t, time.Hour)
	foreign, err := other.Issue("ops", true)
	require.NoError(t, err)

	for _, token := range []string{
		"",
		"not.a.jwt",
		"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature",
		foreign,
	} {
		_, err := s.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken, token)
	}
}

func TestExpiredToken(t *testing.T) {
	s := newTestSigner(t, time.Nanosecond)
	token, err := s.Issue("ops", false)
	require.NoError(t, err)
	time.Sleep(2 * time.Second)

	_, err = s.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewSignerSecrets(t *testing.T) {
	_, err := NewSigner("dG9vLXNob3J0", time.Hour)
	assert.ErrorIs(t, err, ErrWeakSecret)

	_, err = NewSigner("invalid-base64-@#$%", time.Hour)
	assert.Error(t, err)

	s, err := NewSigner("", time.Hour)
	require.NoError(t, err)
	token, err := s.Issue("ops", false)
	require.NoError(t, err)
	claims, err := s.Validate(token)
	require.NoError(t, err)
	assert.False(t, claims.IsAdmin)
}

func TestGenerateSecureSecret(t *testing.T) {
	a, err := GenerateSecureSecret()
	require.NoError(t, err)
	b, err := GenerateSecureSecret()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.GreaterOrEqual(t, len(a), 40)
}
