// file: internal/service/token_service_test.go
package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTokenService(t *testing.T, cfg TokenConfig) *TokenService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("pa55"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg.Secret = "test-secret"
	cfg.Clients = map[string]string{"cli": string(hash)}
	s, err := NewTokenService(cfg)
	require.NoError(t, err)
	return s
}

func TestTokenService_IssueAndParse(t *testing.T) {
	s := newTokenService(t, TokenConfig{TTL: time.Hour})

	token, expires, err := s.Issue("cli", "pa55")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := s.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "cli", claims.ClientID)
	assert.Equal(t, "DataAgents", claims.Issuer)
}

func TestTokenService_RejectsBadTokens(t *testing.T) {
	s := newTokenService(t, TokenConfig{})

	_, err := s.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewTokenService(TokenConfig{Secret: "different"})
	require.NoError(t, err)
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ClientID:         "cli",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "DataAgents", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(other.secret)
	require.NoError(t, err)
	_, err = s.Parse(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ClientID:         "cli",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "DataAgents", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	}).SignedString(s.secret)
	require.NoError(t, err)
	_, err = s.Parse(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_LockoutAfterFailures(t *testing.T) {
	s := newTokenService(t, TokenConfig{MaxFailures: 3, Lockout: time.Minute})

	for i := 0; i < 3; i++ {
		_, _, err := s.Issue("cli", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, _, err := s.Issue("cli", "pa55")
	assert.ErrorIs(t, err, ErrClientLocked, "锁定期间正确的密钥也被拒绝")

	_, _, err = s.Issue("unknown", "pa55")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestNewTokenService_Validation(t *testing.T) {
	_, err := NewTokenService(TokenConfig{})
	assert.Error(t, err)

	_, err = NewTokenService(TokenConfig{Secret: "x", Clients: map[string]string{"c": "plaintext"}})
	assert.Error(t, err)

	hash, err := HashSecret("abc")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("abc")))
}
