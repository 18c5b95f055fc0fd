package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticKeySource struct {
	key *rsa.PublicKey
}

func (s staticKeySource) Key(_ context.Context, _ string) (*rsa.PublicKey, error) {
	return s.key, nil
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-key"
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func validClaims(projectID string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":            "firebase-uid-1",
		"aud":            projectID,
		"email":          "farmer@example.com",
		"email_verified": true,
		"name":           "Ravi Kumar",
		"exp":            time.Now().Add(time.Hour).Unix(),
		"iat":            time.Now().Unix(),
	}
}

func TestVerifyValidToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v := NewTokenVerifier("ammachi-test", staticKeySource{&key.PublicKey})

	identity, err := v.Verify(context.Background(), signToken(t, key, validClaims("ammachi-test")))
	require.NoError(t, err)
	assert.Equal(t, "firebase-uid-1", identity.ExternalID)
	assert.Equal(t, "farmer@example.com", identity.Email)
	assert.Equal(t, "Ravi Kumar", identity.DisplayName)
	assert.True(t, identity.EmailVerified)
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v := NewTokenVerifier("ammachi-test", staticKeySource{&key.PublicKey})

	_, err = v.Verify(context.Background(), signToken(t, key, validClaims("some-other-project")))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v := NewTokenVerifier("ammachi-test", staticKeySource{&key.PublicKey})

	claims := validClaims("ammachi-test")
	claims["exp"] = time.Now().Add(-time.Minute).Unix()
	_, err = v.Verify(context.Background(), signToken(t, key, claims))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsNonRSAMethod(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v := NewTokenVerifier("ammachi-test", staticKeySource{&key.PublicKey})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims("ammachi-test"))
	signed, err := token.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v := NewTokenVerifier("ammachi-test", staticKeySource{&key.PublicKey})

	claims := validClaims("ammachi-test")
	delete(claims, "sub")
	_, err = v.Verify(context.Background(), signToken(t, key, claims))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v := NewTokenVerifier("ammachi-test", staticKeySource{&key.PublicKey})

	_, err = v.Verify(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCacheMaxAge(t *testing.T) {
	assert.Equal(t, 19302*time.Second, cacheMaxAge("public, max-age=19302, must-revalidate"))
	assert.Equal(t, time.Hour, cacheMaxAge(""))
	assert.Equal(t, time.Hour, cacheMaxAge("no-cache"))
	assert.Equal(t, time.Hour, cacheMaxAge("max-age=0"))
}
