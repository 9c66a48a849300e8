package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("unit-test-secret")

func TestGenerateVerifyRoundtrip(t *testing.T) {
	opts := DefaultOptions(testSecret)

	token, jti, expireAt, err := Generate(opts, "user-1", "admin", "a@b.c")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotEmpty(t, jti)
	assert.True(t, expireAt.After(time.Now()))

	claims, err := Verify(opts, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "a@b.c", claims.Email)
	assert.Equal(t, jti, claims.ID)
}

func TestVerifyWrongSecret(t *testing.T) {
	token, _, _, err := Generate(DefaultOptions(testSecret), "u", "employee", "")
	require.NoError(t, err)

	_, err = Verify(DefaultOptions([]byte("other-secret")), token)
	assert.Error(t, err)
}

func TestVerifyExpired(t *testing.T) {
	opts := DefaultOptions(testSecret)
	opts.TTL = -time.Minute

	token, _, _, err := Generate(opts, "u", "employee", "")
	require.NoError(t, err)

	_, err = Verify(DefaultOptions(testSecret), token)
	assert.Error(t, err)
}

func TestVerifyGarbage(t *testing.T) {
	_, err := Verify(DefaultOptions(testSecret), "not.a.jwt")
	assert.Error(t, err)
}

func TestJTIUniquePerToken(t *testing.T) {
	opts := DefaultOptions(testSecret)
	_, jti1, _, err := Generate(opts, "u", "employee", "")
	require.NoError(t, err)
	_, jti2, _, err := Generate(opts, "u", "employee", "")
	require.NoError(t, err)
	assert.NotEqual(t, jti1, jti2)
}

func TestUnsupportedAlg(t *testing.T) {
	opts := Options{Secret: testSecret, Alg: "RS256"}
	_, _, _, err := Generate(opts, "u", "employee", "")
	assert.Error(t, err)
}
