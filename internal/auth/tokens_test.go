package auth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	key, err := LoadOrGenerateKey(filepath.Join(t.TempDir(), "auth.key"))
	require.NoError(t, err)
	svc, err := NewTokenService(key, time.Hour)
	require.NoError(t, err)
	return svc
}

func TestLoadOrGenerateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "auth.key")

	key, err := LoadOrGenerateKey(path)
	require.NoError(t, err)
	assert.Len(t, key, 32)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := LoadOrGenerateKey(path)
	require.NoError(t, err)
	assert.Equal(t, key, again, "an existing key is reused")
}

func TestLoadOrGenerateKey_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.key")
	require.NoError(t, os.WriteFile(path, []byte("not-a-key"), 0o600))

	_, err := LoadOrGenerateKey(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("zz", 32)), 0o600))
	_, err = LoadOrGenerateKey(path)
	assert.Error(t, err)
}

func TestNewTokenService_Validation(t *testing.T) {
	_, err := NewTokenService(make([]byte, 16), time.Hour)
	assert.Error(t, err)

	_, err = NewTokenService(make([]byte, 32), 0)
	assert.Error(t, err)
}

func TestTokenService_RoundTrip(t *testing.T) {
	svc := newTestTokenService(t)

	token, err := svc.GenerateAccessToken("usr-alice")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "v4.local."))

	claims, err := svc.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "usr-alice", claims.UserID())
	assert.Equal(t, tokenIssuer, claims.Issuer)
	assert.NotEmpty(t, claims.TokenID)
	assert.WithinDuration(t, claims.IssuedAt.Add(time.Hour), claims.Expiration, time.Second)

	_, err = svc.GenerateAccessToken("")
	assert.Error(t, err)
}

func TestTokenService_Rejects(t *testing.T) {
	svc := newTestTokenService(t)
	token, err := svc.GenerateAccessToken("usr-alice")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		t.Cleanup(func() { svc.now = time.Now })

		_, err := svc.VerifyAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other key", func(t *testing.T) {
		other := newTestTokenService(t)
		_, err := other.VerifyAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.VerifyAccessToken("v4.local.garbage")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
