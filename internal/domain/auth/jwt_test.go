package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123"

func TestJWTService_RoundTrip(t *testing.T) {
	svc, err := NewJWTService(DefaultJWTConfig(testSecret))
	require.NoError(t, err)

	token, expiresAt, err := svc.GenerateAccessToken("u-7", "Storekeeper", []string{"warehouse"})
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	user, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-7", user.UserID)
	assert.Equal(t, "Storekeeper", user.Name)
	assert.Equal(t, []string{"warehouse"}, user.Roles)
}

func TestJWTService_RejectsExpiredAndForeignTokens(t *testing.T) {
	svc, err := NewJWTService(DefaultJWTConfig(testSecret))
	require.NoError(t, err)
	token, _, err := svc.GenerateAccessToken("u-7", "", nil)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(13 * time.Hour) }
	_, err = svc.ValidateToken(token)
	assert.Error(t, err)

	other, err := NewJWTService(DefaultJWTConfig("another-secret-of-length"))
	require.NoError(t, err)
	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestNewJWTService_ShortSecret(t *testing.T) {
	_, err := NewJWTService(DefaultJWTConfig("short"))
	assert.Error(t, err)
}
