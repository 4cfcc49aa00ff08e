package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wizarding-anonymous/identity_platform/internal/config"
	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
)

type memoryDenylist struct {
	mu     sync.Mutex
	denied map[string]bool
}

func newMemoryDenylist() *memoryDenylist {
	return &memoryDenylist{denied: make(map[string]bool)}
}

func (d *memoryDenylist) Deny(_ context.Context, jti string, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.denied[jti] = true
	return nil
}

func (d *memoryDenylist) IsDenied(_ context.Context, jti string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.denied[jti], nil
}

func newTestTokenService(t *testing.T, accessTTL, refreshTTL time.Duration) (*TokenService, *memoryDenylist) {
	t.Helper()
	denylist := newMemoryDenylist()
	svc, err := NewTokenService(&config.JWTConfig{
		SigningSecret:   "test-signing-secret",
		Issuer:          "identity-service",
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: refreshTTL,
	}, denylist, zap.NewNop())
	require.NoError(t, err)
	return svc, denylist
}

func testUser() *models.User {
	return &models.User{ID: uuid.New(), TenantID: uuid.New()}
}

func TestTokenIssueAndValidate(t *testing.T) {
	svc, _ := newTestTokenService(t, time.Hour, 24*time.Hour)
	user := testUser()

	pair, err := svc.Issue(user)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, int64(3600), pair.ExpiresIn)

	claims, err := svc.Validate(context.Background(), pair.AccessToken, nil)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.TenantID, claims.TenantID)
	assert.Equal(t, models.TokenTypeAccess, claims.TokenType)
}

func TestTokenValidateEnforcesTenant(t *testing.T) {
	svc, _ := newTestTokenService(t, time.Hour, 24*time.Hour)
	user := testUser()
	pair, err := svc.Issue(user)
	require.NoError(t, err)

	_, err = svc.Validate(context.Background(), pair.AccessToken, &user.TenantID)
	assert.NoError(t, err)

	otherTenant := uuid.New()
	_, err = svc.Validate(context.Background(), pair.AccessToken, &otherTenant)
	assert.ErrorIs(t, err, domainErrors.ErrTenantMismatch)
}

func TestTokenValidateRejectsRefreshToken(t *testing.T) {
	svc, _ := newTestTokenService(t, time.Hour, 24*time.Hour)
	pair, err := svc.Issue(testUser())
	require.NoError(t, err)

	_, err = svc.Validate(context.Background(), pair.RefreshToken, nil)
	assert.ErrorIs(t, err, domainErrors.ErrTokenInvalid)
}

func TestTokenValidateRejectsExpired(t *testing.T) {
	svc, _ := newTestTokenService(t, -time.Minute, 24*time.Hour)
	pair, err := svc.Issue(testUser())
	require.NoError(t, err)

	_, err = svc.Validate(context.Background(), pair.AccessToken, nil)
	assert.ErrorIs(t, err, domainErrors.ErrTokenExpired)
}

func TestTokenValidateRejectsGarbage(t *testing.T) {
	svc, _ := newTestTokenService(t, time.Hour, 24*time.Hour)

	_, err := svc.Validate(context.Background(), "not.a.jwt", nil)
	assert.ErrorIs(t, err, domainErrors.ErrTokenInvalid)
}

func TestTokenLogoutDeniesToken(t *testing.T) {
	svc, _ := newTestTokenService(t, time.Hour, 24*time.Hour)
	pair, err := svc.Issue(testUser())
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), pair.AccessToken))

	_, err = svc.Validate(context.Background(), pair.AccessToken, nil)
	assert.ErrorIs(t, err, domainErrors.ErrTokenRevoked)
}

func TestTokenRefreshRotates(t *testing.T) {
	svc, _ := newTestTokenService(t, time.Hour, 24*time.Hour)
	user := testUser()
	pair, err := svc.Issue(user)
	require.NoError(t, err)

	fresh, claims, err := svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.NotEmpty(t, fresh.AccessToken)

	// The spent refresh token is dead.
	_, _, err = svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, domainErrors.ErrTokenRevoked)
}

func TestTokenRefreshRejectsAccessToken(t *testing.T) {
	svc, _ := newTestTokenService(t, time.Hour, 24*time.Hour)
	pair, err := svc.Issue(testUser())
	require.NoError(t, err)

	_, _, err = svc.Refresh(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, domainErrors.ErrTokenInvalid)
}

func TestTokenRefreshWindowExpired(t *testing.T) {
	svc, _ := newTestTokenService(t, time.Hour, -time.Minute)
	pair, err := svc.Issue(testUser())
	require.NoError(t, err)

	_, _, err = svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, domainErrors.ErrRefreshWindowExpired)
}
