package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
)

func activeMagicLink(tenantID uuid.UUID) *models.MagicLinkToken {
	return &models.MagicLinkToken{
		TenantID: tenantID,
		Email:    "alice@example.com",
		IssuedAt: time.Now().UTC(),
	}
}

func TestRequestMagicLinkUnknownAddressIsSilent(t *testing.T) {
	f := newAuthFixture(t)
	tenantID := uuid.New()
	f.users.On("FindByEmail", mock.Anything, tenantID, "ghost@example.com").
		Return(nil, domainErrors.ErrUserNotFound)

	token, err := f.svc.RequestMagicLink(context.Background(), tenantID, "ghost@example.com")

	require.NoError(t, err)
	assert.Empty(t, token)
	f.challenges.AssertNotCalled(t, "CreateMagicLink", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestMagicLinkKnownAddress(t *testing.T) {
	f := newAuthFixture(t)
	tenantID := uuid.New()
	user := verifiedUser(tenantID, "alice@example.com")
	f.users.On("FindByEmail", mock.Anything, tenantID, user.Email).Return(user, nil)
	f.challenges.On("CreateMagicLink", mock.Anything, tenantID, user.Email).Return("magic-token", nil)

	token, err := f.svc.RequestMagicLink(context.Background(), tenantID, user.Email)

	require.NoError(t, err)
	assert.Equal(t, "magic-token", token)
}

func TestRequestMagicLinkPropagatesRateLimit(t *testing.T) {
	f := newAuthFixture(t)
	tenantID := uuid.New()
	user := verifiedUser(tenantID, "alice@example.com")
	f.users.On("FindByEmail", mock.Anything, tenantID, user.Email).Return(user, nil)
	f.challenges.On("CreateMagicLink", mock.Anything, tenantID, user.Email).
		Return("", domainErrors.NewRateLimited(17*time.Minute))

	_, err := f.svc.RequestMagicLink(context.Background(), tenantID, user.Email)

	retryAfter, limited := domainErrors.IsRateLimited(err)
	require.True(t, limited)
	assert.Equal(t, 17*time.Minute, retryAfter)
}

func TestVerifyMagicLinkCompletesLogin(t *testing.T) {
	f := newAuthFixture(t)
	tenantID := uuid.New()
	user := verifiedUser(tenantID, "alice@example.com")
	link := activeMagicLink(tenantID)
	pair := &models.TokenPair{AccessToken: "at"}

	f.challenges.On("PeekMagicLink", mock.Anything, "magic-token").Return(link, nil)
	f.users.On("FindByEmail", mock.Anything, tenantID, user.Email).Return(user, nil)
	f.challenges.On("ConsumeMagicLink", mock.Anything, "magic-token").Return(link, nil)
	f.users.On("RecordLogin", mock.Anything, user.ID, mock.Anything).Return(nil)
	f.tokens.On("Issue", user).Return(pair, nil)

	result, err := f.svc.VerifyMagicLink(ctxWithIP("10.0.0.1"), "magic-token")

	require.NoError(t, err)
	assert.Equal(t, pair, result.Tokens)
	assert.Equal(t, []string{models.EventUserLoginSuccess}, f.bus.typesSeen())
}

func TestVerifyMagicLinkChainsIntoTwoFactor(t *testing.T) {
	f := newAuthFixture(t)
	tenantID := uuid.New()
	user := verifiedUser(tenantID, "alice@example.com")
	user.TOTPEnabled = true
	secret := "enc:JBSWY3DP"
	user.TOTPSecret = &secret

	f.challenges.On("PeekMagicLink", mock.Anything, "magic-token").Return(activeMagicLink(tenantID), nil)
	f.users.On("FindByEmail", mock.Anything, tenantID, user.Email).Return(user, nil)
	f.challenges.On("CreateChallenge", mock.Anything, tenantID, user.Email, "magic-token").
		Return("challenge-token", nil)

	result, err := f.svc.VerifyMagicLink(ctxWithIP("10.0.0.1"), "magic-token")

	assert.ErrorIs(t, err, domainErrors.ErrTwoFactorRequired)
	require.NotNil(t, result)
	assert.Equal(t, "challenge-token", result.ChallengeToken)
	// The link survives until the second factor succeeds.
	f.challenges.AssertNotCalled(t, "ConsumeMagicLink", mock.Anything, mock.Anything)
}

func TestVerifyMagicLinkUnknownToken(t *testing.T) {
	f := newAuthFixture(t)
	f.challenges.On("PeekMagicLink", mock.Anything, "bad-token").
		Return(nil, domainErrors.ErrChallengeNotFound)

	_, err := f.svc.VerifyMagicLink(ctxWithIP("10.0.0.1"), "bad-token")
	assert.ErrorIs(t, err, domainErrors.ErrChallengeNotFound)
}
