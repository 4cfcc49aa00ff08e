package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
)

func twoFactorUser(tenantID uuid.UUID) *models.User {
	user := verifiedUser(tenantID, "alice@example.com")
	user.TOTPEnabled = true
	secret := "enc:JBSWY3DP"
	user.TOTPSecret = &secret
	return user
}

func pendingChallenge(tenantID uuid.UUID, origin string) *models.LoginChallenge {
	return &models.LoginChallenge{
		TenantID:             tenantID,
		Email:                "alice@example.com",
		IssuedAt:             time.Now().UTC(),
		OriginMagicLinkToken: origin,
	}
}

func TestVerifyTwoFactorWithTOTPCode(t *testing.T) {
	f := newAuthFixture(t)
	tenantID := uuid.New()
	user := twoFactorUser(tenantID)
	pair := &models.TokenPair{AccessToken: "at"}

	f.challenges.On("ResolveChallenge", mock.Anything, "challenge-token").
		Return(pendingChallenge(tenantID, ""), nil)
	f.users.On("FindByEmail", mock.Anything, tenantID, user.Email).Return(user, nil)
	f.totp.On("ValidateCode", "JBSWY3DP", "123456").Return(true)
	f.challenges.On("CleanupMagicLink", mock.Anything, "").Return()
	f.users.On("RecordLogin", mock.Anything, user.ID, mock.Anything).Return(nil)
	f.tokens.On("Issue", user).Return(pair, nil)

	result, err := f.svc.VerifyTwoFactor(ctxWithIP("10.0.0.1"), "challenge-token", "123456")

	require.NoError(t, err)
	assert.Equal(t, pair, result.Tokens)
	assert.Equal(t, []string{models.EventUserLoginSuccess}, f.bus.typesSeen())
}

func TestVerifyTwoFactorWrongCodeRestoresChallenge(t *testing.T) {
	f := newAuthFixture(t)
	tenantID := uuid.New()
	user := twoFactorUser(tenantID)
	challenge := pendingChallenge(tenantID, "")

	f.challenges.On("ResolveChallenge", mock.Anything, "challenge-token").Return(challenge, nil)
	f.users.On("FindByEmail", mock.Anything, tenantID, user.Email).Return(user, nil)
	f.totp.On("ValidateCode", "JBSWY3DP", "000000").Return(false)
	f.recovery.On("FindActiveByUserID", mock.Anything, user.ID).Return([]*models.RecoveryCode{}, nil)
	f.challenges.On("RestoreChallenge", mock.Anything, "challenge-token", challenge).Return(nil)

	_, err := f.svc.VerifyTwoFactor(ctxWithIP("10.0.0.1"), "challenge-token", "000000")

	assert.ErrorIs(t, err, domainErrors.ErrInvalidCode)
	f.challenges.AssertCalled(t, "RestoreChallenge", mock.Anything, "challenge-token", challenge)
	f.tokens.AssertNotCalled(t, "Issue", mock.Anything)
}

func TestVerifyTwoFactorExpiredChallenge(t *testing.T) {
	f := newAuthFixture(t)
	f.challenges.On("ResolveChallenge", mock.Anything, "stale").
		Return(nil, domainErrors.ErrChallengeExpired)

	_, err := f.svc.VerifyTwoFactor(ctxWithIP("10.0.0.1"), "stale", "123456")
	assert.ErrorIs(t, err, domainErrors.ErrChallengeExpired)
}

func TestVerifyTwoFactorWithRecoveryCode(t *testing.T) {
	f := newAuthFixture(t)
	tenantID := uuid.New()
	user := twoFactorUser(tenantID)
	code := &models.RecoveryCode{ID: uuid.New(), UserID: user.ID, Ciphertext: "enc:AAAA-BBBB-CCCC"}
	pair := &models.TokenPair{AccessToken: "at"}

	f.challenges.On("ResolveChallenge", mock.Anything, "challenge-token").
		Return(pendingChallenge(tenantID, ""), nil)
	f.users.On("FindByEmail", mock.Anything, tenantID, user.Email).Return(user, nil)
	f.totp.On("ValidateCode", "JBSWY3DP", "AAAA-BBBB-CCCC").Return(false)
	f.recovery.On("FindActiveByUserID", mock.Anything, user.ID).Return([]*models.RecoveryCode{code}, nil)
	f.recovery.On("MarkUsed", mock.Anything, code.ID).Return(nil)
	f.challenges.On("CleanupMagicLink", mock.Anything, "").Return()
	f.users.On("RecordLogin", mock.Anything, user.ID, mock.Anything).Return(nil)
	f.tokens.On("Issue", user).Return(pair, nil)

	result, err := f.svc.VerifyTwoFactor(ctxWithIP("10.0.0.1"), "challenge-token", "AAAA-BBBB-CCCC")

	require.NoError(t, err)
	assert.Equal(t, pair, result.Tokens)
	f.recovery.AssertCalled(t, "MarkUsed", mock.Anything, code.ID)
}

func TestVerifyTwoFactorRecoveryCodeIsSingleUse(t *testing.T) {
	f := newAuthFixture(t)
	tenantID := uuid.New()
	user := twoFactorUser(tenantID)
	code := &models.RecoveryCode{ID: uuid.New(), UserID: user.ID, Ciphertext: "enc:AAAA-BBBB-CCCC"}
	challenge := pendingChallenge(tenantID, "")

	f.challenges.On("ResolveChallenge", mock.Anything, "challenge-token").Return(challenge, nil)
	f.users.On("FindByEmail", mock.Anything, tenantID, user.Email).Return(user, nil)
	f.totp.On("ValidateCode", "JBSWY3DP", "AAAA-BBBB-CCCC").Return(false)
	f.recovery.On("FindActiveByUserID", mock.Anything, user.ID).Return([]*models.RecoveryCode{code}, nil)
	// A concurrent spend already consumed this row.
	f.recovery.On("MarkUsed", mock.Anything, code.ID).Return(domainErrors.ErrInvalidCode)
	f.challenges.On("RestoreChallenge", mock.Anything, "challenge-token", challenge).Return(nil)

	_, err := f.svc.VerifyTwoFactor(ctxWithIP("10.0.0.1"), "challenge-token", "AAAA-BBBB-CCCC")

	assert.ErrorIs(t, err, domainErrors.ErrInvalidCode)
	f.tokens.AssertNotCalled(t, "Issue", mock.Anything)
}

func TestVerifyTwoFactorCleansUpChainedMagicLink(t *testing.T) {
	f := newAuthFixture(t)
	tenantID := uuid.New()
	user := twoFactorUser(tenantID)
	pair := &models.TokenPair{AccessToken: "at"}

	f.challenges.On("ResolveChallenge", mock.Anything, "challenge-token").
		Return(pendingChallenge(tenantID, "magic-token"), nil)
	f.users.On("FindByEmail", mock.Anything, tenantID, user.Email).Return(user, nil)
	f.totp.On("ValidateCode", "JBSWY3DP", "123456").Return(true)
	f.challenges.On("CleanupMagicLink", mock.Anything, "magic-token").Return()
	f.users.On("RecordLogin", mock.Anything, user.ID, mock.Anything).Return(nil)
	f.tokens.On("Issue", user).Return(pair, nil)

	_, err := f.svc.VerifyTwoFactor(ctxWithIP("10.0.0.1"), "challenge-token", "123456")

	require.NoError(t, err)
	f.challenges.AssertCalled(t, "CleanupMagicLink", mock.Anything, "magic-token")
}

func TestActivateTwoFactorMintsRecoveryCodes(t *testing.T) {
	f := newAuthFixture(t)
	user := verifiedUser(uuid.New(), "alice@example.com")
	secret := "enc:JBSWY3DP"
	user.TOTPSecret = &secret

	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)
	f.totp.On("ValidateCode", "JBSWY3DP", "123456").Return(true)
	f.recovery.On("ReplaceForUser", mock.Anything, user.ID, mock.MatchedBy(func(codes []*models.RecoveryCode) bool {
		return len(codes) == 8
	})).Return(nil)
	f.users.On("Update", mock.Anything, user).Return(nil)

	plaintexts, err := f.svc.ActivateTwoFactor(context.Background(), user.ID, "123456")

	require.NoError(t, err)
	assert.Len(t, plaintexts, 8)
	assert.True(t, user.TOTPEnabled)
}

func TestActivateTwoFactorVersionConflictKeepsExistingCodes(t *testing.T) {
	f := newAuthFixture(t)
	user := verifiedUser(uuid.New(), "alice@example.com")
	secret := "enc:JBSWY3DP"
	user.TOTPSecret = &secret

	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)
	f.totp.On("ValidateCode", "JBSWY3DP", "123456").Return(true)
	f.users.On("Update", mock.Anything, user).Return(domainErrors.ErrVersionConflict)

	_, err := f.svc.ActivateTwoFactor(context.Background(), user.ID, "123456")

	assert.ErrorIs(t, err, domainErrors.ErrVersionConflict)
	// The stale-version failure must not touch stored recovery codes.
	f.recovery.AssertNotCalled(t, "ReplaceForUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestActivateTwoFactorRecoveryWriteFailureRevertsEnable(t *testing.T) {
	f := newAuthFixture(t)
	user := verifiedUser(uuid.New(), "alice@example.com")
	secret := "enc:JBSWY3DP"
	user.TOTPSecret = &secret

	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)
	f.totp.On("ValidateCode", "JBSWY3DP", "123456").Return(true)
	f.users.On("Update", mock.Anything, user).Return(nil)
	f.recovery.On("ReplaceForUser", mock.Anything, user.ID, mock.Anything).
		Return(errors.New("insert failed"))

	_, err := f.svc.ActivateTwoFactor(context.Background(), user.ID, "123456")

	require.Error(t, err)
	assert.False(t, user.TOTPEnabled)
	f.users.AssertNumberOfCalls(t, "Update", 2)
}

func TestActivateTwoFactorWithoutSetup(t *testing.T) {
	f := newAuthFixture(t)
	user := verifiedUser(uuid.New(), "alice@example.com")
	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	_, err := f.svc.ActivateTwoFactor(context.Background(), user.ID, "123456")
	assert.ErrorIs(t, err, domainErrors.Err2FANotEnabled)
}

func TestSetupTwoFactorAlreadyEnabled(t *testing.T) {
	f := newAuthFixture(t)
	user := twoFactorUser(uuid.New())
	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	_, err := f.svc.SetupTwoFactor(context.Background(), user.ID)
	assert.ErrorIs(t, err, domainErrors.Err2FAAlreadyEnabled)
}

func TestDisableTwoFactorClearsSecretAndCodes(t *testing.T) {
	f := newAuthFixture(t)
	user := twoFactorUser(uuid.New())

	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)
	f.totp.On("ValidateCode", "JBSWY3DP", "123456").Return(true)
	f.users.On("Update", mock.Anything, user).Return(nil)
	f.recovery.On("DeleteForUser", mock.Anything, user.ID).Return(nil)

	require.NoError(t, f.svc.DisableTwoFactor(context.Background(), user.ID, "123456"))
	assert.False(t, user.TOTPEnabled)
	assert.Nil(t, user.TOTPSecret)
}
