package service

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
	"github.com/wizarding-anonymous/identity_platform/internal/infrastructure/security"
)

func signedParams(t *testing.T, userID uuid.UUID, email string, ttl time.Duration) url.Values {
	t.Helper()
	b := security.NewSignedURLBuilder("signing-secret", "https://id.example.com")
	link := b.VerificationURL(userID, email, ttl)
	parsed, err := url.Parse(link)
	require.NoError(t, err)
	return parsed.Query()
}

func unverifiedUser(email string) *models.User {
	return &models.User{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Email:    email,
		Version:  1,
	}
}

func TestVerifyEmailSuccess(t *testing.T) {
	f := newAuthFixture(t)
	user := unverifiedUser("alice@example.com")
	q := signedParams(t, user.ID, user.Email, time.Hour)

	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)
	f.users.On("Update", mock.Anything, user).Return(nil)

	got, err := f.svc.VerifyEmail(context.Background(),
		q.Get("id"), q.Get("hash"), q.Get("expires"), q.Get("signature"))

	require.NoError(t, err)
	assert.NotNil(t, got.EmailVerifiedAt)
	assert.Equal(t, []string{models.EventUserEmailVerified}, f.bus.typesSeen())
}

func TestVerifyEmailAlreadyVerified(t *testing.T) {
	f := newAuthFixture(t)
	user := verifiedUser(uuid.New(), "alice@example.com")
	q := signedParams(t, user.ID, user.Email, time.Hour)

	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	_, err := f.svc.VerifyEmail(context.Background(),
		q.Get("id"), q.Get("hash"), q.Get("expires"), q.Get("signature"))

	assert.ErrorIs(t, err, domainErrors.ErrAlreadyVerified)
	f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	assert.Empty(t, f.bus.typesSeen())
}

func TestVerifyEmailExpiredLink(t *testing.T) {
	f := newAuthFixture(t)
	user := unverifiedUser("alice@example.com")
	q := signedParams(t, user.ID, user.Email, -time.Minute)

	_, err := f.svc.VerifyEmail(context.Background(),
		q.Get("id"), q.Get("hash"), q.Get("expires"), q.Get("signature"))

	assert.ErrorIs(t, err, domainErrors.ErrTokenExpired)
	f.users.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestVerifyEmailHashBoundToCurrentAddress(t *testing.T) {
	f := newAuthFixture(t)
	user := unverifiedUser("old@example.com")
	q := signedParams(t, user.ID, "old@example.com", time.Hour)

	// The address changed after the link went out.
	user.Email = "new@example.com"
	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	_, err := f.svc.VerifyEmail(context.Background(),
		q.Get("id"), q.Get("hash"), q.Get("expires"), q.Get("signature"))

	assert.ErrorIs(t, err, domainErrors.ErrTokenInvalid)
}

func TestVerifyEmailSurfacesVersionConflict(t *testing.T) {
	f := newAuthFixture(t)
	user := unverifiedUser("alice@example.com")
	q := signedParams(t, user.ID, user.Email, time.Hour)

	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)
	f.users.On("Update", mock.Anything, user).Return(domainErrors.ErrVersionConflict)

	_, err := f.svc.VerifyEmail(context.Background(),
		q.Get("id"), q.Get("hash"), q.Get("expires"), q.Get("signature"))

	assert.ErrorIs(t, err, domainErrors.ErrVersionConflict)
	assert.Empty(t, f.bus.typesSeen())
}
