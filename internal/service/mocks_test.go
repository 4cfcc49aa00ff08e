package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
)

// --- Repository mocks ---

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) FindByIDIncludingDeleted(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*models.User, error) {
	args := m.Called(ctx, tenantID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockUserRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepository) Purge(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockRecoveryCodeRepository struct {
	mock.Mock
}

func (m *MockRecoveryCodeRepository) ReplaceForUser(ctx context.Context, userID uuid.UUID, codes []*models.RecoveryCode) error {
	args := m.Called(ctx, userID, codes)
	return args.Error(0)
}

func (m *MockRecoveryCodeRepository) FindActiveByUserID(ctx context.Context, userID uuid.UUID) ([]*models.RecoveryCode, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RecoveryCode), args.Error(1)
}

func (m *MockRecoveryCodeRepository) MarkUsed(ctx context.Context, codeID uuid.UUID) error {
	args := m.Called(ctx, codeID)
	return args.Error(0)
}

func (m *MockRecoveryCodeRepository) DeleteForUser(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// --- Security mocks ---

type MockPasswordHasher struct {
	mock.Mock
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, encodedHash string) (bool, error) {
	args := m.Called(password, encodedHash)
	return args.Bool(0), args.Error(1)
}

type MockTOTPService struct {
	mock.Mock
}

func (m *MockTOTPService) GenerateSecret(accountName string) (string, string, error) {
	args := m.Called(accountName)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockTOTPService) ValidateCode(secret, code string) bool {
	args := m.Called(secret, code)
	return args.Bool(0)
}

// fakeCodec is a reversible stand-in for the AES-GCM codec so tests can
// assert on ciphertext contents without key material.
type fakeCodec struct{}

func (fakeCodec) Encrypt(plaintext string) (string, error) { return "enc:" + plaintext, nil }

func (fakeCodec) Decrypt(ciphertext string) (string, error) {
	return strings.TrimPrefix(ciphertext, "enc:"), nil
}

// --- Flow collaborator mocks ---

type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) Issue(user *models.User) (*models.TokenPair, error) {
	args := m.Called(user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenPair), args.Error(1)
}

type MockChallengeBroker struct {
	mock.Mock
}

func (m *MockChallengeBroker) CreateChallenge(ctx context.Context, tenantID uuid.UUID, email, originMagicLink string) (string, error) {
	args := m.Called(ctx, tenantID, email, originMagicLink)
	return args.String(0), args.Error(1)
}

func (m *MockChallengeBroker) ResolveChallenge(ctx context.Context, token string) (*models.LoginChallenge, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LoginChallenge), args.Error(1)
}

func (m *MockChallengeBroker) RestoreChallenge(ctx context.Context, token string, challenge *models.LoginChallenge) error {
	args := m.Called(ctx, token, challenge)
	return args.Error(0)
}

func (m *MockChallengeBroker) CreateMagicLink(ctx context.Context, tenantID uuid.UUID, email string) (string, error) {
	args := m.Called(ctx, tenantID, email)
	return args.String(0), args.Error(1)
}

func (m *MockChallengeBroker) ConsumeMagicLink(ctx context.Context, token string) (*models.MagicLinkToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MagicLinkToken), args.Error(1)
}

func (m *MockChallengeBroker) PeekMagicLink(ctx context.Context, token string) (*models.MagicLinkToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MagicLinkToken), args.Error(1)
}

func (m *MockChallengeBroker) CleanupMagicLink(ctx context.Context, token string) {
	m.Called(ctx, token)
}

// recordingBus captures published events for assertions.
type recordingBus struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	EventType string
	Subject   string
	Payload   interface{}
}

func (b *recordingBus) Publish(_ context.Context, eventType string, subject string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{EventType: eventType, Subject: subject, Payload: payload})
}

func (b *recordingBus) typesSeen() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]string, 0, len(b.events))
	for _, e := range b.events {
		types = append(types, e.EventType)
	}
	return types
}
