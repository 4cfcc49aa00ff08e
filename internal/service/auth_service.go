package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wizarding-anonymous/identity_platform/internal/config"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/repository"
	"github.com/wizarding-anonymous/identity_platform/internal/infrastructure/security"
)

// TokenIssuer is the slice of TokenService the auth flows need.
type TokenIssuer interface {
	Issue(user *models.User) (*models.TokenPair, error)
}

// ChallengeBroker is the slice of ChallengeService the auth flows need.
type ChallengeBroker interface {
	CreateChallenge(ctx context.Context, tenantID uuid.UUID, email, originMagicLink string) (string, error)
	ResolveChallenge(ctx context.Context, token string) (*models.LoginChallenge, error)
	RestoreChallenge(ctx context.Context, token string, challenge *models.LoginChallenge) error
	CreateMagicLink(ctx context.Context, tenantID uuid.UUID, email string) (string, error)
	ConsumeMagicLink(ctx context.Context, token string) (*models.MagicLinkToken, error)
	PeekMagicLink(ctx context.Context, token string) (*models.MagicLinkToken, error)
	CleanupMagicLink(ctx context.Context, token string)
}

// EventPublisher fans a domain event out to the bus. Publish failures are
// contained by the bus itself; callers never block on delivery.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, subject string, payload interface{})
}

// AuthService orchestrates the login, second-factor, magic-link and email
// verification flows end to end. Side effects (events, metrics) happen via
// explicit calls after each state transition.
type AuthService struct {
	userRepo     repository.UserRepository
	recoveryRepo repository.RecoveryCodeRepository
	hasher       security.PasswordHasher
	totp         security.TOTPService
	codec        security.SecretCodec
	tokens       TokenIssuer
	challenges   ChallengeBroker
	limiter      RateLimiter
	bus          EventPublisher
	urls         *security.SignedURLBuilder
	cfg          *config.Config
	logger       *zap.Logger
}

// NewAuthService wires an AuthService.
func NewAuthService(
	userRepo repository.UserRepository,
	recoveryRepo repository.RecoveryCodeRepository,
	hasher security.PasswordHasher,
	totp security.TOTPService,
	codec security.SecretCodec,
	tokens TokenIssuer,
	challenges ChallengeBroker,
	limiter RateLimiter,
	bus EventPublisher,
	urls *security.SignedURLBuilder,
	cfg *config.Config,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		userRepo:     userRepo,
		recoveryRepo: recoveryRepo,
		hasher:       hasher,
		totp:         totp,
		codec:        codec,
		tokens:       tokens,
		challenges:   challenges,
		limiter:      limiter,
		bus:          bus,
		urls:         urls,
		cfg:          cfg,
		logger:       logger,
	}
}

// clientIP extracts the caller address the HTTP layer stashed in the
// context, falling back to "unknown" for non-HTTP callers.
func clientIP(ctx context.Context) string {
	if md, ok := ctx.Value(MetadataKey).(map[string]string); ok {
		if ip, exists := md["ip-address"]; exists {
			return ip
		}
	}
	return "unknown"
}

type metadataKey struct{}

// MetadataKey is the context key under which the HTTP layer stores request
// metadata (ip-address, user-agent) for the services.
var MetadataKey = metadataKey{}
