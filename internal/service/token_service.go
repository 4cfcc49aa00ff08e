package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wizarding-anonymous/identity_platform/internal/config"
	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
)

// Denylist tracks revoked token ids until they would have expired anyway.
type Denylist interface {
	Deny(ctx context.Context, jti string, remaining time.Duration) error
	IsDenied(ctx context.Context, jti string) (bool, error)
}

// TokenService mints and validates the stateless session tokens. Tokens are
// HS256 JWTs carrying user id, tenant id and a token type; revocation state
// exists only for explicitly logged-out tokens, via the denylist.
type TokenService struct {
	cfg      *config.JWTConfig
	denylist Denylist
	logger   *zap.Logger
}

// NewTokenService creates a TokenService.
func NewTokenService(cfg *config.JWTConfig, denylist Denylist, logger *zap.Logger) (*TokenService, error) {
	if cfg.SigningSecret == "" {
		return nil, domainErrors.NewConfiguration("jwt.signing_secret", "must not be empty")
	}
	return &TokenService{cfg: cfg, denylist: denylist, logger: logger}, nil
}

// Issue mints an access/refresh token pair for the user.
func (s *TokenService) Issue(user *models.User) (*models.TokenPair, error) {
	now := time.Now()

	accessToken, err := s.mint(user, models.TokenTypeAccess, now, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.mint(user, models.TokenTypeRefresh, now, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}

	return &models.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		ExpiresIn:        int64(s.cfg.AccessTokenTTL.Seconds()),
		RefreshExpiresIn: int64(s.cfg.RefreshTokenTTL.Seconds()),
		TokenType:        "Bearer",
	}, nil
}

func (s *TokenService) mint(user *models.User, tokenType models.TokenType, now time.Time, ttl time.Duration) (string, error) {
	claims := models.Claims{
		UserID:    user.ID,
		TenantID:  user.TenantID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.cfg.Issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.SigningSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and checks an access token against expiry, signature,
// token type and the denylist. A non-nil expectedTenant must also match
// the tenant claim.
func (s *TokenService) Validate(ctx context.Context, tokenString string, expectedTenant *uuid.UUID) (*models.Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != models.TokenTypeAccess {
		return nil, domainErrors.ErrTokenInvalid
	}
	if expectedTenant != nil && claims.TenantID != *expectedTenant {
		return nil, domainErrors.ErrTenantMismatch
	}

	denied, err := s.denylist.IsDenied(ctx, claims.ID)
	if err != nil {
		s.logger.Error("Denylist check failed", zap.Error(err))
		return nil, domainErrors.ErrInternal
	}
	if denied {
		return nil, domainErrors.ErrTokenRevoked
	}
	return claims, nil
}

// Refresh exchanges a refresh token for a fresh pair. It works even when the
// matching access token has expired, as long as the refresh window is open.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, *models.Claims, error) {
	claims, err := s.parse(refreshToken)
	if err != nil {
		if errors.Is(err, domainErrors.ErrTokenExpired) {
			return nil, nil, domainErrors.ErrRefreshWindowExpired
		}
		return nil, nil, err
	}
	if claims.TokenType != models.TokenTypeRefresh {
		return nil, nil, domainErrors.ErrTokenInvalid
	}

	denied, err := s.denylist.IsDenied(ctx, claims.ID)
	if err != nil {
		s.logger.Error("Denylist check failed", zap.Error(err))
		return nil, nil, domainErrors.ErrInternal
	}
	if denied {
		return nil, nil, domainErrors.ErrTokenRevoked
	}

	// Rotate: the presented refresh token dies with the exchange.
	if err := s.denylist.Deny(ctx, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
		s.logger.Error("Failed to retire refresh token", zap.Error(err), zap.String("jti", claims.ID))
	}

	user := &models.User{ID: claims.UserID, TenantID: claims.TenantID}
	pair, err := s.Issue(user)
	if err != nil {
		return nil, nil, err
	}
	return pair, claims, nil
}

// Logout invalidates the presented token for its remaining lifetime.
func (s *TokenService) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.parse(tokenString)
	if err != nil {
		return err
	}
	return s.denylist.Deny(ctx, claims.ID, time.Until(claims.ExpiresAt.Time))
}

func (s *TokenService) parse(tokenString string) (*models.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.SigningSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domainErrors.ErrTokenExpired
		}
		return nil, domainErrors.ErrTokenInvalid
	}

	claims, ok := token.Claims.(*models.Claims)
	if !ok || !token.Valid {
		return nil, domainErrors.ErrTokenInvalid
	}
	return claims, nil
}
