package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
	"github.com/wizarding-anonymous/identity_platform/internal/handler/http/middleware"
	"github.com/wizarding-anonymous/identity_platform/internal/service"
)

// TokenManager is the token lifecycle surface the handlers need beyond
// what the auth service covers.
type TokenManager interface {
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, *models.Claims, error)
	Logout(ctx context.Context, tokenString string) error
}

// AuthHandler exposes the authentication flows over HTTP.
type AuthHandler struct {
	auth   *service.AuthService
	tokens TokenManager
	logger *zap.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(auth *service.AuthService, tokens TokenManager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, tokens: tokens, logger: logger}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, domainErrors.NewValidation("", err.Error()))
		return
	}

	user, _, err := h.auth.Register(c.Request.Context(), &req)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondWithData(c, http.StatusCreated, gin.H{
		"user":    user.ToResponse(),
		"message": "verification email sent",
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, domainErrors.NewValidation("", err.Error()))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), &req)
	h.respondLoginOutcome(c, result, err)
}

type verifyTwoFactorRequest struct {
	ChallengeToken string `json:"challenge_token" binding:"required"`
	Code           string `json:"code" binding:"required"`
}

// VerifyTwoFactor handles POST /auth/2fa/verify.
func (h *AuthHandler) VerifyTwoFactor(c *gin.Context) {
	var req verifyTwoFactorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, domainErrors.NewValidation("", err.Error()))
		return
	}

	result, err := h.auth.VerifyTwoFactor(c.Request.Context(), req.ChallengeToken, req.Code)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondWithData(c, http.StatusOK, loginResponse(result))
}

type magicLinkRequest struct {
	TenantID uuid.UUID `json:"tenant_id" binding:"required"`
	Email    string    `json:"email" binding:"required,email"`
}

// RequestMagicLink handles POST /auth/magic-link. The response is identical
// whether or not the address exists.
func (h *AuthHandler) RequestMagicLink(c *gin.Context) {
	var req magicLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, domainErrors.NewValidation("", err.Error()))
		return
	}

	if _, err := h.auth.RequestMagicLink(c.Request.Context(), req.TenantID, req.Email); err != nil {
		if _, limited := domainErrors.IsRateLimited(err); limited {
			RespondWithError(c, err)
			return
		}
		h.logger.Error("Magic link request failed", zap.Error(err))
	}
	RespondWithMessage(c, http.StatusAccepted, "if the address is registered, a login link has been sent")
}

// VerifyMagicLink handles GET /auth/magic-link/verify?token=...
func (h *AuthHandler) VerifyMagicLink(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		RespondWithError(c, domainErrors.NewValidation("token", "is required"))
		return
	}

	result, err := h.auth.VerifyMagicLink(c.Request.Context(), token)
	h.respondLoginOutcome(c, result, err)
}

// VerifyEmail handles GET /auth/verify-email with the signed query params.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	user, err := h.auth.VerifyEmail(c.Request.Context(),
		c.Query("id"), c.Query("hash"), c.Query("expires"), c.Query("signature"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondWithData(c, http.StatusOK, gin.H{
		"user":    user.ToResponse(),
		"message": "email verified",
	})
}

// ResendVerification handles POST /auth/verify-email/resend.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, domainErrors.NewValidation("", err.Error()))
		return
	}

	if _, err := h.auth.ResendVerification(c.Request.Context(), &req); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondWithMessage(c, http.StatusAccepted, "verification email sent")
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh handles POST /auth/refresh. The presented refresh token is
// revoked as part of the rotation.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, domainErrors.NewValidation("", err.Error()))
		return
	}

	pair, _, err := h.tokens.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondWithData(c, http.StatusOK, pair)
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Logout handles POST /auth/logout. The access token is denied for the rest
// of its lifetime; the refresh token too when the client supplies it.
func (h *AuthHandler) Logout(c *gin.Context) {
	raw, _ := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if err := h.tokens.Logout(c.Request.Context(), raw); err != nil {
		RespondWithError(c, err)
		return
	}

	var req logoutRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		if err := h.tokens.Logout(c.Request.Context(), req.RefreshToken); err != nil {
			h.logger.Warn("Failed to revoke refresh token on logout", zap.Error(err))
		}
	}
	RespondWithMessage(c, http.StatusOK, "logged out")
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		RespondWithError(c, domainErrors.ErrUnauthorized)
		return
	}

	user, err := h.auth.GetUser(c.Request.Context(), claims, claims.UserID)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondWithData(c, http.StatusOK, user.ToResponse())
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// ChangePassword handles POST /auth/password.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		RespondWithError(c, domainErrors.ErrUnauthorized)
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, domainErrors.NewValidation("", err.Error()))
		return
	}

	if err := h.auth.ChangePassword(c.Request.Context(), claims, claims.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondWithMessage(c, http.StatusOK, "password changed")
}

// SetupTwoFactor handles POST /auth/2fa/setup.
func (h *AuthHandler) SetupTwoFactor(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		RespondWithError(c, domainErrors.ErrUnauthorized)
		return
	}

	setup, err := h.auth.SetupTwoFactor(c.Request.Context(), claims.UserID)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondWithData(c, http.StatusOK, setup)
}

type twoFactorCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// ActivateTwoFactor handles POST /auth/2fa/activate.
func (h *AuthHandler) ActivateTwoFactor(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		RespondWithError(c, domainErrors.ErrUnauthorized)
		return
	}

	var req twoFactorCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, domainErrors.NewValidation("", err.Error()))
		return
	}

	recoveryCodes, err := h.auth.ActivateTwoFactor(c.Request.Context(), claims.UserID, req.Code)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondWithData(c, http.StatusOK, gin.H{
		"recovery_codes": recoveryCodes,
		"message":        "two-factor authentication enabled",
	})
}

// DisableTwoFactor handles POST /auth/2fa/disable.
func (h *AuthHandler) DisableTwoFactor(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		RespondWithError(c, domainErrors.ErrUnauthorized)
		return
	}

	var req twoFactorCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, domainErrors.NewValidation("", err.Error()))
		return
	}

	if err := h.auth.DisableTwoFactor(c.Request.Context(), claims.UserID, req.Code); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondWithMessage(c, http.StatusOK, "two-factor authentication disabled")
}

// DeleteAccount handles DELETE /auth/account (soft delete).
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		RespondWithError(c, domainErrors.ErrUnauthorized)
		return
	}

	if err := h.auth.DeleteAccount(c.Request.Context(), claims, claims.UserID); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondWithNoContent(c)
}

// PurgeAccount handles POST /auth/account/purge (irreversible removal).
func (h *AuthHandler) PurgeAccount(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		RespondWithError(c, domainErrors.ErrUnauthorized)
		return
	}

	if err := h.auth.PurgeAccount(c.Request.Context(), claims, claims.UserID); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondWithNoContent(c)
}

// respondLoginOutcome renders the three-way outcome shared by the password
// and magic-link flows: authenticated, parked on a second factor, or failed.
func (h *AuthHandler) respondLoginOutcome(c *gin.Context, result *models.LoginResult, err error) {
	if errors.Is(err, domainErrors.ErrTwoFactorRequired) && result != nil {
		RespondWithData(c, http.StatusOK, gin.H{
			"two_factor_required": true,
			"challenge_token":     result.ChallengeToken,
		})
		return
	}
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondWithData(c, http.StatusOK, loginResponse(result))
}

func loginResponse(result *models.LoginResult) gin.H {
	return gin.H{
		"user":   result.User.ToResponse(),
		"tokens": result.Tokens,
	}
}
