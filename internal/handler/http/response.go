package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
)

// ResponseError is the error body every endpoint returns.
type ResponseError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// RespondWithError maps a domain error onto its HTTP shape. Rate limit
// rejections carry a Retry-After header with the wait in whole seconds.
func RespondWithError(c *gin.Context, err error) {
	if retryAfter, limited := domainErrors.IsRateLimited(err); limited {
		c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, ResponseError{
			Error: err.Error(),
			Code:  "rate_limited",
		})
		return
	}

	var appErr *domainErrors.AppError
	if errors.As(err, &appErr) {
		c.AbortWithStatusJSON(appErr.StatusCode, ResponseError{
			Error: appErr.Message,
			Code:  appErr.Code,
		})
		return
	}

	status, code := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		// Internal details stay in the logs.
		message = "internal server error"
	}
	c.AbortWithStatusJSON(status, ResponseError{Error: message, Code: code})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domainErrors.ErrEmailVerificationRequired):
		return http.StatusForbidden, "email_verification_required"
	case errors.Is(err, domainErrors.ErrTwoFactorRequired):
		return http.StatusUnauthorized, "two_factor_required"
	case errors.Is(err, domainErrors.ErrAlreadyVerified):
		return http.StatusConflict, "already_verified"
	case errors.Is(err, domainErrors.ErrChallengeExpired):
		return http.StatusGone, "challenge_expired"
	case errors.Is(err, domainErrors.ErrRefreshWindowExpired):
		return http.StatusUnauthorized, "refresh_window_expired"
	case errors.Is(err, domainErrors.Err2FAAlreadyEnabled):
		return http.StatusConflict, "two_factor_already_enabled"
	case errors.Is(err, domainErrors.Err2FANotEnabled):
		return http.StatusBadRequest, "two_factor_not_enabled"
	case errors.Is(err, domainErrors.ErrWebhookInactive):
		return http.StatusConflict, "webhook_inactive"
	case errors.Is(err, domainErrors.ErrUserDeleted):
		return http.StatusGone, "account_deleted"
	case domainErrors.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case domainErrors.IsUnauthorized(err):
		return http.StatusUnauthorized, "unauthorized"
	case domainErrors.IsConflict(err):
		return http.StatusConflict, "conflict"
	case domainErrors.IsBadRequest(err):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, domainErrors.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// RespondWithData sends a plain JSON payload.
func RespondWithData(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// RespondWithMessage sends a message-only body.
func RespondWithMessage(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"message": message})
}

// RespondWithNoContent sends an empty 204.
func RespondWithNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
